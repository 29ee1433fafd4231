package vectordb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

func recordingServer(t *testing.T, reply func(path string) any) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.RequestURI(), Header: r.Header.Clone()}
		if r.ContentLength > 0 {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rec.Body))
		}
		reqs = append(reqs, rec)

		w.Header().Set("Content-Type", "application/json")
		out := reply(r.URL.Path)
		if out == nil {
			out = map[string]any{"result": true, "status": "ok"}
		}
		json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(server.Close)
	return server, &reqs
}

func TestQdrantStore_InitUpsertQuery(t *testing.T) {
	server, reqs := recordingServer(t, func(path string) any {
		if path == "/collections/docs/points/search" {
			return map[string]any{"result": []map[string]any{{
				"id":    "0b6e7a9c-0000-0000-0000-000000000000",
				"score": 0.91,
				"payload": map[string]any{
					"chunk_id":    "c1",
					"chunk_index": 0,
					"text":        "hello",
					"source":      "a.pdf",
				},
			}}}
		}
		return nil
	})

	store := NewQdrantStore(QdrantConfig{URL: server.URL, APIKey: "secret", Collection: "docs", Dimension: 3})
	ctx := context.Background()

	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Upsert(ctx, []entities.Chunk{
		{ID: "c1", DocumentID: "doc1", Content: "hello", Embedding: []float32{1, 0, 0}},
	}))
	matches, err := store.Query(ctx, []float32{1, 0, 0}, 5, true)
	require.NoError(t, err)

	require.Len(t, *reqs, 3)
	init, upsert, search := (*reqs)[0], (*reqs)[1], (*reqs)[2]

	assert.Equal(t, http.MethodPut, init.Method)
	assert.Equal(t, "/collections/docs", init.Path)
	assert.Equal(t, "secret", init.Header.Get("api-key"))

	assert.Equal(t, "/collections/docs/points?wait=true", upsert.Path)
	point := upsert.Body["points"].([]any)[0].(map[string]any)
	assert.Equal(t, pointID("c1"), point["id"])
	assert.Equal(t, "hello", point["payload"].(map[string]any)["text"])

	assert.Equal(t, float64(5), search.Body["limit"])
	assert.Equal(t, true, search.Body["with_payload"])

	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ID)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-9)
	assert.Equal(t, map[string]string{"text": "hello", "source": "a.pdf"}, matches[0].Metadata)
}

func TestQdrantStore_DeleteFiltersByDocument(t *testing.T) {
	server, reqs := recordingServer(t, func(string) any { return nil })
	store := NewQdrantStore(QdrantConfig{URL: server.URL, Collection: "docs", Dimension: 3})

	require.NoError(t, store.Delete(context.Background(), "doc1"))

	req := (*reqs)[0]
	assert.Equal(t, "/collections/docs/points/delete?wait=true", req.Path)
	must := req.Body["filter"].(map[string]any)["must"].([]any)[0].(map[string]any)
	assert.Equal(t, "document_id", must["key"])
}

func TestQdrantStore_InitRejectsBadDimension(t *testing.T) {
	assert.Error(t, NewQdrantStore(QdrantConfig{URL: "http://unused"}).Init(context.Background()))
}

func TestQdrantStore_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewQdrantStore(QdrantConfig{URL: server.URL}).Query(context.Background(), []float32{1}, 5, true)
	assert.ErrorContains(t, err, "500")
}

func TestPineconeStore_Query(t *testing.T) {
	server, reqs := recordingServer(t, func(path string) any {
		return map[string]any{"matches": []map[string]any{
			{"id": "c1", "score": 0.8, "metadata": map[string]any{"text": "Chunk A", "year": 2015}},
			{"id": "c2", "score": 0.5, "metadata": map[string]any{"text": "Chunk B"}},
		}}
	})

	store := NewPineconeStore(PineconeConfig{Host: server.URL, APIKey: "pc-key"})
	matches, err := store.Query(context.Background(), []float32{0.1, 0.2}, 5, true)
	require.NoError(t, err)

	req := (*reqs)[0]
	assert.Equal(t, "/query", req.Path)
	assert.Equal(t, "pc-key", req.Header.Get("Api-Key"))
	assert.Equal(t, float64(5), req.Body["topK"])
	assert.Equal(t, true, req.Body["includeMetadata"])
	assert.NotContains(t, req.Body, "namespace")

	require.Len(t, matches, 2)
	assert.Equal(t, "Chunk A", matches[0].Metadata["text"])
	assert.Equal(t, "2015", matches[0].Metadata["year"])
}

func TestPineconeStore_UpsertBatches(t *testing.T) {
	server, reqs := recordingServer(t, func(string) any { return map[string]any{"upsertedCount": 1} })
	store := NewPineconeStore(PineconeConfig{Host: server.URL, Namespace: "ns"})

	chunks := make([]entities.Chunk, pineconeUpsertLimit+1)
	for i := range chunks {
		chunks[i] = entities.Chunk{ID: string(rune('a' + i%26)), Embedding: []float32{1}}
	}
	require.NoError(t, store.Upsert(context.Background(), chunks))

	require.Len(t, *reqs, 2)
	assert.Len(t, (*reqs)[0].Body["vectors"], pineconeUpsertLimit)
	assert.Len(t, (*reqs)[1].Body["vectors"], 1)
	assert.Equal(t, "ns", (*reqs)[0].Body["namespace"])
}

func TestPineconeStore_DeleteAndClear(t *testing.T) {
	server, reqs := recordingServer(t, func(string) any { return map[string]any{} })
	store := NewPineconeStore(PineconeConfig{Host: server.URL})
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "doc1"))
	require.NoError(t, store.Clear(ctx))

	filter := (*reqs)[0].Body["filter"].(map[string]any)
	assert.Equal(t, map[string]any{"$eq": "doc1"}, filter["document_id"])
	assert.Equal(t, true, (*reqs)[1].Body["deleteAll"])
}

func TestNewPineconeStore_AddsScheme(t *testing.T) {
	s := NewPineconeStore(PineconeConfig{Host: "idx-123.svc.pinecone.io/"})
	assert.Equal(t, "https://idx-123.svc.pinecone.io", s.rest.baseURL)
}
