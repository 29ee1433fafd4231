package vectordb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// QdrantConfig configures the Qdrant REST adapter.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimension  int
	Timeout    time.Duration
}

// QdrantStore is a REST client to Qdrant implementing ports.VectorStore.
// It assumes cosine distance and creates the collection if missing.
type QdrantStore struct {
	rest       restClient
	collection string
	dimension  int
}

// NewQdrantStore creates a Qdrant adapter. Call Init before first use.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}
	return &QdrantStore{
		rest: restClient{
			name:       "qdrant",
			baseURL:    cfg.URL,
			authHeader: "api-key",
			authValue:  cfg.APIKey,
			client:     &http.Client{Timeout: timeout},
		},
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
	}
}

func (s *QdrantStore) path(suffix string) string {
	return "/collections/" + url.PathEscape(s.collection) + suffix
}

// Init creates the collection. Qdrant answers 200 if it already exists with
// the same schema.
func (s *QdrantStore) Init(ctx context.Context) error {
	if s.dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	return s.rest.do(ctx, http.MethodPut, s.path(""), body, nil)
}

// pointID maps a chunk ID to the UUID Qdrant requires.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Upsert writes points keyed by a UUID derived from the chunk ID.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			"chunk_id":    c.ID,
			"chunk_index": c.Index,
		}
		for k, v := range chunkMetadata(c) {
			payload[k] = v
		}
		points[i] = map[string]any{
			"id":      pointID(c.ID),
			"vector":  c.Embedding,
			"payload": payload,
		}
	}
	return s.rest.do(ctx, http.MethodPut, s.path("/points?wait=true"), map[string]any{"points": points}, nil)
}

// Query searches the collection with payloads when includeMetadata is set.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": includeMetadata,
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.rest.do(ctx, http.MethodPost, s.path("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	matches := make([]entities.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		m := entities.Match{ID: fmt.Sprint(r.ID), Score: r.Score}
		if id, ok := r.Payload["chunk_id"].(string); ok {
			m.ID = id
		}
		if includeMetadata {
			m.Metadata = stringMetadata(r.Payload)
			delete(m.Metadata, "chunk_id")
			delete(m.Metadata, "chunk_index")
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete removes points filtered by document_id.
func (s *QdrantStore) Delete(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{{
				"key":   entities.MetaDocumentID,
				"match": map[string]any{"value": documentID},
			}},
		},
	}
	return s.rest.do(ctx, http.MethodPost, s.path("/points/delete?wait=true"), body, nil)
}

// Clear drops and recreates the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	if err := s.rest.do(ctx, http.MethodDelete, s.path(""), nil, nil); err != nil {
		return err
	}
	return s.Init(ctx)
}
