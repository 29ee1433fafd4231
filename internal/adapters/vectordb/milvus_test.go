package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// fakeMilvus records the calls the store makes. Methods the store does not
// use fall through to the nil embedded client and would panic.
type fakeMilvus struct {
	client.Client

	upserted   []entity.Column
	upserts    int
	searchCall struct {
		collection   string
		outputFields []string
		vectorField  string
		metric       entity.MetricType
		topK         int
	}
	results   []client.SearchResult
	searchErr error
	deleteExp string
}

func (f *fakeMilvus) Upsert(_ context.Context, _ string, _ string, columns ...entity.Column) (entity.Column, error) {
	f.upserts++
	f.upserted = columns
	return nil, nil
}

func (f *fakeMilvus) Search(_ context.Context, collName string, _ []string, _ string, outputFields []string,
	_ []entity.Vector, vectorField string, metricType entity.MetricType, topK int, _ entity.SearchParam,
	_ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchCall.collection = collName
	f.searchCall.outputFields = outputFields
	f.searchCall.vectorField = vectorField
	f.searchCall.metric = metricType
	f.searchCall.topK = topK
	return f.results, f.searchErr
}

func (f *fakeMilvus) Delete(_ context.Context, _ string, _ string, expr string) error {
	f.deleteExp = expr
	return nil
}

func newFakeMilvusStore() (*MilvusStore, *fakeMilvus) {
	fake := &fakeMilvus{}
	return &MilvusStore{client: fake, collection: "docs", dimension: 3}, fake
}

func metadataJSON(t *testing.T, meta map[string]string) string {
	t.Helper()
	b, err := json.Marshal(meta)
	require.NoError(t, err)
	return string(b)
}

func TestMilvusStore_QueryMapsIDsScoresAndMetadata(t *testing.T) {
	store, fake := newFakeMilvusStore()
	fake.results = []client.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar(milvusFieldID, []string{"doc-1_0", "doc-2_3"}),
		Scores:      []float32{0.91, 0.42},
		Fields: client.ResultSet{
			entity.NewColumnVarChar(milvusFieldMetadata, []string{
				metadataJSON(t, map[string]string{entities.MetaText: "alpha", entities.MetaSource: "a.pdf"}),
				metadataJSON(t, map[string]string{entities.MetaText: "beta"}),
			}),
		},
	}}

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, true)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "doc-1_0", matches[0].ID)
	assert.InDelta(t, 0.91, matches[0].Score, 1e-6)
	assert.Equal(t, "alpha", matches[0].Metadata[entities.MetaText])
	assert.Equal(t, "a.pdf", matches[0].Metadata[entities.MetaSource])
	assert.Equal(t, "doc-2_3", matches[1].ID)
	assert.Equal(t, "beta", matches[1].Metadata[entities.MetaText])

	assert.Equal(t, "docs", fake.searchCall.collection)
	assert.Equal(t, []string{milvusFieldMetadata}, fake.searchCall.outputFields)
	assert.Equal(t, milvusFieldEmbedding, fake.searchCall.vectorField)
	assert.Equal(t, entity.COSINE, fake.searchCall.metric)
	assert.Equal(t, 5, fake.searchCall.topK)
}

func TestMilvusStore_QueryWithoutMetadata(t *testing.T) {
	store, fake := newFakeMilvusStore()
	fake.results = []client.SearchResult{{
		ResultCount: 1,
		IDs:         entity.NewColumnVarChar(milvusFieldID, []string{"doc-1_0"}),
		Scores:      []float32{0.5},
	}}

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 1, false)
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Nil(t, matches[0].Metadata)
	assert.Empty(t, fake.searchCall.outputFields)
}

func TestMilvusStore_QueryMissingMetadataColumn(t *testing.T) {
	store, fake := newFakeMilvusStore()
	fake.results = []client.SearchResult{{
		ResultCount: 1,
		IDs:         entity.NewColumnVarChar(milvusFieldID, []string{"doc-1_0"}),
		Scores:      []float32{0.5},
	}}

	_, err := store.Query(context.Background(), []float32{1, 0, 0}, 1, true)
	assert.ErrorContains(t, err, "search result missing metadata field")
}

func TestMilvusStore_QueryEmptyAndFailing(t *testing.T) {
	store, fake := newFakeMilvusStore()

	matches, err := store.Query(context.Background(), []float32{1, 0, 0}, 5, true)
	require.NoError(t, err)
	assert.Empty(t, matches)

	fake.searchErr = errors.New("collection not loaded")
	_, err = store.Query(context.Background(), []float32{1, 0, 0}, 5, true)
	assert.ErrorContains(t, err, "collection not loaded")
}

func TestMilvusStore_DeleteQuotesDocumentID(t *testing.T) {
	store, fake := newFakeMilvusStore()

	require.NoError(t, store.Delete(context.Background(), `report "final".pdf`))
	assert.Equal(t, `document_id == "report \"final\".pdf"`, fake.deleteExp)
}

func TestMilvusStore_UpsertColumns(t *testing.T) {
	store, fake := newFakeMilvusStore()

	require.NoError(t, store.Upsert(context.Background(), nil))
	assert.Zero(t, fake.upserts)

	err := store.Upsert(context.Background(), []entities.Chunk{
		{ID: "doc-1_0", DocumentID: "doc-1", Content: "alpha", Embedding: []float32{1, 0, 0}},
		{ID: "doc-1_1", DocumentID: "doc-1", Content: "beta", Embedding: []float32{0, 1, 0},
			Metadata: map[string]string{entities.MetaSource: "a.pdf"}},
	})
	require.NoError(t, err)

	require.Len(t, fake.upserted, 5)
	names := make([]string, len(fake.upserted))
	for i, col := range fake.upserted {
		names[i] = col.Name()
		assert.Equal(t, 2, col.Len(), "column %s", col.Name())
	}
	assert.Equal(t, []string{milvusFieldID, milvusFieldDocumentID, milvusFieldText, milvusFieldMetadata, milvusFieldEmbedding}, names)

	raw, err := fake.upserted[3].GetAsString(1)
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, "beta", meta[entities.MetaText])
	assert.Equal(t, "a.pdf", meta[entities.MetaSource])
	assert.Equal(t, "doc-1", meta[entities.MetaDocumentID])
}
