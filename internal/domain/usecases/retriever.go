package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 5

// ContextSeparator joins retrieved chunk texts into the context blob.
const ContextSeparator = "\n\n---\n\n"

// ContextRetriever embeds a query and fetches the nearest chunks.
type ContextRetriever struct {
	embedder    ports.EmbeddingProvider
	index       ports.VectorIndex
	topK        int
	expectedDim int
}

// NewContextRetriever creates a ContextRetriever. topK <= 0 selects DefaultTopK.
// expectedDim > 0 enables a dimension check on query vectors.
func NewContextRetriever(embedder ports.EmbeddingProvider, index ports.VectorIndex, topK, expectedDim int) *ContextRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &ContextRetriever{
		embedder:    embedder,
		index:       index,
		topK:        topK,
		expectedDim: expectedDim,
	}
}

// Retrieve returns chunks in the order the index ranked them. The core does not re-rank.
func (r *ContextRetriever) Retrieve(ctx context.Context, query string) ([]entities.RetrievedChunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, classify(KindEmbedding, "embedding query", err)
	}
	if len(vector) == 0 {
		return nil, classify(KindEmbedding, "embedding query", errors.New("embedding model returned an empty vector"))
	}
	if r.expectedDim > 0 && len(vector) != r.expectedDim {
		return nil, classify(KindEmbedding, "embedding query",
			fmt.Errorf("embedding dimension mismatch: got %d, index expects %d", len(vector), r.expectedDim))
	}

	matches, err := r.index.Query(ctx, vector, r.topK, true)
	if err != nil {
		return nil, classify(KindRetrieval, "querying index", err)
	}

	chunks := make([]entities.RetrievedChunk, len(matches))
	for i, m := range matches {
		chunks[i] = entities.RetrievedChunk{
			Text:     m.Metadata[entities.MetaText],
			Score:    m.Score,
			Metadata: m.Metadata,
		}
	}
	return chunks, nil
}

// ContextBlob concatenates chunk texts in retrieval order.
// Zero chunks produce an empty blob.
func ContextBlob(chunks []entities.RetrievedChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, ContextSeparator)
}
