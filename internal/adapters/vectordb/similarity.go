package vectordb

import (
	"math"
	"sort"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// rankChunks scores chunks against vector and returns the best topK as matches.
// Ties keep insertion order.
func rankChunks(vector []float32, chunks []entities.Chunk, topK int, includeMetadata bool) []entities.Match {
	matches := make([]entities.Match, len(chunks))
	for i, c := range chunks {
		matches[i] = entities.Match{ID: c.ID, Score: cosineSimilarity(vector, c.Embedding)}
		if includeMetadata {
			matches[i].Metadata = chunkMetadata(c)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK >= 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// chunkMetadata returns a copy of the chunk's metadata with text and
// document_id filled in from the chunk itself when absent.
func chunkMetadata(c entities.Chunk) map[string]string {
	meta := make(map[string]string, len(c.Metadata)+2)
	for k, v := range c.Metadata {
		meta[k] = v
	}
	if _, ok := meta[entities.MetaText]; !ok {
		meta[entities.MetaText] = c.Content
	}
	if _, ok := meta[entities.MetaDocumentID]; !ok && c.DocumentID != "" {
		meta[entities.MetaDocumentID] = c.DocumentID
	}
	return meta
}
