// Package vectordb provides vector store adapters implementing ports.VectorStore.
package vectordb

import (
	"context"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// InMemoryStore keeps chunks in process memory. Useful for tests and
// single-process deployments that re-ingest on startup.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]entities.Chunk // chunkID -> chunk
	order  []string                  // insertion order, for stable ranking
	docs   map[string][]string       // docID -> []chunkID
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		chunks: make(map[string]entities.Chunk),
		docs:   make(map[string][]string),
	}
}

// Upsert saves chunks, replacing any with the same ID.
func (s *InMemoryStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		if old, ok := s.chunks[chunk.ID]; ok {
			if old.DocumentID != chunk.DocumentID {
				s.docs[old.DocumentID] = remove(s.docs[old.DocumentID], chunk.ID)
				s.docs[chunk.DocumentID] = append(s.docs[chunk.DocumentID], chunk.ID)
			}
		} else {
			s.order = append(s.order, chunk.ID)
			s.docs[chunk.DocumentID] = append(s.docs[chunk.DocumentID], chunk.ID)
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Query finds the topK chunks most similar to vector.
func (s *InMemoryStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	all := make([]entities.Chunk, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.chunks[id])
	}
	s.mu.RUnlock()

	return rankChunks(vector, all, topK, includeMetadata), nil
}

// Delete removes all chunks for a document.
func (s *InMemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunkIDs, ok := s.docs[documentID]
	if !ok {
		return nil
	}

	for _, id := range chunkIDs {
		delete(s.chunks, id)
		s.order = remove(s.order, id)
	}
	delete(s.docs, documentID)
	return nil
}

// Clear removes all data from the store.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = make(map[string]entities.Chunk)
	s.docs = make(map[string][]string)
	s.order = nil
	return nil
}

// Len returns the number of stored chunks.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
