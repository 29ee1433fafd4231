package usecases

import (
	"context"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// mockEmbedder implements ports.EmbeddingProvider for testing
type mockEmbedder struct {
	mu      sync.Mutex
	embedFn func(text string) ([]float32, error)
	queries []string
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()
	if m.embedFn != nil {
		return m.embedFn(text)
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		emb, err := m.EmbedQuery(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		result[i] = emb
	}
	return result, nil
}

// mockVectorStore implements ports.VectorStore for testing
type mockVectorStore struct {
	mu       sync.Mutex
	chunks   []entities.Chunk
	queryErr error
	upsertFn func(chunks []entities.Chunk) error
	queries  int
	lastTopK int
	deleted  []string
}

func (m *mockVectorStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if m.upsertFn != nil {
		return m.upsertFn(chunks)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockVectorStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	m.lastTopK = topK
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var matches []entities.Match
	for i, c := range m.chunks {
		if i >= topK {
			break
		}
		meta := map[string]string{entities.MetaText: c.Content}
		matches = append(matches, entities.Match{ID: c.ID, Score: 0.9 - float64(i)*0.1, Metadata: meta})
	}
	return matches, nil
}

func (m *mockVectorStore) Delete(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, docID)
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *mockVectorStore) snapshot() ([]entities.Chunk, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Chunk(nil), m.chunks...), append([]string(nil), m.deleted...)
}

func (m *mockVectorStore) Clear(ctx context.Context) error {
	m.chunks = nil
	return nil
}

// sentMessage records one Send call together with the history its session was seeded with.
type sentMessage struct {
	history entities.ConversationHistory
	message string
}

// mockChat implements ports.ChatModel; replies are produced by replyFn.
type mockChat struct {
	mu      sync.Mutex
	replyFn func(message string) (string, error)
	sent    []sentMessage
}

func (m *mockChat) StartSession(history entities.ConversationHistory) ports.ChatSession {
	return &mockSession{chat: m, history: history}
}

func (m *mockChat) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type mockSession struct {
	chat    *mockChat
	history entities.ConversationHistory
}

func (s *mockSession) Send(ctx context.Context, message string) (string, error) {
	s.chat.mu.Lock()
	s.chat.sent = append(s.chat.sent, sentMessage{history: s.history, message: message})
	s.chat.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.chat.replyFn != nil {
		return s.chat.replyFn(message)
	}
	return "mocked answer", nil
}
