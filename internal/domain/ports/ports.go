// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, adapters implement them.
package ports

import (
	"context"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// EmbeddingProvider converts text to fixed-dimension vectors.
type EmbeddingProvider interface {
	// EmbedQuery embeds a single piece of text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds several texts, preserving order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex answers top-K similarity queries.
// Matches are ordered by descending score.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error)
}

// VectorStore is a VectorIndex that can also be written to.
type VectorStore interface {
	VectorIndex

	// Upsert saves chunks with their embeddings, replacing chunks with the same ID.
	Upsert(ctx context.Context, chunks []entities.Chunk) error

	// Delete removes all chunks for a document.
	Delete(ctx context.Context, documentID string) error

	// Clear removes all data from the store.
	Clear(ctx context.Context) error
}

// ChatModel produces completions within a conversation.
type ChatModel interface {
	// StartSession opens a session seeded with history. It performs no I/O.
	StartSession(history entities.ConversationHistory) ChatSession
}

// ChatSession sends messages on top of its seeded history.
type ChatSession interface {
	Send(ctx context.Context, message string) (string, error)
}

// DocumentLoader reads a file into one or more documents.
type DocumentLoader interface {
	// Load reads documents from the given path. name is the user-facing file name,
	// which may differ from the base name of path for uploaded temp files.
	Load(ctx context.Context, path, name string) ([]entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text from binary document formats (PDF).
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, filename string) (string, error)
	SupportedFormats() []string
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
