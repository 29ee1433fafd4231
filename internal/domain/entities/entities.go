// Package entities contains core business entities.
// These are pure domain objects with no external dependencies.
package entities

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// ConversationTurn is one exchange in a conversation.
// Turns are owned by the caller and passed in per request; the core never persists them.
type ConversationTurn struct {
	Role  Role     `json:"role"`
	Parts []string `json:"parts"`
}

// Text joins the turn's parts into a single string.
func (t ConversationTurn) Text() string {
	return strings.Join(t.Parts, "\n")
}

// UnmarshalJSON accepts parts as plain strings or as {"text": "..."} objects,
// the shape chat clients built for Gemini send.
func (t *ConversationTurn) UnmarshalJSON(b []byte) error {
	var raw struct {
		Role  Role              `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	parts := make([]string, 0, len(raw.Parts))
	for _, p := range raw.Parts {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		var obj struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(p, &obj); err != nil {
			return errors.New("conversation part must be a string or an object with a text field")
		}
		parts = append(parts, obj.Text)
	}

	t.Role = raw.Role
	t.Parts = parts
	return nil
}

// ConversationHistory is an ordered, chronological sequence of turns.
type ConversationHistory []ConversationTurn

// RetrievedChunk is a single match produced by context retrieval.
type RetrievedChunk struct {
	Text     string
	Score    float64
	Metadata map[string]string
}

// QueryContext is the per-request aggregate built while resolving a question.
// It is discarded once the answer is produced.
type QueryContext struct {
	OriginalQuestion   string
	StandaloneQuestion string
	Rewritten          bool
	History            ConversationHistory
	RetrievedChunks    []RetrievedChunk
}

// Match is a raw hit returned by a vector index.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Document represents a loaded source document (PDF, JSON, TXT, MD).
// A single uploaded file may produce several documents (one per JSON record).
type Document struct {
	ID        string
	Name      string
	Path      string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk represents a piece of a document for embedding.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int       // Position in document
	Embedding  []float32 // Populated by the embedding adapter
	Metadata   map[string]string
}

// Metadata keys shared by the ingestion path and the vector stores.
const (
	MetaText       = "text"
	MetaSource     = "source"
	MetaDocumentID = "document_id"
	MetaSchemeName = "scheme_name"
)
