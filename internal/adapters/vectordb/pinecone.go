package vectordb

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// PineconeConfig configures the Pinecone data-plane adapter.
type PineconeConfig struct {
	// Host is the index host, e.g. https://my-index-abc123.svc.us-east-1.pinecone.io
	Host      string
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

// PineconeStore talks to a Pinecone index over its REST data plane.
type PineconeStore struct {
	rest      restClient
	namespace string
}

// NewPineconeStore creates a Pinecone adapter.
func NewPineconeStore(cfg PineconeConfig) *PineconeStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host != "" && !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &PineconeStore{
		rest: restClient{
			name:       "pinecone",
			baseURL:    host,
			authHeader: "Api-Key",
			authValue:  cfg.APIKey,
			client:     &http.Client{Timeout: timeout},
		},
		namespace: cfg.Namespace,
	}
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// pineconeUpsertLimit is the data plane's per-request vector limit.
const pineconeUpsertLimit = 100

// Upsert writes vectors with their metadata.
func (s *PineconeStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	for start := 0; start < len(chunks); start += pineconeUpsertLimit {
		end := min(start+pineconeUpsertLimit, len(chunks))
		vectors := make([]pineconeVector, 0, end-start)
		for _, c := range chunks[start:end] {
			vectors = append(vectors, pineconeVector{ID: c.ID, Values: c.Embedding, Metadata: chunkMetadata(c)})
		}
		body := map[string]any{"vectors": vectors}
		if s.namespace != "" {
			body["namespace"] = s.namespace
		}
		if err := s.rest.do(ctx, http.MethodPost, "/vectors/upsert", body, nil); err != nil {
			return err
		}
	}
	return nil
}

// Query returns the topK nearest vectors.
func (s *PineconeStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error) {
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": includeMetadata,
		"includeValues":   false,
	}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}

	var resp struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := s.rest.do(ctx, http.MethodPost, "/query", body, &resp); err != nil {
		return nil, err
	}

	matches := make([]entities.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, entities.Match{ID: m.ID, Score: m.Score, Metadata: stringMetadata(m.Metadata)})
	}
	return matches, nil
}

// Delete removes every vector whose document_id matches.
func (s *PineconeStore) Delete(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			entities.MetaDocumentID: map[string]any{"$eq": documentID},
		},
	}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	return s.rest.do(ctx, http.MethodPost, "/vectors/delete", body, nil)
}

// Clear deletes all vectors in the namespace.
func (s *PineconeStore) Clear(ctx context.Context) error {
	body := map[string]any{"deleteAll": true}
	if s.namespace != "" {
		body["namespace"] = s.namespace
	}
	return s.rest.do(ctx, http.MethodPost, "/vectors/delete", body, nil)
}
