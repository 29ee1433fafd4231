// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// Ingestion defaults.
const (
	DefaultChunkSize         = 1000
	DefaultChunkOverlap      = 200
	DefaultUpsertBatchSize   = 50
	DefaultUpsertConcurrency = 5
)

// ErrEmptyEmbedding is returned when the embedding model yields no vector.
var ErrEmptyEmbedding = errors.New("embedding model returned an empty vector")

// IngestOptions tunes chunking and upserting.
type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	// ExpectedDim, when > 0, must match the embedding length.
	ExpectedDim int
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
}

// IngestUseCase chunks documents, embeds them and upserts them into the store.
type IngestUseCase struct {
	embedder ports.EmbeddingProvider
	store    ports.VectorStore
	opts     IngestOptions
	logger   *slog.Logger
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(embedder ports.EmbeddingProvider, store ports.VectorStore, opts IngestOptions) *IngestUseCase {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = DefaultChunkOverlap
		if opts.ChunkOverlap >= opts.ChunkSize {
			opts.ChunkOverlap = opts.ChunkSize / 5
		}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultUpsertBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultUpsertConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger,
	}
}

// Ingest chunks, validates, embeds and stores docs. It returns the number of stored chunks.
// Documents without content are skipped; if nothing remains, Ingest is a no-op.
func (uc *IngestUseCase) Ingest(ctx context.Context, docs []entities.Document) (int, error) {
	// Documents loaded from one file share an ID, so chunk numbering
	// continues across them.
	var chunks []entities.Chunk
	next := make(map[string]int)
	for i := range docs {
		docChunks := uc.chunkDocument(&docs[i], next[docs[i].ID])
		next[docs[i].ID] += len(docChunks)
		chunks = append(chunks, docChunks...)
	}
	if len(chunks) == 0 {
		uc.logger.Warn("no content extracted from documents", "documents", len(docs))
		return 0, nil
	}
	uc.logger.Info("documents split into chunks", "documents", len(docs), "chunks", len(chunks))

	if err := uc.validateEmbeddings(ctx, chunks[0].Content); err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.opts.Concurrency)
	for start := 0; start < len(chunks); start += uc.opts.BatchSize {
		end := min(start+uc.opts.BatchSize, len(chunks))
		batch := chunks[start:end]
		g.Go(func() error {
			return uc.embedAndStore(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	uc.logger.Info("chunks stored", "chunks", len(chunks))
	return len(chunks), nil
}

// Delete removes a document from the store.
func (uc *IngestUseCase) Delete(ctx context.Context, documentID string) error {
	return uc.store.Delete(ctx, documentID)
}

// validateEmbeddings embeds a sample before any write so a misconfigured
// model or index fails without a partial upsert.
func (uc *IngestUseCase) validateEmbeddings(ctx context.Context, sample string) error {
	vec, err := uc.embedder.EmbedQuery(ctx, sample)
	if err != nil {
		return fmt.Errorf("validating embeddings: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("validating embeddings: %w", ErrEmptyEmbedding)
	}
	if uc.opts.ExpectedDim > 0 && len(vec) != uc.opts.ExpectedDim {
		return fmt.Errorf("Embedding dimension mismatch: embedding returned %d but index expects %d", len(vec), uc.opts.ExpectedDim)
	}
	uc.logger.Debug("embedding check ok", "dimension", len(vec))
	return nil
}

func (uc *IngestUseCase) embedAndStore(ctx context.Context, batch []entities.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Content
	}

	embeddings, err := uc.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedding chunks: got %d vectors for %d chunks", len(embeddings), len(batch))
	}

	for i := range batch {
		batch[i].Embedding = embeddings[i]
	}

	if err := uc.store.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}
	return nil
}

// chunkDocument splits document content into overlapping chunks numbered from first.
func (uc *IngestUseCase) chunkDocument(doc *entities.Document, first int) []entities.Chunk {
	var chunks []entities.Chunk
	for i, text := range SplitText(doc.Content, uc.opts.ChunkSize, uc.opts.ChunkOverlap) {
		index := first + i
		meta := make(map[string]string, len(doc.Metadata)+3)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		if meta[entities.MetaSource] == "" {
			meta[entities.MetaSource] = doc.Name
		}
		meta[entities.MetaDocumentID] = doc.ID
		meta[entities.MetaText] = text

		chunks = append(chunks, entities.Chunk{
			ID:         generateChunkID(doc.ID, index),
			DocumentID: doc.ID,
			Content:    text,
			Index:      index,
			Metadata:   meta,
		})
	}
	return chunks
}

// SplitText cuts content into pieces of at most size bytes, preferring word
// boundaries, with overlap bytes carried into the next piece.
func SplitText(content string, size, overlap int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var pieces []string
	start := 0
	for start < len(content) {
		end := start + size
		if end > len(content) {
			end = len(content)
		}

		// Try to break at word boundary
		if end < len(content) {
			if lastSpace := strings.LastIndexAny(content[start:end], " \n\t"); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		if piece := strings.TrimSpace(content[start:end]); piece != "" {
			pieces = append(pieces, piece)
		}
		if end >= len(content) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

// generateChunkID creates a deterministic ID for a chunk.
func generateChunkID(docID string, index int) string {
	hash := sha256.Sum256([]byte(docID + ":" + strconv.Itoa(index)))
	return hex.EncodeToString(hash[:8])
}
