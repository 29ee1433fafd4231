package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

// MilvusConfig configures the Milvus adapter.
type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	Dimension  int
}

const (
	milvusFieldID         = "id"
	milvusFieldDocumentID = "document_id"
	milvusFieldText       = "text"
	milvusFieldMetadata   = "metadata"
	milvusFieldEmbedding  = "embedding"
)

// MilvusStore implements ports.VectorStore on a Milvus collection.
type MilvusStore struct {
	client     client.Client
	collection string
	dimension  int
}

// NewMilvusStore connects to Milvus and ensures the collection exists and is loaded.
func NewMilvusStore(ctx context.Context, cfg MilvusConfig) (*MilvusStore, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("milvus: invalid dimension %d", cfg.Dimension)
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to milvus: %w", err)
	}

	s := &MilvusStore{client: c, collection: cfg.Collection, dimension: cfg.Dimension}
	if err := s.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		schema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("document chunks").
			WithField(entity.NewField().WithName(milvusFieldID).WithDataType(entity.FieldTypeVarChar).
				WithIsPrimaryKey(true).WithMaxLength(128)).
			WithField(entity.NewField().WithName(milvusFieldDocumentID).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(512)).
			WithField(entity.NewField().WithName(milvusFieldText).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(65535)).
			WithField(entity.NewField().WithName(milvusFieldMetadata).WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(65535)).
			WithField(entity.NewField().WithName(milvusFieldEmbedding).WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(s.dimension)))

		if err := s.client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
		idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
		if err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, milvusFieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("loading collection: %w", err)
	}
	return nil
}

// Upsert writes chunks, replacing rows with the same ID.
func (s *MilvusStore) Upsert(ctx context.Context, chunks []entities.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	ids := make([]string, len(chunks))
	docIDs := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	metas := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		meta, err := json.Marshal(chunkMetadata(c))
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		ids[i], docIDs[i], texts[i], metas[i], vectors[i] = c.ID, c.DocumentID, c.Content, string(meta), c.Embedding
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvusFieldID, ids),
		entity.NewColumnVarChar(milvusFieldDocumentID, docIDs),
		entity.NewColumnVarChar(milvusFieldText, texts),
		entity.NewColumnVarChar(milvusFieldMetadata, metas),
		entity.NewColumnFloatVector(milvusFieldEmbedding, s.dimension, vectors),
	)
	if err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}
	return nil
}

// Query runs a cosine search. Metadata is decoded from the JSON metadata column.
func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]entities.Match, error) {
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, fmt.Errorf("building search params: %w", err)
	}

	var outputFields []string
	if includeMetadata {
		outputFields = []string{milvusFieldMetadata}
	}

	results, err := s.client.Search(ctx, s.collection, nil, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, milvusFieldEmbedding, entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	res := results[0]
	matches := make([]entities.Match, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		id, err := res.IDs.GetAsString(i)
		if err != nil {
			return nil, fmt.Errorf("reading id %d: %w", i, err)
		}
		m := entities.Match{ID: id, Score: float64(res.Scores[i])}
		if includeMetadata {
			col := res.Fields.GetColumn(milvusFieldMetadata)
			if col == nil {
				return nil, fmt.Errorf("search result missing %s field", milvusFieldMetadata)
			}
			raw, err := col.GetAsString(i)
			if err != nil {
				return nil, fmt.Errorf("reading metadata %d: %w", i, err)
			}
			if err := json.Unmarshal([]byte(raw), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Delete removes every chunk of documentID.
func (s *MilvusStore) Delete(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("%s == %s", milvusFieldDocumentID, strconv.Quote(documentID))
	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("deleting document %s: %w", documentID, err)
	}
	return nil
}

// Clear drops and recreates the collection.
func (s *MilvusStore) Clear(ctx context.Context) error {
	if err := s.client.DropCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("dropping collection: %w", err)
	}
	return s.ensureCollection(ctx)
}

// Close releases the client connection.
func (s *MilvusStore) Close() error {
	return s.client.Close()
}
