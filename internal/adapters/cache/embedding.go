package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// EmbeddingCache wraps an EmbeddingProvider with a look-aside cache.
// Cache failures are logged and never fail the embedding call.
type EmbeddingCache struct {
	inner     ports.EmbeddingProvider
	store     Store
	namespace string
}

// NewEmbeddingCache caches inner's vectors in store. namespace should identify
// the model so vectors from different models never mix.
func NewEmbeddingCache(inner ports.EmbeddingProvider, store Store, namespace string) *EmbeddingCache {
	return &EmbeddingCache{inner: inner, store: store, namespace: namespace}
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// EmbedQuery returns the cached vector for text or embeds and caches it.
func (c *EmbeddingCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)
	if vec, ok, err := c.store.Get(ctx, key); err != nil {
		slog.Warn("embedding cache: get failed", "error", err)
	} else if ok {
		return vec, nil
	}

	vec, err := c.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		if err := c.store.Set(ctx, key, vec); err != nil {
			slog.Warn("embedding cache: set failed", "error", err)
		}
	}
	return vec, nil
}

// EmbedDocuments embeds only the texts missing from the cache.
func (c *EmbeddingCache) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		vec, ok, err := c.store.Get(ctx, c.key(text))
		if err != nil {
			slog.Warn("embedding cache: get failed", "error", err)
		}
		if ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(missing))
	}
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		if len(vec) > 0 {
			if err := c.store.Set(ctx, c.key(missing[j]), vec); err != nil {
				slog.Warn("embedding cache: set failed", "error", err)
			}
		}
	}
	return out, nil
}
