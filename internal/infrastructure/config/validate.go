package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Validate checks Config for problems that would only surface at request time.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be 1-65535, got %d", c.Server.Port))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level))
	}

	// Model providers
	for _, p := range []struct{ name, provider, apiKey string }{
		{"LLM", c.LLM.Provider, c.LLM.APIKey},
		{"EMBEDDING", c.Embedding.Provider, c.Embedding.APIKey},
	} {
		switch p.provider {
		case ProviderOpenAI:
			if p.apiKey == "" {
				errs = append(errs, p.name+"_API_KEY (or GEMINI_API_KEY) is required for the openai provider")
			}
		case ProviderOllama:
		default:
			errs = append(errs, fmt.Sprintf("%s_PROVIDER must be openai or ollama, got %q", p.name, p.provider))
		}
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, "EMBEDDING_DIMENSIONS must not be negative")
	}

	// Vector store
	switch c.VectorDB.Provider {
	case StoreMemory, StoreSQLite:
	case StorePGVector:
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, "EMBEDDING_DIMENSIONS is required for the pgvector store")
		}
		if c.DB.Port < 1 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
		}
	case StoreQdrant:
		if c.VectorDB.URL == "" {
			errs = append(errs, "VECTORDB_URL is required for the qdrant store")
		}
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, "EMBEDDING_DIMENSIONS is required for the qdrant store")
		}
	case StorePinecone:
		if c.VectorDB.Host == "" {
			errs = append(errs, "PINECONE_INDEX_HOST (or VECTORDB_HOST) is required for the pinecone store")
		}
		if c.VectorDB.APIKey == "" {
			errs = append(errs, "PINECONE_API_KEY (or VECTORDB_API_KEY) is required for the pinecone store")
		}
	case StoreMilvus:
		if c.VectorDB.URL == "" {
			errs = append(errs, "VECTORDB_URL is required for the milvus store")
		}
		if c.Embedding.Dimensions <= 0 {
			errs = append(errs, "EMBEDDING_DIMENSIONS is required for the milvus store")
		}
	default:
		errs = append(errs, fmt.Sprintf("VECTORDB_PROVIDER must be one of memory, sqlite, pgvector, qdrant, pinecone, milvus; got %q", c.VectorDB.Provider))
	}

	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Sprintf("RETRIEVAL_TOP_K must be positive, got %d", c.Retrieval.TopK))
	}

	// Ingestion
	if c.Ingest.ChunkSize < 1 {
		errs = append(errs, "INGEST_CHUNK_SIZE must be positive")
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, "INGEST_CHUNK_OVERLAP must be smaller than INGEST_CHUNK_SIZE")
	}
	if c.Upload.MaxFiles < 1 {
		errs = append(errs, "UPLOAD_MAX_FILES must be positive")
	}

	// Redis-backed features
	if c.Cache.Enabled && !slices.Contains([]string{CacheLRU, CacheRedis}, c.Cache.Backend) {
		errs = append(errs, fmt.Sprintf("CACHE_BACKEND must be lru or redis, got %q", c.Cache.Backend))
	}
	if c.Cache.Enabled && c.Cache.Backend == CacheRedis && !c.Redis.Enabled {
		errs = append(errs, "CACHE_BACKEND=redis requires REDIS_ENABLED=true")
	}
	if c.RateLimit.Enabled {
		if !c.Redis.Enabled {
			errs = append(errs, "RATELIMIT_ENABLED requires REDIS_ENABLED=true")
		}
		if c.RateLimit.Requests < 1 {
			errs = append(errs, "RATELIMIT_REQUESTS must be positive")
		}
	}

	if slices.Contains(c.CORS.Origins, "*") && len(c.CORS.Origins) > 1 {
		slog.Warn("CORS_ORIGINS contains * alongside explicit origins; all origins are allowed")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
