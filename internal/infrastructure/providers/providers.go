// Package providers builds the application's long-lived handles from config.
// Every handle is created at most once, on first use, even under concurrent
// callers.
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/0xcro3dile/docqa-go/internal/adapters/cache"
	"github.com/0xcro3dile/docqa-go/internal/adapters/embedding"
	"github.com/0xcro3dile/docqa-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/docqa-go/internal/adapters/llm"
	"github.com/0xcro3dile/docqa-go/internal/adapters/loader"
	"github.com/0xcro3dile/docqa-go/internal/adapters/parser"
	"github.com/0xcro3dile/docqa-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
	"github.com/0xcro3dile/docqa-go/internal/domain/usecases"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/config"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/database"
	"github.com/0xcro3dile/docqa-go/internal/infrastructure/metrics"
	iredis "github.com/0xcro3dile/docqa-go/internal/infrastructure/redis"
)

const embeddingCachePrefix = "docqa:emb:"

// lazy memoizes the first result of a constructor, error included.
type lazy[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	l.once.Do(func() { l.val, l.err = build() })
	return l.val, l.err
}

// Factory hands out shared provider handles.
type Factory struct {
	cfg          *config.Config
	logger       *slog.Logger
	baseEmbedder ports.EmbeddingProvider

	postgres     lazy[*pgxpool.Pool]
	redis        lazy[*goredis.Client]
	embedder     lazy[ports.EmbeddingProvider]
	store        lazy[ports.VectorStore]
	chat         lazy[ports.ChatModel]
	parser       lazy[*parser.PythonPDFParser]
	loader       lazy[*loader.MultiLoader]
	orchestrator lazy[*usecases.QueryOrchestrator]
	files        lazy[*usecases.FileIngester]

	mu      sync.Mutex
	closers []func() error
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger passed to use cases. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// WithVectorStore uses store instead of building one from config.
func WithVectorStore(store ports.VectorStore) Option {
	return func(f *Factory) { f.store.get(func() (ports.VectorStore, error) { return store, nil }) }
}

// WithEmbedder uses e instead of building one from config. It is still
// wrapped by the embedding cache when caching is enabled.
func WithEmbedder(e ports.EmbeddingProvider) Option {
	return func(f *Factory) { f.baseEmbedder = e }
}

// WithChatModel uses m instead of building one from config.
func WithChatModel(m ports.ChatModel) Option {
	return func(f *Factory) { f.chat.get(func() (ports.ChatModel, error) { return m, nil }) }
}

// New returns a factory for cfg. Nothing is connected until a handle is first requested.
func New(cfg *config.Config, opts ...Option) *Factory {
	f := &Factory{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) onClose(fn func() error) {
	f.mu.Lock()
	f.closers = append(f.closers, fn)
	f.mu.Unlock()
}

// Close releases everything the factory opened, newest first.
func (f *Factory) Close() error {
	f.mu.Lock()
	closers := f.closers
	f.closers = nil
	f.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Postgres returns the shared connection pool.
func (f *Factory) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	return f.postgres.get(func() (*pgxpool.Pool, error) {
		pool, err := database.NewPostgresPool(ctx, f.cfg.DB)
		if err != nil {
			return nil, err
		}
		f.onClose(func() error { pool.Close(); return nil })
		return pool, nil
	})
}

// Redis returns the shared Redis client.
func (f *Factory) Redis(ctx context.Context) (*goredis.Client, error) {
	return f.redis.get(func() (*goredis.Client, error) {
		client, err := iredis.NewClient(ctx, f.cfg.Redis)
		if err != nil {
			return nil, err
		}
		f.onClose(client.Close)
		return client, nil
	})
}

// Embedder returns the embedding provider, behind the embedding cache when enabled.
func (f *Factory) Embedder(ctx context.Context) (ports.EmbeddingProvider, error) {
	return f.embedder.get(func() (ports.EmbeddingProvider, error) {
		ec := f.cfg.Embedding
		base := f.baseEmbedder
		switch {
		case base != nil:
		case ec.Provider == config.ProviderOpenAI:
			base = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
				APIKey:     ec.APIKey,
				BaseURL:    ec.BaseURL,
				Model:      ec.Model,
				Dimensions: ec.Dimensions,
				MaxRetries: ec.MaxRetries,
			})
		case ec.Provider == config.ProviderOllama:
			base = embedding.NewOllamaProvider(ec.BaseURL, ec.Model)
		default:
			return nil, fmt.Errorf("unknown embedding provider %q", ec.Provider)
		}
		return f.withCache(ctx, base)
	})
}

func (f *Factory) withCache(ctx context.Context, base ports.EmbeddingProvider) (ports.EmbeddingProvider, error) {
	cc := f.cfg.Cache
	if !cc.Enabled {
		return base, nil
	}

	var store cache.Store
	switch cc.Backend {
	case config.CacheRedis:
		client, err := f.Redis(ctx)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		store = cache.NewRedis(client, embeddingCachePrefix, cc.TTL)
	default:
		store = cache.NewLRU(cc.Size, cc.TTL)
	}

	ec := f.cfg.Embedding
	namespace := fmt.Sprintf("%s/%s/%s/%d", ec.Provider, ec.BaseURL, ec.Model, ec.Dimensions)
	return cache.NewEmbeddingCache(base, store, namespace), nil
}

// VectorStore returns the configured vector store, initialized and ready.
func (f *Factory) VectorStore(ctx context.Context) (ports.VectorStore, error) {
	return f.store.get(func() (ports.VectorStore, error) {
		vc := f.cfg.VectorDB
		dim := f.cfg.Embedding.Dimensions

		switch vc.Provider {
		case config.StoreMemory:
			return vectordb.NewInMemoryStore(), nil

		case config.StoreSQLite:
			s, err := vectordb.NewSQLiteStore(vc.Path)
			if err != nil {
				return nil, fmt.Errorf("opening sqlite store: %w", err)
			}
			f.onClose(s.Close)
			return s, nil

		case config.StorePGVector:
			pool, err := f.Postgres(ctx)
			if err != nil {
				return nil, err
			}
			s := vectordb.NewPGVectorStore(pool, vc.Table, dim)
			if err := s.Init(ctx); err != nil {
				return nil, err
			}
			return s, nil

		case config.StoreQdrant:
			s := vectordb.NewQdrantStore(vectordb.QdrantConfig{
				URL:        vc.URL,
				APIKey:     vc.APIKey,
				Collection: vc.Collection,
				Dimension:  dim,
			})
			if err := s.Init(ctx); err != nil {
				return nil, err
			}
			return s, nil

		case config.StorePinecone:
			return vectordb.NewPineconeStore(vectordb.PineconeConfig{
				Host:      vc.Host,
				APIKey:    vc.APIKey,
				Namespace: vc.Namespace,
			}), nil

		case config.StoreMilvus:
			s, err := vectordb.NewMilvusStore(ctx, vectordb.MilvusConfig{
				Address:    vc.URL,
				Username:   vc.Username,
				Password:   vc.Password,
				Database:   vc.Database,
				Collection: vc.Collection,
				Dimension:  dim,
			})
			if err != nil {
				return nil, err
			}
			f.onClose(s.Close)
			return s, nil
		}
		return nil, fmt.Errorf("unknown vector store %q", vc.Provider)
	})
}

// ChatModel returns the chat model, instrumented with prompt metrics.
func (f *Factory) ChatModel() (ports.ChatModel, error) {
	return f.chat.get(func() (ports.ChatModel, error) {
		lc := f.cfg.LLM
		switch lc.Provider {
		case config.ProviderOpenAI:
			m := llm.NewOpenAIChatModel(llm.OpenAIConfig{
				APIKey:     lc.APIKey,
				BaseURL:    lc.BaseURL,
				Model:      lc.Model,
				MaxRetries: lc.MaxRetries,
			})
			return metrics.InstrumentChat(m, modelLabel(lc.Model, "gemini-1.5-flash"), nil), nil
		case config.ProviderOllama:
			m := llm.NewOllamaChatModel(lc.BaseURL, lc.Model)
			return metrics.InstrumentChat(m, modelLabel(lc.Model, "llama3.2"), nil), nil
		}
		return nil, fmt.Errorf("unknown llm provider %q", lc.Provider)
	})
}

func modelLabel(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

// PDFParser returns the client for the PDF text extraction service.
func (f *Factory) PDFParser() *parser.PythonPDFParser {
	p, _ := f.parser.get(func() (*parser.PythonPDFParser, error) {
		return parser.NewPythonPDFParser(f.cfg.PDF.URL), nil
	})
	return p
}

// Loader returns the loader covering every supported file type.
func (f *Factory) Loader() *loader.MultiLoader {
	l, _ := f.loader.get(func() (*loader.MultiLoader, error) {
		return loader.NewDefaultLoader(f.PDFParser()), nil
	})
	return l
}

// Orchestrator returns the query pipeline.
func (f *Factory) Orchestrator(ctx context.Context) (*usecases.QueryOrchestrator, error) {
	return f.orchestrator.get(func() (*usecases.QueryOrchestrator, error) {
		embedder, err := f.Embedder(ctx)
		if err != nil {
			return nil, err
		}
		store, err := f.VectorStore(ctx)
		if err != nil {
			return nil, err
		}
		chat, err := f.ChatModel()
		if err != nil {
			return nil, err
		}
		return usecases.NewQueryOrchestrator(embedder, store, chat,
			usecases.WithTopK(f.cfg.Retrieval.TopK),
			usecases.WithExpectedDimension(f.cfg.Embedding.Dimensions),
			usecases.WithLogger(f.logger),
			usecases.WithStageObserver(metrics.ObserveStage),
		), nil
	})
}

// FileIngester returns the ingestion path for uploads and watched files.
func (f *Factory) FileIngester(ctx context.Context) (*usecases.FileIngester, error) {
	return f.files.get(func() (*usecases.FileIngester, error) {
		embedder, err := f.Embedder(ctx)
		if err != nil {
			return nil, err
		}
		store, err := f.VectorStore(ctx)
		if err != nil {
			return nil, err
		}
		ic := f.cfg.Ingest
		ingest := usecases.NewIngestUseCase(embedder, store, usecases.IngestOptions{
			ChunkSize:    ic.ChunkSize,
			ChunkOverlap: ic.ChunkOverlap,
			ExpectedDim:  f.cfg.Embedding.Dimensions,
			BatchSize:    ic.BatchSize,
			Concurrency:  ic.Concurrency,
			Logger:       f.logger,
		})
		return usecases.NewFileIngester(f.Loader(), ingest, f.logger), nil
	})
}

// FolderSync builds a sync loop for the configured watch directory. Each call
// creates a new watcher; the caller owns it through the returned stop func.
func (f *Factory) FolderSync(ctx context.Context) (*usecases.FolderSync, func() error, error) {
	files, err := f.FileIngester(ctx)
	if err != nil {
		return nil, nil, err
	}
	watcher, err := filewatcher.NewFSNotifyWatcher(files.SupportedExtensions(), f.cfg.Watcher.Debounce)
	if err != nil {
		return nil, nil, fmt.Errorf("creating file watcher: %w", err)
	}
	return usecases.NewFolderSync(watcher, files, loader.DocumentID, f.logger), watcher.Stop, nil
}
