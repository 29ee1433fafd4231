// Package config loads runtime configuration from an optional YAML file,
// a .env file and environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePGVector = "pgvector"
	StoreQdrant   = "qdrant"
	StorePinecone = "pinecone"
	StoreMilvus   = "milvus"

	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// Config is the complete runtime configuration.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	VectorDB  VectorDBConfig
	Retrieval RetrievalConfig
	DB        DBConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Ingest    IngestConfig
	Upload    UploadConfig
	PDF       PDFConfig
	Watcher   WatcherConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type LLMConfig struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	MaxRetries int
}

type EmbeddingConfig struct {
	Provider   string
	Model      string
	BaseURL    string
	APIKey     string
	MaxRetries int
	// Dimensions, when > 0, is requested from the model and enforced on
	// both ingestion and queries.
	Dimensions int
}

// VectorDBConfig selects and addresses the vector store. Fields unused by the chosen provider are ignored.
type VectorDBConfig struct {
	Provider   string
	Path       string // sqlite data directory
	Table      string // pgvector table
	Collection string // qdrant / milvus collection
	URL        string // qdrant base URL, milvus address
	Host       string // pinecone index host
	APIKey     string
	Namespace  string
	Username   string
	Password   string
	Database   string
}

type RetrievalConfig struct {
	TopK int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN builds the postgres connection URL.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type CacheConfig struct {
	Enabled bool
	Backend string
	Size    int
	TTL     time.Duration
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	Concurrency  int
}

// UploadConfig bounds the upload endpoint.
type UploadConfig struct {
	MaxFiles int
	MaxBytes int64
	Dir      string
}

type PDFConfig struct {
	URL       string
	ScriptDir string
}

type WatcherConfig struct {
	Dir      string
	Debounce time.Duration
}

type CORSConfig struct {
	Origins []string
}

// Load reads configuration. DOCQA_CONFIG names an optional YAML file.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("DOCQA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), YAML()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.ParserEnv("", ".", envKey))

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

// envKey maps FOO_BAR to foo.bar.
func envKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "."))
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            k.String("server.host"),
			Port:            firstInt(k, "server.port", "port"),
			ShutdownTimeout: k.Duration("server.shutdown.timeout"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
		LLM: LLMConfig{
			Provider:   strings.ToLower(k.String("llm.provider")),
			Model:      k.String("llm.model"),
			BaseURL:    k.String("llm.base.url"),
			APIKey:     firstString(k, "llm.api.key", "gemini.api.key"),
			MaxRetries: intOr(k, "llm.max.retries", 2),
		},
		Embedding: EmbeddingConfig{
			Provider:   strings.ToLower(k.String("embedding.provider")),
			Model:      k.String("embedding.model"),
			BaseURL:    k.String("embedding.base.url"),
			APIKey:     firstString(k, "embedding.api.key", "gemini.api.key"),
			MaxRetries: intOr(k, "embedding.max.retries", 2),
			Dimensions: firstInt(k, "embedding.dimensions", "pinecone.index.dim"),
		},
		VectorDB: VectorDBConfig{
			Provider:   strings.ToLower(k.String("vectordb.provider")),
			Path:       k.String("vectordb.path"),
			Table:      k.String("vectordb.table"),
			Collection: firstString(k, "vectordb.collection", "pinecone.index.name"),
			URL:        k.String("vectordb.url"),
			Host:       firstString(k, "vectordb.host", "pinecone.index.host"),
			APIKey:     firstString(k, "vectordb.api.key", "pinecone.api.key"),
			Namespace:  k.String("vectordb.namespace"),
			Username:   k.String("vectordb.username"),
			Password:   k.String("vectordb.password"),
			Database:   k.String("vectordb.database"),
		},
		Retrieval: RetrievalConfig{
			TopK: k.Int("retrieval.top.k"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Enabled:  k.Bool("redis.enabled"),
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  k.Bool("ratelimit.enabled"),
			Requests: k.Int("ratelimit.requests"),
			Window:   k.Duration("ratelimit.window"),
		},
		Cache: CacheConfig{
			Enabled: boolOr(k, "cache.enabled", true),
			Backend: strings.ToLower(k.String("cache.backend")),
			Size:    k.Int("cache.size"),
			TTL:     k.Duration("cache.ttl"),
		},
		Ingest: IngestConfig{
			ChunkSize:    k.Int("ingest.chunk.size"),
			ChunkOverlap: intOr(k, "ingest.chunk.overlap", -1),
			BatchSize:    k.Int("ingest.batch.size"),
			Concurrency:  k.Int("ingest.concurrency"),
		},
		Upload: UploadConfig{
			MaxFiles: k.Int("upload.max.files"),
			MaxBytes: k.Int64("upload.max.bytes"),
			Dir:      k.String("upload.dir"),
		},
		PDF: PDFConfig{
			URL:       k.String("pdf.url"),
			ScriptDir: k.String("pdf.script.dir"),
		},
		Watcher: WatcherConfig{
			Dir:      k.String("watcher.dir"),
			Debounce: k.Duration("watcher.debounce"),
		},
		CORS: CORSConfig{
			Origins: splitList(k.String("cors.origins")),
		},
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOpenAI
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = cfg.LLM.Provider
	}
	if cfg.VectorDB.Provider == "" {
		// The original deployment ran on Pinecone; keep that when its key is present.
		if cfg.VectorDB.Host != "" && cfg.VectorDB.APIKey != "" {
			cfg.VectorDB.Provider = StorePinecone
		} else {
			cfg.VectorDB.Provider = StoreSQLite
		}
	}
	if cfg.VectorDB.Path == "" {
		cfg.VectorDB.Path = "./data"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "docqa"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "docqa"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 10
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 60
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = CacheLRU
	}
	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = 1024
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap < 0 {
		cfg.Ingest.ChunkOverlap = 200
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 50
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 5
	}
	if cfg.Upload.MaxFiles == 0 {
		cfg.Upload.MaxFiles = 10
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 32 << 20
	}
	if cfg.Upload.Dir == "" {
		cfg.Upload.Dir = os.TempDir()
	}
	if cfg.PDF.URL == "" {
		cfg.PDF.URL = "http://localhost:8081"
	}
	if cfg.Watcher.Debounce == 0 {
		cfg.Watcher.Debounce = 500 * time.Millisecond
	}
	if len(cfg.CORS.Origins) == 0 {
		cfg.CORS.Origins = []string{"*"}
	}
}

func firstString(k *koanf.Koanf, keys ...string) string {
	for _, key := range keys {
		if v := k.String(key); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(k *koanf.Koanf, keys ...string) int {
	for _, key := range keys {
		if v := k.Int(key); v != 0 {
			return v
		}
	}
	return 0
}

func intOr(k *koanf.Koanf, key string, def int) int {
	if !k.Exists(key) {
		return def
	}
	return k.Int(key)
}

func boolOr(k *koanf.Koanf, key string, def bool) bool {
	if !k.Exists(key) {
		return def
	}
	return k.Bool(key)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
