package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/quantself/engram-go/pkg/embedder"
	"github.com/quantself/engram-go/pkg/embedder/hashing"
	"github.com/quantself/engram-go/pkg/embedder/openai"
	"github.com/quantself/engram-go/pkg/entity"
	"github.com/quantself/engram-go/pkg/storage"
	"github.com/quantself/engram-go/pkg/storage/inmem"
	"github.com/quantself/engram-go/pkg/storage/mysql"
	"github.com/quantself/engram-go/pkg/storage/postgres"
	"github.com/quantself/engram-go/pkg/storage/sqlite"
)

// Embedder converts text into vector embeddings.
//
// The default implementation is *embedder.Service (cached, rate limited,
// with a deterministic local fallback); tests may substitute their own.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Close() error
}

// Engine is the central orchestrator of the memory system.
//
// It ingests activity records into typed memories, links them to recognized
// entities, serves multi-factor ranked retrieval, and periodically
// consolidates memories (decay, grouping, pattern synthesis, insights).
//
// All operations are scoped by user id; an Engine serves many users.
// Engine is safe for concurrent use.
//
// Example:
//
//	config := core.DefaultConfig()
//	engine, err := core.NewEngine(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
type Engine struct {
	config     *Config
	store      storage.Store
	embedder   Embedder
	recognizer *entity.Recognizer
	node       *snowflake.Node
	logger     *slog.Logger

	// mu guards lastConsolidation.
	mu                sync.RWMutex
	lastConsolidation map[string]time.Time

	// lockMu guards consolidationLocks; each user gets a dedicated lock so
	// consolidation runs never overlap per user.
	lockMu             sync.Mutex
	consolidationLocks map[string]*sync.Mutex
}

// Option configures an Engine during construction.
type Option func(*engineOptions)

type engineOptions struct {
	logger   *slog.Logger
	store    storage.Store
	embedder Embedder
}

// WithLogger sets the structured logger used by the engine and its
// recognizer. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithStore injects a pre-built storage backend, bypassing the
// configuration-driven initialization.
func WithStore(store storage.Store) Option {
	return func(o *engineOptions) { o.store = store }
}

// WithEmbedder injects a pre-built embedder, bypassing the
// configuration-driven initialization.
func WithEmbedder(e Embedder) Option {
	return func(o *engineOptions) { o.embedder = e }
}

// NewEngine creates a new Engine from the given configuration.
//
// When config is nil, DefaultConfig() is used. The storage backend and
// embedding provider are initialized from the configuration unless
// overridden through options.
//
// Returns an Engine, or an error if the configuration is invalid or a
// component fails to initialize.
func NewEngine(config *Config, opts ...Option) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	store := options.store
	if store == nil {
		s, err := initStorage(&config.Storage)
		if err != nil {
			return nil, NewEngineError("NewEngine", err)
		}
		store = s
	}

	emb := options.embedder
	if emb == nil {
		e, err := initEmbedder(&config.Embedder, options.logger)
		if err != nil {
			return nil, NewEngineError("NewEngine", err)
		}
		emb = e
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}

	return &Engine{
		config:             config,
		store:              store,
		embedder:           emb,
		recognizer:         entity.NewRecognizer(store, emb, node, options.logger),
		node:               node,
		logger:             options.logger,
		lastConsolidation:  make(map[string]time.Time),
		consolidationLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Recognizer returns the entity recognizer, allowing callers to register
// additional patterns or preload user entity caches.
func (e *Engine) Recognizer() *entity.Recognizer {
	return e.recognizer
}

// Store returns the underlying storage backend.
func (e *Engine) Store() storage.Store {
	return e.store
}

// Close releases the storage backend and the embedding provider.
func (e *Engine) Close() error {
	if err := e.embedder.Close(); err != nil {
		e.logger.Warn("failed to close embedder", "error", err)
	}
	return e.store.Close()
}

// initStorage creates the storage backend named by the configuration.
func initStorage(cfg *StorageConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return sqlite.NewClient(&sqlite.Config{DBPath: cfg.Path})
	case "postgres":
		return postgres.NewClient(&postgres.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
			SSLMode:  cfg.SSLMode,
		})
	case "mysql":
		return mysql.NewClient(&mysql.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			DBName:   cfg.DBName,
		})
	case "inmem":
		return inmem.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// initEmbedder creates the embedding service named by the configuration.
//
// The service always carries the local hashing fallback; the "openai"
// provider adds the remote primary path on top of it.
func initEmbedder(cfg *EmbedderConfig, logger *slog.Logger) (Embedder, error) {
	opts := []embedder.Option{
		embedder.WithLogger(logger),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, embedder.WithCacheTTL(cfg.CacheTTL))
	}
	if cfg.TokensPerMinute > 0 {
		opts = append(opts, embedder.WithTokensPerMinute(cfg.TokensPerMinute))
	}

	switch cfg.Provider {
	case "openai":
		primary, err := openai.NewClient(&openai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, embedder.WithPrimary(primary))
	case "hashing":
		// No primary: the service embeds with the hashing provider only.
		opts = append(opts, embedder.WithFallback(hashing.New(cfg.Dimensions)))
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	return embedder.NewService(opts...)
}
