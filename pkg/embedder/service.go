package embedder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"

	"github.com/quantself/engram-go/pkg/embedder/hashing"
)

// Default tunables for the embedding service.
const (
	// DefaultCacheTTL is how long cached embeddings stay valid.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultTokensPerMinute is the remote-provider token budget.
	DefaultTokensPerMinute = 10000

	// DefaultDimensions matches the default remote embedding model.
	DefaultDimensions = 1536

	// cacheMaxCost bounds the cache to roughly 64 MB of vector data.
	cacheMaxCost = 64 << 20
)

// Service is the embedding front end used by the engine.
//
// It normalizes input text, serves repeated requests from a TTL cache,
// rate-limits calls to the remote provider against a token budget, and
// falls back to a deterministic local provider when the remote call fails
// or no remote provider is configured.
type Service struct {
	primary  Provider
	fallback Provider
	cache    *ristretto.Cache
	limiter  *rate.Limiter
	cacheTTL time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	estimated int64
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	primary         Provider
	fallback        Provider
	cacheTTL        time.Duration
	tokensPerMinute int
	logger          *slog.Logger
}

// WithPrimary sets the remote embedding provider. Without one, all requests
// use the fallback provider.
func WithPrimary(p Provider) Option {
	return func(o *serviceOptions) { o.primary = p }
}

// WithFallback replaces the default hashing fallback provider.
func WithFallback(p Provider) Option {
	return func(o *serviceOptions) { o.fallback = p }
}

// WithCacheTTL sets how long cached embeddings stay valid.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *serviceOptions) { o.cacheTTL = ttl }
}

// WithTokensPerMinute sets the remote-provider token budget.
func WithTokensPerMinute(n int) Option {
	return func(o *serviceOptions) { o.tokensPerMinute = n }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// NewService creates an embedding service.
func NewService(opts ...Option) (*Service, error) {
	options := &serviceOptions{
		cacheTTL:        DefaultCacheTTL,
		tokensPerMinute: DefaultTokensPerMinute,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.fallback == nil {
		dims := DefaultDimensions
		if options.primary != nil {
			dims = options.primary.Dimensions()
		}
		options.fallback = hashing.New(dims)
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     cacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	perSecond := rate.Limit(float64(options.tokensPerMinute) / 60.0)

	return &Service{
		primary:  options.primary,
		fallback: options.fallback,
		cache:    cache,
		limiter:  rate.NewLimiter(perSecond, options.tokensPerMinute),
		cacheTTL: options.cacheTTL,
		logger:   options.logger,
	}, nil
}

// Embed returns the embedding vector for text.
//
// The text is normalized before lookup, so inputs differing only in case,
// punctuation, or whitespace share a cache entry. Remote failures degrade
// to the fallback provider; an error is returned only when both paths fail.
func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	key := normalizeText(text)

	if cached, ok := s.cache.Get(key); ok {
		if vector, ok := cached.([]float64); ok {
			return vector, nil
		}
	}

	var vector []float64
	if s.primary != nil {
		if err := s.reserveTokens(ctx, key); err != nil {
			return nil, err
		}
		remote, err := s.primary.Embed(ctx, text)
		if err != nil {
			s.logger.Warn("remote embedding failed, using fallback", "error", err)
		} else {
			vector = remote
		}
	}

	if vector == nil {
		local, err := s.fallback.Embed(ctx, key)
		if err != nil {
			return nil, err
		}
		vector = local
	}

	s.cache.SetWithTTL(key, vector, int64(len(vector)*8), s.cacheTTL)
	return vector, nil
}

// Dimensions returns the vector dimension of the active provider.
func (s *Service) Dimensions() int {
	if s.primary != nil {
		return s.primary.Dimensions()
	}
	return s.fallback.Dimensions()
}

// TokenCount returns the tokens consumed by remote embedding calls.
//
// When the remote provider reports actual usage, that figure is returned;
// otherwise the count is estimated from input length.
func (s *Service) TokenCount() int64 {
	if reporter, ok := s.primary.(UsageReporter); ok {
		if used := reporter.TokensUsed(); used > 0 {
			return used
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimated
}

// Close releases the cache and both providers.
func (s *Service) Close() error {
	s.cache.Close()
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			return err
		}
	}
	return s.fallback.Close()
}

// reserveTokens blocks until the token budget admits the request.
func (s *Service) reserveTokens(ctx context.Context, text string) error {
	tokens := estimateTokens(text)
	if tokens > s.limiter.Burst() {
		tokens = s.limiter.Burst()
	}
	if err := s.limiter.WaitN(ctx, tokens); err != nil {
		return err
	}
	s.mu.Lock()
	s.estimated += int64(tokens)
	s.mu.Unlock()
	return nil
}

// estimateTokens approximates the token count of text at four characters
// per token, with a minimum of one.
func estimateTokens(text string) int {
	tokens := (len(text) + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// normalizeText lowercases, strips common punctuation, and collapses
// whitespace so equivalent inputs share a cache key.
func normalizeText(text string) string {
	lower := strings.ToLower(text)
	replaced := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`.,!?():;"'`, r) {
			return ' '
		}
		return r
	}, lower)
	return strings.Join(strings.Fields(replaced), " ")
}
