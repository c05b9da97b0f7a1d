// Package embedder provides text embedding for memory content.
//
// It defines the Provider interface that all embedding implementations must
// satisfy, and a Service that layers caching, rate limiting, and fallback on
// top of a remote provider.
package embedder

import "context"

// Provider defines the interface for embedding providers.
//
// All embedding implementations (OpenAI, hashing fallback) must implement
// this interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimensions returns the dimension of vectors produced by this provider.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}

// UsageReporter is implemented by providers that track actual token
// consumption reported by their API.
type UsageReporter interface {
	// TokensUsed returns the cumulative token count reported by the provider.
	TokensUsed() int64
}
