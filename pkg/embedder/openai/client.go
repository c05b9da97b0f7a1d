// Package openai provides the OpenAI embedding provider.
package openai

import (
	"context"
	"errors"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Client implements embedder.Provider backed by the OpenAI Embeddings API.
// It also tracks the token usage reported by the API.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int

	mu         sync.Mutex
	tokensUsed int64
}

// Config is the configuration for the OpenAI provider.
type Config struct {
	// APIKey is the OpenAI API key. Required.
	APIKey string

	// Model is the embedding model name. Unknown or empty names fall back
	// to text-embedding-ada-002.
	Model string

	// BaseURL overrides the API base URL (for proxies and compatible APIs).
	BaseURL string

	// Dimensions is the vector dimension. Defaults to 1536.
	Dimensions int
}

// NewClient creates a new OpenAI embedding client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := resolveModel(cfg.Model)

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// resolveModel maps a model name onto the SDK's embedding model enum.
// Names the SDK does not know, and the empty name, resolve to
// text-embedding-ada-002.
func resolveModel(name string) openai.EmbeddingModel {
	model := openai.AdaEmbeddingV2
	if name == "" {
		return model
	}
	if err := model.UnmarshalText([]byte(name)); err != nil || model == openai.Unknown {
		return openai.AdaEmbeddingV2
	}
	return model
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("openai: no embedding data returned")
	}

	c.mu.Lock()
	c.tokensUsed += int64(resp.Usage.TotalTokens)
	c.mu.Unlock()

	// The API returns float32; widen for storage and scoring.
	embedding32 := resp.Data[0].Embedding
	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}

	return embedding64, nil
}

// Dimensions returns the vector dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// TokensUsed returns the cumulative token usage reported by the API.
func (c *Client) TokensUsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokensUsed
}

// Close releases nothing; the SDK client needs no explicit shutdown.
func (c *Client) Close() error {
	return nil
}
