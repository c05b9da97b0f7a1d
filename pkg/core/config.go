// Package core provides the Engram engine: ingestion of activity records,
// memory retrieval and ranking, graph connections, consolidation, and
// insight generation.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for an Engram engine.
//
// It includes settings for:
//   - Memory dynamics (decay, retention, retrieval thresholds)
//   - Consolidation (interval, batch size, clustering)
//   - Insight generation
//   - Embedding provider
//   - Storage backend
//
// Example:
//
//	config := core.DefaultConfig()
//	config.Storage = core.StorageConfig{
//	    Provider: "sqlite",
//	    Path:     "./engram.db",
//	}
//	config.Embedder = core.EmbedderConfig{
//	    Provider: "openai",
//	    APIKey:   "sk-...",
//	}
type Config struct {
	// DecayRate is the base rate at which memory strength decays per day.
	// It is scaled per memory type (episodic faster, procedural slower).
	// Typical range: 0.01-0.2.
	DecayRate float64 `json:"decay_rate"`

	// MinStrengthThreshold is the retention strength below which memories
	// are excluded from retrieval.
	MinStrengthThreshold float64 `json:"min_strength_threshold"`

	// MinRetrievalScore is the minimum multi-factor relevance score a
	// memory must reach to appear in query results.
	MinRetrievalScore float64 `json:"min_retrieval_score"`

	// MaxSearchResults is the default result limit for retrieval when the
	// caller does not specify one.
	MaxSearchResults int `json:"max_search_results"`

	// RecentDays is the window, in days, within which memories are
	// considered recent during consolidation grouping.
	RecentDays int `json:"recent_days"`

	// MinSimilarityThreshold is the cosine (or text) similarity two
	// memories must reach to be grouped together.
	MinSimilarityThreshold float64 `json:"min_similarity_threshold"`

	// EnableSemanticClustering enables embedding-based grouping during
	// consolidation. When disabled, grouping falls back to tags and text.
	EnableSemanticClustering bool `json:"enable_semantic_clustering"`

	// ConsolidationInterval is the minimum time between consolidation runs
	// for a single user.
	ConsolidationInterval time.Duration `json:"consolidation_interval"`

	// MaxMemoriesPerConsolidation bounds how many memories a single
	// consolidation run processes (most recent first).
	MaxMemoriesPerConsolidation int `json:"max_memories_per_consolidation"`

	// EnableInsights enables insight generation during consolidation.
	EnableInsights bool `json:"enable_insights"`

	// MaxInsightsPerRun caps how many insights one consolidation run
	// may create.
	MaxInsightsPerRun int `json:"max_insights_per_run"`

	// HighlightImportanceThreshold is the importance above which a single
	// memory is surfaced as a highlight insight.
	HighlightImportanceThreshold float64 `json:"highlight_importance_threshold"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// Storage contains storage backend configuration.
	Storage StorageConfig `json:"storage"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, hashing
//
// The hashing provider is deterministic and local; it needs no API key and
// serves as the fallback for the remote provider.
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, hashing).
	Provider string `json:"provider"`

	// APIKey is the API key for the remote provider.
	APIKey string `json:"api_key"`

	// Model is the embedding model name (e.g., "text-embedding-ada-002").
	Model string `json:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default
	// if empty).
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty"`

	// CacheTTL is how long embedding vectors stay cached.
	CacheTTL time.Duration `json:"cache_ttl,omitempty"`

	// TokensPerMinute is the token budget for remote embedding calls.
	TokensPerMinute int `json:"tokens_per_minute,omitempty"`
}

// StorageConfig contains configuration for the storage backend.
//
// Supported providers: sqlite, postgres, mysql, inmem
//
// SQLite uses Path; PostgreSQL and MySQL use the host/port/credential
// fields; inmem ignores all of them.
type StorageConfig struct {
	// Provider is the storage backend name (sqlite, postgres, mysql, inmem).
	Provider string `json:"provider"`

	// Path is the database file path (sqlite only).
	Path string `json:"path,omitempty"`

	// Host and Port locate the database server (postgres, mysql).
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// User and Password are the database credentials (postgres, mysql).
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// DBName is the database name (postgres, mysql).
	DBName string `json:"db_name,omitempty"`

	// SSLMode is the connection SSL mode (postgres only).
	SSLMode string `json:"ssl_mode,omitempty"`
}

// DefaultConfig returns a Config with production defaults.
//
// Storage defaults to a local SQLite file and the embedder to the local
// hashing provider, so a default engine works without any credentials.
func DefaultConfig() *Config {
	return &Config{
		DecayRate:                    0.05,
		MinStrengthThreshold:         0.2,
		MinRetrievalScore:            0.5,
		MaxSearchResults:             50,
		RecentDays:                   3,
		MinSimilarityThreshold:       0.7,
		EnableSemanticClustering:     true,
		ConsolidationInterval:        24 * time.Hour,
		MaxMemoriesPerConsolidation:  500,
		EnableInsights:               true,
		MaxInsightsPerRun:            5,
		HighlightImportanceThreshold: 0.8,
		Embedder: EmbedderConfig{
			Provider:        "hashing",
			Dimensions:      1536,
			CacheTTL:        24 * time.Hour,
			TokensPerMinute: 10000,
		},
		Storage: StorageConfig{
			Provider: "sqlite",
			Path:     "./engram.db",
		},
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables on top of DefaultConfig
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql, inmem)
//   - SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
//     EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS,
//     EMBEDDING_CACHE_TTL_HOURS, EMBEDDING_TOKENS_PER_MINUTE
//   - ENGRAM_DECAY_RATE, ENGRAM_MIN_STRENGTH, ENGRAM_MIN_RETRIEVAL_SCORE,
//     ENGRAM_MAX_SEARCH_RESULTS, ENGRAM_RECENT_DAYS,
//     ENGRAM_MIN_SIMILARITY, ENGRAM_SEMANTIC_CLUSTERING,
//     ENGRAM_CONSOLIDATION_INTERVAL_HOURS, ENGRAM_MAX_MEMORIES_PER_RUN,
//     ENGRAM_ENABLE_INSIGHTS, ENGRAM_MAX_INSIGHTS_PER_RUN,
//     ENGRAM_HIGHLIGHT_THRESHOLD
//
// Returns a Config instance, or an error if loading fails.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		// If not found, try loading from current directory (godotenv default behavior)
		_ = godotenv.Load()
	}

	config := DefaultConfig()

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")
	config.Storage.Provider = provider

	// Build provider-specific settings
	switch provider {
	case "sqlite":
		config.Storage.Path = getEnvOrDefault("SQLITE_PATH", "./engram.db")
	case "postgres":
		config.Storage.Host = getEnvOrDefault("POSTGRES_HOST", "localhost")
		config.Storage.Port = getEnvInt("POSTGRES_PORT", 5432)
		config.Storage.User = getEnvOrDefault("POSTGRES_USER", "postgres")
		config.Storage.Password = os.Getenv("POSTGRES_PASSWORD")
		config.Storage.DBName = getEnvOrDefault("POSTGRES_DATABASE", "engram")
		config.Storage.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", "disable")
	case "mysql":
		config.Storage.Host = getEnvOrDefault("MYSQL_HOST", "127.0.0.1")
		config.Storage.Port = getEnvInt("MYSQL_PORT", 3306)
		config.Storage.User = getEnvOrDefault("MYSQL_USER", "root")
		config.Storage.Password = os.Getenv("MYSQL_PASSWORD")
		config.Storage.DBName = getEnvOrDefault("MYSQL_DATABASE", "engram")
	}

	// Embedding provider; default to the local hashing provider when no
	// API key is configured.
	embedderAPIKey := os.Getenv("EMBEDDING_API_KEY")
	defaultEmbedder := "hashing"
	if embedderAPIKey != "" {
		defaultEmbedder = "openai"
	}
	config.Embedder.Provider = getEnvOrDefault("EMBEDDING_PROVIDER", defaultEmbedder)
	config.Embedder.APIKey = embedderAPIKey
	config.Embedder.Model = getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-ada-002")
	config.Embedder.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	config.Embedder.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", config.Embedder.Dimensions)
	config.Embedder.CacheTTL = time.Duration(getEnvInt("EMBEDDING_CACHE_TTL_HOURS", 24)) * time.Hour
	config.Embedder.TokensPerMinute = getEnvInt("EMBEDDING_TOKENS_PER_MINUTE", config.Embedder.TokensPerMinute)

	// Engine tunables
	config.DecayRate = getEnvFloat("ENGRAM_DECAY_RATE", config.DecayRate)
	config.MinStrengthThreshold = getEnvFloat("ENGRAM_MIN_STRENGTH", config.MinStrengthThreshold)
	config.MinRetrievalScore = getEnvFloat("ENGRAM_MIN_RETRIEVAL_SCORE", config.MinRetrievalScore)
	config.MaxSearchResults = getEnvInt("ENGRAM_MAX_SEARCH_RESULTS", config.MaxSearchResults)
	config.RecentDays = getEnvInt("ENGRAM_RECENT_DAYS", config.RecentDays)
	config.MinSimilarityThreshold = getEnvFloat("ENGRAM_MIN_SIMILARITY", config.MinSimilarityThreshold)
	config.EnableSemanticClustering = getEnvBool("ENGRAM_SEMANTIC_CLUSTERING", config.EnableSemanticClustering)
	config.ConsolidationInterval = time.Duration(getEnvInt("ENGRAM_CONSOLIDATION_INTERVAL_HOURS", 24)) * time.Hour
	config.MaxMemoriesPerConsolidation = getEnvInt("ENGRAM_MAX_MEMORIES_PER_RUN", config.MaxMemoriesPerConsolidation)
	config.EnableInsights = getEnvBool("ENGRAM_ENABLE_INSIGHTS", config.EnableInsights)
	config.MaxInsightsPerRun = getEnvInt("ENGRAM_MAX_INSIGHTS_PER_RUN", config.MaxInsightsPerRun)
	config.HighlightImportanceThreshold = getEnvFloat("ENGRAM_HIGHLIGHT_THRESHOLD", config.HighlightImportanceThreshold)

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON loads configuration from a JSON file.
//
// Fields absent from the file keep their DefaultConfig values.
//
// Parameters:
//   - path: Path to the JSON configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, NewEngineError("LoadConfigFromJSON", err)
	}

	return config, nil
}

// Validate validates the configuration.
//
// Checks that all tunables are inside their meaningful ranges:
//   - DecayRate in (0, 1]
//   - Thresholds in [0, 1]
//   - Counts and intervals positive
//   - Embedder and storage providers specified
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.DecayRate <= 0 || c.DecayRate > 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: decay rate must be in (0, 1]", ErrInvalidConfig))
	}
	if c.MinStrengthThreshold < 0 || c.MinStrengthThreshold > 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: min strength threshold must be in [0, 1]", ErrInvalidConfig))
	}
	if c.MinRetrievalScore < 0 || c.MinRetrievalScore > 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: min retrieval score must be in [0, 1]", ErrInvalidConfig))
	}
	if c.MinSimilarityThreshold < 0 || c.MinSimilarityThreshold > 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: min similarity threshold must be in [0, 1]", ErrInvalidConfig))
	}
	if c.HighlightImportanceThreshold < 0 || c.HighlightImportanceThreshold > 1 {
		return NewEngineError("Validate", fmt.Errorf("%w: highlight threshold must be in [0, 1]", ErrInvalidConfig))
	}
	if c.MaxSearchResults <= 0 {
		return NewEngineError("Validate", fmt.Errorf("%w: max search results must be positive", ErrInvalidConfig))
	}
	if c.RecentDays <= 0 {
		return NewEngineError("Validate", fmt.Errorf("%w: recent days must be positive", ErrInvalidConfig))
	}
	if c.ConsolidationInterval <= 0 {
		return NewEngineError("Validate", fmt.Errorf("%w: consolidation interval must be positive", ErrInvalidConfig))
	}
	if c.MaxMemoriesPerConsolidation <= 0 {
		return NewEngineError("Validate", fmt.Errorf("%w: max memories per consolidation must be positive", ErrInvalidConfig))
	}
	if c.MaxInsightsPerRun <= 0 {
		return NewEngineError("Validate", fmt.Errorf("%w: max insights per run must be positive", ErrInvalidConfig))
	}
	if c.Embedder.Provider == "" {
		return NewEngineError("Validate", fmt.Errorf("%w: embedder provider is required", ErrInvalidConfig))
	}
	if c.Storage.Provider == "" {
		return NewEngineError("Validate", fmt.Errorf("%w: storage provider is required", ErrInvalidConfig))
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable or returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	// First check the current directory
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	// Check project root directory (search upward)
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
