package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	require.NoError(t, config.Validate())

	assert.Equal(t, "sqlite", config.Storage.Provider)
	assert.Equal(t, "hashing", config.Embedder.Provider)
	assert.Equal(t, 24*time.Hour, config.ConsolidationInterval)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := map[string]func(*Config){
		"zero decay rate":           func(c *Config) { c.DecayRate = 0 },
		"decay rate above one":      func(c *Config) { c.DecayRate = 1.5 },
		"negative strength":         func(c *Config) { c.MinStrengthThreshold = -0.1 },
		"retrieval score above one": func(c *Config) { c.MinRetrievalScore = 1.1 },
		"zero search results":       func(c *Config) { c.MaxSearchResults = 0 },
		"zero recent days":          func(c *Config) { c.RecentDays = 0 },
		"zero interval":             func(c *Config) { c.ConsolidationInterval = 0 },
		"zero batch size":           func(c *Config) { c.MaxMemoriesPerConsolidation = 0 },
		"zero insight cap":          func(c *Config) { c.MaxInsightsPerRun = 0 },
		"empty embedder provider":   func(c *Config) { c.Embedder.Provider = "" },
		"empty storage provider":    func(c *Config) { c.Storage.Provider = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := DefaultConfig()
			mutate(config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	payload := `{
		"decay_rate": 0.1,
		"recent_days": 7,
		"storage": {"provider": "inmem"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	config, err := LoadConfigFromJSON(path)
	require.NoError(t, err)

	assert.Equal(t, 0.1, config.DecayRate)
	assert.Equal(t, 7, config.RecentDays)
	assert.Equal(t, "inmem", config.Storage.Provider)
	assert.Equal(t, 50, config.MaxSearchResults, "absent fields keep their defaults")
}

func TestLoadConfigFromJSONMissingFile(t *testing.T) {
	_, err := LoadConfigFromJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestEngineErrorWrapping(t *testing.T) {
	err := NewEngineError("CreateMemory", ErrInvalidInput)
	require.Error(t, err)
	assert.Equal(t, "engram: CreateMemory: invalid input", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.NoError(t, NewEngineError("CreateMemory", nil), "nil passes through")
}
