// Package config provides configuration management for Nexus.
// It loads settings from environment variables with the NEXUS_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration settings for the Nexus memory engine.
type Config struct {
	Storage StorageConfig
	LLM     LLMConfig
	App     AppConfig
	Batch   BatchConfig
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to the sqlite data directory (default: ./data)
	PostgresDSN   string // Postgres connection string, required when StorageEngine is postgres
}

// LLMConfig contains extraction and embedding provider configuration.
type LLMConfig struct {
	AnthropicAPIKey string // Anthropic API key for extraction; empty disables mining
	AnthropicModel  string // Anthropic model name (default: claude-haiku-4-5-20251001)
	OpenAIAPIKey    string // OpenAI API key for embeddings; empty disables vector search
	EmbeddingModel  string // OpenAI embedding model (default: text-embedding-3-small)
}

// AppConfig contains deployment-facing settings.
type AppConfig struct {
	AppURL         string // Public base URL, injected into the decision-logging instruction
	InternalSecret string // Secret for engine-to-platform calls such as log fetches
}

// BatchConfig contains the cadence settings for the periodic jobs.
type BatchConfig struct {
	MineIntervalMinutes      int  // Minutes between mining sweeps (default: 30)
	ConsolidateIntervalHours int  // Hours between consolidation sweeps (default: 24)
	DigestEnabled            bool // Rebuild digests after each sweep (default: true)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the NEXUS_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			StorageEngine: getEnv("NEXUS_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("NEXUS_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("NEXUS_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			AnthropicAPIKey: getEnv("NEXUS_ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("NEXUS_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
			OpenAIAPIKey:    getEnv("NEXUS_OPENAI_API_KEY", ""),
			EmbeddingModel:  getEnv("NEXUS_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		App: AppConfig{
			AppURL:         getEnv("NEXUS_APP_URL", "http://localhost:3000"),
			InternalSecret: getEnv("NEXUS_INTERNAL_SECRET", ""),
		},
		Batch: BatchConfig{
			MineIntervalMinutes:      getEnvInt("NEXUS_MINE_INTERVAL_MINUTES", 30),
			ConsolidateIntervalHours: getEnvInt("NEXUS_CONSOLIDATE_INTERVAL_HOURS", 24),
			DigestEnabled:            getEnvBool("NEXUS_DIGEST_ENABLED", true),
		},
	}

	switch cfg.Storage.StorageEngine {
	case "sqlite":
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("config: NEXUS_POSTGRES_DSN is required when NEXUS_STORAGE_ENGINE is postgres")
		}
	default:
		return nil, fmt.Errorf("config: unknown storage engine %q", cfg.Storage.StorageEngine)
	}

	return cfg, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false.
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
