// Package config loads Loom configuration from TOML files and environment
// variables via Viper. Precedence: defaults < config file < LOOM_* env vars.
package config

// Config represents the core Loom configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Storage        StorageConfig        `mapstructure:"storage"`
	LocalInference LocalInferenceConfig `mapstructure:"local_inference"`
	OpenRouter     OpenRouterConfig     `mapstructure:"openrouter"`
	Python         PythonConfig         `mapstructure:"python"`
	Batch          BatchConfig          `mapstructure:"batch"`
}

// ServerConfig configures the Loom HTTP server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	JSONLogs       bool     `mapstructure:"json_logs"`
}

// StorageConfig configures on-disk storage locations
type StorageConfig struct {
	// Root is the storage root; datasets and results live underneath it
	Root string `mapstructure:"root"`
	// DatabasePath is the SQLite database holding templates
	DatabasePath string `mapstructure:"database_path"`
}

// LocalInferenceConfig configures local model inference (Ollama, LocalAI, etc.)
type LocalInferenceConfig struct {
	Enabled        bool   `mapstructure:"enabled"`         // Prefer local inference over cloud APIs
	BaseURL        string `mapstructure:"base_url"`        // e.g. "http://localhost:11434" for Ollama
	Model          string `mapstructure:"model"`           // e.g. "llama3.2:3b"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Request timeout in seconds
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey      string   `mapstructure:"api_key"`     // OpenRouter API key
	Model       string   `mapstructure:"model"`       // Default model (e.g. "openai/gpt-4o-mini")
	Temperature *float64 `mapstructure:"temperature"` // Sampling temperature (nil = default 0.2)
	MaxTokens   *int     `mapstructure:"max_tokens"`  // Maximum tokens per request (nil = default 1000)
}

// PythonConfig configures the Python execution sidecar used by the
// custom-code parser strategy.
type PythonConfig struct {
	BaseURL        string `mapstructure:"base_url"`        // e.g. "http://localhost:8090"
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // Per-call timeout in seconds
}

// BatchConfig configures batch job execution
type BatchConfig struct {
	// RecordsPerSecond throttles per-record model calls within a job.
	// 0 disables throttling.
	RecordsPerSecond float64 `mapstructure:"records_per_second"`
	// MaxRetries bounds transient-invocation retries per record
	MaxRetries int `mapstructure:"max_retries"`
}
