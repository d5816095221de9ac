package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.json_logs", false)

	// Storage
	v.SetDefault("storage.root", "data")
	v.SetDefault("storage.database_path", "loom.db")

	// Local inference (Ollama-compatible)
	v.SetDefault("local_inference.enabled", true)
	v.SetDefault("local_inference.base_url", "http://localhost:11434")
	v.SetDefault("local_inference.model", "llama3.2:3b")
	v.SetDefault("local_inference.timeout_seconds", 3600)

	// OpenRouter
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini") // Cost-effective default
	v.SetDefault("openrouter.temperature", 0.2)            // Deterministic
	v.SetDefault("openrouter.max_tokens", 1000)            // Token limit

	// Python execution sidecar
	v.SetDefault("python.base_url", "http://localhost:8090")
	v.SetDefault("python.timeout_seconds", 30)

	// Batch execution
	v.SetDefault("batch.records_per_second", 0.0) // 0 = unthrottled
	v.SetDefault("batch.max_retries", 2)
}
