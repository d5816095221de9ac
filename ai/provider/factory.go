// Package provider selects among LLM providers behind a single client
// interface.
package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomworks/loom/ai/openrouter"
	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/errors"
)

// Provider represents an LLM provider type
type Provider string

const (
	// ProviderLocal uses local inference (Ollama, LocalAI)
	ProviderLocal Provider = "local"
	// ProviderOpenRouter uses OpenRouter.ai API
	ProviderOpenRouter Provider = "openrouter"
	// ProviderAuto automatically selects based on configuration
	ProviderAuto Provider = "auto"
)

// AIClient interface for all LLM providers
// Ensures compatibility between different providers
type AIClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// NewAIClient creates an AI client based on configuration (auto-selection).
// Priority: LocalInference (if enabled) → OpenRouter
func NewAIClient(cfg *config.Config, logger *zap.SugaredLogger) AIClient {
	return NewAIClientWithProvider(cfg, ProviderAuto, logger)
}

// NewAIClientWithProvider creates an AI client for a specific provider.
// Use ProviderAuto to let the factory decide based on configuration.
func NewAIClientWithProvider(cfg *config.Config, provider Provider, logger *zap.SugaredLogger) AIClient {
	switch provider {
	case ProviderLocal:
		return NewLocalProvider(&cfg.LocalInference)
	case ProviderOpenRouter:
		return newOpenRouterClient(cfg, logger)
	default:
		// Auto or unknown provider
		if cfg.LocalInference.Enabled {
			return NewLocalProvider(&cfg.LocalInference)
		}
		return newOpenRouterClient(cfg, logger)
	}
}

func newOpenRouterClient(cfg *config.Config, logger *zap.SugaredLogger) AIClient {
	return openrouter.NewClient(openrouter.Config{
		APIKey:      cfg.OpenRouter.APIKey,
		Model:       cfg.OpenRouter.Model,
		Temperature: cfg.OpenRouter.Temperature,
		MaxTokens:   cfg.OpenRouter.MaxTokens,
		Logger:      logger,
	})
}

// GetAvailableProviders returns a list of configured/available providers
func GetAvailableProviders(cfg *config.Config) []Provider {
	var providers []Provider
	if cfg.LocalInference.Enabled {
		providers = append(providers, ProviderLocal)
	}
	if cfg.OpenRouter.APIKey != "" {
		providers = append(providers, ProviderOpenRouter)
	}
	return providers
}

// ParseProvider converts a string to a Provider type
func ParseProvider(s string) (Provider, error) {
	switch s {
	case "local", "ollama", "localai":
		return ProviderLocal, nil
	case "openrouter", "or":
		return ProviderOpenRouter, nil
	case "auto", "":
		return ProviderAuto, nil
	default:
		return "", errors.Newf("unknown provider: %s (valid: local, openrouter, auto)", s)
	}
}

// Verify interfaces are implemented
var _ AIClient = (*openrouter.Client)(nil)
var _ AIClient = (*LocalProvider)(nil)
