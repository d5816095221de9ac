// Package ai exposes model invocation to the rest of Loom. The Invoker
// interface is the seam the run engine and batch orchestrator depend on;
// ClientInvoker is the production implementation backed by the provider
// factory.
package ai

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loomworks/loom/ai/openrouter"
	"github.com/loomworks/loom/ai/provider"
	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/errors"
)

// LLMConfig selects the model and sampling parameters for one invocation.
// Nil fields fall through to template frontmatter and then server defaults.
type LLMConfig struct {
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Invoker sends a rendered prompt to a model and returns the raw response text.
type Invoker interface {
	Invoke(ctx context.Context, cfg LLMConfig, prompt string) (string, error)
}

// ClientInvoker invokes models through the provider factory with bounded
// retries on transient failures.
type ClientInvoker struct {
	cfg        *config.Config
	logger     *zap.SugaredLogger
	maxRetries int
}

// NewClientInvoker builds the production invoker. maxRetries bounds
// additional attempts after the first; negative values mean no retries.
func NewClientInvoker(cfg *config.Config, logger *zap.SugaredLogger) *ClientInvoker {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	maxRetries := cfg.Batch.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ClientInvoker{cfg: cfg, logger: logger, maxRetries: maxRetries}
}

// Invoke resolves the provider named in cfg, sends the prompt, and retries
// transient failures with linear backoff. All failures are marked as
// invocation errors.
func (ci *ClientInvoker) Invoke(ctx context.Context, cfg LLMConfig, prompt string) (string, error) {
	prov, err := provider.ParseProvider(cfg.Provider)
	if err != nil {
		return "", errors.Mark(err, errors.ErrInvocation)
	}
	client := provider.NewAIClientWithProvider(ci.cfg, prov, ci.logger)

	req := openrouter.ChatRequest{
		UserPrompt:  prompt,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if cfg.Model != "" {
		model := cfg.Model
		req.Model = &model
	}

	var resp *openrouter.ChatResponse
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * time.Second
			ci.logger.Debugw("Retrying model invocation",
				"attempt", attempt, "max_retries", ci.maxRetries, "delay", delay)
			select {
			case <-ctx.Done():
				return "", errors.Mark(ctx.Err(), errors.ErrInvocation)
			case <-time.After(delay):
			}
		}

		resp, err = client.Chat(ctx, req)
		if err == nil {
			if attempt > 0 {
				ci.logger.Infow("Invocation succeeded after retries",
					"attempts", attempt+1, "model", cfg.Model)
			}
			return resp.Content, nil
		}

		if attempt >= ci.maxRetries || !isRetryableError(err) || ctx.Err() != nil {
			break
		}
		ci.logger.Warnw("Transient model invocation error",
			"attempt", attempt+1, "error", err)
	}

	return "", errors.Mark(err, errors.ErrInvocation)
}

// isRetryableError reports whether the failure is worth retrying: rate
// limits, upstream overload, and transport-level flakes.
func isRetryableError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
		"connection reset",
		"connection refused",
		"timeout",
		"temporary failure",
		"eof",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
