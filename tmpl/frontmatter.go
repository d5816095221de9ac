package tmpl

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/errors"
)

// Document represents a stored template with frontmatter metadata and body
type Document struct {
	Metadata Metadata
	Body     string
}

// Metadata holds model configuration from YAML frontmatter
type Metadata struct {
	// Model specifies which LLM to use (overrides config default)
	// Format: "provider/model" (e.g., "openai/gpt-4o-mini")
	Model string `yaml:"model,omitempty"`

	// Temperature controls randomness (0.0-2.0, provider-dependent)
	Temperature *float64 `yaml:"temperature,omitempty"`

	// MaxTokens limits response length
	MaxTokens *int `yaml:"max_tokens,omitempty"`
}

// ParseFrontmatter extracts YAML frontmatter and body from template text.
// Expected format:
//
//	---
//	model: "openai/gpt-4o-mini"
//	temperature: 0.7
//	---
//	Template body with {{placeholders}}
func ParseFrontmatter(content string) (*Document, error) {
	parts := strings.SplitN(content, "---", 3)

	// No frontmatter - entire content is body
	if len(parts) < 3 {
		return &Document{Body: content}, nil
	}

	frontmatterYAML := strings.TrimSpace(parts[1])
	body := strings.TrimSpace(parts[2])

	var metadata Metadata
	if frontmatterYAML != "" {
		if err := yaml.Unmarshal([]byte(frontmatterYAML), &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to parse frontmatter YAML")
		}
	}

	if err := validateMetadata(&metadata); err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}

	return &Document{Metadata: metadata, Body: body}, nil
}

func validateMetadata(m *Metadata) error {
	if m.Temperature != nil {
		if *m.Temperature < 0.0 || *m.Temperature > 2.0 {
			return errors.Newf("temperature must be between 0.0 and 2.0, got %f", *m.Temperature)
		}
	}
	if m.MaxTokens != nil {
		if *m.MaxTokens < 1 {
			return errors.Newf("max_tokens must be positive, got %d", *m.MaxTokens)
		}
	}
	return nil
}

// GetModel returns the model specified in metadata, or fallback if not set
func (d *Document) GetModel(fallback string) string {
	if d.Metadata.Model != "" {
		return d.Metadata.Model
	}
	return fallback
}

// GetTemperature returns the temperature specified in metadata, or fallback if not set
func (d *Document) GetTemperature(fallback float64) float64 {
	if d.Metadata.Temperature != nil {
		return *d.Metadata.Temperature
	}
	return fallback
}

// GetMaxTokens returns the max tokens specified in metadata, or fallback if not set
func (d *Document) GetMaxTokens(fallback int) int {
	if d.Metadata.MaxTokens != nil {
		return *d.Metadata.MaxTokens
	}
	return fallback
}
