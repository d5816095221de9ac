package tmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	t.Run("full frontmatter", func(t *testing.T) {
		content := `---
model: "openai/gpt-4o-mini"
temperature: 0.7
max_tokens: 500
---
Summarize: {{text}}`

		doc, err := ParseFrontmatter(content)
		require.NoError(t, err)

		assert.Equal(t, "openai/gpt-4o-mini", doc.Metadata.Model)
		require.NotNil(t, doc.Metadata.Temperature)
		assert.Equal(t, 0.7, *doc.Metadata.Temperature)
		require.NotNil(t, doc.Metadata.MaxTokens)
		assert.Equal(t, 500, *doc.Metadata.MaxTokens)
		assert.Equal(t, "Summarize: {{text}}", doc.Body)
	})

	t.Run("no frontmatter", func(t *testing.T) {
		doc, err := ParseFrontmatter("Just a template: {{x}}")
		require.NoError(t, err)
		assert.Equal(t, "Just a template: {{x}}", doc.Body)
		assert.Empty(t, doc.Metadata.Model)
		assert.Nil(t, doc.Metadata.Temperature)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseFrontmatter("---\nmodel: [unclosed\n---\nbody")
		assert.Error(t, err)
	})

	t.Run("temperature out of range", func(t *testing.T) {
		_, err := ParseFrontmatter("---\ntemperature: 3.5\n---\nbody")
		assert.Error(t, err)
	})

	t.Run("non-positive max_tokens", func(t *testing.T) {
		_, err := ParseFrontmatter("---\nmax_tokens: 0\n---\nbody")
		assert.Error(t, err)
	})
}

func TestDocumentGetters(t *testing.T) {
	temp := 0.1
	tokens := 64
	doc := &Document{Metadata: Metadata{Model: "m", Temperature: &temp, MaxTokens: &tokens}}

	assert.Equal(t, "m", doc.GetModel("fallback"))
	assert.Equal(t, 0.1, doc.GetTemperature(0.2))
	assert.Equal(t, 64, doc.GetMaxTokens(1000))

	empty := &Document{}
	assert.Equal(t, "fallback", empty.GetModel("fallback"))
	assert.Equal(t, 0.2, empty.GetTemperature(0.2))
	assert.Equal(t, 1000, empty.GetMaxTokens(1000))
}
