package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/errors"
)

func TestCompileSchema(t *testing.T) {
	t.Run("full definition", func(t *testing.T) {
		schema, err := CompileSchema(`
# review extraction target
class Review(BaseModel):
    sentiment: str
    score: float  # 0..1
    count: int
    flagged: bool
    tags: list
    extra: dict = {}
`)
		require.NoError(t, err)
		assert.Equal(t, "Review", schema.Name)
		require.Len(t, schema.Fields, 6)
		assert.Equal(t, Field{Name: "sentiment", Type: "str"}, schema.Fields[0])
		assert.True(t, schema.Fields[5].Optional)
	})

	tests := []struct {
		name       string
		definition string
	}{
		{"empty", ""},
		{"no class", "sentiment: str"},
		{"no fields", "class Empty:"},
		{"unknown type", "class X:\n    a: complex128"},
		{"two classes", "class A:\n    a: str\nclass B:\n    b: str"},
		{"garbage field", "class X:\n    not a field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSchema(tt.definition)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSchemaParse), "err = %v", err)
		})
	}
}

func TestSchemaInstantiate(t *testing.T) {
	schema, err := CompileSchema(`
class Item:
    name: str
    qty: int
    note: str = ""
`)
	require.NoError(t, err)

	t.Run("coerces and drops extras", func(t *testing.T) {
		got, err := schema.Instantiate(map[string]any{
			"name": "widget",
			"qty":  float64(3),
			"junk": true,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"name": "widget", "qty": 3}, got)
	})

	t.Run("missing required field", func(t *testing.T) {
		_, err := schema.Instantiate(map[string]any{"name": "widget"})
		assert.Error(t, err)
	})

	t.Run("optional field may be absent", func(t *testing.T) {
		got, err := schema.Instantiate(map[string]any{"name": "w", "qty": float64(1)})
		require.NoError(t, err)
		_, present := got["note"]
		assert.False(t, present)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := schema.Instantiate(map[string]any{"name": 5, "qty": float64(1)})
		assert.Error(t, err)
	})

	t.Run("fractional value rejected for int", func(t *testing.T) {
		_, err := schema.Instantiate(map[string]any{"name": "w", "qty": 1.5})
		assert.Error(t, err)
	})
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		ok   bool
	}{
		{"bare object", `{"a": 1}`, true},
		{"padded object", "  \n {\"a\": 1} \n", true},
		{"fenced", "```json\n{\"a\": 1}\n```", true},
		{"fenced without language", "```\n{\"a\": 1}\n```", true},
		{"embedded", `prefix {"a": {"b": 2}} suffix`, true},
		{"braces in strings", `result: {"a": "open { brace"}`, true},
		{"array only", `[1, 2, 3]`, false},
		{"plain text", "no json here", false},
		{"unbalanced", `{"a": 1`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := extractJSONObject(tt.text)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.NotNil(t, obj)
			}
		})
	}
}
