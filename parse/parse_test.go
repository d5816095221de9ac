package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/ai"
	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/pyexec"
)

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"raw", Spec{Type: "raw"}, false},
		{"empty type defaults to raw", Spec{}, false},
		{"raw with schema", Spec{Type: "raw", Schema: "class X:\n  a: str"}, true},
		{"raw with code", Spec{Type: "raw", Code: "def parse(t): return t"}, true},
		{"structured", Spec{Type: "structured", Schema: "class X:\n  a: str"}, false},
		{"structured without schema", Spec{Type: "structured"}, true},
		{"structured with code", Spec{Type: "structured", Schema: "class X:\n  a: str", Code: "x"}, true},
		{"python", Spec{Type: "python", Code: "def parse(t): return t"}, false},
		{"python without code", Spec{Type: "python"}, true},
		{"python with schema", Spec{Type: "python", Code: "x", Schema: "y"}, true},
		{"unknown type", Spec{Type: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRawParser(t *testing.T) {
	parser, err := New(Spec{Type: "raw"}, Deps{})
	require.NoError(t, err)

	got, err := parser.Parse(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Equal(t, "anything at all", got)
}

// stubInvoker returns a canned response or error.
type stubInvoker struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (s *stubInvoker) Invoke(_ context.Context, _ ai.LLMConfig, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

const reviewSchema = `
class Review:
    sentiment: str
    score: float
`

func TestStructuredParser_DirectCoercion(t *testing.T) {
	invoker := &stubInvoker{}
	parser, err := New(Spec{Type: "structured", Schema: reviewSchema}, Deps{Extractor: invoker})
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"bare json", `{"sentiment": "positive", "score": 0.9}`},
		{"fenced json", "Here you go:\n```json\n{\"sentiment\": \"positive\", \"score\": 0.9}\n```"},
		{"embedded json", `The result is {"sentiment": "positive", "score": 0.9} as requested.`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(context.Background(), tt.raw)
			require.NoError(t, err)
			assert.Equal(t, map[string]any{"sentiment": "positive", "score": 0.9}, got)
		})
	}

	// No model call should have been spent on direct coercion
	assert.Zero(t, invoker.calls)
}

func TestStructuredParser_ExtractionFallback(t *testing.T) {
	invoker := &stubInvoker{response: `{"sentiment": "negative", "score": 0.2}`}
	parser, err := New(Spec{Type: "structured", Schema: reviewSchema}, Deps{Extractor: invoker})
	require.NoError(t, err)

	got, err := parser.Parse(context.Background(), "The reviewer hated it, maybe 2 out of 10.")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sentiment": "negative", "score": 0.2}, got)
	assert.Equal(t, 1, invoker.calls)
	assert.Contains(t, invoker.prompts[0], "sentiment (str)")
	assert.Contains(t, invoker.prompts[0], "The reviewer hated it")
}

func TestStructuredParser_Failures(t *testing.T) {
	t.Run("no extractor configured", func(t *testing.T) {
		parser, err := New(Spec{Type: "structured", Schema: reviewSchema}, Deps{})
		require.NoError(t, err)

		_, err = parser.Parse(context.Background(), "not json at all")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrStructuredExtraction))
	})

	t.Run("extraction call fails", func(t *testing.T) {
		invoker := &stubInvoker{err: errors.New("model unavailable")}
		parser, err := New(Spec{Type: "structured", Schema: reviewSchema}, Deps{Extractor: invoker})
		require.NoError(t, err)

		_, err = parser.Parse(context.Background(), "free text")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrStructuredExtraction))
	})

	t.Run("extraction returns wrong shape", func(t *testing.T) {
		invoker := &stubInvoker{response: `{"sentiment": 42}`}
		parser, err := New(Spec{Type: "structured", Schema: reviewSchema}, Deps{Extractor: invoker})
		require.NoError(t, err)

		_, err = parser.Parse(context.Background(), "free text")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrStructuredExtraction))
	})

	t.Run("malformed schema fails at construction", func(t *testing.T) {
		_, err := New(Spec{Type: "structured", Schema: "not a class"}, Deps{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrSchemaParse))
	})
}

// stubRunner fakes the python sidecar.
type stubRunner struct {
	resp *pyexec.ExecuteResponse
	err  error
	code string
}

func (s *stubRunner) Execute(_ context.Context, req pyexec.ExecuteRequest) (*pyexec.ExecuteResponse, error) {
	s.code = req.Code
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestPythonParser(t *testing.T) {
	spec := Spec{Type: "python", Code: "def parse(text):\n    return {\"length\": len(text)}"}

	t.Run("returns captured result", func(t *testing.T) {
		runner := &stubRunner{resp: &pyexec.ExecuteResponse{
			Success: true,
			Vars:    map[string]any{resultVar: map[string]any{"length": float64(5)}},
		}}
		parser, err := New(spec, Deps{Runner: runner})
		require.NoError(t, err)

		got, err := parser.Parse(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"length": float64(5)}, got)

		// The submitted code carries the user function and the input literal
		assert.Contains(t, runner.code, "def parse(text):")
		assert.Contains(t, runner.code, `parse("hello")`)
	})

	t.Run("execution failure is a custom parser error", func(t *testing.T) {
		runner := &stubRunner{resp: &pyexec.ExecuteResponse{
			Success: false,
			Error:   "SyntaxError: invalid syntax",
		}}
		parser, err := New(spec, Deps{Runner: runner})
		require.NoError(t, err)

		_, err = parser.Parse(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCustomParser))
		assert.Contains(t, err.Error(), "SyntaxError")
	})

	t.Run("sidecar unreachable is a custom parser error", func(t *testing.T) {
		runner := &stubRunner{err: errors.New("connection refused")}
		parser, err := New(spec, Deps{Runner: runner})
		require.NoError(t, err)

		_, err = parser.Parse(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCustomParser))
	})

	t.Run("missing runner fails construction", func(t *testing.T) {
		_, err := New(spec, Deps{})
		assert.Error(t, err)
	})
}
