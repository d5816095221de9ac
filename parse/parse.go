// Package parse turns raw model output into the shape the caller asked for.
// A parser is selected by a Spec with exactly one strategy: raw (identity),
// structured (schema-driven extraction), or python (user-supplied parse
// function executed by the Python sidecar).
//
// The pipeline boundary always returns a value or a tagged error; user code
// and model output can never panic past it.
package parse

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomworks/loom/ai"
	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/pyexec"
)

// Strategy names accepted in Spec.Type
const (
	TypeRaw        = "raw"
	TypeStructured = "structured"
	TypePython     = "python"
)

// Spec declares how a response should be parsed
type Spec struct {
	// Type selects the strategy: raw, structured, or python
	Type string `json:"type"`
	// Schema is the class-like field definition for structured parsing
	Schema string `json:"schema,omitempty"`
	// Code is the Python source defining parse(text) for python parsing
	Code string `json:"code,omitempty"`
}

// Parser converts raw response text into the final result value
type Parser interface {
	Parse(ctx context.Context, raw string) (any, error)
}

// Deps carries the external collaborators a parser may need
type Deps struct {
	// Runner executes python parser code; required for TypePython
	Runner pyexec.Runner
	// Extractor, when set, lets the structured parser fall back to a
	// model-backed extraction call after direct coercion fails
	Extractor       ai.Invoker
	ExtractorConfig ai.LLMConfig
	Logger          *zap.SugaredLogger
}

// Validate checks that exactly one payload field matches the declared type.
// It runs before any model call so a bad spec never costs an invocation.
func (s Spec) Validate() error {
	switch s.Type {
	case "", TypeRaw:
		if s.Schema != "" || s.Code != "" {
			return errors.NewInvalidRequestError("raw parser takes no schema or code")
		}
	case TypeStructured:
		if s.Schema == "" {
			return errors.NewInvalidRequestError("structured parser requires a schema")
		}
		if s.Code != "" {
			return errors.NewInvalidRequestError("structured parser takes no code")
		}
	case TypePython:
		if s.Code == "" {
			return errors.NewInvalidRequestError("python parser requires code")
		}
		if s.Schema != "" {
			return errors.NewInvalidRequestError("python parser takes no schema")
		}
	default:
		return errors.NewInvalidRequestError("unknown parser type %q", s.Type)
	}
	return nil
}

// New validates the spec and builds the matching parser. Structured schemas
// are compiled here, so schema errors surface before any invocation.
func New(spec Spec, deps Deps) (Parser, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}

	switch spec.Type {
	case "", TypeRaw:
		return rawParser{}, nil
	case TypeStructured:
		schema, err := CompileSchema(spec.Schema)
		if err != nil {
			return nil, err
		}
		return &structuredParser{
			schema:     schema,
			extractor:  deps.Extractor,
			extractCfg: deps.ExtractorConfig,
			logger:     deps.Logger,
		}, nil
	case TypePython:
		if deps.Runner == nil {
			return nil, errors.New("python parser requires an execution runner")
		}
		return &pythonParser{
			code:   spec.Code,
			runner: deps.Runner,
			logger: deps.Logger,
		}, nil
	default:
		return nil, errors.NewInvalidRequestError("unknown parser type %q", spec.Type)
	}
}

// rawParser returns model output untouched. It never fails.
type rawParser struct{}

func (rawParser) Parse(_ context.Context, raw string) (any, error) {
	return raw, nil
}
