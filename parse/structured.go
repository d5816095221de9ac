package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/loomworks/loom/ai"
	"github.com/loomworks/loom/errors"
)

// Field is one named typed slot of a compiled schema
type Field struct {
	Name     string
	Type     string // str, int, float, bool, list, dict, any
	Optional bool
}

// Schema is a compiled class-like definition
type Schema struct {
	Name   string
	Fields []Field
}

var (
	classPattern = regexp.MustCompile(`^class\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\([^)]*\))?\s*:$`)
	fieldPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*:\s*([A-Za-z_][A-Za-z0-9_]*)\s*(=.*)?$`)
)

var fieldTypes = map[string]bool{
	"str":   true,
	"int":   true,
	"float": true,
	"bool":  true,
	"list":  true,
	"dict":  true,
	"any":   true,
}

// CompileSchema parses a class-like schema definition into a field set.
// Expected shape:
//
//	class Review:
//	    sentiment: str
//	    score: float
//	    tags: list
//
// A field with a default value ("= ...") is optional. Valid types are str,
// int, float, bool, list, dict, and any.
func CompileSchema(definition string) (*Schema, error) {
	var schema *Schema

	for lineno, line := range strings.Split(definition, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		// Strip trailing comments
		if i := strings.Index(trimmed, "#"); i > 0 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}

		if m := classPattern.FindStringSubmatch(trimmed); m != nil {
			if schema != nil {
				return nil, errors.Wrapf(errors.ErrSchemaParse,
					"line %d: multiple class definitions", lineno+1)
			}
			schema = &Schema{Name: m[1]}
			continue
		}

		if schema == nil {
			return nil, errors.Wrapf(errors.ErrSchemaParse,
				"line %d: expected a class definition before fields", lineno+1)
		}

		m := fieldPattern.FindStringSubmatch(trimmed)
		if m == nil {
			return nil, errors.Wrapf(errors.ErrSchemaParse,
				"line %d: cannot parse field %q", lineno+1, trimmed)
		}
		name, fieldType := m[1], m[2]
		if !fieldTypes[fieldType] {
			return nil, errors.Wrapf(errors.ErrSchemaParse,
				"line %d: unknown field type %q (valid: str, int, float, bool, list, dict, any)",
				lineno+1, fieldType)
		}
		schema.Fields = append(schema.Fields, Field{
			Name:     name,
			Type:     fieldType,
			Optional: m[3] != "",
		})
	}

	if schema == nil {
		return nil, errors.Wrap(errors.ErrSchemaParse, "schema defines no class")
	}
	if len(schema.Fields) == 0 {
		return nil, errors.Wrapf(errors.ErrSchemaParse, "class %s defines no fields", schema.Name)
	}
	return schema, nil
}

// Instantiate coerces a decoded JSON object into an instance of the schema.
// Extra fields are dropped; missing required fields and type mismatches fail.
func (s *Schema) Instantiate(obj map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Fields))
	for _, field := range s.Fields {
		value, ok := obj[field.Name]
		if !ok {
			if field.Optional {
				continue
			}
			return nil, errors.Newf("missing required field %q", field.Name)
		}
		coerced, err := coerceValue(field.Type, value)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", field.Name)
		}
		out[field.Name] = coerced
	}
	return out, nil
}

func coerceValue(fieldType string, value any) (any, error) {
	switch fieldType {
	case "any":
		return value, nil
	case "str":
		if s, ok := value.(string); ok {
			return s, nil
		}
	case "int":
		switch v := value.(type) {
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		case int:
			return v, nil
		}
	case "float":
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		}
	case "bool":
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case "list":
		if l, ok := value.([]any); ok {
			return l, nil
		}
	case "dict":
		if d, ok := value.(map[string]any); ok {
			return d, nil
		}
	}
	return nil, errors.Newf("value %v does not match type %s", value, fieldType)
}

// structuredParser coerces model output into a schema instance. Direct JSON
// coercion runs first; a model-backed extraction call is the fallback when
// an extractor is configured.
type structuredParser struct {
	schema     *Schema
	extractor  ai.Invoker
	extractCfg ai.LLMConfig
	logger     *zap.SugaredLogger
}

func (p *structuredParser) Parse(ctx context.Context, raw string) (any, error) {
	if obj, ok := extractJSONObject(raw); ok {
		instance, err := p.schema.Instantiate(obj)
		if err == nil {
			return instance, nil
		}
		p.logger.Debugw("Direct coercion rejected by schema", "error", err)
	}

	if p.extractor == nil {
		return nil, errors.Wrapf(errors.ErrStructuredExtraction,
			"response does not match schema %s and no extractor is configured", p.schema.Name)
	}

	extracted, err := p.extractor.Invoke(ctx, p.extractCfg, p.extractionPrompt(raw))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "extraction call failed"), errors.ErrStructuredExtraction)
	}

	obj, ok := extractJSONObject(extracted)
	if !ok {
		return nil, errors.Wrapf(errors.ErrStructuredExtraction,
			"extraction call did not return JSON for schema %s", p.schema.Name)
	}
	instance, err := p.schema.Instantiate(obj)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrStructuredExtraction)
	}
	return instance, nil
}

// extractionPrompt asks the model to restate the text as schema-shaped JSON.
func (p *structuredParser) extractionPrompt(raw string) string {
	var sb strings.Builder
	sb.WriteString("Extract the following fields from the text below and respond with only a JSON object.\n\nFields:\n")
	for _, field := range p.schema.Fields {
		fmt.Fprintf(&sb, "- %s (%s)\n", field.Name, field.Type)
	}
	sb.WriteString("\nText:\n")
	sb.WriteString(raw)
	return sb.String()
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSONObject pulls a JSON object out of model output: the whole text,
// a fenced code block, or the first balanced object literal.
func extractJSONObject(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		return obj, true
	}

	if m := fencedJSONPattern.FindStringSubmatch(trimmed); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
			return obj, true
		}
	}

	// First balanced {...} span
	start := strings.IndexByte(trimmed, '{')
	if start < 0 {
		return nil, false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if err := json.Unmarshal([]byte(trimmed[start:i+1]), &obj); err == nil {
					return obj, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}
