// Package tmpl renders prompt templates against record contexts.
// Templates reference context fields using {{field}} syntax:
//   - {{name}} - top-level field
//   - {{user.name}} - nested field path
//   - {{if .flag}}...{{end}}, {{range .items}}...{{end}} - standard
//     text/template actions for conditionals and loops
//
// An undefined reference is an error, never a silent empty string. Output is
// not escaped. Rendering is pure and safe for concurrent use.
package tmpl

import (
	"regexp"
	"strings"
	"text/template"

	"github.com/loomworks/loom/errors"
)

// Template represents a parsed prompt template
type Template struct {
	raw  string
	tmpl *template.Template
}

// Placeholder patterns
var (
	// Match {{field}} or {{nested.path}} with no surrounding spaces
	placeholderPattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_.]*)\}\}`)
)

// templateKeywords are bare identifiers inside {{...}} that belong to the
// template language, not the record context.
var templateKeywords = map[string]bool{
	"if":       true,
	"else":     true,
	"end":      true,
	"range":    true,
	"with":     true,
	"break":    true,
	"continue": true,
	"template": true,
	"block":    true,
	"define":   true,
	"nil":      true,
	"true":     true,
	"false":    true,
}

// normalize rewrites bare {{field}} placeholders into {{.field}} references
// so analyst-facing templates keep the flat placeholder style.
func normalize(raw string) string {
	return placeholderPattern.ReplaceAllStringFunc(raw, func(match string) string {
		field := match[2 : len(match)-2]
		head := field
		if i := strings.IndexByte(field, '.'); i >= 0 {
			head = field[:i]
		}
		if templateKeywords[head] {
			return match
		}
		return "{{." + field + "}}"
	})
}

// Parse creates a Template from a raw template string
func Parse(raw string) (*Template, error) {
	if raw == "" {
		return nil, errors.Mark(errors.New("empty template"), errors.ErrRender)
	}

	t, err := template.New("prompt").Option("missingkey=error").Parse(normalize(raw))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid template"), errors.ErrRender)
	}

	return &Template{raw: raw, tmpl: t}, nil
}

// Raw returns the original template text
func (t *Template) Raw() string {
	return t.raw
}

// Execute renders the template against a record context. Any reference to a
// field absent from the context fails with a render error.
func (t *Template) Execute(context map[string]any) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, context); err != nil {
		return "", errors.Mark(errors.Wrap(err, "template execution failed"), errors.ErrRender)
	}
	return sb.String(), nil
}

// Render is a convenience for one-shot parse and execute.
func Render(raw string, context map[string]any) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Execute(context)
}

// Placeholders returns the distinct bare placeholder names referenced by the
// template, in first-appearance order. Template-language actions are not
// included.
func Placeholders(raw string) []string {
	seen := map[string]bool{}
	var fields []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(raw, -1) {
		field := match[1]
		head := field
		if i := strings.IndexByte(field, '.'); i >= 0 {
			head = field[:i]
		}
		if templateKeywords[head] || seen[field] {
			continue
		}
		seen[field] = true
		fields = append(fields, field)
	}
	return fields
}
