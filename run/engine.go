// Package run executes one template against one record: resolve bindings,
// render the prompt, invoke the model, parse the response. The batch
// orchestrator drives the same engine once per record.
package run

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomworks/loom/ai"
	"github.com/loomworks/loom/binding"
	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/parse"
	"github.com/loomworks/loom/store"
	"github.com/loomworks/loom/tmpl"
)

// Request describes a single run or the per-record shape of a batch run
type Request struct {
	// TemplateID selects a stored template; TemplateText supplies inline
	// template content. TemplateID wins when both are set.
	TemplateID   string `json:"template_id,omitempty"`
	TemplateText string `json:"template_text,omitempty"`

	Bindings []binding.Binding `json:"datasource_bindings"`
	LLM      ai.LLMConfig      `json:"llm"`
	Parser   parse.Spec        `json:"parser"`
}

// Result is the outcome of one run
type Result struct {
	RawResponse    string `json:"raw_response"`
	ParsedResponse any    `json:"parsed_response,omitempty"`
	Error          string `json:"error,omitempty"`
}

// TemplateStore is the engine's view of template persistence
type TemplateStore interface {
	Get(ctx context.Context, id string) (*store.Template, error)
}

// Engine wires the stages of a run together
type Engine struct {
	templates  TemplateStore
	resolver   *binding.Resolver
	invoker    ai.Invoker
	parserDeps parse.Deps
	logger     *zap.SugaredLogger
}

// NewEngine builds a run engine
func NewEngine(templates TemplateStore, resolver *binding.Resolver, invoker ai.Invoker, parserDeps parse.Deps, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if parserDeps.Extractor == nil {
		parserDeps.Extractor = invoker
	}
	return &Engine{
		templates:  templates,
		resolver:   resolver,
		invoker:    invoker,
		parserDeps: parserDeps,
		logger:     logger,
	}
}

// Run executes a single interactive run. Failures are reported in the
// result, matching the HTTP contract, never as a transport error.
func (e *Engine) Run(ctx context.Context, req Request) *Result {
	result, err := e.Execute(ctx, req, nil)
	if err != nil {
		return &Result{Error: err.Error()}
	}
	return result
}

// Preflight checks everything that can fail independently of a record: the
// parser spec (including schema compilation) and template resolution. Batch
// jobs run it once before iterating so a doomed job fails fast instead of
// failing every record.
func (e *Engine) Preflight(ctx context.Context, req Request) error {
	if _, err := parse.New(req.Parser, e.parserDeps); err != nil {
		return err
	}
	if _, err := e.resolveTemplate(ctx, req); err != nil {
		return err
	}
	return nil
}

// Execute runs the full pipeline for one record. current is the record of a
// batch iteration; nil means an interactive run.
func (e *Engine) Execute(ctx context.Context, req Request, current any) (*Result, error) {
	// Parser spec validation and schema compilation happen before anything
	// else so a bad spec never costs a model call
	parser, err := parse.New(req.Parser, e.parserDeps)
	if err != nil {
		return nil, err
	}

	doc, err := e.resolveTemplate(ctx, req)
	if err != nil {
		return nil, err
	}

	llmCfg := mergeLLMConfig(req.LLM, doc)

	promptContext, err := e.resolver.Resolve(ctx, req.Bindings, current)
	if err != nil {
		return nil, err
	}

	prompt, err := tmpl.Render(doc.Body, promptContext)
	if err != nil {
		return nil, err
	}

	raw, err := e.invoker.Invoke(ctx, llmCfg, prompt)
	if err != nil {
		return nil, err
	}

	parsed, err := parser.Parse(ctx, raw)
	if err != nil {
		return nil, err
	}

	return &Result{RawResponse: raw, ParsedResponse: parsed}, nil
}

// resolveTemplate loads the template content and splits off frontmatter
func (e *Engine) resolveTemplate(ctx context.Context, req Request) (*tmpl.Document, error) {
	content := req.TemplateText
	if req.TemplateID != "" {
		stored, err := e.templates.Get(ctx, req.TemplateID)
		if err != nil {
			return nil, err
		}
		content = stored.Content
	}
	if content == "" {
		return nil, errors.NewInvalidRequestError("a template_id or template_text is required")
	}
	return tmpl.ParseFrontmatter(content)
}

// mergeLLMConfig applies the priority chain: request config wins over
// template frontmatter; unset fields fall through to provider defaults.
func mergeLLMConfig(reqCfg ai.LLMConfig, doc *tmpl.Document) ai.LLMConfig {
	merged := reqCfg
	if merged.Model == "" {
		merged.Model = doc.Metadata.Model
	}
	if merged.Temperature == nil {
		merged.Temperature = doc.Metadata.Temperature
	}
	if merged.MaxTokens == nil {
		merged.MaxTokens = doc.Metadata.MaxTokens
	}
	return merged
}
