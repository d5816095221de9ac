package parse

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/pyexec"
)

// resultVar holds the parse() return value in the sidecar scope
const resultVar = "_loom_result"

// pythonParser runs user code defining parse(text) in a fresh sidecar scope
// per call. Every failure mode, including syntax errors and a missing parse
// function, comes back as a custom-parser error.
type pythonParser struct {
	code   string
	runner pyexec.Runner
	logger *zap.SugaredLogger
}

func (p *pythonParser) Parse(ctx context.Context, raw string) (any, error) {
	wrapped, err := wrapParserCode(p.code, raw)
	if err != nil {
		return nil, errors.Mark(err, errors.ErrCustomParser)
	}

	resp, err := p.runner.Execute(ctx, pyexec.ExecuteRequest{
		Code:             wrapped,
		CaptureVariables: true,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "python execution failed"), errors.ErrCustomParser)
	}
	if !resp.Success {
		p.logger.Debugw("Custom parser failed", "error", resp.Error, "stderr", resp.Stderr)
		return nil, errors.Wrapf(errors.ErrCustomParser, "%s", resp.Error)
	}

	if resp.Vars != nil {
		if value, ok := resp.Vars[resultVar]; ok {
			return value, nil
		}
	}
	return resp.Result, nil
}

// wrapParserCode appends a call to the user's parse function, feeding it the
// raw response text as a literal. JSON string encoding doubles as Python
// string literal syntax.
func wrapParserCode(code, raw string) (string, error) {
	literal, err := json.Marshal(raw)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode parser input")
	}

	wrapped := code + "\n\n"
	wrapped += "if not callable(globals().get('parse', None)) and not callable(locals().get('parse', None)):\n"
	wrapped += "    raise ValueError(\"a 'parse' function was not found in the provided code\")\n"
	wrapped += resultVar + " = parse(" + string(literal) + ")\n"
	return wrapped, nil
}
