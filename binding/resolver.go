// Package binding resolves data-source bindings into the context map a
// template is rendered against.
package binding

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomworks/loom/errors"
)

// Scope determines how a binding selects its record
type Scope string

const (
	// ScopeRecord binds the current record of a batch iteration
	ScopeRecord Scope = "record"
	// ScopeGlobal binds a fixed row of the source for every render
	ScopeGlobal Scope = "global"
)

// Binding declares how one data source contributes to the render context
type Binding struct {
	SourceID   string `json:"source_id"`
	ContextKey string `json:"context_key"`
	Scope      Scope  `json:"scope"`
	// Row selects the record for global bindings. Nil means row 0.
	Row *int `json:"row,omitempty"`
}

// RecordStore is the resolver's view of the dataset layer
type RecordStore interface {
	Records(id string) ([]any, error)
}

// Resolver builds render contexts from binding declarations
type Resolver struct {
	store  RecordStore
	logger *zap.SugaredLogger
}

// NewResolver creates a resolver backed by the given record store
func NewResolver(store RecordStore, logger *zap.SugaredLogger) *Resolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve evaluates bindings in declaration order and merges their values
// into a single context map. current is the record of the ongoing batch
// iteration; nil means a single interactive run, in which case record-scoped
// bindings fall back to row 0 of their source.
//
// An empty context key merges an object record's fields at the top level,
// later bindings overwriting earlier ones. A non-empty key nests the value.
func (r *Resolver) Resolve(ctx context.Context, bindings []Binding, current any) (map[string]any, error) {
	result := map[string]any{}

	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		records, err := r.store.Records(b.SourceID)
		if err != nil {
			if errors.IsNotFoundError(err) {
				return nil, errors.Wrapf(errors.ErrSourceNotFound, "dataset %s", b.SourceID)
			}
			return nil, err
		}

		var value any
		switch b.Scope {
		case ScopeRecord:
			if current != nil {
				value = current
			} else {
				// Interactive single run: use the first record
				if len(records) == 0 {
					return nil, errors.Wrapf(errors.ErrRecordUnavailable,
						"dataset %s is empty", b.SourceID)
				}
				value = records[0]
			}

		case ScopeGlobal:
			row := 0
			if b.Row != nil {
				row = *b.Row
			}
			if row < 0 || row >= len(records) {
				return nil, errors.Wrapf(errors.ErrRowOutOfRange,
					"row %d out of range for dataset %s (size %d)", row, b.SourceID, len(records))
			}
			value = records[row]

		default:
			return nil, errors.NewInvalidRequestError("unknown binding scope %q", b.Scope)
		}

		if b.ContextKey == "" {
			obj, ok := value.(map[string]any)
			if !ok {
				return nil, errors.NewInvalidRequestError(
					"binding for dataset %s needs a context_key: record is not an object", b.SourceID)
			}
			for k, v := range obj {
				result[k] = v
			}
		} else {
			result[b.ContextKey] = value
		}
	}

	return result, nil
}

// RecordScoped returns the first record-scoped binding, or nil when every
// binding is global.
func RecordScoped(bindings []Binding) *Binding {
	for i := range bindings {
		if bindings[i].Scope == ScopeRecord {
			return &bindings[i]
		}
	}
	return nil
}
