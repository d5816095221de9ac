// Package store persists templates in SQLite. Saving content never
// overwrites: every save creates a new version, and reads return the latest
// one unless a version is asked for explicitly.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/tmpl"
)

// Template is a stored template at a specific version
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version is one historical revision of a template
type Version struct {
	Version   int       `json:"version"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store handles template persistence
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

const schema = `
CREATE TABLE IF NOT EXISTS templates (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS template_versions (
	template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
	version     INTEGER NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	PRIMARY KEY (template_id, version)
);
`

// NewStore initializes the template tables and returns a store
func NewStore(db *sql.DB, logger *zap.SugaredLogger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to initialize template schema")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger}, nil
}

// validateContent rejects templates whose body would never render: the
// frontmatter must parse and the body must be valid template syntax.
func validateContent(content string) error {
	doc, err := tmpl.ParseFrontmatter(content)
	if err != nil {
		return err
	}
	if _, err := tmpl.Parse(doc.Body); err != nil {
		return err
	}
	return nil
}

// Create stores a new template as version 1. A duplicate name is a conflict.
func (s *Store) Create(ctx context.Context, name, content string) (*Template, error) {
	if name == "" {
		return nil, errors.NewInvalidRequestError("template name is required")
	}
	if err := validateContent(content); err != nil {
		return nil, errors.Wrap(err, "invalid template")
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM templates WHERE name = ?)", name).Scan(&exists); err != nil {
		return nil, errors.Wrap(err, "failed to check template name")
	}
	if exists {
		return nil, errors.Wrapf(errors.ErrConflict, "a template with name %q already exists", name)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO templates (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		id, name, now, now); err != nil {
		return nil, errors.Wrap(err, "failed to insert template")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO template_versions (template_id, version, content, created_at) VALUES (?, 1, ?, ?)",
		id, content, now); err != nil {
		return nil, errors.Wrap(err, "failed to insert template version")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit template")
	}

	s.logger.Infow("Template created", "id", id, "name", name)
	return &Template{ID: id, Name: name, Content: content, Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

// Get returns the latest version of a template
func (s *Store) Get(ctx context.Context, id string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, v.content, v.version, t.created_at, t.updated_at
		FROM templates t
		JOIN template_versions v ON v.template_id = t.id
		WHERE t.id = ?
		ORDER BY v.version DESC
		LIMIT 1`, id)
	return scanTemplate(row, id)
}

// GetByName returns the latest version of the template with the given name
func (s *Store) GetByName(ctx context.Context, name string) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, v.content, v.version, t.created_at, t.updated_at
		FROM templates t
		JOIN template_versions v ON v.template_id = t.id
		WHERE t.name = ?
		ORDER BY v.version DESC
		LIMIT 1`, name)
	return scanTemplate(row, name)
}

func scanTemplate(row *sql.Row, key string) (*Template, error) {
	var t Template
	err := row.Scan(&t.ID, &t.Name, &t.Content, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("template %s not found", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load template")
	}
	return &t, nil
}

// List returns the latest version of every template, ordered by name
func (s *Store) List(ctx context.Context) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, v.content, v.version, t.created_at, t.updated_at
		FROM templates t
		JOIN template_versions v ON v.template_id = t.id
		WHERE v.version = (SELECT MAX(version) FROM template_versions WHERE template_id = t.id)
		ORDER BY t.name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list templates")
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var t Template
		if err := rows.Scan(&t.ID, &t.Name, &t.Content, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan template")
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// Update renames a template and/or saves new content as a fresh version.
// Nil fields are left unchanged.
func (s *Store) Update(ctx context.Context, id string, name, content *string) (*Template, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if name != nil && *name != current.Name {
		if *name == "" {
			return nil, errors.NewInvalidRequestError("template name cannot be empty")
		}
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM templates WHERE name = ? AND id != ?)", *name, id).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "failed to check template name")
		}
		if exists {
			return nil, errors.Wrapf(errors.ErrConflict, "a template with name %q already exists", *name)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE templates SET name = ?, updated_at = ? WHERE id = ?", *name, now, id); err != nil {
			return nil, errors.Wrap(err, "failed to rename template")
		}
		current.Name = *name
	}

	if content != nil && *content != current.Content {
		if err := validateContent(*content); err != nil {
			return nil, errors.Wrap(err, "invalid template")
		}
		version := current.Version + 1
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO template_versions (template_id, version, content, created_at) VALUES (?, ?, ?, ?)",
			id, version, *content, now); err != nil {
			return nil, errors.Wrap(err, "failed to insert template version")
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE templates SET updated_at = ? WHERE id = ?", now, id); err != nil {
			return nil, errors.Wrap(err, "failed to touch template")
		}
		current.Content = *content
		current.Version = version
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit template update")
	}

	current.UpdatedAt = now
	s.logger.Infow("Template updated", "id", id, "version", current.Version)
	return current, nil
}

// Versions returns the full revision history, newest first
func (s *Store) Versions(ctx context.Context, id string) ([]Version, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT version, content, created_at
		FROM template_versions
		WHERE template_id = ?
		ORDER BY version DESC`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list template versions")
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.Version, &v.Content, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan template version")
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Delete removes a template and its history. Deleting a missing template is
// a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM template_versions WHERE template_id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete template versions")
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id); err != nil {
		return errors.Wrap(err, "failed to delete template")
	}
	s.logger.Infow("Template deleted", "id", id)
	return nil
}
