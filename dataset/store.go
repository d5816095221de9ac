// Package dataset implements the filesystem-backed record store. Datasets
// are single files named "<id>__<name>.<ext>" under a configured directory,
// where ext is json, jsonl, or txt.
package dataset

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomworks/loom/errors"
)

// Meta describes a dataset without its records
type Meta struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FileFormat string `json:"file_format"`
	NumRecords *int   `json:"num_records,omitempty"`
}

// allowed upload extensions
var allowedExtensions = map[string]bool{
	".json":  true,
	".jsonl": true,
	".txt":   true,
}

// Store reads and writes dataset files under a single directory
type Store struct {
	dir    string
	logger *zap.SugaredLogger
}

// NewStore creates the dataset directory if needed and returns a store
func NewStore(dir string, logger *zap.SugaredLogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create dataset directory %s", dir)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{dir: dir, logger: logger}, nil
}

// List returns metadata for every dataset file, sorted by filename.
// Files that don't match the "<id>__<name>.<ext>" convention are skipped.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset directory")
	}

	var datasets []Meta
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		meta, ok := parseFilename(entry.Name())
		if !ok {
			s.logger.Debugw("Skipping non-dataset file", "file", entry.Name())
			continue
		}
		datasets = append(datasets, meta)
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Name < datasets[j].Name })
	return datasets, nil
}

// Create stores uploaded content as a new dataset. The dataset name comes
// from the upload filename; a duplicate name is a conflict.
func (s *Store) Create(filename string, content []byte) (*Meta, error) {
	if filename == "" {
		return nil, errors.NewInvalidRequestError("no file name provided")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, errors.NewInvalidRequestError("only .json, .jsonl and .txt files are allowed")
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if strings.Contains(name, "/") || strings.Contains(name, "\\") || strings.Contains(name, "__") {
		return nil, errors.NewInvalidRequestError("invalid dataset name %q", name)
	}

	existing, err := s.List()
	if err != nil {
		return nil, err
	}
	for _, meta := range existing {
		if meta.Name == name {
			return nil, errors.Wrapf(errors.ErrConflict, "a dataset with name %q already exists", name)
		}
	}

	id := uuid.New().String()
	path := filepath.Join(s.dir, id+"__"+name+ext)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, errors.Wrap(err, "failed to write dataset to disk")
	}

	s.logger.Infow("Dataset created", "id", id, "name", name, "format", strings.TrimPrefix(ext, "."))
	return &Meta{ID: id, Name: name, FileFormat: strings.TrimPrefix(ext, ".")}, nil
}

// Get returns metadata for one dataset including its record count.
func (s *Store) Get(id string) (*Meta, error) {
	path, meta, err := s.find(id)
	if err != nil {
		return nil, err
	}
	records, err := loadRecords(path)
	if err != nil {
		return nil, err
	}
	n := len(records)
	meta.NumRecords = &n
	return meta, nil
}

// Records loads every record of a dataset.
// json array: one record per element; json object: a single record;
// jsonl: one record per line; txt: the whole file as one string record.
func (s *Store) Records(id string) ([]any, error) {
	path, _, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return loadRecords(path)
}

// Count returns the number of records in a dataset
func (s *Store) Count(id string) (int, error) {
	records, err := s.Records(id)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Record returns the record at index.
func (s *Store) Record(id string, index int) (any, error) {
	records, err := s.Records(id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(records) {
		return nil, errors.Wrapf(errors.ErrRowOutOfRange,
			"record index %d out of range for dataset %s (size %d)", index, id, len(records))
	}
	return records[index], nil
}

// Delete removes a dataset file. Deleting a missing dataset is a no-op.
func (s *Store) Delete(id string) error {
	path, _, err := s.find(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrap(err, "failed to delete dataset file")
	}
	s.logger.Infow("Dataset deleted", "id", id)
	return nil
}

// Path returns the on-disk path of a dataset file
func (s *Store) Path(id string) (string, error) {
	path, _, err := s.find(id)
	return path, err
}

// AppendField rewrites the dataset with an extra field added to each record.
// values are keyed by record index; records without a value keep their
// original shape. Only JSON and JSONL datasets support merge-back.
func (s *Store) AppendField(id string, field string, values map[int]any) error {
	path, meta, err := s.find(id)
	if err != nil {
		return err
	}
	if meta.FileFormat != "json" && meta.FileFormat != "jsonl" {
		return errors.NewInvalidRequestError("cannot merge results into a %s dataset", meta.FileFormat)
	}

	records, err := loadRecords(path)
	if err != nil {
		return err
	}

	for i, record := range records {
		value, ok := values[i]
		if !ok {
			continue
		}
		obj, ok := record.(map[string]any)
		if !ok {
			return errors.NewInvalidRequestError("record %d is not an object, cannot merge field %q", i, field)
		}
		obj[field] = value
	}

	var buf strings.Builder
	if meta.FileFormat == "jsonl" {
		enc := json.NewEncoder(&buf)
		for _, record := range records {
			if err := enc.Encode(record); err != nil {
				return errors.Wrap(err, "failed to encode record")
			}
		}
	} else {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode records")
		}
		buf.Write(data)
	}

	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return errors.Wrap(err, "failed to rewrite dataset file")
	}
	s.logger.Infow("Dataset updated with merged field", "id", id, "field", field)
	return nil
}

// find locates a dataset file by id prefix
func (s *Store) find(id string) (string, *Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", nil, errors.Wrap(err, "failed to read dataset directory")
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), id+"__") {
			continue
		}
		meta, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}
		return filepath.Join(s.dir, entry.Name()), &meta, nil
	}
	return "", nil, errors.NewNotFoundError("dataset %s not found", id)
}

func parseFilename(name string) (Meta, bool) {
	ext := filepath.Ext(name)
	if !allowedExtensions[strings.ToLower(ext)] {
		return Meta{}, false
	}
	stem := strings.TrimSuffix(name, ext)
	parts := strings.SplitN(stem, "__", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Meta{}, false
	}
	return Meta{ID: parts[0], Name: parts[1], FileFormat: strings.TrimPrefix(strings.ToLower(ext), ".")}, true
}

func loadRecords(path string) ([]any, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl":
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open dataset file")
		}
		defer f.Close()

		var records []any
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var record any
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				return nil, errors.Wrapf(err, "failed to parse dataset line %d", len(records)+1)
			}
			records = append(records, record)
		}
		if err := scanner.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read dataset file")
		}
		return records, nil

	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read dataset file")
		}
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, errors.Wrap(err, "failed to parse dataset file")
		}
		if list, ok := parsed.([]any); ok {
			return list, nil
		}
		// Single JSON object is a one-record dataset
		return []any{parsed}, nil

	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read dataset file")
		}
		return []any{string(data)}, nil

	default:
		return nil, errors.NewInvalidRequestError("unsupported dataset format %s", filepath.Ext(path))
	}
}
