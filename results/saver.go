// Package results persists the output of completed batch jobs: either as a
// standalone JSONL artifact or merged back into the source dataset.
package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/loomworks/loom/batch"
	"github.com/loomworks/loom/dataset"
	"github.com/loomworks/loom/errors"
)

// Saver writes job results to durable storage
type Saver struct {
	dir      string
	jobs     *batch.Store
	datasets *dataset.Store
	logger   *zap.SugaredLogger
}

// NewSaver creates the results directory if needed and returns a saver
func NewSaver(dir string, jobs *batch.Store, datasets *dataset.Store, logger *zap.SugaredLogger) (*Saver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create results directory %s", dir)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Saver{dir: dir, jobs: jobs, datasets: datasets, logger: logger}, nil
}

// SaveArtifact writes a terminal job's results as "<filename>.jsonl" in the
// results directory, one record result per line. An existing file of the
// same name is a conflict.
func (s *Saver) SaveArtifact(jobID, filename string) (string, error) {
	if filename == "" {
		return "", errors.NewInvalidRequestError("filename is required")
	}
	if strings.ContainsAny(filename, `/\`) {
		return "", errors.NewInvalidRequestError("filename cannot contain slashes")
	}

	results, err := s.jobs.Results(jobID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filename+".jsonl")
	if _, err := os.Stat(path); err == nil {
		return "", errors.Wrapf(errors.ErrConflict, "a file named %s.jsonl already exists", filename)
	}

	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	for _, result := range results {
		if err := enc.Encode(result); err != nil {
			return "", errors.Wrap(err, "failed to encode result")
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", errors.Wrap(err, "failed to save results to disk")
	}

	s.logger.Infow("Job results saved", "job_id", jobID, "path", path)
	return path, nil
}

// MergeBack writes each record's parsed response into the source dataset as
// an added field. Records that failed keep their original shape.
func (s *Saver) MergeBack(jobID, sourceID, field string) error {
	if field == "" {
		return errors.NewInvalidRequestError("a field name is required for merge-back")
	}

	results, err := s.jobs.Results(jobID)
	if err != nil {
		return err
	}

	values := make(map[int]any, len(results))
	for _, result := range results {
		if result.Error != "" {
			continue
		}
		values[result.Index] = result.ParsedResponse
	}
	if len(values) == 0 {
		return errors.NewInvalidRequestError("job %s has no successful results to merge", jobID)
	}

	if err := s.datasets.AppendField(sourceID, field, values); err != nil {
		return err
	}

	s.logger.Infow("Job results merged into dataset",
		"job_id", jobID, "dataset", sourceID, "field", field, "records", len(values))
	return nil
}
