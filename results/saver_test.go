package results

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/batch"
	"github.com/loomworks/loom/dataset"
	"github.com/loomworks/loom/errors"
)

func completedJob(t *testing.T, jobs *batch.Store, results ...batch.RecordResult) string {
	t.Helper()
	job := batch.NewJob()
	jobs.Create(job, func() {})
	jobs.Update(job.ID, func(j *batch.Job) {
		for _, r := range results {
			j.AppendResult(r)
		}
		j.Complete()
	})
	return job.ID
}

func TestSaver_SaveArtifact(t *testing.T) {
	jobs := batch.NewStore()
	saver, err := NewSaver(t.TempDir(), jobs, nil, nil)
	require.NoError(t, err)

	jobID := completedJob(t, jobs,
		batch.RecordResult{Index: 0, InputRecord: map[string]any{"q": "a"}, RawResponse: "one"},
		batch.RecordResult{Index: 1, InputRecord: map[string]any{"q": "b"}, Error: "boom"},
	)

	path, err := saver.SaveArtifact(jobID, "myrun")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []batch.RecordResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r batch.RecordResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		lines = append(lines, r)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "one", lines[0].RawResponse)
	assert.Equal(t, "boom", lines[1].Error)

	t.Run("existing file is a conflict", func(t *testing.T) {
		_, err := saver.SaveArtifact(jobID, "myrun")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))
	})
}

func TestSaver_SaveArtifact_Validation(t *testing.T) {
	jobs := batch.NewStore()
	saver, err := NewSaver(t.TempDir(), jobs, nil, nil)
	require.NoError(t, err)

	jobID := completedJob(t, jobs, batch.RecordResult{Index: 0})

	_, err = saver.SaveArtifact(jobID, "")
	assert.Error(t, err)

	_, err = saver.SaveArtifact(jobID, "../escape")
	assert.Error(t, err)

	_, err = saver.SaveArtifact("missing-job", "x")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestSaver_SaveArtifact_RunningJobRejected(t *testing.T) {
	jobs := batch.NewStore()
	saver, err := NewSaver(t.TempDir(), jobs, nil, nil)
	require.NoError(t, err)

	job := batch.NewJob()
	jobs.Create(job, func() {})

	_, err = saver.SaveArtifact(job.ID, "early")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSaver_MergeBack(t *testing.T) {
	jobs := batch.NewStore()
	datasets, err := dataset.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	saver, err := NewSaver(t.TempDir(), jobs, datasets, nil)
	require.NoError(t, err)

	meta, err := datasets.Create("qa.jsonl", []byte("{\"q\":\"first\"}\n{\"q\":\"second\"}\n"))
	require.NoError(t, err)

	jobID := completedJob(t, jobs,
		batch.RecordResult{Index: 0, ParsedResponse: "answer one"},
		batch.RecordResult{Index: 1, Error: "failed"},
	)

	require.NoError(t, saver.MergeBack(jobID, meta.ID, "answer"))

	records, err := datasets.Records(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "answer one", records[0].(map[string]any)["answer"])
	_, merged := records[1].(map[string]any)["answer"]
	assert.False(t, merged, "failed record should keep its original shape")
}

func TestSaver_MergeBack_NoSuccessfulResults(t *testing.T) {
	jobs := batch.NewStore()
	datasets, err := dataset.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	saver, err := NewSaver(t.TempDir(), jobs, datasets, nil)
	require.NoError(t, err)

	meta, err := datasets.Create("qa.jsonl", []byte("{\"q\":\"x\"}\n"))
	require.NoError(t, err)

	jobID := completedJob(t, jobs, batch.RecordResult{Index: 0, Error: "all failed"})

	err = saver.MergeBack(jobID, meta.ID, "answer")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
