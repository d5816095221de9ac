package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/errors"
)

func TestStore_GetReturnsSnapshot(t *testing.T) {
	store := NewStore()
	job := NewJob()
	store.Create(job, func() {})

	store.Update(job.ID, func(j *Job) {
		j.SetTotal(2)
		j.AppendResult(RecordResult{Index: 0, RawResponse: "one"})
		j.UpdateProgress(1)
	})

	snap, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Progress.Current)
	require.Len(t, snap.Results, 1)

	// Mutating the snapshot must not leak into the store
	snap.Results[0].RawResponse = "tampered"
	snap.Progress.Current = 99

	again, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "one", again.Results[0].RawResponse)
	assert.Equal(t, 1, again.Progress.Current)
}

func TestStore_GetNotFound(t *testing.T) {
	store := NewStore()
	_, err := store.Get("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStore_ResultsOnlyWhenTerminal(t *testing.T) {
	store := NewStore()
	job := NewJob()
	store.Create(job, func() {})

	_, err := store.Results(job.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	store.Update(job.ID, func(j *Job) {
		j.AppendResult(RecordResult{Index: 0})
		j.Complete()
	})

	results, err := store.Results(job.ID)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestStore_Cancel(t *testing.T) {
	store := NewStore()
	job := NewJob()
	ctx, cancel := context.WithCancel(context.Background())
	store.Create(job, cancel)

	require.NoError(t, store.Cancel(job.ID))
	assert.Error(t, ctx.Err())

	// Unknown job
	assert.Error(t, store.Cancel("missing"))

	// Terminal job: no-op
	store.Update(job.ID, func(j *Job) { j.Complete() })
	assert.NoError(t, store.Cancel(job.ID))
}

func TestProgress_Percentage(t *testing.T) {
	assert.Equal(t, 0.0, Progress{}.Percentage())
	assert.Equal(t, 50.0, Progress{Current: 1, Total: 2}.Percentage())
	assert.Equal(t, 100.0, Progress{Current: 4, Total: 4}.Percentage())
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob()
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.False(t, job.Status.IsTerminal())
	assert.NotNil(t, job.StartedAt)

	job.Fail(errors.New("boom"))
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.Status.IsTerminal())
	assert.Equal(t, "boom", job.Error)
	assert.NotNil(t, job.CompletedAt)
}
