package batch

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/loomworks/loom/binding"
	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/run"
)

// Orchestrator dispatches batch jobs and owns their lifecycle
type Orchestrator struct {
	engine   *run.Engine
	records  binding.RecordStore
	jobs     *Store
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger
	doneHook func(jobID string) // test seam, called when a job reaches terminal state
}

// NewOrchestrator builds an orchestrator. recordsPerSecond throttles
// per-record model calls; 0 disables throttling.
func NewOrchestrator(engine *run.Engine, records binding.RecordStore, jobs *Store, recordsPerSecond float64, logger *zap.SugaredLogger) *Orchestrator {
	var limiter *rate.Limiter
	if recordsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(recordsPerSecond), 1)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		engine:  engine,
		records: records,
		jobs:    jobs,
		limiter: limiter,
		logger:  logger,
	}
}

// Submit validates the request shape, registers a running job, and starts
// the background goroutine. It returns the job id immediately; the job's
// context is detached from the request context on purpose, since the job
// outlives the HTTP request that started it.
func (o *Orchestrator) Submit(_ context.Context, req run.Request) (string, error) {
	if req.TemplateID == "" {
		return "", errors.NewInvalidRequestError("batch runs require a template_id")
	}

	job := NewJob()
	jobCtx, cancel := context.WithCancel(context.Background())
	o.jobs.Create(job, cancel)

	o.logger.Infow("Batch job submitted", "job_id", job.ID, "template_id", req.TemplateID)
	go o.process(jobCtx, job.ID, req)

	return job.ID, nil
}

// process runs the whole job. Pre-flight failures fail the job before any
// record; per-record failures are recorded at their index and the loop
// continues. Records are processed sequentially so provider rate limits see
// at most one in-flight call per job.
func (o *Orchestrator) process(ctx context.Context, jobID string, req run.Request) {
	defer func() {
		if o.doneHook != nil {
			o.doneHook(jobID)
		}
	}()

	fail := func(err error) {
		o.logger.Warnw("Batch job failed", "job_id", jobID, "error", err)
		o.jobs.Update(jobID, func(j *Job) { j.Fail(err) })
	}

	recordBinding := binding.RecordScoped(req.Bindings)
	if recordBinding == nil {
		fail(errors.NewInvalidRequestError("batch runs require at least one record-scoped binding"))
		return
	}

	records, err := o.records.Records(recordBinding.SourceID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			err = errors.Wrapf(errors.ErrSourceNotFound, "dataset %s", recordBinding.SourceID)
		}
		fail(err)
		return
	}

	if err := o.engine.Preflight(ctx, req); err != nil {
		fail(err)
		return
	}

	total := len(records)
	o.jobs.Update(jobID, func(j *Job) { j.SetTotal(total) })

	for i, record := range records {
		if ctx.Err() != nil {
			o.jobs.Update(jobID, func(j *Job) { j.Cancel("job cancelled") })
			return
		}

		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				o.jobs.Update(jobID, func(j *Job) { j.Cancel("job cancelled") })
				return
			}
		}

		recordResult := RecordResult{Index: i, InputRecord: record}
		result, err := o.engine.Execute(ctx, req, record)
		if err != nil {
			recordResult.Error = err.Error()
			o.logger.Debugw("Batch record failed",
				"job_id", jobID, "record", i, "error", err)
		} else {
			recordResult.RawResponse = result.RawResponse
			recordResult.ParsedResponse = result.ParsedResponse
		}

		o.jobs.Update(jobID, func(j *Job) {
			j.AppendResult(recordResult)
			j.UpdateProgress(i + 1)
		})
	}

	o.jobs.Update(jobID, func(j *Job) { j.Complete() })
	o.logger.Infow("Batch job completed", "job_id", jobID, "records", total)
}
