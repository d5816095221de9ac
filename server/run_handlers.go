package server

import (
	"net/http"

	"github.com/loomworks/loom/batch"
	"github.com/loomworks/loom/run"
)

// handleRun serves POST /api/run: one interactive run against the first
// record of any record-scoped binding. Pipeline failures land in the result
// body, not in the HTTP status.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req run.Request
	if readJSON(w, r, &req) != nil {
		return
	}

	result := s.engine.Run(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// handleBatch serves POST /api/batch: dispatch a batch job and return its id
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req run.Request
	if readJSON(w, r, &req) != nil {
		return
	}

	jobID, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// jobStatusResponse is the wire shape of GET /api/jobs/{id}/status
type jobStatusResponse struct {
	Status   batch.JobStatus `json:"status"`
	Progress int             `json:"progress"`
	Total    int             `json:"total"`
	Error    string          `json:"error,omitempty"`
}

func statusOf(job *batch.Job) jobStatusResponse {
	return jobStatusResponse{
		Status:   job.Status,
		Progress: job.Progress.Current,
		Total:    job.Progress.Total,
		Error:    job.Error,
	}
}

// handleJob serves /api/jobs/{id}/status, /api/jobs/{id}/result, and
// /api/jobs/{id}/cancel
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "unknown job resource")
		return
	}
	id := parts[0]

	switch parts[1] {
	case "status":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		job, err := s.jobs.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusOf(job))

	case "result":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		results, err := s.jobs.Results(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})

	case "cancel":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		if err := s.jobs.Cancel(id); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})

	default:
		writeError(w, http.StatusNotFound, "unknown job resource")
	}
}

type saveRequest struct {
	JobID    string `json:"job_id"`
	Filename string `json:"filename,omitempty"`
	// MergeInto selects merge-back instead of a JSONL artifact: results are
	// written into this dataset under MergeField.
	MergeInto  string `json:"merge_into,omitempty"`
	MergeField string `json:"merge_field,omitempty"`
}

// handleJobSave serves POST /api/jobs/save
func (s *Server) handleJobSave(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req saveRequest
	if readJSON(w, r, &req) != nil {
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	if req.MergeInto != "" {
		if err := s.saver.MergeBack(req.JobID, req.MergeInto, req.MergeField); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Results merged successfully"})
		return
	}

	path, err := s.saver.SaveArtifact(req.JobID, req.Filename)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Results saved successfully",
		"path":    path,
	})
}
