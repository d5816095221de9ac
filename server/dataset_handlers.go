package server

import (
	"io"
	"net/http"
	"strconv"
)

// maxUploadBytes bounds dataset uploads to 32 MiB
const maxUploadBytes = 32 << 20

// handleDatasets serves /api/datasets: list (GET) and upload (POST)
func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		datasets, err := s.datasets.List()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, datasets)

	case http.MethodPost:
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "expected a multipart file upload")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "a 'file' form field is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read upload")
			return
		}

		meta, err := s.datasets.Create(header.Filename, content)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, meta)
	}
}

// handleDataset serves /api/datasets/{id} and /api/datasets/{id}/records/{index}
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/datasets/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "dataset id is required")
		return
	}
	id := parts[0]

	if len(parts) == 3 && parts[1] == "records" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "record index must be an integer")
			return
		}
		record, err := s.datasets.Record(id, index)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "unknown dataset resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		meta, err := s.datasets.Get(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)

	case http.MethodDelete:
		if err := s.datasets.Delete(id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
