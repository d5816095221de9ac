package server

import (
	"net/http"
)

type templateRequest struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

// handleTemplates serves /api/templates: list (GET) and create (POST)
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	if !requireMethods(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	switch r.Method {
	case http.MethodGet:
		templates, err := s.templates.List(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templates)

	case http.MethodPost:
		var req templateRequest
		if readJSON(w, r, &req) != nil {
			return
		}
		if req.Name == nil || req.Content == nil {
			writeError(w, http.StatusBadRequest, "name and content are required")
			return
		}
		created, err := s.templates.Create(r.Context(), *req.Name, *req.Content)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// handleTemplate serves /api/templates/{id} and /api/templates/{id}/versions
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/templates/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "template id is required")
		return
	}
	id := parts[0]

	if len(parts) == 2 && parts[1] == "versions" {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		versions, err := s.templates.Versions(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, versions)
		return
	}

	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "unknown template resource")
		return
	}

	switch r.Method {
	case http.MethodGet:
		template, err := s.templates.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, template)

	case http.MethodPut:
		var req templateRequest
		if readJSON(w, r, &req) != nil {
			return
		}
		updated, err := s.templates.Update(r.Context(), id, req.Name, req.Content)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.templates.Delete(r.Context(), id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
