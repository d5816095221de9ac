package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// jobPollInterval is how often the socket samples job state
const jobPollInterval = 250 * time.Millisecond

// handleJobSocket serves GET /ws/jobs/{id}: it pushes status snapshots until
// the job reaches a terminal state, then closes.
func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/ws/jobs/")
	if len(parts) != 1 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "unknown job")
		return
	}
	id := parts[0]

	if _, err := s.jobs.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		CheckOrigin:     func(r *http.Request) bool { return s.originAllowed(r.Header.Get("Origin")) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()

	var last jobStatusResponse
	first := true
	for {
		job, err := s.jobs.Get(id)
		if err != nil {
			return
		}
		status := statusOf(job)

		if first || status != last {
			if err := conn.WriteJSON(status); err != nil {
				return
			}
			last = status
			first = false
		}

		if job.Status.IsTerminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status)))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
