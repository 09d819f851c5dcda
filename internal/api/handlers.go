package api

import (
	"net/http"
	"strconv"

	"github.com/lyftr/webhookd/internal/messages"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

// handleMessages handles GET /messages: validates pagination, delegates to
// the repository, and returns the page plus the filter-wide total.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			s.writeError(w, http.StatusUnprocessableEntity, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	offset := 0
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusUnprocessableEntity, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	filter := messages.ListFilter{
		Limit:  limit,
		Offset: offset,
		From:   q.Get("from"),
		Since:  q.Get("since"),
		Q:      q.Get("q"),
	}

	msgs, total, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list messages", "request_id", requestID(r.Context()), "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	respondJSON(w, http.StatusOK, MessagesResponse{
		Data:   msgs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// handleStats handles GET /stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute stats", "request_id", requestID(r.Context()), "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleHealthLive handles GET /health/live. Always succeeds while the
// process is running.
func (s *Server) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, AckResponse{Status: "ok"})
}

// handleHealthReady handles GET /health/ready. Ready means the store answers
// a round-trip query and a signing secret is configured.
func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ping(r.Context()) {
		s.writeError(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	if s.config.WebhookSecret == "" {
		s.writeError(w, http.StatusServiceUnavailable, "webhook secret not configured")
		return
	}
	respondJSON(w, http.StatusOK, AckResponse{Status: "ok"})
}

const landingPage = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Webhook Service</title>
  </head>
  <body>
    <h1>Webhook Service</h1>
    <p>Backend service is running.</p>
    <p>Probes: <a href="/health/live">/health/live</a>, <a href="/health/ready">/health/ready</a>.</p>
  </body>
</html>
`

// handleRoot handles GET / with a small landing page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(landingPage))
}
