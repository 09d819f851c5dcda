package api

import (
	"io"
	"net/http"

	"github.com/lyftr/webhookd/internal/messages"
)

// signatureHeader carries the HMAC-SHA256 hex signature of the raw body.
const signatureHeader = "X-Signature"

// Webhook outcome classifications. Each request increments exactly one
// webhook_requests_total counter with one of these values.
const (
	resultCreated          = "created"
	resultDuplicate        = "duplicate"
	resultInvalidSignature = "invalid_signature"
	resultValidationError  = "validation_error"
)

// handleWebhook handles POST /webhook: signature verification, payload
// validation, idempotent insert. Created and duplicate both acknowledge with
// the same success body; the upstream sender delivers at-least-once and must
// never see a duplicate surfaced as an error.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}

	signature := r.Header.Get(signatureHeader)
	if !verifySignature(s.config.WebhookSecret, body, signature) {
		s.metrics.RecordWebhookResult(resultInvalidSignature)
		s.logger.Warn("webhook rejected",
			"request_id", requestID(ctx),
			"result", resultInvalidSignature,
		)
		s.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	in, err := messages.Parse(body)
	if err != nil {
		s.metrics.RecordWebhookResult(resultValidationError)
		s.logger.Warn("webhook rejected",
			"request_id", requestID(ctx),
			"result", resultValidationError,
			"reason", err.Error(),
		)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	inserted, err := s.store.Insert(ctx, in.Message())
	if err != nil {
		s.logger.Error("failed to store message",
			"request_id", requestID(ctx),
			"message_id", in.MessageID,
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	result := resultCreated
	if !inserted {
		result = resultDuplicate
	}
	s.metrics.RecordWebhookResult(result)
	s.logger.Info("webhook ingested",
		"request_id", requestID(ctx),
		"message_id", in.MessageID,
		"dup", !inserted,
		"result", result,
	)

	respondJSON(w, http.StatusOK, AckResponse{Status: "ok"})
}
