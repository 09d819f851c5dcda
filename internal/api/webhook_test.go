package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/lyftr/webhookd/internal/messages"
	"github.com/lyftr/webhookd/internal/metrics"
)

// fakeStore is a hand-rolled MessageStore for handler tests.
type fakeStore struct {
	insertFn func(ctx context.Context, m messages.Message) (bool, error)
	listFn   func(ctx context.Context, f messages.ListFilter) ([]messages.Message, int, error)
	statsFn  func(ctx context.Context) (messages.Stats, error)
	pingFn   func(ctx context.Context) bool
}

func (s *fakeStore) Insert(ctx context.Context, m messages.Message) (bool, error) {
	if s.insertFn != nil {
		return s.insertFn(ctx, m)
	}
	return true, nil
}

func (s *fakeStore) List(ctx context.Context, f messages.ListFilter) ([]messages.Message, int, error) {
	if s.listFn != nil {
		return s.listFn(ctx, f)
	}
	return []messages.Message{}, 0, nil
}

func (s *fakeStore) Stats(ctx context.Context) (messages.Stats, error) {
	if s.statsFn != nil {
		return s.statsFn(ctx)
	}
	return messages.Stats{MessagesPerSender: []messages.SenderCount{}}, nil
}

func (s *fakeStore) Ping(ctx context.Context) bool {
	if s.pingFn != nil {
		return s.pingFn(ctx)
	}
	return true
}

const testSecret = "test-secret-key"

func newTestServer(store MessageStore) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{Listen: "127.0.0.1:0", WebhookSecret: testSecret}, store, metrics.NewRegistry(), logger)
}

func validPayload() []byte {
	return []byte(`{"message_id":"msg_123","from":"+919876543210","to":"+919876543211","ts":"2025-01-15T10:00:00Z","text":"Hello, world!"}`)
}

func postWebhook(s *Server, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.handleWebhook(rec, req)
	return rec
}

func TestHandleWebhookCreated(t *testing.T) {
	body := validPayload()

	var stored messages.Message
	store := &fakeStore{
		insertFn: func(ctx context.Context, m messages.Message) (bool, error) {
			stored = m
			return true, nil
		},
	}
	s := newTestServer(store)

	rec := postWebhook(s, body, computeSignature(testSecret, body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp AckResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}

	if stored.MessageID != "msg_123" {
		t.Errorf("stored MessageID = %q, want msg_123", stored.MessageID)
	}
	if stored.From != "+919876543210" {
		t.Errorf("stored From = %q", stored.From)
	}

	if got := webhookResultCount(t, s, resultCreated); got != 1 {
		t.Errorf("created counter = %v, want 1", got)
	}
}

// webhookResultCount reads the webhook_requests_total counter for a result label.
func webhookResultCount(t *testing.T, s *Server, result string) float64 {
	t.Helper()
	families, err := s.metrics.Gather().Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "webhook_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleWebhookDuplicate(t *testing.T) {
	body := validPayload()
	store := &fakeStore{
		insertFn: func(ctx context.Context, m messages.Message) (bool, error) {
			return false, nil
		},
	}
	s := newTestServer(store)

	rec := postWebhook(s, body, computeSignature(testSecret, body))

	// Duplicates acknowledge identically to first delivery.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp AckResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if got := webhookResultCount(t, s, resultDuplicate); got != 1 {
		t.Errorf("duplicate counter = %v, want 1", got)
	}
}

func TestHandleWebhookMissingSignature(t *testing.T) {
	store := &fakeStore{
		insertFn: func(ctx context.Context, m messages.Message) (bool, error) {
			t.Fatal("Insert should not be called without a signature")
			return false, nil
		},
	}
	s := newTestServer(store)

	rec := postWebhook(s, validPayload(), "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != "invalid signature" {
		t.Errorf("Error = %q, want 'invalid signature'", resp.Error)
	}
	if got := webhookResultCount(t, s, resultInvalidSignature); got != 1 {
		t.Errorf("invalid_signature counter = %v, want 1", got)
	}
}

func TestHandleWebhookInvalidSignature(t *testing.T) {
	store := &fakeStore{
		insertFn: func(ctx context.Context, m messages.Message) (bool, error) {
			t.Fatal("Insert should not be called with an invalid signature")
			return false, nil
		},
	}
	s := newTestServer(store)

	rec := postWebhook(s, validPayload(), computeSignature("wrong-secret", validPayload()))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestHandleWebhookValidationError(t *testing.T) {
	body := []byte(`{"message_id":"","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z"}`)
	store := &fakeStore{
		insertFn: func(ctx context.Context, m messages.Message) (bool, error) {
			t.Fatal("Insert should not be called for an invalid payload")
			return false, nil
		},
	}
	s := newTestServer(store)

	rec := postWebhook(s, body, computeSignature(testSecret, body))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Error("validation rejection must name a reason")
	}
}

func TestHandleWebhookMalformedJSON(t *testing.T) {
	body := []byte(`{"message_id":`)
	s := newTestServer(&fakeStore{})

	rec := postWebhook(s, body, computeSignature(testSecret, body))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestHandleWebhookStoreFailure(t *testing.T) {
	body := validPayload()
	store := &fakeStore{
		insertFn: func(ctx context.Context, m messages.Message) (bool, error) {
			return false, fmt.Errorf("disk full")
		},
	}
	s := newTestServer(store)

	rec := postWebhook(s, body, computeSignature(testSecret, body))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHandleWebhookSignatureOverExactBytes(t *testing.T) {
	// Whitespace differences change the bytes, so the signature of a
	// re-serialized body must not verify.
	body := []byte(`{"message_id":"m1","from":"+1","to":"+2","ts":"2025-01-15T10:00:00Z"}`)
	reserialized := []byte(`{"message_id": "m1", "from": "+1", "to": "+2", "ts": "2025-01-15T10:00:00Z"}`)
	s := newTestServer(&fakeStore{})

	rec := postWebhook(s, body, computeSignature(testSecret, reserialized))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
