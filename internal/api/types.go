package api

import "github.com/lyftr/webhookd/internal/messages"

// AckResponse is the fixed acknowledgment body. Created and duplicate
// ingestions return the identical body so senders cannot distinguish them.
type AckResponse struct {
	Status string `json:"status"`
}

// ErrorResponse names the failure reason for a rejected request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessagesResponse is one page of the listing plus the filter-wide total.
type MessagesResponse struct {
	Data   []messages.Message `json:"data"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}
