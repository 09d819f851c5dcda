package messages

// Message is the sole persisted entity: one inbound message event, keyed by
// its externally supplied message_id. A message is written exactly once at
// first ingestion and never mutated or deleted.
type Message struct {
	MessageID string  `json:"message_id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	TS        string  `json:"ts"`
	Text      *string `json:"text"`
}

// SenderCount is one entry in the per-sender ranking.
type SenderCount struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

// Stats is the aggregate view over all stored messages. Timestamp fields are
// nil when the store is empty.
type Stats struct {
	TotalMessages     int           `json:"total_messages"`
	SendersCount      int           `json:"senders_count"`
	MessagesPerSender []SenderCount `json:"messages_per_sender"`
	FirstMessageTS    *string       `json:"first_message_ts"`
	LastMessageTS     *string       `json:"last_message_ts"`
}

// ListFilter describes a listing query. Filters are conjunctive; zero values
// mean "no filter". Limit and Offset are assumed validated by the caller.
type ListFilter struct {
	Limit  int
	Offset int
	// From is an exact match on the sending msisdn.
	From string
	// Since is an inclusive lower bound on ts. Lexicographic comparison is
	// sufficient because all stored timestamps share the same fixed format.
	Since string
	// Q is a case-insensitive literal substring match against text.
	Q string
}
