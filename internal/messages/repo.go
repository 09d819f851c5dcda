package messages

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repo is the storage engine for messages. Every operation acquires and
// releases its connection within the call; no locks span requests.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Insert persists a fully-validated message. Returns true if a new row was
// created, false if message_id already existed. The duplicate case is an
// expected outcome, not an error; uniqueness is enforced by the primary key
// in a single statement so concurrent inserts of the same id cannot race.
func (r *Repo) Insert(ctx context.Context, m Message) (bool, error) {
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO messages(message_id, from_msisdn, to_msisdn, ts, text, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, m.MessageID, m.From, m.To, m.TS, m.Text, createdAt)
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert message: %w", err)
	}
	return n > 0, nil
}

// List returns one page of messages matching the filter plus the total count
// of matches before limit/offset. Count and page run in one transaction so
// the total is consistent with the returned page. Ordering is ascending ts,
// ties broken by ascending message_id.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Message, int, error) {
	var conds []string
	var args []any

	if f.From != "" {
		conds = append(conds, "from_msisdn = ?")
		args = append(args, f.From)
	}
	if f.Since != "" {
		conds = append(conds, "ts >= ?")
		args = append(args, f.Since)
	}
	if f.Q != "" {
		conds = append(conds, `LOWER(text) LIKE LOWER(?) ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.Q)+"%")
	}

	where := "1=1"
	if len(conds) > 0 {
		where = strings.Join(conds, " AND ")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
SELECT message_id, from_msisdn, to_msisdn, ts, text
FROM messages
WHERE `+where+`
ORDER BY ts ASC, message_id ASC
LIMIT ? OFFSET ?;
`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0)
	for rows.Next() {
		var m Message
		var text sql.NullString
		if err := rows.Scan(&m.MessageID, &m.From, &m.To, &m.TS, &text); err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		if text.Valid {
			m.Text = &text.String
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit list tx: %w", err)
	}
	return msgs, total, nil
}

// Stats aggregates the stored messages: totals, distinct sender count, the
// top 10 senders by message count (ties broken by sender ascending), and the
// first/last event timestamps.
func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	st := Stats{MessagesPerSender: []SenderCount{}}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages",
	).Scan(&st.TotalMessages); err != nil {
		return st, fmt.Errorf("count messages: %w", err)
	}

	if st.TotalMessages == 0 {
		return st, nil
	}

	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT from_msisdn) FROM messages",
	).Scan(&st.SendersCount); err != nil {
		return st, fmt.Errorf("count senders: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
SELECT from_msisdn, COUNT(*) AS n
FROM messages
GROUP BY from_msisdn
ORDER BY n DESC, from_msisdn ASC
LIMIT 10;
`)
	if err != nil {
		return st, fmt.Errorf("rank senders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sc SenderCount
		if err := rows.Scan(&sc.From, &sc.Count); err != nil {
			return st, fmt.Errorf("scan sender: %w", err)
		}
		st.MessagesPerSender = append(st.MessagesPerSender, sc)
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("rank senders: %w", err)
	}

	var first, last string
	if err := tx.QueryRowContext(ctx,
		"SELECT MIN(ts), MAX(ts) FROM messages",
	).Scan(&first, &last); err != nil {
		return st, fmt.Errorf("timestamp range: %w", err)
	}
	st.FirstMessageTS = &first
	st.LastMessageTS = &last

	if err := tx.Commit(); err != nil {
		return st, fmt.Errorf("commit stats tx: %w", err)
	}
	return st, nil
}

// Ping reports whether the store answers a trivial round-trip query. Any
// failure is converted to false, never an error.
func (r *Repo) Ping(ctx context.Context) bool {
	var one int
	if err := r.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return false
	}
	return one == 1
}

// escapeLike makes a search term safe for use inside a LIKE pattern so it is
// matched as a literal substring, not a pattern language.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
