package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLiteHistoryStore persists routed messages keyed by (room, sequence).
// Fan-out assigns the sequence; the store's ordering field is the same
// number, so history paging and live delivery reconcile without translation.
type SQLiteHistoryStore struct {
	db *sql.DB
}

func NewSQLiteHistoryStore(db *sql.DB) *SQLiteHistoryStore {
	return &SQLiteHistoryStore{db: db}
}

func (s *SQLiteHistoryStore) PersistMessage(ctx context.Context, msg Message) error {
	query := `INSERT INTO messages (room_id, seq, sender, body, sent_at)
	          VALUES (@room_id, @seq, @sender, @body, @sent_at)`
	_, err := s.db.ExecContext(ctx, query,
		sql.Named("room_id", msg.RoomID),
		sql.Named("seq", msg.Seq),
		sql.Named("sender", msg.Sender),
		sql.Named("body", string(msg.Body)),
		sql.Named("sent_at", msg.SentAt),
	)
	if err != nil {
		return fmt.Errorf("ExecContext(insert message): %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) FetchHistory(ctx context.Context, roomID string, afterSeq int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT room_id, seq, sender, body, sent_at FROM messages
	          WHERE room_id = @room_id AND seq > @after_seq
	          ORDER BY seq ASC LIMIT @limit`
	rows, err := s.db.QueryContext(ctx, query,
		sql.Named("room_id", roomID),
		sql.Named("after_seq", afterSeq),
		sql.Named("limit", limit),
	)
	if err != nil {
		return nil, fmt.Errorf("QueryContext(fetch history): %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var msg Message
		var body string
		if err := rows.Scan(&msg.RoomID, &msg.Seq, &msg.Sender, &body, &msg.SentAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		msg.Body = []byte(body)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return msgs, nil
}

func (s *SQLiteHistoryStore) LastSeq(ctx context.Context, roomID string) (int64, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM messages WHERE room_id = @room_id",
		sql.Named("room_id", roomID),
	)
	var last sql.NullInt64
	if err := row.Scan(&last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("scanning max seq: %w", err)
	}
	return last.Int64, nil
}
