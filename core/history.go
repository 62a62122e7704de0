package core

import (
	"context"
	"encoding/json"
	"time"
)

// Message is the unit fanned out by the router. The body is opaque to this
// service; text, image references, and location references all pass through
// unchanged. The sequence number is assigned by the router when it accepts
// the message and is strictly increasing within a room.
type Message struct {
	RoomID string          `json:"room_id"`
	Sender string          `json:"sender"`
	Body   json.RawMessage `json:"body"`
	Seq    int64           `json:"seq"`
	SentAt time.Time       `json:"sent_at"`
}

// HistoryStore is the external persistence collaborator. Durability is its
// responsibility; the router does not retain message bodies after fan-out.
type HistoryStore interface {
	// PersistMessage stores a routed message under its assigned sequence.
	PersistMessage(ctx context.Context, msg Message) error

	// FetchHistory returns up to limit messages in a room with sequence
	// greater than afterSeq, in ascending sequence order. Clients use it
	// directly on reconnect to reconcile with live delivery.
	FetchHistory(ctx context.Context, roomID string, afterSeq int64, limit int) ([]Message, error)

	// LastSeq returns the highest persisted sequence for a room, or zero
	// when the room has no history. The router seeds its counters from it
	// so live sequences stay compatible with persisted ordering across
	// restarts.
	LastSeq(ctx context.Context, roomID string) (int64, error)
}
