package core

import (
	"sync"
	"time"
)

type ReceiptState int

const (
	ReceiptSent ReceiptState = iota + 1
	ReceiptDelivered
	ReceiptRead
)

func (s ReceiptState) String() string {
	switch s {
	case ReceiptSent:
		return "sent"
	case ReceiptDelivered:
		return "delivered"
	case ReceiptRead:
		return "read"
	default:
		return "unknown"
	}
}

// Receipt is the delivery state of one message for one recipient.
type Receipt struct {
	RoomID    string       `json:"room_id"`
	Seq       int64        `json:"seq"`
	UserID    string       `json:"user_id"`
	State     ReceiptState `json:"-"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// maxTrackedSeqs bounds how many recent sequence numbers per room keep live
// receipt state. Older messages are the history store's concern.
const maxTrackedSeqs = 1024

type roomReceipts struct {
	bySeq map[int64]map[string]*Receipt
	// insertion-ordered sequence numbers, oldest first
	seqs []int64
}

// ReceiptTable tracks per (message, recipient) delivery state with monotonic
// transitions: sent, then delivered, then read, never backward. Out-of-order
// or redundant acknowledgements are a no-op, not an error, since clients race.
type ReceiptTable struct {
	mu    sync.Mutex
	rooms map[string]*roomReceipts
}

func NewReceiptTable() *ReceiptTable {
	return &ReceiptTable{
		rooms: make(map[string]*roomReceipts),
	}
}

// Init creates a sent receipt for each recipient of a fanned-out message.
func (t *ReceiptTable) Init(roomID string, seq int64, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[roomID]
	if !ok {
		room = &roomReceipts{bySeq: make(map[int64]map[string]*Receipt)}
		t.rooms[roomID] = room
	}
	recipients, ok := room.bySeq[seq]
	if !ok {
		recipients = make(map[string]*Receipt)
		room.bySeq[seq] = recipients
		room.seqs = append(room.seqs, seq)
		if len(room.seqs) > maxTrackedSeqs {
			oldest := room.seqs[0]
			room.seqs = room.seqs[1:]
			delete(room.bySeq, oldest)
		}
	}
	for _, userID := range userIDs {
		if _, ok := recipients[userID]; ok {
			continue
		}
		recipients[userID] = &Receipt{
			RoomID:    roomID,
			Seq:       seq,
			UserID:    userID,
			State:     ReceiptSent,
			UpdatedAt: now,
		}
	}
}

// Advance upgrades a receipt to state if that is a forward transition.
// It reports whether the state actually changed.
func (t *ReceiptTable) Advance(roomID string, seq int64, userID string, state ReceiptState) (Receipt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[roomID]
	if !ok {
		return Receipt{}, false
	}
	rec, ok := room.bySeq[seq][userID]
	if !ok || state <= rec.State {
		return Receipt{}, false
	}
	rec.State = state
	rec.UpdatedAt = time.Now()
	return *rec, true
}

// Get returns the receipt for a (message, recipient) pair, if tracked.
func (t *ReceiptTable) Get(roomID string, seq int64, userID string) (Receipt, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[roomID]
	if !ok {
		return Receipt{}, false
	}
	rec, ok := room.bySeq[seq][userID]
	if !ok {
		return Receipt{}, false
	}
	return *rec, true
}
