package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type roomState struct {
	mu     sync.Mutex
	seq    int64
	seeded bool
}

// FanoutRouter accepts message-send requests, assigns per-room sequence
// numbers, hands messages to the history store, and relays them to every
// live member connection. Sends for a given room are strictly serialized, so
// all members observe fan-out in sequence order.
type FanoutRouter struct {
	registry *Registry
	rooms    *RoomTable
	receipts *ReceiptTable
	history  HistoryStore
	sender   Sender
	bus      Bus
	logger   *slog.Logger

	mu     sync.Mutex
	states map[string]*roomState
}

func NewFanoutRouter(registry *Registry, rooms *RoomTable, receipts *ReceiptTable, history HistoryStore, sender Sender, bus Bus, logger *slog.Logger) *FanoutRouter {
	if bus == nil {
		bus = NoopBus{}
	}
	return &FanoutRouter{
		registry: registry,
		rooms:    rooms,
		receipts: receipts,
		history:  history,
		sender:   sender,
		bus:      bus,
		logger:   logger,
		states:   make(map[string]*roomState),
	}
}

func (f *FanoutRouter) roomState(roomID string) *roomState {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs, ok := f.states[roomID]
	if !ok {
		rs = &roomState{}
		f.states[roomID] = rs
	}
	return rs
}

// Send routes one message: sequence assignment, persistence, fan-out, and
// receipt initialization, in that order, all under the room's serialization
// point. The sender's own other connections receive the fan-out too, which
// is what keeps a second open tab in sync.
//
// A persistence failure does not drop the live fan-out; it is reported to
// the sender alone as a message_persist_failed event so the sender can retry
// persistence without duplicating the message for recipients who already saw
// it.
func (f *FanoutRouter) Send(ctx context.Context, roomID, senderID string, body []byte) (Message, error) {
	if !f.userInRoom(roomID, senderID) {
		return Message{}, ErrNotAMember
	}

	rs := f.roomState(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.seeded {
		last, err := f.history.LastSeq(ctx, roomID)
		if err != nil {
			f.logger.Error(fmt.Sprintf("seeding sequence for room %s: %v", roomID, err))
		} else {
			rs.seq = last
		}
		rs.seeded = true
	}

	rs.seq++
	msg := Message{
		RoomID: roomID,
		Sender: senderID,
		Body:   body,
		Seq:    rs.seq,
		SentAt: time.Now().UTC(),
	}

	persistErr := f.history.PersistMessage(ctx, msg)

	e, err := NewEvent(EventNewMessage, msg)
	if err != nil {
		return Message{}, err
	}
	members := f.rooms.MembersOf(roomID)
	f.sender.SendToConns(e, members...)

	f.receipts.Init(roomID, msg.Seq, f.recipientUsers(members, senderID)...)

	if err := f.bus.PublishMessage(roomID, msg); err != nil {
		f.logger.Error(fmt.Sprintf("bus publish for room %s: %v", roomID, err))
	}

	if persistErr != nil {
		f.logger.Error(fmt.Sprintf("persisting message %s/%d: %v", roomID, msg.Seq, persistErr))
		failed, err := NewEvent(EventPersistFailed, PersistFailedPayload{
			RoomID: roomID,
			Seq:    msg.Seq,
			Code:   ErrorCode(ErrPersistence),
		})
		if err == nil {
			f.sender.SendToConns(failed, f.registry.ConnectionsForUser(senderID)...)
		}
	}

	return msg, nil
}

// Relay fans out a message that another process already sequenced. Receipts
// stay with the origin process; this only mirrors delivery to local members.
func (f *FanoutRouter) Relay(msg Message) {
	e, err := NewEvent(EventNewMessage, msg)
	if err != nil {
		return
	}
	f.sender.SendToConns(e, f.rooms.MembersOf(msg.RoomID)...)
}

// Ack upgrades a receipt and, when the state actually advanced, broadcasts
// the change to the room so every member's devices converge.
func (f *FanoutRouter) Ack(roomID string, seq int64, userID string, state ReceiptState) {
	rec, changed := f.receipts.Advance(roomID, seq, userID, state)
	if !changed {
		return
	}
	e, err := NewEvent(EventReceiptChanged, ReceiptChangedPayload{
		RoomID: rec.RoomID,
		Seq:    rec.Seq,
		UserID: rec.UserID,
		State:  rec.State.String(),
		At:     rec.UpdatedAt,
	})
	if err != nil {
		return
	}
	f.sender.SendToConns(e, f.rooms.MembersOf(roomID)...)
}

func (f *FanoutRouter) userInRoom(roomID, userID string) bool {
	for _, connID := range f.rooms.MembersOf(roomID) {
		if conn, ok := f.registry.Lookup(connID); ok && conn.UserID == userID {
			return true
		}
	}
	return false
}

// recipientUsers maps member connections to the distinct set of user IDs
// entitled to a receipt, excluding the sender. Offline members get nothing
// here; the history store covers them when they fetch.
func (f *FanoutRouter) recipientUsers(memberConns []string, senderID string) []string {
	seen := make(map[string]struct{}, len(memberConns))
	users := make([]string, 0, len(memberConns))
	for _, connID := range memberConns {
		conn, ok := f.registry.Lookup(connID)
		if !ok || conn.UserID == senderID {
			continue
		}
		if _, dup := seen[conn.UserID]; dup {
			continue
		}
		seen[conn.UserID] = struct{}{}
		users = append(users, conn.UserID)
	}
	return users
}
