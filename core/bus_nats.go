package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const roomSubjectPrefix = "presenced.rooms."

// busEnvelope wraps a relayed message with its origin instance so a process
// can skip its own publishes when they come back around.
type busEnvelope struct {
	Origin  string  `json:"origin"`
	Message Message `json:"message"`
}

// NATSBus relays room fan-out across process instances over NATS subjects,
// one subject per room.
type NATSBus struct {
	conn   *nats.Conn
	origin string
	subs   *SyncMap[string, *nats.Subscription]
}

func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url, nats.Name("presenced"))
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSBus{
		conn:   conn,
		origin: uuid.New().String(),
		subs:   NewSyncMap[string, *nats.Subscription](),
	}, nil
}

func (b *NATSBus) PublishMessage(roomID string, msg Message) error {
	data, err := json.Marshal(busEnvelope{Origin: b.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("marshal bus envelope: %w", err)
	}
	if err := b.conn.Publish(roomSubjectPrefix+roomID, data); err != nil {
		return fmt.Errorf("publish to room subject: %w", err)
	}
	return nil
}

// SubscribeRoom starts relaying the room's subject into handler. Subscribing
// to an already-subscribed room replaces the previous subscription.
func (b *NATSBus) SubscribeRoom(roomID string, handler func(Message)) error {
	sub, err := b.conn.Subscribe(roomSubjectPrefix+roomID, func(m *nats.Msg) {
		var env busEnvelope
		if err := json.Unmarshal(m.Data, &env); err != nil {
			return
		}
		if env.Origin == b.origin {
			return
		}
		handler(env.Message)
	})
	if err != nil {
		return fmt.Errorf("subscribe to room subject: %w", err)
	}
	b.subs.LoadAndStore(roomID, func(prev *nats.Subscription, ok bool) *nats.Subscription {
		if ok {
			prev.Unsubscribe()
		}
		return sub
	})
	return nil
}

func (b *NATSBus) UnsubscribeRoom(roomID string) {
	if sub, ok := b.subs.LoadAndDelete(roomID); ok {
		sub.Unsubscribe()
	}
}

func (b *NATSBus) Close() {
	b.subs.RRange(func(_ string, sub *nats.Subscription) bool {
		sub.Unsubscribe()
		return true
	})
	b.conn.Close()
}
