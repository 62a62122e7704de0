package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Event is the unit of the bidirectional wire protocol. Inbound events carry
// the origin connection and user, which are attached by the transport after
// decoding and never trusted from the wire.
type Event struct {
	ConnID  string          `json:"-"`
	UserID  string          `json:"-"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Conn: %s, User: %s, Type: %s, Payload.Size: %d}", e.ConnID, e.UserID, e.Type, len(e.Payload))
}

func EncodeEvent(w io.Writer, e *Event) error {
	if err := json.NewEncoder(w).Encode(e); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func DecodeEvent(r io.Reader, e *Event) error {
	if err := json.NewDecoder(r).Decode(e); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	return nil
}

// NewEvent marshals payload into a ready-to-send event.
func NewEvent(t string, payload interface{}) (*Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return &Event{Type: t, Payload: b}, nil
}

// Sender delivers outbound events to live connections. The websocket manager
// is the production implementation; tests substitute a recording fake.
type Sender interface {
	SendToConns(e *Event, connIDs ...string)
}

type EventHandler func(context.Context, *Event) error

// EventRouter dispatches inbound events to their registered handler.
// Handlers run synchronously on the router goroutine so that two events from
// the same connection are never observed out of order.
type EventRouter struct {
	handlers map[string]EventHandler
	ctx      context.Context
	inbound  <-chan *Event
	logger   *slog.Logger
	onError  func(e *Event, err error)
}

func NewEventRouter(ctx context.Context, logger *slog.Logger, inbound <-chan *Event) *EventRouter {
	return &EventRouter{
		handlers: make(map[string]EventHandler),
		ctx:      ctx,
		inbound:  inbound,
		logger:   logger,
		onError:  func(*Event, error) {},
	}
}

func (r *EventRouter) On(eventType string, handler EventHandler) {
	r.handlers[eventType] = handler
}

// OnError sets the callback invoked when a handler rejects an operation.
// The app uses it to report the failure back to the originating connection.
func (r *EventRouter) OnError(f func(e *Event, err error)) {
	r.onError = f
}

func (r *EventRouter) Listen(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case e, ok := <-r.inbound:
				if !ok {
					return
				}
				handler, ok := r.handlers[e.Type]
				if !ok {
					r.logger.Warn("no handler for event", slog.String("type", e.Type))
					continue
				}
				if err := handler(r.ctx, e); err != nil {
					r.logger.Error(fmt.Sprintf("%s handler: %s", e.Type, err))
					r.onError(e, err)
				}
			case <-r.ctx.Done():
				return
			}
		}
	}()
}
