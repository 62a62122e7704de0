package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Coordinator composes the registry, room table, presence tracker, typing
// coordinator, and fan-out router into the service's operation surface. All
// mutation flows through its methods; it owns the disconnect cascade and
// computes broadcast audiences from room membership at emission time rather
// than keeping a subscription table that could drift.
type Coordinator struct {
	registry *Registry
	rooms    *RoomTable
	presence *PresenceTracker
	typing   *TypingCoordinator
	fanout   *FanoutRouter
	sender   Sender
	bus      Bus
	logger   *slog.Logger

	// recentRooms holds the rooms a disconnecting user occupied. The
	// debounced offline transition reads it because the membership entries
	// are already gone, and it is kept across the offline publish so the
	// reconnect's online transition reaches the same former roommates.
	mu          sync.Mutex
	recentRooms map[string]map[string]struct{}
}

type CoordinatorOption func(*coordinatorConfig)

type coordinatorConfig struct {
	debounce time.Duration
	ttl      time.Duration
	bus      Bus
	logger   *slog.Logger
}

func WithPresenceDebounce(d time.Duration) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.debounce = d
	}
}

func WithTypingTTL(d time.Duration) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.ttl = d
	}
}

func WithBus(b Bus) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.bus = b
	}
}

func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.logger = l
	}
}

func NewCoordinator(history HistoryStore, sender Sender, opts ...CoordinatorOption) *Coordinator {
	cfg := &coordinatorConfig{
		debounce: DefaultPresenceDebounce,
		ttl:      DefaultTypingTTL,
		bus:      NoopBus{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Coordinator{
		registry:    NewRegistry(),
		rooms:       NewRoomTable(),
		sender:      sender,
		bus:         cfg.bus,
		logger:      cfg.logger,
		recentRooms: make(map[string]map[string]struct{}),
	}
	c.presence = NewPresenceTracker(cfg.debounce, c.broadcastPresence)
	c.typing = NewTypingCoordinator(cfg.ttl, c.broadcastTyping)
	c.fanout = NewFanoutRouter(c.registry, c.rooms, NewReceiptTable(), history, sender, cfg.bus, cfg.logger)
	return c
}

// Registry exposes the connection records for read-only collaborators such
// as the websocket manager.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Connect registers an authenticated transport session and feeds the
// presence tracker. It fails closed without a user identity.
func (c *Coordinator) Connect(userID, role string) (Connection, error) {
	conn, err := c.registry.Register(userID, role)
	if err != nil {
		return Connection{}, err
	}
	c.presence.OnConnectionAdded(userID)
	c.logger.Info("connection registered",
		slog.String("conn", conn.ID), slog.String("user", userID), slog.String("role", role))
	return conn, nil
}

// Disconnect unregisters a connection and cascades: room membership entries
// are dropped, orphaned typing signals are cleared with the same broadcast
// semantics as an explicit stop, and the presence tracker is decremented.
// It is idempotent.
func (c *Coordinator) Disconnect(connID string) {
	conn, ok := c.registry.Unregister(connID)
	if !ok {
		return
	}
	dropped := c.rooms.DropConn(connID)
	if len(dropped) > 0 {
		c.mu.Lock()
		held, ok := c.recentRooms[conn.UserID]
		if !ok {
			held = make(map[string]struct{})
			c.recentRooms[conn.UserID] = held
		}
		for _, roomID := range dropped {
			held[roomID] = struct{}{}
		}
		c.mu.Unlock()
	}
	for _, roomID := range dropped {
		if !c.userStillInRoom(roomID, conn.UserID) {
			c.typing.Stop(roomID, conn.UserID)
		}
		c.maybeUnsubscribeRoom(roomID)
	}
	c.presence.OnConnectionRemoved(conn.UserID)
	c.logger.Info("connection unregistered",
		slog.String("conn", connID), slog.String("user", conn.UserID))
}

func (c *Coordinator) JoinRoom(connID, roomID string) error {
	if _, ok := c.registry.Lookup(connID); !ok {
		return ErrUnknownConnection
	}
	first := len(c.rooms.MembersOf(roomID)) == 0
	c.rooms.Join(roomID, connID)
	if first {
		if err := c.bus.SubscribeRoom(roomID, c.fanout.Relay); err != nil {
			c.logger.Error(fmt.Sprintf("subscribing room %s on bus: %v", roomID, err))
		}
	}
	return nil
}

func (c *Coordinator) LeaveRoom(connID, roomID string) error {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	c.rooms.Leave(roomID, connID)
	if !c.userStillInRoom(roomID, conn.UserID) {
		c.typing.Stop(roomID, conn.UserID)
	}
	c.maybeUnsubscribeRoom(roomID)
	return nil
}

func (c *Coordinator) TypingStart(connID, roomID string) error {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if !c.userStillInRoom(roomID, conn.UserID) {
		return ErrNotAMember
	}
	c.typing.Start(roomID, conn.UserID)
	return nil
}

func (c *Coordinator) TypingStop(connID, roomID string) error {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if !c.userStillInRoom(roomID, conn.UserID) {
		return ErrNotAMember
	}
	c.typing.Stop(roomID, conn.UserID)
	return nil
}

// Send routes a message through the fan-out router on behalf of a
// connection's user.
func (c *Coordinator) Send(ctx context.Context, connID, roomID string, body []byte) (Message, error) {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		return Message{}, ErrUnknownConnection
	}
	return c.fanout.Send(ctx, roomID, conn.UserID, body)
}

func (c *Coordinator) AckDelivered(connID, roomID string, seq int64) error {
	return c.ack(connID, roomID, seq, ReceiptDelivered)
}

func (c *Coordinator) AckRead(connID, roomID string, seq int64) error {
	return c.ack(connID, roomID, seq, ReceiptRead)
}

func (c *Coordinator) ack(connID, roomID string, seq int64, state ReceiptState) error {
	conn, ok := c.registry.Lookup(connID)
	if !ok {
		return ErrUnknownConnection
	}
	c.fanout.Ack(roomID, seq, conn.UserID, state)
	return nil
}

// PresenceOf answers a presence query with the tracked record.
func (c *Coordinator) PresenceOf(userID string) PresenceRecord {
	return c.presence.Status(userID)
}

// Close releases pending timers and the bus.
func (c *Coordinator) Close() {
	c.presence.Close()
	c.typing.Close()
	c.bus.Close()
}

// broadcastTyping publishes a typing transition to every room member except
// the typist's own connections.
func (c *Coordinator) broadcastTyping(roomID, userID string, typing bool) {
	e, err := NewEvent(EventTypingChanged, TypingChangedPayload{
		RoomID: roomID,
		UserID: userID,
		Typing: typing,
	})
	if err != nil {
		c.logger.Error(err.Error())
		return
	}
	targets := make([]string, 0)
	for _, connID := range c.rooms.MembersOf(roomID) {
		if conn, ok := c.registry.Lookup(connID); ok && conn.UserID != userID {
			targets = append(targets, connID)
		}
	}
	c.sender.SendToConns(e, targets...)
}

// broadcastPresence publishes a presence transition to every user sharing at
// least one room with the subject. The audience is computed at emission time
// from room membership, widened by the rooms held at disconnect time: the
// offline transition fires after the membership entries are gone, and the
// online transition of a reconnect fires before any are back. The held rooms
// are consumed by the online publish.
func (c *Coordinator) broadcastPresence(userID string, online bool) {
	status := StatusOffline
	if online {
		status = StatusOnline
	}
	e, err := NewEvent(EventPresenceChanged, PresenceChangedPayload{
		UserID: userID,
		Status: status,
		At:     time.Now().UTC(),
	})
	if err != nil {
		c.logger.Error(err.Error())
		return
	}

	roomSet := make(map[string]struct{})
	for _, connID := range c.registry.ConnectionsForUser(userID) {
		for _, roomID := range c.rooms.RoomsOf(connID) {
			roomSet[roomID] = struct{}{}
		}
	}
	c.mu.Lock()
	for roomID := range c.recentRooms[userID] {
		roomSet[roomID] = struct{}{}
	}
	if online {
		delete(c.recentRooms, userID)
	}
	c.mu.Unlock()

	seen := make(map[string]struct{})
	targets := make([]string, 0)
	for roomID := range roomSet {
		for _, connID := range c.rooms.MembersOf(roomID) {
			conn, ok := c.registry.Lookup(connID)
			if !ok || conn.UserID == userID {
				continue
			}
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			targets = append(targets, connID)
		}
	}
	if len(targets) > 0 {
		c.sender.SendToConns(e, targets...)
	}
}

func (c *Coordinator) userStillInRoom(roomID, userID string) bool {
	for _, connID := range c.rooms.MembersOf(roomID) {
		if conn, ok := c.registry.Lookup(connID); ok && conn.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Coordinator) maybeUnsubscribeRoom(roomID string) {
	if len(c.rooms.MembersOf(roomID)) == 0 {
		c.bus.UnsubscribeRoom(roomID)
	}
}
