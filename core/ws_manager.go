package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

var defaultUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ConnManager owns the websocket connections and their pump goroutines. It
// is the production Sender; registration and the disconnect cascade are
// delegated to the coordinator through the hooks set at wiring time.
type ConnManager struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	connWg  *sync.WaitGroup
	context context.Context
	logger  *slog.Logger

	register   func(userID, role string) (Connection, error)
	unregister func(connID string)

	receivedEvent chan *Event

	upgrader        websocket.Upgrader
	ReadStreamSize  int
	WriteStreamSize int
}

type ManagerOption func(*ConnManager)

func WithCheckOrigin(f func(r *http.Request) bool) ManagerOption {
	return func(m *ConnManager) {
		m.upgrader.CheckOrigin = f
	}
}

func NewConnManager(ctx context.Context, wg *sync.WaitGroup, logger *slog.Logger, opts ...ManagerOption) *ConnManager {
	m := &ConnManager{
		connWg:          wg,
		conns:           make(map[string]*Conn),
		logger:          logger,
		context:         ctx,
		upgrader:        defaultUpgrader,
		ReadStreamSize:  100,
		WriteStreamSize: 100,
		register: func(string, string) (Connection, error) {
			return Connection{}, ErrAuthenticationRequired
		},
		unregister: func(string) {},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.receivedEvent = make(chan *Event, m.ReadStreamSize)

	return m
}

// Receive exposes the stream of inbound events for the event router.
func (m *ConnManager) Receive() <-chan *Event {
	return m.receivedEvent
}

// OnRegister sets the hook that turns an authenticated handshake into a
// connection record. The coordinator's Connect goes here.
func (m *ConnManager) OnRegister(f func(userID, role string) (Connection, error)) {
	m.register = f
}

// OnUnregister sets the hook invoked when a connection's read loop ends.
// The coordinator's Disconnect goes here.
func (m *ConnManager) OnUnregister(f func(connID string)) {
	m.unregister = f
}

// Connect upgrades the request and starts the connection's pumps. The caller
// must have authenticated the request; an empty userID is rejected before
// the upgrade.
func (m *ConnManager) Connect(userID, role string, w http.ResponseWriter, r *http.Request) error {
	record, err := m.register(userID, role)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return err
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.unregister(record.ID)
		return fmt.Errorf("upgrade: %w", err)
	}

	wsConn := &Conn{
		id:          record.ID,
		userID:      record.UserID,
		conn:        conn,
		context:     m.context,
		writeStream: make(chan *Event, m.WriteStreamSize),
		readStream:  m.receivedEvent,
		ticker:      time.NewTicker(pingPeriod),
		logger:      m.logger.With(slog.String("connection", fmt.Sprintf("%s:%s", record.UserID, record.ID))),
		notifyDisconnect: func() {
			m.disconnect(record.ID)
		},
	}

	m.mu.Lock()
	m.conns[record.ID] = wsConn
	m.mu.Unlock()

	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.readLoop()
	}()
	m.connWg.Add(1)
	go func() {
		defer m.connWg.Done()
		wsConn.writeLoop()
	}()

	return nil
}

func (m *ConnManager) disconnect(connID string) {
	m.mu.Lock()
	conn, ok := m.conns[connID]
	if ok {
		conn.close()
		delete(m.conns, connID)
	}
	m.mu.Unlock()
	if ok {
		m.unregister(connID)
	}
}

// CloseConn tears a connection down server-side, running the same cascade a
// peer-initiated close would.
func (m *ConnManager) CloseConn(connID string) {
	m.disconnect(connID)
}

// SendToConns enqueues an event on each listed connection's write stream.
// Unknown IDs are skipped; the disconnect cascade may have won the race.
func (m *ConnManager) SendToConns(e *Event, connIDs ...string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range connIDs {
		conn, ok := m.conns[id]
		if !ok {
			continue
		}
		select {
		case conn.writeStream <- e:
		default:
			m.logger.Warn("write stream full, dropping event",
				slog.String("connection", id), slog.String("type", e.Type))
		}
	}
}
