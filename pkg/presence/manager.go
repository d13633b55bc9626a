package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ridekit/pkg/authtoken"
	"github.com/dmitrymomot/ridekit/pkg/logger"
)

// Manager tracks live connections and provides targeted and broadcast send
// primitives. All methods are safe for concurrent use.
type Manager struct {
	tokens    *authtoken.Service
	directory UserDirectory

	mu     sync.RWMutex
	conns  map[uuid.UUID]*connState
	byUser map[string]map[uuid.UUID]Conn

	evictor   RoomEvictor
	observers []func(Event)
	obsMu     sync.RWMutex

	logger *slog.Logger
	now    func() time.Time
}

type connState struct {
	conn     Conn
	identity Identity
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger for the Manager.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.logger = log
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a connection manager.
func NewManager(tokens *authtoken.Service, directory UserDirectory, opts ...ManagerOption) (*Manager, error) {
	if tokens == nil {
		return nil, ErrTokenServiceNil
	}
	if directory == nil {
		return nil, ErrDirectoryNil
	}

	m := &Manager{
		tokens:    tokens,
		directory: directory,
		conns:     make(map[uuid.UUID]*connState),
		byUser:    make(map[string]map[uuid.UUID]Conn),
		logger:    slog.Default(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// SetRoomEvictor registers the callback used to remove a disconnecting
// connection from all of its rooms. Must be called before connections are
// registered; typically done by the room service constructor.
func (m *Manager) SetRoomEvictor(evictor RoomEvictor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictor = evictor
}

// Observe registers a callback invoked for connect and disconnect events.
// Callbacks run synchronously on the registering goroutine's path and must
// not block.
func (m *Manager) Observe(fn func(Event)) {
	if fn == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(m.observers, fn)
}

// Authenticate verifies a credential token and resolves its subject.
// It must be called before Register; a connection whose token fails this
// check is closed immediately with no further callbacks. Failures are
// terminal and are never retried.
func (m *Manager) Authenticate(ctx context.Context, credentialToken string) (Identity, error) {
	claims, err := m.tokens.Parse(credentialToken)
	if err != nil {
		if errors.Is(err, authtoken.ErrExpiredToken) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	user, err := m.directory.Lookup(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, fmt.Errorf("directory lookup for user %q: %w", claims.Subject, err)
	}

	if user.Deactivated {
		return Identity{}, ErrUserDeactivated
	}

	return Identity{UserID: user.ID, AuthenticatedAt: m.now()}, nil
}

// Register records an authenticated connection, sends the "connected"
// acknowledgment to it and notifies presence observers.
func (m *Manager) Register(conn Conn, identity Identity) error {
	if conn == nil {
		return ErrConnNil
	}
	if identity.UserID == "" {
		return ErrNotAuthenticated
	}

	m.mu.Lock()
	if _, exists := m.conns[conn.ID()]; exists {
		m.mu.Unlock()
		return ErrAlreadyRegistered
	}

	m.conns[conn.ID()] = &connState{conn: conn, identity: identity}
	if m.byUser[identity.UserID] == nil {
		m.byUser[identity.UserID] = make(map[uuid.UUID]Conn)
	}
	m.byUser[identity.UserID][conn.ID()] = conn
	m.mu.Unlock()

	ack := Event{Type: EventConnected, UserID: identity.UserID, At: m.now()}
	if err := conn.Send(ack); err != nil {
		m.logger.Warn("failed to ack new connection",
			logger.ConnID(conn.ID()),
			logger.UserID(identity.UserID),
			logger.Error(err))
	}

	m.notify(ack)

	m.logger.Debug("connection registered",
		logger.ConnID(conn.ID()),
		logger.UserID(identity.UserID))

	return nil
}

// Unregister removes a connection from all rooms it had joined and from the
// user index. It is idempotent: unregistering an unknown connection is a
// no-op. Called on disconnect for any reason.
func (m *Manager) Unregister(conn Conn) {
	if conn == nil {
		return
	}

	m.mu.Lock()
	state, exists := m.conns[conn.ID()]
	if !exists {
		m.mu.Unlock()
		return
	}
	delete(m.conns, conn.ID())

	userID := state.identity.UserID
	if set, ok := m.byUser[userID]; ok {
		delete(set, conn.ID())
		if len(set) == 0 {
			delete(m.byUser, userID)
		}
	}
	evictor := m.evictor
	m.mu.Unlock()

	// Room cleanup happens outside the manager lock: the evictor takes
	// per-room locks and may fan out room_left events.
	if evictor != nil {
		evictor.EvictConn(conn)
	}

	m.notify(Event{Type: EventDisconnected, UserID: userID, At: m.now()})

	m.logger.Debug("connection unregistered",
		logger.ConnID(conn.ID()),
		logger.UserID(userID))
}

// SendToUser delivers the event to every live connection of the user.
// A failed send closes only that one connection and never aborts delivery
// to the user's other connections. Returns true if at least one connection
// received the event; false means the user has no reachable connection and
// the caller decides whether to fall back to another channel.
func (m *Manager) SendToUser(userID string, event Event) bool {
	m.mu.RLock()
	conns := make([]Conn, 0, len(m.byUser[userID]))
	for _, c := range m.byUser[userID] {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	delivered := false
	for _, c := range conns {
		if err := c.Send(event); err != nil {
			m.dropConn(c, userID, err)
			continue
		}
		delivered = true
	}

	return delivered
}

// BroadcastExcept fans the event out to all live connections except those
// belonging to excludedUserID.
func (m *Manager) BroadcastExcept(event Event, excludedUserID string) {
	m.mu.RLock()
	targets := make([]*connState, 0, len(m.conns))
	for _, state := range m.conns {
		if state.identity.UserID == excludedUserID {
			continue
		}
		targets = append(targets, state)
	}
	m.mu.RUnlock()

	for _, state := range targets {
		if err := state.conn.Send(event); err != nil {
			m.dropConn(state.conn, state.identity.UserID, err)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (m *Manager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID]) > 0
}

// ConnCount returns the total number of live connections.
func (m *Manager) ConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// UserOf returns the user id that owns the given connection.
func (m *Manager) UserOf(connID uuid.UUID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.conns[connID]
	if !ok {
		return "", false
	}
	return state.identity.UserID, true
}

// dropConn closes a connection that failed a send and removes it from the
// indexes. The user's other connections are untouched.
func (m *Manager) dropConn(conn Conn, userID string, sendErr error) {
	m.logger.Warn("send failed, closing connection",
		logger.ConnID(conn.ID()),
		logger.UserID(userID),
		logger.Error(sendErr))

	_ = conn.Close("send failed")
	m.Unregister(conn)
}

func (m *Manager) notify(event Event) {
	m.obsMu.RLock()
	observers := make([]func(Event), len(m.observers))
	copy(observers, m.observers)
	m.obsMu.RUnlock()

	for _, fn := range observers {
		fn(event)
	}
}
