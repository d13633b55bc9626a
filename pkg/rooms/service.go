package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/ridekit/pkg/logger"
	"github.com/dmitrymomot/ridekit/pkg/presence"
)

// Kind distinguishes the two room flavors served by the platform.
type Kind string

const (
	KindChat         Kind = "chat"
	KindRideTracking Kind = "ride_tracking"
)

// Authorizer is the external collaborator answering "is this user an
// authorized participant of this room". Persisted membership records belong
// to the CRUD layer; this service only caches who is currently present.
type Authorizer interface {
	CanJoin(ctx context.Context, userID, roomID string) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, userID, roomID string) (bool, error)

func (f AuthorizerFunc) CanJoin(ctx context.Context, userID, roomID string) (bool, error) {
	return f(ctx, userID, roomID)
}

// Service gates and tracks live room membership and fans events out to the
// currently connected members through the presence manager.
type Service struct {
	mgr   *presence.Manager
	authz Authorizer

	mu     sync.RWMutex
	rooms  map[string]*room
	byConn map[uuid.UUID]map[string]struct{}

	logger *slog.Logger
	now    func() time.Time
}

// room holds the live-member set of one logical room. members maps user ids
// to the connection ids through which the user joined; a user stays a member
// until their last joined connection leaves.
type room struct {
	id   string
	kind Kind

	mu      sync.RWMutex
	members map[string]map[uuid.UUID]struct{}
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger for the Service.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the room membership service and registers it as the
// presence manager's room evictor so that disconnecting connections leave
// all of their rooms.
func NewService(mgr *presence.Manager, authz Authorizer, opts ...ServiceOption) (*Service, error) {
	if mgr == nil {
		return nil, ErrManagerNil
	}
	if authz == nil {
		return nil, ErrAuthorizerNil
	}

	s := &Service{
		mgr:    mgr,
		authz:  authz,
		rooms:  make(map[string]*room),
		byConn: make(map[uuid.UUID]map[string]struct{}),
		logger: slog.Default(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	mgr.SetRoomEvictor(s)

	return s, nil
}

// JoinOption configures a single Join call.
type JoinOption func(*joinOptions)

type joinOptions struct {
	kind Kind
}

// WithKind sets the room kind used when the join creates the room.
// Subsequent joins never change an existing room's kind.
func WithKind(kind Kind) JoinOption {
	return func(o *joinOptions) {
		if kind != "" {
			o.kind = kind
		}
	}
}

// Join adds the connection's user to the room after consulting the
// authorizer. The room is created on first authorized join. A denied join
// returns ErrNotAParticipant with no side effects.
func (s *Service) Join(ctx context.Context, conn presence.Conn, roomID string, opts ...JoinOption) error {
	if conn == nil {
		return presence.ErrConnNil
	}
	if roomID == "" {
		return ErrRoomIDEmpty
	}

	userID, ok := s.mgr.UserOf(conn.ID())
	if !ok {
		return ErrConnNotRegistered
	}

	options := &joinOptions{kind: KindChat}
	for _, opt := range opts {
		opt(options)
	}

	allowed, err := s.authz.CanJoin(ctx, userID, roomID)
	if err != nil {
		return fmt.Errorf("authorization check for room %q: %w", roomID, err)
	}
	if !allowed {
		return ErrNotAParticipant
	}

	s.mu.Lock()
	r, exists := s.rooms[roomID]
	if !exists {
		r = &room{
			id:      roomID,
			kind:    options.kind,
			members: make(map[string]map[uuid.UUID]struct{}),
		}
		s.rooms[roomID] = r
	}
	if s.byConn[conn.ID()] == nil {
		s.byConn[conn.ID()] = make(map[string]struct{})
	}
	s.byConn[conn.ID()][roomID] = struct{}{}
	s.mu.Unlock()

	r.mu.Lock()
	if r.members[userID] == nil {
		r.members[userID] = make(map[uuid.UUID]struct{})
	}
	r.members[userID][conn.ID()] = struct{}{}
	r.mu.Unlock()

	s.logger.Debug("joined room",
		logger.RoomID(roomID),
		logger.UserID(userID),
		logger.ConnID(conn.ID()))

	s.FanOut(roomID, presence.Event{
		Type:   presence.EventRoomJoined,
		RoomID: roomID,
		UserID: userID,
		At:     s.now(),
	})

	return nil
}

// Leave removes the connection from the room. Idempotent: leaving a room
// the connection is not in is a no-op, never an error. The user stays a
// live member while any of their other connections remain joined.
func (s *Service) Leave(conn presence.Conn, roomID string) {
	if conn == nil || roomID == "" {
		return
	}

	userID, _ := s.mgr.UserOf(conn.ID())

	s.mu.Lock()
	r, exists := s.rooms[roomID]
	if set, ok := s.byConn[conn.ID()]; ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(s.byConn, conn.ID())
		}
	}
	s.mu.Unlock()

	if !exists {
		return
	}

	userLeft := false
	r.mu.Lock()
	for uid, conns := range r.members {
		if _, ok := conns[conn.ID()]; ok {
			delete(conns, conn.ID())
			if len(conns) == 0 {
				delete(r.members, uid)
				userID = uid
				userLeft = true
			}
			break
		}
	}
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		s.mu.Lock()
		// Re-check under the service lock; a concurrent join may have
		// repopulated the room between the two critical sections.
		r.mu.RLock()
		if len(r.members) == 0 {
			delete(s.rooms, roomID)
		}
		r.mu.RUnlock()
		s.mu.Unlock()
	}

	if userLeft && userID != "" {
		s.FanOut(roomID, presence.Event{
			Type:   presence.EventRoomLeft,
			RoomID: roomID,
			UserID: userID,
			At:     s.now(),
		})
	}
}

// FanOutOption configures a single FanOut call.
type FanOutOption func(*fanOutOptions)

type fanOutOptions struct {
	excludeUserID string
}

// ExcludeUser skips one user's connections during fan-out.
func ExcludeUser(userID string) FanOutOption {
	return func(o *fanOutOptions) {
		o.excludeUserID = userID
	}
}

// FanOut delivers the event to every currently live member of the room via
// the presence manager. Members without a live connection are silently
// skipped; message history persistence is the CRUD layer's job, not ours.
// The member snapshot is taken under the room lock so a racing join or
// leave serializes against the fan-out.
func (s *Service) FanOut(roomID string, event presence.Event, opts ...FanOutOption) {
	options := &fanOutOptions{}
	for _, opt := range opts {
		opt(options)
	}

	s.mu.RLock()
	r, exists := s.rooms[roomID]
	s.mu.RUnlock()
	if !exists {
		return
	}

	r.mu.RLock()
	members := make([]string, 0, len(r.members))
	for userID := range r.members {
		if userID == options.excludeUserID {
			continue
		}
		members = append(members, userID)
	}
	r.mu.RUnlock()

	for _, userID := range members {
		s.mgr.SendToUser(userID, event)
	}
}

// Message fans a chat message out to the room on behalf of the sender's
// connection. The sender must currently be a member.
func (s *Service) Message(conn presence.Conn, roomID, text string) error {
	userID, err := s.requireMember(conn, roomID)
	if err != nil {
		return err
	}

	s.FanOut(roomID, presence.Event{
		Type:   presence.EventMessage,
		RoomID: roomID,
		UserID: userID,
		At:     s.now(),
		Data:   map[string]any{"text": text},
	})

	return nil
}

// Typing fans an ephemeral typing indicator out to the other members.
// At-most-once, unordered, no retry and no persistence.
func (s *Service) Typing(conn presence.Conn, roomID string, started bool) error {
	userID, err := s.requireMember(conn, roomID)
	if err != nil {
		return err
	}

	eventType := presence.EventTypingStop
	if started {
		eventType = presence.EventTypingStart
	}

	s.FanOut(roomID, presence.Event{
		Type:   eventType,
		RoomID: roomID,
		UserID: userID,
		At:     s.now(),
	}, ExcludeUser(userID))

	return nil
}

// EvictConn removes the connection from every room it has joined. Called by
// the presence manager on disconnect.
func (s *Service) EvictConn(conn presence.Conn) {
	if conn == nil {
		return
	}

	s.mu.RLock()
	joined := make([]string, 0, len(s.byConn[conn.ID()]))
	for roomID := range s.byConn[conn.ID()] {
		joined = append(joined, roomID)
	}
	s.mu.RUnlock()

	for _, roomID := range joined {
		s.Leave(conn, roomID)
	}
}

// Members returns the user ids currently present in the room.
func (s *Service) Members(roomID string) []string {
	s.mu.RLock()
	r, exists := s.rooms[roomID]
	s.mu.RUnlock()
	if !exists {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.members))
	for userID := range r.members {
		members = append(members, userID)
	}
	return members
}

// RoomKind returns the kind of an existing room.
func (s *Service) RoomKind(roomID string) (Kind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.rooms[roomID]
	if !exists {
		return "", false
	}
	return r.kind, true
}

// requireMember resolves the connection's user and verifies current room
// membership through that connection.
func (s *Service) requireMember(conn presence.Conn, roomID string) (string, error) {
	if conn == nil {
		return "", presence.ErrConnNil
	}

	userID, ok := s.mgr.UserOf(conn.ID())
	if !ok {
		return "", ErrConnNotRegistered
	}

	s.mu.RLock()
	_, joined := s.byConn[conn.ID()][roomID]
	s.mu.RUnlock()

	if !joined {
		return "", ErrNotAParticipant
	}

	return userID, nil
}
