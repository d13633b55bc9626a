package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Conn is the transport-facing side of a live connection. The websocket
// transport implements it; tests use in-memory fakes.
//
// Send must not block indefinitely: implementations are expected to buffer
// writes and return an error when the buffer overflows or the transport has
// failed, at which point the manager closes that one connection.
type Conn interface {
	ID() uuid.UUID
	Send(event Event) error
	Close(reason string) error
}

// Identity is the authenticated subject of a connection, produced exactly
// once at handshake time.
type Identity struct {
	UserID          string
	AuthenticatedAt time.Time
}

// User is the directory record consulted during authentication.
type User struct {
	ID          string
	Deactivated bool
}

// UserDirectory resolves token subjects to user accounts. It is an external
// collaborator: the CRUD layer owns user records, the presence manager only
// asks whether the subject exists and is active. Implementations return
// ErrUserNotFound for unknown subjects.
type UserDirectory interface {
	Lookup(ctx context.Context, userID string) (User, error)
}

// UserDirectoryFunc adapts a function to the UserDirectory interface.
type UserDirectoryFunc func(ctx context.Context, userID string) (User, error)

func (f UserDirectoryFunc) Lookup(ctx context.Context, userID string) (User, error) {
	return f(ctx, userID)
}

// RoomEvictor removes a connection from every room it has joined. The room
// membership service registers itself as the evictor so that disconnects
// clean up room state without the manager knowing about rooms.
type RoomEvictor interface {
	EvictConn(conn Conn)
}
