package ws

import "errors"

var (
	// ErrManagerNil is returned when the handler is created without a
	// presence manager.
	ErrManagerNil = errors.New("presence manager cannot be nil")
	// ErrRoomsNil is returned when the handler is created without a room
	// service.
	ErrRoomsNil = errors.New("room service cannot be nil")
	// ErrSendBufferFull signals a slow consumer: the connection's outbound
	// buffer overflowed and the connection will be closed.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrConnClosed is returned when sending on a closed connection.
	ErrConnClosed = errors.New("connection closed")
)
