package rooms

import "errors"

var (
	// ErrNotAParticipant is returned when the authorization collaborator
	// denies a join, or when a room operation requires membership the
	// connection does not have. No state is mutated; the caller may retry
	// after obtaining authorization.
	ErrNotAParticipant = errors.New("rooms: user is not a participant of this room")

	// ErrConnNotRegistered is returned when the connection is unknown to
	// the presence manager.
	ErrConnNotRegistered = errors.New("rooms: connection is not registered")

	// ErrRoomIDEmpty is returned when an empty room id is provided.
	ErrRoomIDEmpty = errors.New("rooms: room id cannot be empty")

	// ErrManagerNil is returned when the service is created without a presence manager.
	ErrManagerNil = errors.New("rooms: presence manager cannot be nil")

	// ErrAuthorizerNil is returned when the service is created without an authorizer.
	ErrAuthorizerNil = errors.New("rooms: authorizer cannot be nil")
)
