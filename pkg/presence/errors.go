package presence

import "errors"

var (
	// ErrInvalidToken is returned when the credential token is malformed or
	// its signature does not verify.
	ErrInvalidToken = errors.New("presence: invalid credential token")

	// ErrExpiredToken is returned when the credential token has expired.
	ErrExpiredToken = errors.New("presence: credential token expired")

	// ErrUserNotFound is returned when the token subject does not resolve
	// to a known user. Directory implementations return this sentinel for
	// unknown subjects.
	ErrUserNotFound = errors.New("presence: user not found")

	// ErrUserDeactivated is returned when the resolved user account is
	// deactivated.
	ErrUserDeactivated = errors.New("presence: user account deactivated")

	// ErrNotAuthenticated is returned when Register is called with an
	// identity that did not pass Authenticate.
	ErrNotAuthenticated = errors.New("presence: connection not authenticated")

	// ErrAlreadyRegistered is returned when a connection id is registered twice.
	ErrAlreadyRegistered = errors.New("presence: connection already registered")

	// ErrConnNil is returned when a nil connection is provided.
	ErrConnNil = errors.New("presence: connection cannot be nil")

	// ErrTokenServiceNil is returned when the manager is created without a token service.
	ErrTokenServiceNil = errors.New("presence: token service cannot be nil")

	// ErrDirectoryNil is returned when the manager is created without a user directory.
	ErrDirectoryNil = errors.New("presence: user directory cannot be nil")
)
