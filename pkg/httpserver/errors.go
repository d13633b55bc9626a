package httpserver

import "errors"

var (
	// ErrStart indicates the server could not begin listening.
	ErrStart = errors.New("httpserver: failed to start")
	// ErrShutdown indicates in-flight requests did not drain within the
	// shutdown deadline.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
