package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

type config struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	startHooks      []func(*slog.Logger)
	stopHooks       []func(*slog.Logger)
}

// Server runs the realtime HTTP endpoint. Its lifecycle is driven entirely
// by the context passed to Run; the caller owns signal handling.
type Server struct {
	cfg config
}

// New returns a Server with the given options applied over the defaults
// (listen on :8080, 5s drain deadline).
func New(opts ...Option) *Server {
	cfg := config{
		addr:            ":8080",
		shutdownTimeout: 5 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{cfg: cfg}
}

// Run listens on the configured address and serves handler until ctx is
// canceled, then drains in-flight requests within the shutdown deadline.
// Cancellation followed by a clean drain returns nil, so Run slots into an
// errgroup next to the dispatch workers without failing the group on
// SIGTERM. A listen failure returns ErrStart; a missed drain deadline
// returns ErrShutdown.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	srv := &http.Server{
		Addr:         s.cfg.addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.readTimeout,
		WriteTimeout: s.cfg.writeTimeout,
		IdleTimeout:  s.cfg.idleTimeout,
	}

	for _, h := range s.cfg.startHooks {
		h(s.cfg.logger)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		// Shutdown has not been called yet, so this is never
		// http.ErrServerClosed.
		return errors.Join(ErrStart, err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), s.cfg.shutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(drainCtx)
	<-errCh

	for _, h := range s.cfg.stopHooks {
		h(s.cfg.logger)
	}

	if shutdownErr != nil {
		return errors.Join(ErrShutdown, shutdownErr)
	}
	return nil
}
