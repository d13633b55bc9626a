// Package httpserver is the outer shell of ridekit's realtime endpoint.
// It serves the ws.Handler router together with liveness and readiness
// probes for the Postgres and Redis backends, and drains in-flight
// requests when the process shuts down.
//
// The server takes no part in signal handling: Run serves until the
// passed context is canceled, which in ridekitd happens through
// signal.NotifyContext in main. On cancellation it calls
// http.Server.Shutdown with the configured deadline and returns nil when
// the drain completes, so it composes with the dispatch workers under a
// single errgroup.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
//	r.Mount("/realtime", wsHandler.Router())
//
//	srv := httpserver.New(
//		httpserver.WithAddr(":8080"),
//		httpserver.WithShutdownTimeout(10*time.Second),
//	)
//	g.Go(func() error { return srv.Run(ctx, r) })
//
// # Errors
//
// A listen failure is wrapped with ErrStart and a missed drain deadline
// with ErrShutdown; inspect both with errors.Is.
package httpserver
