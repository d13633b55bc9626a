// Package pg bootstraps the PostgreSQL connection pool backing the delivery
// log. It wraps pgx/v5 pooling with environment-driven configuration,
// startup retry, a readiness probe, and error classification helpers.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		panic(err)
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		panic(err)
//	}
//	defer pool.Close()
//
//	store := deliverylog.NewPGStorage(pool)
//
// Mount pg.Healthcheck(pool) on a readiness endpoint to gate traffic on
// database availability.
package pg
