// Package redis bootstraps the Redis client backing the distributed job
// queue. It wraps go-redis with environment-driven configuration, startup
// retry, and a readiness probe.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		panic(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		panic(err)
//	}
//	defer client.Close()
//
//	store, err := dispatch.NewRedisStorage(client)
//
// Mount redis.Healthcheck(client) on a readiness endpoint to gate traffic
// on queue availability.
package redis
