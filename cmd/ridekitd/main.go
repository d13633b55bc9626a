package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/ridekit/pkg/authtoken"
	"github.com/dmitrymomot/ridekit/pkg/config"
	"github.com/dmitrymomot/ridekit/pkg/delivery"
	"github.com/dmitrymomot/ridekit/pkg/deliverylog"
	"github.com/dmitrymomot/ridekit/pkg/dispatch"
	"github.com/dmitrymomot/ridekit/pkg/httpserver"
	"github.com/dmitrymomot/ridekit/pkg/logger"
	"github.com/dmitrymomot/ridekit/pkg/pg"
	"github.com/dmitrymomot/ridekit/pkg/prefs"
	"github.com/dmitrymomot/ridekit/pkg/presence"
	"github.com/dmitrymomot/ridekit/pkg/redis"
	"github.com/dmitrymomot/ridekit/pkg/rooms"
	"github.com/dmitrymomot/ridekit/pkg/ws"
)

type appConfig struct {
	Env          string `env:"APP_ENV" envDefault:"development"`
	SigningKey   string `env:"AUTH_SIGNING_KEY,required"`
	UsePostgres  bool   `env:"USE_POSTGRES" envDefault:"false"`
	UseRedis     bool   `env:"USE_REDIS" envDefault:"false"`
	UsePostmark  bool   `env:"USE_POSTMARK" envDefault:"false"`
	DevOutboxDir string `env:"DEV_OUTBOX_DIR" envDefault:"./outbox"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logOpt logger.Option
	if cfg.Env == "production" {
		logOpt = logger.WithProduction("ridekitd")
	} else {
		logOpt = logger.WithDevelopment("ridekitd")
	}
	log := logger.New(logOpt)

	tokens, err := authtoken.NewFromString(cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("auth tokens: %w", err)
	}

	// The daemon has no user store of its own; it trusts any active subject
	// carried by a signed token. A deployment plugs in its real directory.
	directory := presence.UserDirectoryFunc(func(ctx context.Context, userID string) (presence.User, error) {
		return presence.User{ID: userID}, nil
	})
	manager, err := presence.NewManager(tokens, directory, presence.WithLogger(log))
	if err != nil {
		return fmt.Errorf("presence manager: %w", err)
	}

	authz := rooms.AuthorizerFunc(func(ctx context.Context, userID, roomID string) (bool, error) {
		return true, nil
	})
	roomSvc, err := rooms.NewService(manager, authz, rooms.WithLogger(log))
	if err != nil {
		return fmt.Errorf("room service: %w", err)
	}

	wsHandler, err := ws.NewHandler(manager, roomSvc, ws.WithHandlerLogger(log))
	if err != nil {
		return fmt.Errorf("ws handler: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	readiness := make([]func(context.Context) error, 0, 2)

	var jobs dispatch.Storage
	var redisJobs *dispatch.RedisStorage
	if cfg.UseRedis {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return fmt.Errorf("load redis config: %w", err)
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		readiness = append(readiness, redis.Healthcheck(client))

		redisJobs, err = dispatch.NewRedisStorage(client)
		if err != nil {
			return fmt.Errorf("redis job storage: %w", err)
		}
		jobs = redisJobs
	} else {
		mem := dispatch.NewMemoryStorage()
		defer mem.Close()
		jobs = mem
	}

	var dlog deliverylog.Storage
	if cfg.UsePostgres {
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return fmt.Errorf("load postgres config: %w", err)
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		readiness = append(readiness, pg.Healthcheck(pool))

		store := deliverylog.NewPGStorage(pool)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate delivery log: %w", err)
		}
		dlog = store

		janitor := deliverylog.NewJanitor(store, deliverylog.WithJanitorLogger(log))
		g.Go(janitor.Run(ctx))
	} else {
		dlog = deliverylog.NewMemoryStorage()
	}

	registry := delivery.NewRegistry()
	var email dispatch.Sender
	if cfg.UsePostmark {
		var emailCfg delivery.EmailConfig
		if err := config.Load(&emailCfg); err != nil {
			return fmt.Errorf("load email config: %w", err)
		}
		email, err = delivery.NewPostmarkAdapter(emailCfg)
		if err != nil {
			return fmt.Errorf("postmark adapter: %w", err)
		}
	} else {
		email = delivery.NewDevEmailSender(cfg.DevOutboxDir)
	}
	inApp, err := delivery.NewInAppAdapter(manager)
	if err != nil {
		return fmt.Errorf("in-app adapter: %w", err)
	}
	adapters := map[dispatch.Channel]dispatch.Sender{
		dispatch.ChannelEmail: email,
		dispatch.ChannelSMS:   delivery.NewDevSMSSender(log),
		dispatch.ChannelPush:  delivery.NewDevPushSender(log),
		dispatch.ChannelInApp: inApp,
	}
	for ch, adapter := range adapters {
		if err := registry.Register(ch, adapter); err != nil {
			return fmt.Errorf("register adapter: %w", err)
		}
	}

	resolver := prefs.NewStaticResolver(nil)
	engine, err := dispatch.NewEngine(jobs, resolver, dlog, dispatch.WithEngineLogger(log))
	if err != nil {
		return fmt.Errorf("dispatch engine: %w", err)
	}

	for _, ch := range registry.Channels() {
		sender, err := registry.Adapter(ch)
		if err != nil {
			return fmt.Errorf("adapter for %s: %w", ch, err)
		}
		worker, err := dispatch.NewWorker(jobs, ch, sender, dlog, dispatch.WithWorkerLogger(log))
		if err != nil {
			return fmt.Errorf("worker for %s: %w", ch, err)
		}
		g.Go(worker.Run(ctx))
	}

	// Redis storage has no in-process lock manager; sweep expired locks so
	// jobs claimed by a crashed worker get requeued.
	if redisJobs != nil {
		g.Go(dispatch.RecoverLoop(ctx, redisJobs, 30*time.Second, log, registry.Channels()...))
	}

	r := chi.NewRouter()
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log, readiness...))
	r.Mount("/realtime", wsHandler.Router())
	r.Mount("/v1", newAPI(engine, log).router())

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return fmt.Errorf("load http config: %w", err)
	}
	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("server listening", "addr", httpCfg.Addr)
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("server stopped")
		}),
	)

	g.Go(func() error { return srv.Run(ctx, r) })

	return g.Wait()
}
