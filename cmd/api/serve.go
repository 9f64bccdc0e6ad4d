package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aridsondez/AWS-SQS-MOCK/internal/api"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/config"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/engine"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/logging"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store/memory"
	pgstore "github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store/postgres"
	redisstore "github.com/aridsondez/AWS-SQS-MOCK/internal/queue/store/redis"
	"github.com/aridsondez/AWS-SQS-MOCK/internal/queue/sweeper"
)

const shutdownTimeout = 10 * time.Second

func serve(c *cli.Context) error {
	cfg, err := config.LoadConfig(func(cfg *config.Config) {
		if c.IsSet("port") {
			cfg.Port = c.Int("port")
		}
		if c.IsSet("backend") {
			cfg.Backend = c.String("backend")
		}
		if c.IsSet("default-queue-url") {
			cfg.DefaultQueueURL = c.String("default-queue-url")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sugar, err := logging.NewSugaredLogger(c.Bool("verbose"), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush

	sugar.Infow("config",
		"port", cfg.Port,
		"endpoint", cfg.Endpoint,
		"backend", cfg.Backend,
		"visibilityTimeout", cfg.VisibilityTimeout,
		"sweepInterval", cfg.SweepInterval,
		"longPollInterval", cfg.LongPollInterval,
		"requestTimeout", cfg.RequestTimeout,
		"queueCacheTTL", cfg.QueueCacheTTL,
		"defaultQueueURL", cfg.DefaultQueueURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, sugar)
	if err != nil {
		return err
	}
	defer st.Close()

	svc := engine.New(st, engine.Options{
		Endpoint:          cfg.Endpoint,
		Logger:            sugar,
		LongPollInterval:  cfg.LongPollInterval,
		VisibilityTimeout: int(cfg.VisibilityTimeout / time.Second),
		DefaultQueueURL:   cfg.DefaultQueueURL,
		CacheTTL:          cfg.QueueCacheTTL,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := api.NewServer(addr, svc, sugar, cfg.RequestTimeout)
	swp := sweeper.New(st, cfg.SweepInterval, nil, sugar)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("HTTP server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		swp.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sugar.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("serve failed", "error", err)
		return err
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.LoadConfig(func(cfg *config.Config) {
		cfg.Backend = config.BackendPostgres
		if c.IsSet("database-url") {
			cfg.DatabaseURL = c.String("database-url")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	sugar, err := logging.NewSugaredLogger(c.Bool("verbose"), cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush

	pool, err := pgstore.Connect(c.Context, cfg.DatabaseURL, cfg.DBConnectionTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	st := pgstore.New(pool)
	defer st.Close()

	if err := st.Migrate(c.Context); err != nil {
		return err
	}
	sugar.Info("schema is up to date")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.Connect(ctx, cfg.DatabaseURL, cfg.DBConnectionTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st := pgstore.New(pool)
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		log.Infow("using postgres store")
		return st, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectionTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Infow("using redis store", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return redisstore.New(client, cfg.RedisPrefix), nil

	default:
		log.Infow("using in-memory store")
		return memory.New(), nil
	}
}
