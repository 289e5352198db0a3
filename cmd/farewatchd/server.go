package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lborres/farewatch"
	fiberadapter "github.com/lborres/farewatch/adapters/fiber"
	"github.com/lborres/farewatch/adapters/memory"
	pgxadapter "github.com/lborres/farewatch/adapters/pgx"
	"github.com/lborres/farewatch/core"
	"github.com/lborres/farewatch/pkg/cache"
)

const (
	shutdownTimeout = 10 * time.Second
	redisKeyPrefix  = "farewatch:session:"
)

func accessLogFormat() string {
	format := []string{
		"${time}|${locals:requestid}",
		"${status}|${latency}",
		"${ip}",
		"${method}|${path}",
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

// Run serves the API until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, log *slog.Logger) error {
	storage, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	sessionCache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	app := newApp()
	adapter := fiberadapter.New(app,
		fiberadapter.WithLoginRateLimit(rate.Limit(cfg.LoginRate/60), cfg.LoginBurst),
		fiberadapter.WithLogger(log),
	)

	fw, err := farewatch.New(farewatch.Config{
		Secret:        cfg.Secret,
		Database:      storage,
		HTTP:          adapter,
		CacheAdapter:  sessionCache,
		SessionConfig: &core.SessionConfig{MaxAge: cfg.SessionMaxAge},
		AdminEmails:   adminEmails(cfg),
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("could not create farewatch instance: %w", err)
	}

	if cfg.AdminEmail != "" {
		admin, err := fw.Auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		log.Info("admin account ready", "user_id", admin.ID)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr)
		return app.Listen(cfg.HTTPAddr, fiber.ListenConfig{DisableStartupMessage: true})
	})

	g.Go(func() error {
		sweep(gctx, fw.Sessions, cfg.SweepInterval, log)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{AppName: "farewatch"})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:     accessLogFormat(),
		TimeFormat: "2006/01/02 15:04:05",
		TimeZone:   "Local",
	}))
	return app
}

func adminEmails(cfg Config) []string {
	if cfg.AdminEmail == "" {
		return nil
	}
	return []string{cfg.AdminEmail}
}

func openStorage(ctx context.Context, cfg Config, log *slog.Logger) (farewatch.AuthStorage, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("FAREWATCH_DATABASE_URL not set, accounts are kept in memory")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	db := pgxadapter.New(pool)
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info("connected to postgres")
	return db, pool.Close, nil
}

func openCache(ctx context.Context, cfg Config, log *slog.Logger) (farewatch.Cache, func(), error) {
	cacheConfig := farewatch.CacheConfig{TTL: cfg.CacheTTL, MaxSize: cfg.CacheSize}

	if cfg.RedisURL == "" {
		return farewatch.NewInMemoryCache(cacheConfig), func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("session cache on redis")
	return cache.NewRedisCache(client, redisKeyPrefix, cacheConfig), func() { _ = client.Close() }, nil
}

// sweep deletes expired sessions every interval until ctx is done.
func sweep(ctx context.Context, sessions interface {
	Sweep(context.Context) (int, error)
}, interval time.Duration, log *slog.Logger) {
	if interval == 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Sweep(ctx)
			if err != nil {
				log.Error("sweep expired sessions", "error", err)
				continue
			}
			if n > 0 {
				log.Info("swept expired sessions", "count", n)
			}
		}
	}
}
