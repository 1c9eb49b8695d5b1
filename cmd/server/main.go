package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pollpulse/pollpulse/internal/app"
	"github.com/pollpulse/pollpulse/internal/broadcast"
	"github.com/pollpulse/pollpulse/internal/config"
	"github.com/pollpulse/pollpulse/internal/database"
	"github.com/pollpulse/pollpulse/internal/domain"
	"github.com/pollpulse/pollpulse/internal/logging"
	"github.com/pollpulse/pollpulse/internal/redis"
	"github.com/pollpulse/pollpulse/internal/server"
	"github.com/pollpulse/pollpulse/internal/version"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(cfg *config.Config, clock clockwork.Clock) (domain.Store, *database.Store, func()) {
	if cfg.DatabaseURL == config.StoreMemory {
		slog.Warn("Using in-memory store, data is lost on restart")
		return app.NewMemoryStore(clock), nil, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	store := database.NewStore(pool)
	return store, store, pool.Close
}

func setupRedis(cfg *config.Config) (*goredis.Client, func()) {
	if cfg.RedisURL == "" {
		return nil, func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client, func() { _ = client.Close() }
}

func runGracefulShutdown(srv *server.Server, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	store, dbCheck, closeStore := setupStore(cfg, clock)
	defer closeStore()

	redisClient, closeRedis := setupRedis(cfg)
	defer closeRedis()

	var limiter app.VoteLimiter
	if cfg.VoteCooldown > 0 {
		limiter = redis.NewCooldown(redisClient, cfg.VoteCooldown)
		slog.Info("Vote cooldown enabled", "interval", cfg.VoteCooldown)
	}

	registry := broadcast.NewRegistry(cfg.MaxClientsPerPoll)
	broadcaster := broadcast.NewBroadcaster(registry)
	service := app.NewService(store, broadcaster, limiter)

	// Avoid a typed-nil interface when running on the in-memory store.
	var srv *server.Server
	if dbCheck != nil {
		srv = server.NewServer(cfg, service, registry, broadcaster, clock, dbCheck, redisClient)
	} else {
		srv = server.NewServer(cfg, service, registry, broadcaster, clock, nil, redisClient)
	}

	done := runGracefulShutdown(srv, broadcaster)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
