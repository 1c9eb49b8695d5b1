package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pollpulse/pollpulse/internal/app"
	"github.com/pollpulse/pollpulse/internal/broadcast"
	"github.com/pollpulse/pollpulse/internal/config"
	apperrors "github.com/pollpulse/pollpulse/internal/errors"
)

// storeHealthChecker is a minimal interface for database health checks.
// The in-memory store has no implementation; the check is skipped.
type storeHealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Server struct {
	echo        *echo.Echo
	config      *config.Config
	service     *app.Service
	registry    *broadcast.Registry
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock
	dbCheck     storeHealthChecker // nil with the in-memory store
	redisClient *goredis.Client    // nil when the vote cooldown is disabled
	startTime   time.Time
}

func NewServer(cfg *config.Config, service *app.Service, registry *broadcast.Registry, broadcaster *broadcast.Broadcaster, clock clockwork.Clock, dbCheck storeHealthChecker, redisClient *goredis.Client) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:        e,
		config:      cfg,
		service:     service,
		registry:    registry,
		broadcaster: broadcaster,
		clock:       clock,
		dbCheck:     dbCheck,
		redisClient: redisClient,
		startTime:   clock.Now(),
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
