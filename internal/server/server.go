// Package server exposes the HTTP surface: poll CRUD, vote casting and
// the websocket result stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/robsonshockwave/polls-api/internal/config"
	"github.com/robsonshockwave/polls-api/internal/domain"
	apperrors "github.com/robsonshockwave/polls-api/internal/errors"
	"github.com/robsonshockwave/polls-api/internal/hub"
	"github.com/robsonshockwave/polls-api/internal/metrics"
)

// identityResolver resolves and issues the anonymous voter identity.
type identityResolver interface {
	Resolve(req *http.Request) (voterID uuid.UUID, fresh bool)
	Issue(req *http.Request, w http.ResponseWriter, voterID uuid.UUID) error
}

// redisPinger is a minimal interface for Redis health checks.
type redisPinger interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

// postgresPinger is a minimal interface for PostgreSQL health checks.
type postgresPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       domain.PollService
	hub       *hub.Hub
	identity  identityResolver
	limits    *ConnectionLimits
	clock     clockwork.Clock
	wsMetrics *metrics.WebSocketMetrics
	redis     redisPinger
	db        postgresPinger
	startTime time.Time
}

func NewServer(
	cfg *config.Config,
	app domain.PollService,
	broadcastHub *hub.Hub,
	identity identityResolver,
	wsMetrics *metrics.WebSocketMetrics,
	db postgresPinger,
	redis redisPinger,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       app,
		hub:       broadcastHub,
		identity:  identity,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, cfg.ConnectionRate, cfg.ConnectionBurst),
		clock:     clock,
		wsMetrics: wsMetrics,
		redis:     redis,
		db:        db,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
