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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/robsonshockwave/polls-api/internal/app"
	"github.com/robsonshockwave/polls-api/internal/config"
	"github.com/robsonshockwave/polls-api/internal/hub"
	"github.com/robsonshockwave/polls-api/internal/identity"
	"github.com/robsonshockwave/polls-api/internal/logging"
	"github.com/robsonshockwave/polls-api/internal/metrics"
	"github.com/robsonshockwave/polls-api/internal/postgres"
	"github.com/robsonshockwave/polls-api/internal/redis"
	"github.com/robsonshockwave/polls-api/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, broadcastHub *hub.Hub) <-chan struct{} {
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

		broadcastHub.Stop()
		close(done)
	}()

	return done
}

func main() {
	_ = godotenv.Load()

	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	voteMetrics := metrics.NewVoteMetrics(prometheus.DefaultRegisterer)
	hubMetrics := metrics.NewHubMetrics(prometheus.DefaultRegisterer)
	wsMetrics := metrics.NewWebSocketMetrics(prometheus.DefaultRegisterer)

	broadcastHub := hub.NewHub(hubMetrics)

	pollRepo := postgres.NewPollRepo(pool)
	voteLedger := postgres.NewVoteRepo(pool)
	tallyStore := redis.NewTallyStore(redisClient)

	appSvc := app.NewService(pollRepo, voteLedger, tallyStore, broadcastHub, voteMetrics, clock)
	resolver := identity.NewResolver(cfg.SessionSecret, cfg.AppEnv == "production")

	srv := server.NewServer(cfg, appSvc, broadcastHub, resolver, wsMetrics, pool, redisClient, clock)

	done := runGracefulShutdown(srv, broadcastHub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
