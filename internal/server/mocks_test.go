package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/robsonshockwave/polls-api/internal/config"
	"github.com/robsonshockwave/polls-api/internal/domain"
	"github.com/robsonshockwave/polls-api/internal/hub"
	"github.com/robsonshockwave/polls-api/internal/metrics"
)

// mockPollService implements domain.PollService with function fields so
// each test installs only the behavior it needs.
type mockPollService struct {
	createPollFn     func(ctx context.Context, title string, options []string) (*domain.Poll, error)
	getPollResultsFn func(ctx context.Context, pollID uuid.UUID) (*domain.PollResults, error)
	castVoteFn       func(ctx context.Context, pollID, optionID, voterID uuid.UUID) error
}

func (m *mockPollService) CreatePoll(ctx context.Context, title string, options []string) (*domain.Poll, error) {
	return m.createPollFn(ctx, title, options)
}

func (m *mockPollService) GetPollResults(ctx context.Context, pollID uuid.UUID) (*domain.PollResults, error) {
	return m.getPollResultsFn(ctx, pollID)
}

func (m *mockPollService) CastVote(ctx context.Context, pollID, optionID, voterID uuid.UUID) error {
	return m.castVoteFn(ctx, pollID, optionID, voterID)
}

// stubIdentity hands out a fixed voter identity and records issued cookies.
type stubIdentity struct {
	voterID  uuid.UUID
	fresh    bool
	issueErr error
	issued   []uuid.UUID
}

func (s *stubIdentity) Resolve(_ *http.Request) (uuid.UUID, bool) {
	return s.voterID, s.fresh
}

func (s *stubIdentity) Issue(_ *http.Request, w http.ResponseWriter, voterID uuid.UUID) error {
	if s.issueErr != nil {
		return s.issueErr
	}
	s.issued = append(s.issued, voterID)
	http.SetCookie(w, &http.Cookie{Name: "polls_voter", Value: voterID.String(), Path: "/"})
	return nil
}

type stubRedis struct {
	err error
}

func (s *stubRedis) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

type stubPostgres struct {
	err error
}

func (s *stubPostgres) Ping(_ context.Context) error {
	return s.err
}

type testServerOptions struct {
	service  domain.PollService
	identity *stubIdentity
	redis    *stubRedis
	db       *stubPostgres
	config   *config.Config
	clock    clockwork.Clock
}

func newTestServer(t *testing.T, opts testServerOptions) (*Server, *hub.Hub) {
	t.Helper()

	if opts.identity == nil {
		opts.identity = &stubIdentity{voterID: uuid.New()}
	}
	if opts.redis == nil {
		opts.redis = &stubRedis{}
	}
	if opts.db == nil {
		opts.db = &stubPostgres{}
	}
	if opts.clock == nil {
		opts.clock = clockwork.NewFakeClock()
	}
	if opts.config == nil {
		opts.config = &config.Config{
			Port:                "0",
			MaxConnections:      100,
			MaxConnectionsPerIP: 100,
			ConnectionRate:      1000,
			ConnectionBurst:     1000,
		}
	}

	reg := prometheus.NewRegistry()
	broadcastHub := hub.NewHub(metrics.NewHubMetrics(reg))
	t.Cleanup(broadcastHub.Stop)

	srv := NewServer(
		opts.config,
		opts.service,
		broadcastHub,
		opts.identity,
		metrics.NewWebSocketMetrics(reg),
		opts.db,
		opts.redis,
		opts.clock,
	)
	return srv, broadcastHub
}
