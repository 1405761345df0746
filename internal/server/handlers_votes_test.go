package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robsonshockwave/polls-api/internal/domain"
)

func castVoteRequestFor(pollID string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/polls/"+pollID+"/votes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCastVote_FirstVoteSetsCookie(t *testing.T) {
	pollID := uuid.New()
	optionID := uuid.New()
	identity := &stubIdentity{voterID: uuid.New(), fresh: true}

	var gotPoll, gotOption, gotVoter uuid.UUID
	svc := &mockPollService{
		castVoteFn: func(_ context.Context, p, o, v uuid.UUID) error {
			gotPoll, gotOption, gotVoter = p, o, v
			return nil
		},
	}
	srv, _ := newTestServer(t, testServerOptions{service: svc, identity: identity})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, optionID)
	srv.echo.ServeHTTP(rec, castVoteRequestFor(pollID.String(), body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, pollID, gotPoll)
	assert.Equal(t, optionID, gotOption)
	assert.Equal(t, identity.voterID, gotVoter)

	require.Len(t, identity.issued, 1, "a fresh identity must be issued on success")
	assert.Equal(t, identity.voterID, identity.issued[0])
}

func TestCastVote_ReturningVoterGetsNoCookie(t *testing.T) {
	identity := &stubIdentity{voterID: uuid.New(), fresh: false}
	svc := &mockPollService{
		castVoteFn: func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error { return nil },
	}
	srv, _ := newTestServer(t, testServerOptions{service: svc, identity: identity})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, uuid.New())
	srv.echo.ServeHTTP(rec, castVoteRequestFor(uuid.NewString(), body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, identity.issued)
}

func TestCastVote_DuplicateVoteWireContract(t *testing.T) {
	identity := &stubIdentity{voterID: uuid.New(), fresh: true}
	svc := &mockPollService{
		castVoteFn: func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
			return domain.ErrDuplicateVote
		},
	}
	srv, _ := newTestServer(t, testServerOptions{service: svc, identity: identity})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, uuid.New())
	srv.echo.ServeHTTP(rec, castVoteRequestFor(uuid.NewString(), body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"User already voted on this poll"}`, rec.Body.String())
	assert.Empty(t, identity.issued, "no cookie on a rejected vote")
}

func TestCastVote_PollNotFound(t *testing.T) {
	svc := &mockPollService{
		castVoteFn: func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
			return domain.ErrPollNotFound
		},
	}
	srv, _ := newTestServer(t, testServerOptions{service: svc})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, uuid.New())
	srv.echo.ServeHTTP(rec, castVoteRequestFor(uuid.NewString(), body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "poll not found")
}

func TestCastVote_OptionNotFound(t *testing.T) {
	svc := &mockPollService{
		castVoteFn: func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
			return domain.ErrOptionNotFound
		},
	}
	srv, _ := newTestServer(t, testServerOptions{service: svc})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, uuid.New())
	srv.echo.ServeHTTP(rec, castVoteRequestFor(uuid.NewString(), body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "poll option not found")
}

func TestCastVote_InvalidPollID(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{service: &mockPollService{}})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, uuid.New())
	srv.echo.ServeHTTP(rec, castVoteRequestFor("not-a-uuid", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid poll id")
}

func TestCastVote_InvalidOptionID(t *testing.T) {
	srv, _ := newTestServer(t, testServerOptions{service: &mockPollService{}})

	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, castVoteRequestFor(uuid.NewString(), `{"pollOptionId":"nope"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid poll option id")
}

func TestCastVote_InternalErrorIsOpaque(t *testing.T) {
	svc := &mockPollService{
		castVoteFn: func(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
			return errors.New("connection reset by peer")
		},
	}
	srv, _ := newTestServer(t, testServerOptions{service: svc})

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"pollOptionId":%q}`, uuid.New())
	srv.echo.ServeHTTP(rec, castVoteRequestFor(uuid.NewString(), body))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset", "internal details must not leak")
}
