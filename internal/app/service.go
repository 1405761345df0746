// Package app wires identity, ledger, tally and broadcast into the
// vote-casting and poll-reading operations exposed over HTTP.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/robsonshockwave/polls-api/internal/domain"
	"github.com/robsonshockwave/polls-api/internal/metrics"
)

// Service implements domain.PollService.
type Service struct {
	polls     domain.PollRepository
	ledger    domain.VoteLedger
	tally     domain.TallyStore
	publisher domain.ResultPublisher
	metrics   *metrics.VoteMetrics
	clock     clockwork.Clock
}

func NewService(
	polls domain.PollRepository,
	ledger domain.VoteLedger,
	tally domain.TallyStore,
	publisher domain.ResultPublisher,
	m *metrics.VoteMetrics,
	clock clockwork.Clock,
) *Service {
	return &Service{
		polls:     polls,
		ledger:    ledger,
		tally:     tally,
		publisher: publisher,
		metrics:   m,
		clock:     clock,
	}
}

// CreatePoll persists a new poll with its options.
func (s *Service) CreatePoll(ctx context.Context, title string, options []string) (*domain.Poll, error) {
	return s.polls.CreatePoll(ctx, title, options)
}

// GetPollResults merges the poll's options with the live tally snapshot.
// Options nobody voted for yet report a count of zero.
func (s *Service) GetPollResults(ctx context.Context, pollID uuid.UUID) (*domain.PollResults, error) {
	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	counts, err := s.tally.Snapshot(ctx, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tally snapshot: %w", err)
	}

	results := &domain.PollResults{
		ID:      poll.ID,
		Title:   poll.Title,
		Options: make([]domain.OptionResult, 0, len(poll.Options)),
	}
	for _, option := range poll.Options {
		results.Options = append(results.Options, domain.OptionResult{
			ID:    option.ID,
			Title: option.Title,
			Score: counts[option.ID],
		})
	}
	return results, nil
}

// castVoteAttempts bounds how often a cast is retried when it keeps
// losing races against concurrent casts by the same voter.
const castVoteAttempts = 3

// errConcurrentCast signals that another cast by the same voter committed
// between our lookup and write. The caller re-reads the committed state
// and tries again.
var errConcurrentCast = errors.New("lost race against concurrent cast")

// CastVote records a first vote or changes an existing one. The tally
// update and publish happen strictly after the ledger commit; tally or
// broadcast failures past that point are logged, not surfaced, since the
// vote itself is durable.
func (s *Service) CastVote(ctx context.Context, pollID, optionID, voterID uuid.UUID) error {
	start := s.clock.Now()
	defer func() {
		s.metrics.ProcessingDuration.Observe(s.clock.Since(start).Seconds())
	}()

	poll, err := s.polls.GetPoll(ctx, pollID)
	if err != nil {
		s.metrics.VotesProcessed.WithLabelValues("rejected").Inc()
		return err
	}
	if !poll.HasOption(optionID) {
		s.metrics.VotesProcessed.WithLabelValues("rejected").Inc()
		return domain.ErrOptionNotFound
	}

	// Concurrent casts by the same voter can commit between our lookup
	// and write: a first vote loses its insert to the unique constraint,
	// or a change finds the locked row already deleted. Either way the
	// loser observes the newly committed state and goes again.
	for range castVoteAttempts {
		err := s.tryCastVote(ctx, pollID, optionID, voterID)
		if !errors.Is(err, errConcurrentCast) {
			return err
		}
	}

	s.metrics.VotesProcessed.WithLabelValues("error").Inc()
	return fmt.Errorf("vote by voter %s on poll %s kept losing concurrent casts", voterID, pollID)
}

func (s *Service) tryCastVote(ctx context.Context, pollID, optionID, voterID uuid.UUID) error {
	record, err := s.ledger.Lookup(ctx, pollID, voterID)
	switch {
	case errors.Is(err, domain.ErrVoteNotFound):
		return s.castFirstVote(ctx, pollID, optionID, voterID)
	case err != nil:
		s.metrics.VotesProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to look up existing vote: %w", err)
	case record.PollOptionID == optionID:
		s.metrics.VotesProcessed.WithLabelValues("duplicate").Inc()
		return domain.ErrDuplicateVote
	default:
		return s.changeVote(ctx, pollID, optionID, voterID)
	}
}

func (s *Service) castFirstVote(ctx context.Context, pollID, optionID, voterID uuid.UUID) error {
	_, err := s.ledger.Create(ctx, pollID, optionID, voterID)
	if errors.Is(err, domain.ErrAlreadyVoted) {
		// Lost to a concurrent first vote for the same voter.
		return errConcurrentCast
	}
	if err != nil {
		s.metrics.VotesProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to create vote: %w", err)
	}

	s.metrics.VotesProcessed.WithLabelValues("created").Inc()
	s.bumpAndPublish(ctx, pollID, optionID, +1)
	return nil
}

func (s *Service) changeVote(ctx context.Context, pollID, optionID, voterID uuid.UUID) error {
	outcome, err := s.ledger.ChangeOrReject(ctx, pollID, optionID, voterID)
	if errors.Is(err, domain.ErrVoteNotFound) {
		// The row we meant to change was deleted by a concurrent change
		// that committed while we waited on its lock.
		return errConcurrentCast
	}
	if errors.Is(err, domain.ErrDuplicateVote) {
		s.metrics.VotesProcessed.WithLabelValues("duplicate").Inc()
		return domain.ErrDuplicateVote
	}
	if err != nil {
		s.metrics.VotesProcessed.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to change vote: %w", err)
	}

	s.metrics.VotesProcessed.WithLabelValues("changed").Inc()

	// Fixed order: old option down first, then new option up. The pair is
	// deliberately not atomic; subscribers may observe the intermediate state.
	s.bumpAndPublish(ctx, pollID, outcome.OldOptionID, -1)
	s.bumpAndPublish(ctx, pollID, outcome.NewOptionID, +1)
	return nil
}

func (s *Service) bumpAndPublish(ctx context.Context, pollID, optionID uuid.UUID, delta int) {
	var (
		count int64
		err   error
	)
	if delta > 0 {
		count, err = s.tally.Increment(ctx, pollID, optionID)
	} else {
		count, err = s.tally.Decrement(ctx, pollID, optionID)
	}
	if err != nil {
		slog.Error("Tally update failed after ledger commit",
			"error", err, "poll_id", pollID, "option_id", optionID, "delta", delta)
		return
	}

	s.publisher.Publish(pollID, domain.VoteUpdate{PollOptionID: optionID, Votes: count})
}
