package domain

import (
	"context"

	"github.com/google/uuid"
)

// PollService is the application-level API the HTTP layer talks to.
type PollService interface {
	CreatePoll(ctx context.Context, title string, options []string) (*Poll, error)
	GetPollResults(ctx context.Context, pollID uuid.UUID) (*PollResults, error)

	// CastVote records a vote for the given voter, updating the tally and
	// publishing result updates. Returns ErrDuplicateVote when the voter
	// re-submits their current option.
	CastVote(ctx context.Context, pollID, optionID, voterID uuid.UUID) error
}
