package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// VoteRecord is the single active vote of one voter on one poll.
// It is never updated in place: changing a vote deletes the old record
// and inserts a new one.
type VoteRecord struct {
	ID           uuid.UUID
	PollID       uuid.UUID
	PollOptionID uuid.UUID
	VoterID      uuid.UUID
	CreatedAt    time.Time
}

// ChangeOutcome reports a completed vote change so the caller can
// adjust the tallies for both options.
type ChangeOutcome struct {
	OldOptionID uuid.UUID
	NewOptionID uuid.UUID
	Record      *VoteRecord
}

// VoteUpdate is the event pushed to result-stream subscribers after a
// tally change. Votes is the new live count for the option.
type VoteUpdate struct {
	PollOptionID uuid.UUID `json:"pollOptionId"`
	Votes        int64     `json:"votes"`
}

// VoteLedger is the authoritative record of votes. The (pollID, voterID)
// pair is the uniqueness key; implementations must serialize concurrent
// operations on the same key.
type VoteLedger interface {
	// Lookup returns the active vote for (pollID, voterID), or ErrVoteNotFound.
	Lookup(ctx context.Context, pollID, voterID uuid.UUID) (*VoteRecord, error)

	// Create inserts a first vote. Returns ErrAlreadyVoted if a record
	// for (pollID, voterID) already exists.
	Create(ctx context.Context, pollID, optionID, voterID uuid.UUID) (*VoteRecord, error)

	// ChangeOrReject atomically replaces the existing vote with one for
	// optionID. Returns ErrDuplicateVote if the existing vote is already
	// for optionID, ErrVoteNotFound if there is nothing to change --
	// including when a concurrent change deleted the row first, so
	// callers must treat it as a retryable race outcome.
	ChangeOrReject(ctx context.Context, pollID, optionID, voterID uuid.UUID) (*ChangeOutcome, error)
}

// TallyStore keeps the live per-option vote counts for each poll.
type TallyStore interface {
	Increment(ctx context.Context, pollID, optionID uuid.UUID) (int64, error)
	Decrement(ctx context.Context, pollID, optionID uuid.UUID) (int64, error)
	Snapshot(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error)
}

// ResultPublisher fans a vote update out to all live subscribers of a poll.
// Delivery is best effort; failures are never surfaced to the voter.
type ResultPublisher interface {
	Publish(pollID uuid.UUID, update VoteUpdate)
}
