package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robsonshockwave/polls-api/internal/domain"
)

// uniqueViolation is the SQLSTATE raised when an insert hits the
// (poll_id, voter_id) unique constraint.
const uniqueViolation = "23505"

// VoteRepo is the vote ledger. The (poll_id, voter_id) unique constraint
// enforces at most one active vote per voter per poll; ChangeOrReject
// serializes concurrent changes for the same voter via a row lock.
type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

// Lookup returns the active vote for (pollID, voterID).
func (r *VoteRepo) Lookup(ctx context.Context, pollID, voterID uuid.UUID) (*domain.VoteRecord, error) {
	var record domain.VoteRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, poll_id, poll_option_id, voter_id, created_at
		FROM votes
		WHERE poll_id = $1 AND voter_id = $2
	`, pollID, voterID).Scan(
		&record.ID, &record.PollID, &record.PollOptionID, &record.VoterID, &record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up vote: %w", err)
	}
	return &record, nil
}

// Create inserts a first vote for (pollID, voterID). A concurrent insert
// for the same key loses on the unique constraint and gets ErrAlreadyVoted.
func (r *VoteRepo) Create(ctx context.Context, pollID, optionID, voterID uuid.UUID) (*domain.VoteRecord, error) {
	var record domain.VoteRecord
	err := r.pool.QueryRow(ctx, `
		INSERT INTO votes (poll_id, poll_option_id, voter_id)
		VALUES ($1, $2, $3)
		RETURNING id, poll_id, poll_option_id, voter_id, created_at
	`, pollID, optionID, voterID).Scan(
		&record.ID, &record.PollID, &record.PollOptionID, &record.VoterID, &record.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrAlreadyVoted
		}
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}
	return &record, nil
}

// ChangeOrReject atomically replaces the voter's existing vote with one for
// optionID. The SELECT ... FOR UPDATE locks the (pollID, voterID) row so
// concurrent changes for the same voter serialize. A loser that waited on
// the winner's lock finds the locked row deleted (the winner's replacement
// row is not visible to the blocked statement) and gets ErrVoteNotFound;
// the caller re-reads the committed state and retries.
func (r *VoteRepo) ChangeOrReject(ctx context.Context, pollID, optionID, voterID uuid.UUID) (*domain.ChangeOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldID, oldOptionID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id, poll_option_id
		FROM votes
		WHERE poll_id = $1 AND voter_id = $2
		FOR UPDATE
	`, pollID, voterID).Scan(&oldID, &oldOptionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock vote for change: %w", err)
	}

	if oldOptionID == optionID {
		return nil, domain.ErrDuplicateVote
	}

	if _, err := tx.Exec(ctx, `DELETE FROM votes WHERE id = $1`, oldID); err != nil {
		return nil, fmt.Errorf("failed to delete old vote: %w", err)
	}

	var record domain.VoteRecord
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (poll_id, poll_option_id, voter_id)
		VALUES ($1, $2, $3)
		RETURNING id, poll_id, poll_option_id, voter_id, created_at
	`, pollID, optionID, voterID).Scan(
		&record.ID, &record.PollID, &record.PollOptionID, &record.VoterID, &record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert changed vote: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit vote change: %w", err)
	}

	return &domain.ChangeOutcome{
		OldOptionID: oldOptionID,
		NewOptionID: optionID,
		Record:      &record,
	}, nil
}
