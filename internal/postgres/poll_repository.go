package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robsonshockwave/polls-api/internal/domain"
)

// PollRepo persists polls and their options.
type PollRepo struct {
	pool *pgxpool.Pool
}

func NewPollRepo(pool *pgxpool.Pool) *PollRepo {
	return &PollRepo{pool: pool}
}

// CreatePoll inserts a poll and its options in a single transaction.
func (r *PollRepo) CreatePoll(ctx context.Context, title string, options []string) (*domain.Poll, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var poll domain.Poll
	err = tx.QueryRow(ctx, `
		INSERT INTO polls (title)
		VALUES ($1)
		RETURNING id, title, created_at
	`, title).Scan(&poll.ID, &poll.Title, &poll.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert poll: %w", err)
	}

	poll.Options = make([]domain.PollOption, 0, len(options))
	for _, optionTitle := range options {
		var option domain.PollOption
		err = tx.QueryRow(ctx, `
			INSERT INTO poll_options (poll_id, title)
			VALUES ($1, $2)
			RETURNING id, poll_id, title
		`, poll.ID, optionTitle).Scan(&option.ID, &option.PollID, &option.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to insert poll option: %w", err)
		}
		poll.Options = append(poll.Options, option)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit poll: %w", err)
	}

	return &poll, nil
}

// GetPoll loads a poll with its options, or domain.ErrPollNotFound.
func (r *PollRepo) GetPoll(ctx context.Context, pollID uuid.UUID) (*domain.Poll, error) {
	var poll domain.Poll
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, created_at
		FROM polls
		WHERE id = $1
	`, pollID).Scan(&poll.ID, &poll.Title, &poll.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load poll: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, poll_id, title
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY title
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var option domain.PollOption
		if err := rows.Scan(&option.ID, &option.PollID, &option.Title); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		poll.Options = append(poll.Options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poll options: %w", err)
	}

	return &poll, nil
}
