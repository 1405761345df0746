package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Poll is a question with a fixed set of options voters choose between.
type Poll struct {
	ID        uuid.UUID
	Title     string
	Options   []PollOption
	CreatedAt time.Time
}

// PollOption belongs to exactly one poll.
type PollOption struct {
	ID     uuid.UUID
	PollID uuid.UUID
	Title  string
}

// OptionResult pairs an option with its live vote count.
type OptionResult struct {
	ID    uuid.UUID
	Title string
	Score int64
}

// PollResults is a poll merged with the current tally snapshot.
type PollResults struct {
	ID      uuid.UUID
	Title   string
	Options []OptionResult
}

// HasOption reports whether the given option belongs to this poll.
func (p *Poll) HasOption(optionID uuid.UUID) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// PollRepository persists polls and their options.
type PollRepository interface {
	CreatePoll(ctx context.Context, title string, options []string) (*Poll, error)
	GetPoll(ctx context.Context, pollID uuid.UUID) (*Poll, error)
}
