package domain

import "errors"

var (
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("poll option not found")
	ErrVoteNotFound   = errors.New("vote not found")
	ErrAlreadyVoted   = errors.New("voter already has an active vote on this poll")
	ErrDuplicateVote  = errors.New("voter already voted for this option")
)
