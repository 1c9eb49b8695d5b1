package domain

import "errors"

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrPollNotFound   = errors.New("poll not found")
	ErrOptionNotFound = errors.New("poll option not found")
	ErrDuplicateVote  = errors.New("user has already voted for this poll")
	ErrEmailTaken     = errors.New("email already registered")
	ErrVoteCooldown   = errors.New("voting too quickly, retry later")
)
