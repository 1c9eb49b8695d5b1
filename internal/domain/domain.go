package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Poll struct {
	ID          uuid.UUID `json:"id"`
	Question    string    `json:"question"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatorID   uuid.UUID `json:"creator_id"`
}

type Option struct {
	ID        uuid.UUID `json:"id"`
	PollID    uuid.UUID `json:"poll_id"`
	Text      string    `json:"text"`
	Position  int       `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote is an append-only fact: one user voted for one option.
// PollID is denormalized so the one-vote-per-poll constraint can be
// enforced with a single conditional insert.
type Vote struct {
	UserID    uuid.UUID `json:"user_id"`
	OptionID  uuid.UUID `json:"poll_option_id"`
	PollID    uuid.UUID `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Shared value types ---

// OptionCount is one option's row in a poll snapshot.
type OptionCount struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	VoteCount int       `json:"vote_count"`
}

// PollSnapshot is a derived, point-in-time projection of a poll plus its
// options' current vote counts. Options keep creation order. Never stored;
// rebuilt from the store after every committed vote.
type PollSnapshot struct {
	ID          uuid.UUID     `json:"id"`
	Question    string        `json:"question"`
	IsPublished bool          `json:"is_published"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CreatorID   uuid.UUID     `json:"creator_id"`
	Options     []OptionCount `json:"options"`
}

// --- Interfaces ---

// Store is the durable poll store: users, polls, options, and vote facts.
// Implementations must make CastVote's check-then-insert atomic per
// (user, poll) pair.
type Store interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]User, error)

	// CreatePoll persists the poll and its options. Option order is the
	// display order and must be preserved.
	CreatePoll(ctx context.Context, creatorID uuid.UUID, question string, isPublished bool, optionTexts []string) (*Poll, []Option, error)
	GetPoll(ctx context.Context, pollID uuid.UUID) (*Poll, error)
	ListPublishedPolls(ctx context.Context, offset, limit int) ([]Poll, error)

	GetOption(ctx context.Context, optionID uuid.UUID) (*Option, error)
	ListOptions(ctx context.Context, pollID uuid.UUID) ([]Option, error)

	// CastVote records a vote fact, enforcing at most one vote per user per
	// poll. Returns inserted=false with a nil error when the user already
	// voted for this exact option (idempotent repeat). Returns
	// ErrDuplicateVote when the user holds a vote for a different option of
	// the same poll. A newly inserted vote also advances the poll's
	// updated_at.
	CastVote(ctx context.Context, userID, pollID, optionID uuid.UUID) (vote *Vote, inserted bool, err error)

	// CountVotes returns per-option voter counts for all options of a poll.
	// Options with no votes are absent from the map.
	CountVotes(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int, error)
}
