package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollpulse/pollpulse/internal/domain"
)

// pollColumns must match the Scan order in scanPoll.
const pollColumns = `id, question, is_published, creator_id, created_at, updated_at`

// Store implements domain.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, name, email, password_hash, created_at
	`, name, email, passwordHash).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) CreatePoll(ctx context.Context, creatorID uuid.UUID, question string, isPublished bool, optionTexts []string) (*domain.Poll, []domain.Option, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, creatorID).Scan(&exists); err != nil {
		return nil, nil, fmt.Errorf("failed to check creator: %w", err)
	}
	if !exists {
		return nil, nil, domain.ErrUserNotFound
	}

	var poll domain.Poll
	err = tx.QueryRow(ctx, `
		INSERT INTO polls (question, is_published, creator_id)
		VALUES ($1, $2, $3)
		RETURNING `+pollColumns+`
	`, question, isPublished, creatorID).Scan(
		&poll.ID, &poll.Question, &poll.IsPublished, &poll.CreatorID, &poll.CreatedAt, &poll.UpdatedAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create poll: %w", err)
	}

	options := make([]domain.Option, len(optionTexts))
	for i, text := range optionTexts {
		option := domain.Option{PollID: poll.ID, Text: text, Position: i}
		err := tx.QueryRow(ctx, `
			INSERT INTO poll_options (poll_id, text, position)
			VALUES ($1, $2, $3)
			RETURNING id, created_at
		`, poll.ID, text, i).Scan(&option.ID, &option.CreatedAt)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create poll option: %w", err)
		}
		options[i] = option
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &poll, options, nil
}

func (s *Store) GetPoll(ctx context.Context, pollID uuid.UUID) (*domain.Poll, error) {
	poll, err := scanPoll(s.pool.QueryRow(ctx,
		`SELECT `+pollColumns+` FROM polls WHERE id = $1`, pollID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}
	return poll, nil
}

func (s *Store) ListPublishedPolls(ctx context.Context, offset, limit int) ([]domain.Poll, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		WHERE is_published
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list polls: %w", err)
	}
	defer rows.Close()

	polls := []domain.Poll{}
	for rows.Next() {
		var poll domain.Poll
		if err := rows.Scan(&poll.ID, &poll.Question, &poll.IsPublished, &poll.CreatorID, &poll.CreatedAt, &poll.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, poll)
	}
	return polls, rows.Err()
}

func (s *Store) GetOption(ctx context.Context, optionID uuid.UUID) (*domain.Option, error) {
	var option domain.Option
	err := s.pool.QueryRow(ctx, `
		SELECT id, poll_id, text, position, created_at
		FROM poll_options
		WHERE id = $1
	`, optionID).Scan(
		&option.ID, &option.PollID, &option.Text, &option.Position, &option.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll option: %w", err)
	}
	return &option, nil
}

func (s *Store) ListOptions(ctx context.Context, pollID uuid.UUID) ([]domain.Option, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, poll_id, text, position, created_at
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY position
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list poll options: %w", err)
	}
	defer rows.Close()

	options := []domain.Option{}
	for rows.Next() {
		var option domain.Option
		if err := rows.Scan(&option.ID, &option.PollID, &option.Text, &option.Position, &option.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		options = append(options, option)
	}
	return options, rows.Err()
}

// CastVote enforces at most one vote per user per poll with a conditional
// insert on the (user_id, poll_id) primary key. The losing writer of a race
// falls through to the readback and is classified as a repeat or a conflict.
func (s *Store) CastVote(ctx context.Context, userID, pollID, optionID uuid.UUID) (*domain.Vote, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return nil, false, domain.ErrUserNotFound
	}
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM poll_options WHERE id = $1 AND poll_id = $2)`, optionID, pollID).Scan(&exists); err != nil {
		return nil, false, fmt.Errorf("failed to check poll option: %w", err)
	}
	if !exists {
		return nil, false, domain.ErrOptionNotFound
	}

	vote := &domain.Vote{UserID: userID, OptionID: optionID, PollID: pollID}
	err = tx.QueryRow(ctx, `
		INSERT INTO votes (user_id, poll_id, option_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, poll_id) DO NOTHING
		RETURNING created_at
	`, userID, pollID, optionID).Scan(&vote.CreatedAt)

	switch {
	case err == nil:
		if _, err := tx.Exec(ctx, `UPDATE polls SET updated_at = NOW() WHERE id = $1`, pollID); err != nil {
			return nil, false, fmt.Errorf("failed to touch poll: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return vote, true, nil

	case errors.Is(err, pgx.ErrNoRows):
		var existingOptionID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT option_id, created_at FROM votes WHERE user_id = $1 AND poll_id = $2
		`, userID, pollID).Scan(&existingOptionID, &vote.CreatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read existing vote: %w", err)
		}
		if existingOptionID != optionID {
			return nil, false, domain.ErrDuplicateVote
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return vote, false, nil

	default:
		return nil, false, fmt.Errorf("failed to insert vote: %w", err)
	}
}

func (s *Store) CountVotes(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM polls WHERE id = $1)`, pollID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check poll: %w", err)
	}
	if !exists {
		return nil, domain.ErrPollNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT option_id, COUNT(*)
		FROM votes
		WHERE poll_id = $1
		GROUP BY option_id
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var optionID uuid.UUID
		var count int
		if err := rows.Scan(&optionID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}
		counts[optionID] = count
	}
	return counts, rows.Err()
}

func scanPoll(row pgx.Row) (*domain.Poll, error) {
	var poll domain.Poll
	err := row.Scan(&poll.ID, &poll.Question, &poll.IsPublished, &poll.CreatorID, &poll.CreatedAt, &poll.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &poll, nil
}
