package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pollpulse/pollpulse/internal/auth"
	"github.com/pollpulse/pollpulse/internal/broadcast"
	"github.com/pollpulse/pollpulse/internal/domain"
	"github.com/pollpulse/pollpulse/internal/logging"
	"github.com/pollpulse/pollpulse/internal/metrics"
)

const defaultListLimit = 100

// VoteLimiter gates how often a single user may cast votes. Implementations
// must be safe for concurrent use. A nil limiter means no limiting.
type VoteLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Service wires the poll store, the broadcaster, and the optional vote
// limiter into the operations exposed by the HTTP layer.
type Service struct {
	store       domain.Store
	broadcaster *broadcast.Broadcaster
	limiter     VoteLimiter
}

func NewService(store domain.Store, broadcaster *broadcast.Broadcaster, limiter VoteLimiter) *Service {
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		limiter:     limiter,
	}
}

// --- Users ---

func (s *Service) CreateUser(ctx context.Context, name, email, password string) (*domain.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return s.store.CreateUser(ctx, name, email, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) ListUsers(ctx context.Context, offset, limit int) ([]domain.User, error) {
	return s.store.ListUsers(ctx, normalizeOffset(offset), normalizeLimit(limit))
}

// --- Polls ---

// CreatePoll persists a poll with its options (in the given order) and
// returns the initial snapshot.
func (s *Service) CreatePoll(ctx context.Context, creatorID uuid.UUID, question string, isPublished bool, optionTexts []string) (*domain.PollSnapshot, error) {
	if _, err := s.store.GetUser(ctx, creatorID); err != nil {
		return nil, err
	}

	poll, _, err := s.store.CreatePoll(ctx, creatorID, question, isPublished, optionTexts)
	if err != nil {
		return nil, err
	}
	return s.BuildSnapshot(ctx, poll.ID)
}

func (s *Service) GetPoll(ctx context.Context, pollID uuid.UUID) (*domain.PollSnapshot, error) {
	return s.BuildSnapshot(ctx, pollID)
}

func (s *Service) ListPublishedPolls(ctx context.Context, offset, limit int) ([]domain.PollSnapshot, error) {
	polls, err := s.store.ListPublishedPolls(ctx, normalizeOffset(offset), normalizeLimit(limit))
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.PollSnapshot, 0, len(polls))
	for _, poll := range polls {
		snapshot, err := s.BuildSnapshot(ctx, poll.ID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *snapshot)
	}
	return snapshots, nil
}

// --- Votes ---

// CastVote records a vote for the user and pushes the resulting snapshot to
// every observer of the affected poll. The broadcast also happens when the
// vote is an idempotent repeat: clients get a consistent snapshot either way.
// Delivery failures never surface here; the vote has already committed.
func (s *Service) CastVote(ctx context.Context, userID, optionID uuid.UUID) (*domain.Vote, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	option, err := s.store.GetOption(ctx, optionID)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, userID)
		if err != nil {
			// Limiter outage must not block voting.
			logging.WithUser(userID.String()).Error("Vote limiter check failed, allowing vote", "error", err)
		} else if !allowed {
			metrics.VotesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, domain.ErrVoteCooldown
		}
	}

	vote, inserted, err := s.store.CastVote(ctx, userID, option.PollID, option.ID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateVote) {
			metrics.VotesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		}
		return nil, err
	}

	if inserted {
		metrics.VotesTotal.WithLabelValues(metrics.OutcomeRecorded).Inc()
	} else {
		metrics.VotesTotal.WithLabelValues(metrics.OutcomeRepeat).Inc()
	}

	s.broadcastSnapshot(ctx, option.PollID)
	return vote, nil
}

// --- Snapshots ---

// BuildSnapshot projects the current store state of a poll into its
// wire-ready view: poll fields plus options (in creation order) with their
// voter counts. Pure function of store state at call time.
func (s *Service) BuildSnapshot(ctx context.Context, pollID uuid.UUID) (*domain.PollSnapshot, error) {
	start := time.Now()
	defer func() {
		metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	}()

	poll, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	options, err := s.store.ListOptions(ctx, pollID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountVotes(ctx, pollID)
	if err != nil {
		return nil, err
	}

	optionCounts := make([]domain.OptionCount, 0, len(options))
	for _, option := range options {
		optionCounts = append(optionCounts, domain.OptionCount{
			ID:        option.ID,
			Text:      option.Text,
			VoteCount: counts[option.ID],
		})
	}

	return &domain.PollSnapshot{
		ID:          poll.ID,
		Question:    poll.Question,
		IsPublished: poll.IsPublished,
		CreatedAt:   poll.CreatedAt,
		UpdatedAt:   poll.UpdatedAt,
		CreatorID:   poll.CreatorID,
		Options:     optionCounts,
	}, nil
}

// broadcastSnapshot rebuilds the poll's snapshot and fans it out. Runs after
// the vote commit; a poll deleted in the meantime is skipped silently.
func (s *Service) broadcastSnapshot(ctx context.Context, pollID uuid.UUID) {
	log := logging.WithPoll(pollID.String())

	snapshot, err := s.BuildSnapshot(ctx, pollID)
	if err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			log.Debug("Poll vanished before broadcast, skipping")
			return
		}
		log.Error("Failed to build snapshot for broadcast", "error", err)
		return
	}

	report := s.broadcaster.Broadcast(pollID, snapshot)
	if report.Failed > 0 {
		log.Warn("Broadcast finished with failed deliveries",
			"delivered", report.Delivered,
			"failed", report.Failed,
		)
	}
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
