package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pollpulse/pollpulse/internal/domain"
)

type voteKey struct {
	UserID uuid.UUID
	PollID uuid.UUID
}

// MemoryStore is a mutex-guarded in-memory Store. The single mutex makes the
// vote ledger's check-then-insert atomic, which is exactly the property the
// SQL implementation gets from its unique constraint.
type MemoryStore struct {
	mu    sync.Mutex
	clock clockwork.Clock

	users        map[uuid.UUID]*domain.User
	usersByEmail map[string]uuid.UUID
	userOrder    []uuid.UUID

	polls     map[uuid.UUID]*domain.Poll
	pollOrder []uuid.UUID

	options       map[uuid.UUID]*domain.Option
	optionsByPoll map[uuid.UUID][]uuid.UUID

	votes         map[voteKey]*domain.Vote
	countByOption map[uuid.UUID]int
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		clock:         clock,
		users:         make(map[uuid.UUID]*domain.User),
		usersByEmail:  make(map[string]uuid.UUID),
		polls:         make(map[uuid.UUID]*domain.Poll),
		options:       make(map[uuid.UUID]*domain.Option),
		optionsByPoll: make(map[uuid.UUID][]uuid.UUID),
		votes:         make(map[voteKey]*domain.Vote),
		countByOption: make(map[uuid.UUID]int),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, name, email, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByEmail[email]; taken {
		return nil, domain.ErrEmailTaken
	}

	user := &domain.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.clock.Now().UTC(),
	}
	s.users[user.ID] = user
	s.usersByEmail[email] = user.ID
	s.userOrder = append(s.userOrder, user.ID)

	copied := *user
	return &copied, nil
}

func (s *MemoryStore) GetUser(_ context.Context, userID uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, offset, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.User, 0, limit)
	for i := offset; i < len(s.userOrder) && len(result) < limit; i++ {
		result = append(result, *s.users[s.userOrder[i]])
	}
	return result, nil
}

func (s *MemoryStore) CreatePoll(_ context.Context, creatorID uuid.UUID, question string, isPublished bool, optionTexts []string) (*domain.Poll, []domain.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[creatorID]; !exists {
		return nil, nil, domain.ErrUserNotFound
	}

	now := s.clock.Now().UTC()
	poll := &domain.Poll{
		ID:          uuid.New(),
		Question:    question,
		IsPublished: isPublished,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatorID:   creatorID,
	}
	s.polls[poll.ID] = poll
	s.pollOrder = append(s.pollOrder, poll.ID)

	options := make([]domain.Option, 0, len(optionTexts))
	for position, text := range optionTexts {
		option := &domain.Option{
			ID:        uuid.New(),
			PollID:    poll.ID,
			Text:      text,
			Position:  position,
			CreatedAt: now,
		}
		s.options[option.ID] = option
		s.optionsByPoll[poll.ID] = append(s.optionsByPoll[poll.ID], option.ID)
		options = append(options, *option)
	}

	copied := *poll
	return &copied, options, nil
}

func (s *MemoryStore) GetPoll(_ context.Context, pollID uuid.UUID) (*domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, exists := s.polls[pollID]
	if !exists {
		return nil, domain.ErrPollNotFound
	}
	copied := *poll
	return &copied, nil
}

func (s *MemoryStore) ListPublishedPolls(_ context.Context, offset, limit int) ([]domain.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	published := make([]domain.Poll, 0)
	for _, pollID := range s.pollOrder {
		if poll := s.polls[pollID]; poll.IsPublished {
			published = append(published, *poll)
		}
	}

	if offset >= len(published) {
		return []domain.Poll{}, nil
	}
	end := offset + limit
	if end > len(published) {
		end = len(published)
	}
	return published[offset:end], nil
}

func (s *MemoryStore) GetOption(_ context.Context, optionID uuid.UUID) (*domain.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	option, exists := s.options[optionID]
	if !exists {
		return nil, domain.ErrOptionNotFound
	}
	copied := *option
	return &copied, nil
}

func (s *MemoryStore) ListOptions(_ context.Context, pollID uuid.UUID) ([]domain.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.polls[pollID]; !exists {
		return nil, domain.ErrPollNotFound
	}

	ids := s.optionsByPoll[pollID]
	result := make([]domain.Option, 0, len(ids))
	for _, id := range ids {
		result = append(result, *s.options[id])
	}
	return result, nil
}

func (s *MemoryStore) CastVote(_ context.Context, userID, pollID, optionID uuid.UUID) (*domain.Vote, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[userID]; !exists {
		return nil, false, domain.ErrUserNotFound
	}
	option, exists := s.options[optionID]
	if !exists || option.PollID != pollID {
		return nil, false, domain.ErrOptionNotFound
	}

	key := voteKey{UserID: userID, PollID: pollID}
	if existing, voted := s.votes[key]; voted {
		if existing.OptionID == optionID {
			copied := *existing
			return &copied, false, nil
		}
		return nil, false, domain.ErrDuplicateVote
	}

	vote := &domain.Vote{
		UserID:    userID,
		OptionID:  optionID,
		PollID:    pollID,
		CreatedAt: s.clock.Now().UTC(),
	}
	s.votes[key] = vote
	s.countByOption[optionID]++
	s.polls[pollID].UpdatedAt = vote.CreatedAt

	copied := *vote
	return &copied, true, nil
}

func (s *MemoryStore) CountVotes(_ context.Context, pollID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.polls[pollID]; !exists {
		return nil, domain.ErrPollNotFound
	}

	counts := make(map[uuid.UUID]int)
	for _, optionID := range s.optionsByPoll[pollID] {
		if count := s.countByOption[optionID]; count > 0 {
			counts[optionID] = count
		}
	}
	return counts, nil
}
