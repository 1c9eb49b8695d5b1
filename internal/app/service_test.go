package app

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollpulse/pollpulse/internal/auth"
	"github.com/pollpulse/pollpulse/internal/broadcast"
	"github.com/pollpulse/pollpulse/internal/domain"
)

// stubLimiter stands in for the Redis-backed cooldown.
type stubLimiter struct {
	allow bool
	err   error
}

func (l *stubLimiter) Allow(context.Context, uuid.UUID) (bool, error) {
	return l.allow, l.err
}

func newTestService(t *testing.T, limiter VoteLimiter) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(clockwork.NewRealClock())
	broadcaster := broadcast.NewBroadcaster(broadcast.NewRegistry(0))
	t.Cleanup(broadcaster.Stop)
	return NewService(store, broadcaster, limiter), store
}

func createTestUser(t *testing.T, svc *Service, email string) *domain.User {
	t.Helper()
	user, err := svc.CreateUser(context.Background(), "tester", email, "hunter2")
	require.NoError(t, err)
	return user
}

func createTestPoll(t *testing.T, svc *Service, creatorID uuid.UUID, optionTexts ...string) *domain.PollSnapshot {
	t.Helper()
	snapshot, err := svc.CreatePoll(context.Background(), creatorID, "what for lunch?", true, optionTexts)
	require.NoError(t, err)
	require.Len(t, snapshot.Options, len(optionTexts))
	return snapshot
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc, store := newTestService(t, nil)

	user := createTestUser(t, svc, "alice@example.com")

	stored, err := store.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.PasswordHash)
	assert.True(t, auth.VerifyPassword("hunter2", stored.PasswordHash))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t, nil)
	createTestUser(t, svc, "alice@example.com")

	_, err := svc.CreateUser(context.Background(), "other", "alice@example.com", "pw")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestCreatePollUnknownCreator(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.CreatePoll(context.Background(), uuid.New(), "q?", true, []string{"a", "b"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCastVoteRecordsVote(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")

	vote, err := svc.CastVote(context.Background(), user.ID, poll.Options[0].ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, vote.UserID)
	assert.Equal(t, poll.Options[0].ID, vote.OptionID)
	assert.Equal(t, poll.ID, vote.PollID)
	assert.False(t, vote.CreatedAt.IsZero())

	snapshot, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Options[0].VoteCount)
	assert.Equal(t, 0, snapshot.Options[1].VoteCount)
}

func TestCastVoteIdempotentRepeat(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")
	optionID := poll.Options[0].ID

	first, err := svc.CastVote(context.Background(), user.ID, optionID)
	require.NoError(t, err)
	second, err := svc.CastVote(context.Background(), user.ID, optionID)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "repeat vote returns the existing fact")

	snapshot, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Options[0].VoteCount, "vote count unaffected by repeat")
}

func TestCastVoteDifferentOptionRejected(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")

	_, err := svc.CastVote(context.Background(), user.ID, poll.Options[0].ID)
	require.NoError(t, err)

	_, err = svc.CastVote(context.Background(), user.ID, poll.Options[1].ID)
	assert.ErrorIs(t, err, domain.ErrDuplicateVote)

	// The rejected attempt must not have mutated anything.
	snapshot, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Options[0].VoteCount)
	assert.Equal(t, 0, snapshot.Options[1].VoteCount)
}

func TestCastVoteUnknownEntities(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")

	_, err := svc.CastVote(context.Background(), uuid.New(), poll.Options[0].ID)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = svc.CastVote(context.Background(), user.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrOptionNotFound)
}

func TestCastVoteConcurrentSameUser(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "a", "b", "c", "d", "e", "f", "g", "h")

	var wg sync.WaitGroup
	results := make([]error, len(poll.Options))
	for i, option := range poll.Options {
		wg.Add(1)
		go func(i int, optionID uuid.UUID) {
			defer wg.Done()
			_, err := svc.CastVote(context.Background(), user.ID, optionID)
			results[i] = err
		}(i, option.ID)
	}
	wg.Wait()

	var succeeded, duplicates int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, domain.ErrDuplicateVote):
			duplicates++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent vote may win")
	assert.Equal(t, len(poll.Options)-1, duplicates)

	snapshot, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	total := 0
	for _, option := range snapshot.Options {
		total += option.VoteCount
	}
	assert.Equal(t, 1, total, "one vote fact across the whole poll")
}

func TestSnapshotAccuracy(t *testing.T) {
	svc, _ := newTestService(t, nil)
	creator := createTestUser(t, svc, "creator@example.com")
	poll := createTestPoll(t, svc, creator.ID, "pizza", "ramen", "salad")

	const voters = 5
	for i := 0; i < voters; i++ {
		user := createTestUser(t, svc, string(rune('a'+i))+"@example.com")
		_, err := svc.CastVote(context.Background(), user.ID, poll.Options[1].ID)
		require.NoError(t, err)
	}

	snapshot, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.Options[0].VoteCount)
	assert.Equal(t, voters, snapshot.Options[1].VoteCount)
	assert.Equal(t, 0, snapshot.Options[2].VoteCount)
}

func TestSnapshotPreservesOptionOrder(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	texts := []string{"zebra", "apple", "mango", "kiwi"}
	poll := createTestPoll(t, svc, user.ID, texts...)

	// Vote for a late option so ordering cannot come from vote counts.
	_, err := svc.CastVote(context.Background(), user.ID, poll.Options[2].ID)
	require.NoError(t, err)

	snapshot, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	for i, option := range snapshot.Options {
		assert.Equal(t, texts[i], option.Text)
	}
}

func TestSnapshotUpdatedAtAdvancesOnVote(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")

	before, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)

	_, err = svc.CastVote(context.Background(), user.ID, poll.Options[0].ID)
	require.NoError(t, err)

	after, err := svc.BuildSnapshot(context.Background(), poll.ID)
	require.NoError(t, err)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	assert.NotEqual(t, before.UpdatedAt, after.UpdatedAt, "updated_at must advance on a new vote")
}

func TestBuildSnapshotUnknownPoll(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.BuildSnapshot(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func TestListPublishedPollsFiltersDrafts(t *testing.T) {
	svc, _ := newTestService(t, nil)
	user := createTestUser(t, svc, "alice@example.com")

	_, err := svc.CreatePoll(context.Background(), user.ID, "published?", true, []string{"y", "n"})
	require.NoError(t, err)
	_, err = svc.CreatePoll(context.Background(), user.ID, "draft?", false, []string{"y", "n"})
	require.NoError(t, err)

	polls, err := svc.ListPublishedPolls(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, polls, 1)
	assert.Equal(t, "published?", polls[0].Question)
}

func TestCastVoteCooldownRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubLimiter{allow: false})
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")

	_, err := svc.CastVote(context.Background(), user.ID, poll.Options[0].ID)
	assert.ErrorIs(t, err, domain.ErrVoteCooldown)
}

func TestCastVoteLimiterOutageAllowsVote(t *testing.T) {
	svc, _ := newTestService(t, &stubLimiter{err: context.DeadlineExceeded})
	user := createTestUser(t, svc, "alice@example.com")
	poll := createTestPoll(t, svc, user.ID, "pizza", "ramen")

	_, err := svc.CastVote(context.Background(), user.ID, poll.Options[0].ID)
	assert.NoError(t, err, "limiter outage must not block voting")
}
