package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollpulse/pollpulse/internal/broadcast"
	"github.com/pollpulse/pollpulse/internal/domain"
)

type wsEnvelope struct {
	Type string               `json:"type"`
	Poll *domain.PollSnapshot `json:"poll"`
}

func (ts *testServer) dialWS(pollID uuid.UUID) (*websocket.Conn, *http.Response, error) {
	ts.t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.httpSrv.URL, "http") + "/ws/" + pollID.String()
	return websocket.DefaultDialer.Dial(wsURL, nil)
}

func (ts *testServer) mustDialWS(pollID uuid.UUID) *websocket.Conn {
	ts.t.Helper()
	conn, _, err := ts.dialWS(pollID)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope wsEnvelope
	require.NoError(t, json.Unmarshal(frame, &envelope))
	require.NotNil(t, envelope.Poll)
	return envelope
}

func TestWebSocketUnknownPollRejected(t *testing.T) {
	ts := newTestServer(t)

	_, resp, err := ts.dialWS(uuid.New())
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketInitialData(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser("alice@example.com")
	poll := ts.createPoll(user.ID, true, "a", "b")

	conn := ts.mustDialWS(poll.ID)

	envelope := readEnvelope(t, conn)
	assert.Equal(t, broadcast.TypeInitialData, envelope.Type)
	assert.Equal(t, poll.ID, envelope.Poll.ID)
	require.Len(t, envelope.Poll.Options, 2)
	assert.Zero(t, envelope.Poll.Options[0].VoteCount)
}

func TestWebSocketHandshakeVoteNotLost(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser("alice@example.com")
	poll := ts.createPoll(user.ID, true, "a", "b")

	// Race a single vote against the connection handshake. No further votes
	// follow, so the count must reach the observer via the initial snapshot
	// or a delivered update rather than falling between the two.
	voteDone := make(chan struct{})
	go func() {
		defer close(voteDone)
		resp, _ := ts.castVote(user.ID, poll.Options[0].ID)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	}()

	conn := ts.mustDialWS(poll.ID)
	<-voteDone

	for {
		envelope := readEnvelope(t, conn)
		if envelope.Poll.Options[0].VoteCount == 1 {
			break
		}
	}
}

func TestWebSocketPollUpdateOnVote(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser("alice@example.com")
	poll := ts.createPoll(user.ID, true, "a", "b")

	first := ts.mustDialWS(poll.ID)
	second := ts.mustDialWS(poll.ID)
	readEnvelope(t, first)
	readEnvelope(t, second)

	resp, _ := ts.castVote(user.ID, poll.Options[1].ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, conn := range []*websocket.Conn{first, second} {
		envelope := readEnvelope(t, conn)
		assert.Equal(t, broadcast.TypePollUpdate, envelope.Type)
		assert.Equal(t, 0, envelope.Poll.Options[0].VoteCount)
		assert.Equal(t, 1, envelope.Poll.Options[1].VoteCount)
	}
}

func TestWebSocketRepeatVoteStillBroadcasts(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser("alice@example.com")
	poll := ts.createPoll(user.ID, true, "a", "b")

	resp, _ := ts.castVote(user.ID, poll.Options[0].ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn := ts.mustDialWS(poll.ID)
	readEnvelope(t, conn)

	// Same user, same option: the vote is an idempotent repeat, but
	// observers still get a fresh snapshot.
	resp, _ = ts.castVote(user.ID, poll.Options[0].ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	envelope := readEnvelope(t, conn)
	assert.Equal(t, broadcast.TypePollUpdate, envelope.Type)
	assert.Equal(t, 1, envelope.Poll.Options[0].VoteCount)
}

func TestWebSocketSubscriptionIsolation(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser("alice@example.com")
	pollA := ts.createPoll(user.ID, true, "a", "b")
	pollB := ts.createPoll(user.ID, true, "c", "d")

	watcherA := ts.mustDialWS(pollA.ID)
	watcherB := ts.mustDialWS(pollB.ID)
	readEnvelope(t, watcherA)
	readEnvelope(t, watcherB)

	voter := ts.createUser("bob@example.com")
	resp, _ := ts.castVote(voter.ID, pollB.Options[0].ID)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	envelope := readEnvelope(t, watcherB)
	assert.Equal(t, pollB.ID, envelope.Poll.ID)

	// The observer of the other poll sees nothing.
	require.NoError(t, watcherA.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := watcherA.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	ts := newTestServer(t)
	user := ts.createUser("alice@example.com")
	poll := ts.createPoll(user.ID, true, "a", "b")

	conn := ts.mustDialWS(poll.ID)
	readEnvelope(t, conn)
	require.Equal(t, 1, ts.server.registry.ObserverCount(poll.ID))

	require.NoError(t, conn.Close())

	waitFor(t, func() bool {
		return ts.server.registry.ObserverCount(poll.ID) == 0
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
