package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pollpulse/pollpulse/internal/broadcast"
	"github.com/pollpulse/pollpulse/internal/domain"
	apperrors "github.com/pollpulse/pollpulse/internal/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // poll pages are embedded anywhere
	},
}

func (s *Server) handleWebSocket(c echo.Context) error {
	pollID, err := parseID(c, "poll_id")
	if err != nil {
		return err
	}

	// Resolve the poll before upgrading so unknown polls get a proper 404.
	if _, err := s.service.GetPoll(c.Request().Context(), pollID); err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			return apperrors.NotFoundError("poll not found").WithField("poll_id", pollID.String())
		}
		return apperrors.InternalError("failed to load poll", err).WithField("poll_id", pollID.String())
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("Failed to upgrade WebSocket", "error", err, "poll_id", pollID)
		return nil
	}

	observer := broadcast.NewObserver(conn, s.clock)
	s.registry.Connect(observer)

	if err := s.registry.Subscribe(pollID, observer); err != nil {
		slog.Warn("Rejecting observer", "error", err, "poll_id", pollID)
		s.registry.UnsubscribeAll(observer)
		observer.StopGraceful("too many observers for this poll")
		return nil
	}

	// The initial snapshot is built only after the subscription is live: a
	// vote landing during the handshake is then reflected either here or in
	// a delivered update, never lost between the two.
	snapshot, err := s.service.BuildSnapshot(c.Request().Context(), pollID)
	if err != nil {
		slog.Error("Failed to build initial snapshot", "error", err, "poll_id", pollID)
		s.registry.UnsubscribeAll(observer)
		observer.Stop()
		return nil
	}

	if err := s.broadcaster.SendInitial(observer, snapshot); err != nil {
		s.registry.UnsubscribeAll(observer)
		observer.Stop()
		return nil
	}

	// Read pump: inbound frames are discarded, but reading keeps pong
	// handling alive and detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.registry.UnsubscribeAll(observer)
	observer.Stop()
	return nil
}
