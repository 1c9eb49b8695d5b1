package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pollpulse/pollpulse/internal/errors"
)

type castVoteRequest struct {
	PollOptionID uuid.UUID `json:"poll_option_id"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	userID, err := parseQueryID(c, "user_id")
	if err != nil {
		return err
	}

	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.PollOptionID == uuid.Nil {
		return apperrors.ValidationError("poll_option_id is required")
	}

	vote, err := s.service.CastVote(c.Request().Context(), userID, req.PollOptionID)
	if err != nil {
		return apperrors.FromDomain(err).
			WithField("user_id", userID.String()).
			WithField("poll_option_id", req.PollOptionID.String())
	}
	return c.JSON(http.StatusCreated, vote)
}
