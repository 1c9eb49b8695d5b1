package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/pollpulse/pollpulse/internal/errors"
)

const maxPollOptions = 100

type createPollRequest struct {
	Question    string             `json:"question"`
	Options     []createPollOption `json:"options"`
	IsPublished bool               `json:"is_published"`
}

type createPollOption struct {
	Text string `json:"text"`
}

func (s *Server) handleCreatePoll(c echo.Context) error {
	creatorID, err := parseQueryID(c, "creator_id")
	if err != nil {
		return err
	}

	var req createPollRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Question == "" {
		return apperrors.ValidationError("question is required")
	}
	if len(req.Options) < 2 {
		return apperrors.ValidationError("a poll needs at least two options")
	}
	if len(req.Options) > maxPollOptions {
		return apperrors.ValidationError("too many options").WithField("max", maxPollOptions)
	}

	optionTexts := make([]string, len(req.Options))
	for i, option := range req.Options {
		if option.Text == "" {
			return apperrors.ValidationError("option text cannot be empty").WithField("index", i)
		}
		optionTexts[i] = option.Text
	}

	snapshot, err := s.service.CreatePoll(c.Request().Context(), creatorID, req.Question, req.IsPublished, optionTexts)
	if err != nil {
		return apperrors.FromDomain(err).WithField("creator_id", creatorID.String())
	}
	return c.JSON(http.StatusCreated, snapshot)
}

func (s *Server) handleGetPoll(c echo.Context) error {
	pollID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	snapshot, err := s.service.GetPoll(c.Request().Context(), pollID)
	if err != nil {
		return apperrors.FromDomain(err).WithField("poll_id", pollID.String())
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleListPolls(c echo.Context) error {
	offset, limit, err := parsePagination(c)
	if err != nil {
		return err
	}

	polls, err := s.service.ListPublishedPolls(c.Request().Context(), offset, limit)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, polls)
}

// --- Param helpers ---

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField(name, raw)
	}
	return id, nil
}

func parseQueryID(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return uuid.Nil, apperrors.ValidationError(name + " query parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField(name, raw)
	}
	return id, nil
}

func parsePagination(c echo.Context) (offset, limit int, err error) {
	offset, err = parseNonNegativeInt(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	limit, err = parseNonNegativeInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

func parseNonNegativeInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, apperrors.ValidationError(name + " must be a non-negative integer").WithField(name, raw)
	}
	return value, nil
}
