package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/pollpulse/pollpulse/internal/errors"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleCreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("name, email and password are required")
	}

	user, err := s.service.CreateUser(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return apperrors.FromDomain(err).WithField("email", req.Email)
	}
	return c.JSON(http.StatusCreated, user)
}

func (s *Server) handleGetUser(c echo.Context) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}

	user, err := s.service.GetUser(c.Request().Context(), userID)
	if err != nil {
		return apperrors.FromDomain(err).WithField("user_id", userID.String())
	}
	return c.JSON(http.StatusOK, user)
}

func (s *Server) handleListUsers(c echo.Context) error {
	offset, limit, err := parsePagination(c)
	if err != nil {
		return err
	}

	users, err := s.service.ListUsers(c.Request().Context(), offset, limit)
	if err != nil {
		return apperrors.FromDomain(err)
	}
	return c.JSON(http.StatusOK, users)
}
