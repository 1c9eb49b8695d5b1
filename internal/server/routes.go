package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// REST API
	api := s.echo.Group("/api")
	api.POST("/users", s.handleCreateUser)
	api.GET("/users", s.handleListUsers)
	api.GET("/users/:id", s.handleGetUser)
	api.POST("/polls", s.handleCreatePoll)
	api.GET("/polls", s.handleListPolls)
	api.GET("/polls/:id", s.handleGetPoll)
	api.POST("/votes", s.handleCastVote)

	// Observer channel
	s.echo.GET("/ws/:poll_id", s.handleWebSocket)
}
