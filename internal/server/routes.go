package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Poll management
	s.echo.POST("/polls", s.handleCreatePoll)
	s.echo.GET("/polls/:pollId", s.handleGetPoll)

	// Voting and live results
	s.echo.POST("/polls/:pollId/votes", s.handleCastVote)
	s.echo.GET("/polls/:pollId/results", s.handleResults)
}
