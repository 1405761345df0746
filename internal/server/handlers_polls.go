package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/robsonshockwave/polls-api/internal/domain"
	apperrors "github.com/robsonshockwave/polls-api/internal/errors"
)

type createPollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type pollOptionResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Score int64  `json:"score"`
}

type pollResponse struct {
	ID      string               `json:"id"`
	Title   string               `json:"title"`
	Options []pollOptionResponse `json:"options"`
}

func (s *Server) handleCreatePoll(c echo.Context) error {
	var req createPollRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	if strings.TrimSpace(req.Title) == "" {
		return apperrors.ValidationError("title is required")
	}
	if len(req.Options) < 2 {
		return apperrors.ValidationError("at least two options are required")
	}
	for _, option := range req.Options {
		if strings.TrimSpace(option) == "" {
			return apperrors.ValidationError("options must not be empty")
		}
	}

	poll, err := s.app.CreatePoll(c.Request().Context(), req.Title, req.Options)
	if err != nil {
		return apperrors.InternalError("failed to create poll", err)
	}

	return c.JSON(http.StatusCreated, echo.Map{"pollId": poll.ID.String()})
}

func (s *Server) handleGetPoll(c echo.Context) error {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		return apperrors.ValidationError("invalid poll id").WithField("poll_id", c.Param("pollId"))
	}

	results, err := s.app.GetPollResults(c.Request().Context(), pollID)
	if errors.Is(err, domain.ErrPollNotFound) {
		return apperrors.NotFoundError("poll not found").WithField("poll_id", pollID.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load poll", err).WithField("poll_id", pollID.String())
	}

	response := pollResponse{
		ID:      results.ID.String(),
		Title:   results.Title,
		Options: make([]pollOptionResponse, 0, len(results.Options)),
	}
	for _, option := range results.Options {
		response.Options = append(response.Options, pollOptionResponse{
			ID:    option.ID.String(),
			Title: option.Title,
			Score: option.Score,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"poll": response})
}
