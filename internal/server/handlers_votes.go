package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/robsonshockwave/polls-api/internal/domain"
	apperrors "github.com/robsonshockwave/polls-api/internal/errors"
)

type castVoteRequest struct {
	PollOptionID string `json:"pollOptionId"`
}

func (s *Server) handleCastVote(c echo.Context) error {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		return apperrors.ValidationError("invalid poll id").WithField("poll_id", c.Param("pollId"))
	}

	var req castVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	optionID, err := uuid.Parse(req.PollOptionID)
	if err != nil {
		return apperrors.ValidationError("invalid poll option id").WithField("poll_option_id", req.PollOptionID)
	}

	voterID, fresh := s.identity.Resolve(c.Request())

	err = s.app.CastVote(c.Request().Context(), pollID, optionID, voterID)
	switch {
	case errors.Is(err, domain.ErrDuplicateVote):
		// Exact wire contract for duplicate votes.
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "User already voted on this poll"})
	case errors.Is(err, domain.ErrPollNotFound):
		return apperrors.NotFoundError("poll not found").WithField("poll_id", pollID.String())
	case errors.Is(err, domain.ErrOptionNotFound):
		return apperrors.NotFoundError("poll option not found").
			WithField("poll_id", pollID.String()).
			WithField("poll_option_id", optionID.String())
	case err != nil:
		return apperrors.InternalError("failed to cast vote", err).WithField("poll_id", pollID.String())
	}

	if fresh {
		if err := s.identity.Issue(c.Request(), c.Response(), voterID); err != nil {
			return apperrors.InternalError("failed to issue voter identity", err)
		}
	}

	return c.NoContent(http.StatusCreated)
}
