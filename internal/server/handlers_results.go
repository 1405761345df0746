package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/robsonshockwave/polls-api/internal/domain"
	apperrors "github.com/robsonshockwave/polls-api/internal/errors"
	ws "github.com/robsonshockwave/polls-api/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // results are public, any origin may subscribe
	},
}

func (s *Server) handleResults(c echo.Context) error {
	pollID, err := uuid.Parse(c.Param("pollId"))
	if err != nil {
		return apperrors.ValidationError("invalid poll id").WithField("poll_id", c.Param("pollId"))
	}

	// Verify the poll exists before upgrading the connection.
	if _, err := s.app.GetPollResults(c.Request().Context(), pollID); err != nil {
		if errors.Is(err, domain.ErrPollNotFound) {
			return apperrors.NotFoundError("poll not found").WithField("poll_id", pollID.String())
		}
		return apperrors.InternalError("failed to load poll", err).WithField("poll_id", pollID.String())
	}

	ip := c.RealIP()
	allowed, reason := s.limits.Acquire(ip)
	if !allowed {
		slog.Info("Rejecting result stream connection", "ip", ip, "reason", reason)
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many connections"})
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error("Failed to upgrade result stream connection", "error", err, "poll_id", pollID)
		return nil
	}

	sub := s.hub.Subscribe(pollID)
	session := ws.NewSession(conn, sub, s.clock, s.wsMetrics)

	// Blocks until the client disconnects or the subscription ends.
	session.Run()
	return nil
}
