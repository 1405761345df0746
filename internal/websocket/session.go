// Package websocket carries one result-stream subscriber's connection
// lifecycle: subscribe on open, push serialized vote updates until the
// client disconnects or the subscription ends, then unsubscribe.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/robsonshockwave/polls-api/internal/hub"
	"github.com/robsonshockwave/polls-api/internal/metrics"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// Session pumps a hub subscription's events onto a websocket connection.
type Session struct {
	conn    *websocket.Conn
	sub     *hub.Subscription
	clock   clockwork.Clock
	metrics *metrics.WebSocketMetrics
	wg      sync.WaitGroup
}

func NewSession(conn *websocket.Conn, sub *hub.Subscription, clock clockwork.Clock, m *metrics.WebSocketMetrics) *Session {
	return &Session{
		conn:    conn,
		sub:     sub,
		clock:   clock,
		metrics: m,
	}
}

// Run blocks until the client disconnects or the subscription ends.
// The subscription is canceled exactly once on any exit path; no events
// are buffered past that point.
func (s *Session) Run() {
	s.metrics.ActiveConnections.Inc()
	defer s.metrics.ActiveConnections.Dec()

	s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	})

	s.wg.Add(1)
	go s.writeLoop()

	// Read pump: no inbound messages are expected, this just detects
	// disconnects and keeps pong handling alive.
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			break
		}
	}

	s.sub.Cancel()
	s.conn.Close()
	s.wg.Wait()
}

func (s *Session) writeLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-s.sub.Events():
			if !ok {
				// subscription ended, kick the read pump loose
				s.conn.Close()
				return
			}

			data, err := json.Marshal(update)
			if err != nil {
				slog.Error("Failed to marshal vote update", "error", err, "poll_id", s.sub.PollID())
				continue
			}

			s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.metrics.SendFailures.Inc()
				s.shutdown()
				return
			}
			s.metrics.MessagesSent.Inc()

		case <-ticker.Chan():
			s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.metrics.SendFailures.Inc()
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	s.sub.Cancel()
	s.conn.Close()
}
