// Package hub is the in-process broadcast registry distributing vote
// updates to result-stream subscribers, keyed by poll. It holds no
// durable state; the subscriber set lives for the process lifetime.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/robsonshockwave/polls-api/internal/domain"
	"github.com/robsonshockwave/polls-api/internal/metrics"
)

// subscriptionBufferSize bounds how far a subscriber may fall behind
// before events are dropped for it.
const subscriptionBufferSize = 16

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdSubscribe struct {
	pollID  uuid.UUID
	replyCh chan *Subscription
}

func (cmdSubscribe) hubCmd() {}

type cmdUnsubscribe struct {
	pollID uuid.UUID
	id     uint64
}

func (cmdUnsubscribe) hubCmd() {}

type cmdPublish struct {
	pollID uuid.UUID
	update domain.VoteUpdate
}

func (cmdPublish) hubCmd() {}

type cmdSubscriberCount struct {
	pollID  uuid.UUID
	replyCh chan int
}

func (cmdSubscriberCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Subscription ---

// Subscription is one subscriber's registration for a poll's vote updates.
// Events is closed when the subscription ends, by Cancel or by Hub.Stop.
type Subscription struct {
	pollID uuid.UUID
	id     uint64
	events chan domain.VoteUpdate
	hub    *Hub
	once   sync.Once
}

// PollID returns the poll this subscription listens on.
func (s *Subscription) PollID() uuid.UUID {
	return s.pollID
}

// Events returns the channel vote updates are delivered on, in publish
// order. The channel is closed when the subscription ends.
func (s *Subscription) Events() <-chan domain.VoteUpdate {
	return s.events
}

// Cancel removes the subscription and closes its event channel.
// Safe to call more than once, and after the hub has stopped.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		select {
		case s.hub.cmdCh <- cmdUnsubscribe{pollID: s.pollID, id: s.id}:
		case <-s.hub.done:
			// hub already stopped and closed every subscription
		}
	})
}

// --- Hub ---

// Hub is the broadcast registry. All state is owned by the run goroutine;
// the public methods communicate with it over the command channel, so
// Subscribe, Publish and Cancel are safe for concurrent use.
type Hub struct {
	cmdCh       chan hubCmd
	done        chan struct{}
	subscribers map[uuid.UUID]map[uint64]*Subscription
	nextID      uint64
	metrics     *metrics.HubMetrics
}

func NewHub(m *metrics.HubMetrics) *Hub {
	h := &Hub{
		cmdCh:       make(chan hubCmd, 256),
		done:        make(chan struct{}),
		subscribers: make(map[uuid.UUID]map[uint64]*Subscription),
		metrics:     m,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdSubscribe:
			c.replyCh <- h.handleSubscribe(c.pollID)
		case cmdUnsubscribe:
			h.handleUnsubscribe(c.pollID, c.id)
		case cmdPublish:
			h.handlePublish(c.pollID, c.update)
		case cmdSubscriberCount:
			c.replyCh <- len(h.subscribers[c.pollID])
		case cmdStop:
			h.handleStop()
			close(h.done)
			return
		}
	}
}

func (h *Hub) handleSubscribe(pollID uuid.UUID) *Subscription {
	subs, exists := h.subscribers[pollID]
	if !exists {
		subs = make(map[uint64]*Subscription)
		h.subscribers[pollID] = subs
	}

	h.nextID++
	sub := &Subscription{
		pollID: pollID,
		id:     h.nextID,
		events: make(chan domain.VoteUpdate, subscriptionBufferSize),
		hub:    h,
	}
	subs[sub.id] = sub

	h.metrics.ActiveSubscriptions.Inc()
	slog.Debug("Subscriber registered", "poll_id", pollID, "subscribers", len(subs))
	return sub
}

func (h *Hub) handleUnsubscribe(pollID uuid.UUID, id uint64) {
	subs, exists := h.subscribers[pollID]
	if !exists {
		return
	}

	sub, exists := subs[id]
	if !exists {
		return
	}

	close(sub.events)
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.subscribers, pollID)
	}

	h.metrics.ActiveSubscriptions.Dec()
	slog.Debug("Subscriber unregistered", "poll_id", pollID, "subscribers", len(subs))
}

func (h *Hub) handlePublish(pollID uuid.UUID, update domain.VoteUpdate) {
	h.metrics.EventsPublished.Inc()

	for _, sub := range h.subscribers[pollID] {
		select {
		case sub.events <- update:
		default:
			// subscriber buffer full, drop for this subscriber only
			h.metrics.EventsDropped.Inc()
		}
	}
}

func (h *Hub) handleStop() {
	for pollID, subs := range h.subscribers {
		for id, sub := range subs {
			close(sub.events)
			delete(subs, id)
			h.metrics.ActiveSubscriptions.Dec()
		}
		delete(h.subscribers, pollID)
	}
}

// --- Public API ---

// Subscribe registers a new subscription for the poll's vote updates.
func (h *Hub) Subscribe(pollID uuid.UUID) *Subscription {
	replyCh := make(chan *Subscription, 1)
	h.cmdCh <- cmdSubscribe{pollID: pollID, replyCh: replyCh}
	return <-replyCh
}

// Publish delivers update to every current subscriber of the poll.
// Best effort: a subscriber whose buffer is full misses the event, and
// no subscriber can block delivery to the others.
func (h *Hub) Publish(pollID uuid.UUID, update domain.VoteUpdate) {
	h.cmdCh <- cmdPublish{pollID: pollID, update: update}
}

// SubscriberCount returns the number of live subscriptions for a poll.
func (h *Hub) SubscriberCount(pollID uuid.UUID) int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdSubscriberCount{pollID: pollID, replyCh: replyCh}
	return <-replyCh
}

// Stop closes every subscription and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
}
