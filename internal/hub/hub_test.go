package hub

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robsonshockwave/polls-api/internal/domain"
	"github.com/robsonshockwave/polls-api/internal/metrics"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(metrics.NewHubMetrics(prometheus.NewRegistry()))
	t.Cleanup(h.Stop)
	return h
}

// receiveEvent pulls one event from a subscription or fails the test.
func receiveEvent(t *testing.T, sub *Subscription) domain.VoteUpdate {
	t.Helper()
	select {
	case update, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return update
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.VoteUpdate{}
	}
}

func TestHub_SubscribeAndPublish(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()
	optionID := uuid.New()

	sub := h.Subscribe(pollID)
	h.Publish(pollID, domain.VoteUpdate{PollOptionID: optionID, Votes: 1})

	update := receiveEvent(t, sub)
	assert.Equal(t, optionID, update.PollOptionID)
	assert.Equal(t, int64(1), update.Votes)
}

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()
	optionID := uuid.New()

	sub1 := h.Subscribe(pollID)
	sub2 := h.Subscribe(pollID)
	h.Publish(pollID, domain.VoteUpdate{PollOptionID: optionID, Votes: 7})

	for _, sub := range []*Subscription{sub1, sub2} {
		update := receiveEvent(t, sub)
		assert.Equal(t, int64(7), update.Votes)
	}
}

func TestHub_PollsAreIsolated(t *testing.T) {
	h := newTestHub(t)
	pollA := uuid.New()
	pollB := uuid.New()
	marker := uuid.New()

	subB := h.Subscribe(pollB)

	// The hub processes commands in order, so if the pollA event leaked
	// into subB it would arrive before the marker.
	h.Publish(pollA, domain.VoteUpdate{PollOptionID: uuid.New(), Votes: 99})
	h.Publish(pollB, domain.VoteUpdate{PollOptionID: marker, Votes: 1})

	update := receiveEvent(t, subB)
	assert.Equal(t, marker, update.PollOptionID)
}

func TestHub_PerSubscriberOrder(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()
	optionID := uuid.New()

	sub := h.Subscribe(pollID)
	for i := 1; i <= 10; i++ {
		h.Publish(pollID, domain.VoteUpdate{PollOptionID: optionID, Votes: int64(i)})
	}

	for i := 1; i <= 10; i++ {
		update := receiveEvent(t, sub)
		assert.Equal(t, int64(i), update.Votes)
	}
}

func TestHub_CancelClosesEvents(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()

	sub := h.Subscribe(pollID)
	sub.Cancel()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "expected events channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed after Cancel")
	}

	assert.Equal(t, 0, h.SubscriberCount(pollID))
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()

	sub := h.Subscribe(pollID)
	other := h.Subscribe(pollID)

	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 1, h.SubscriberCount(pollID))

	// The remaining subscriber still receives events.
	h.Publish(pollID, domain.VoteUpdate{PollOptionID: uuid.New(), Votes: 3})
	update := receiveEvent(t, other)
	assert.Equal(t, int64(3), update.Votes)
}

func TestHub_CanceledSubscriberReceivesNothing(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()

	gone := h.Subscribe(pollID)
	stays := h.Subscribe(pollID)

	gone.Cancel()
	h.Publish(pollID, domain.VoteUpdate{PollOptionID: uuid.New(), Votes: 1})

	receiveEvent(t, stays)
	for update := range gone.Events() {
		t.Fatalf("canceled subscriber received event: %+v", update)
	}
}

func TestHub_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(t)
	pollID := uuid.New()
	optionID := uuid.New()

	slow := h.Subscribe(pollID)
	fast := h.Subscribe(pollID)

	// Overflow the slow subscriber's buffer without reading from it,
	// while the fast subscriber keeps up event by event.
	total := subscriptionBufferSize + 8
	for i := 1; i <= total; i++ {
		h.Publish(pollID, domain.VoteUpdate{PollOptionID: optionID, Votes: int64(i)})
		update := receiveEvent(t, fast)
		assert.Equal(t, int64(i), update.Votes)
	}

	// The slow one kept only what fit in its buffer.
	slow.Cancel()
	received := 0
	for range slow.Events() {
		received++
	}
	assert.Equal(t, subscriptionBufferSize, received)
}

func TestHub_CancelAfterStopDoesNotBlock(t *testing.T) {
	h := NewHub(metrics.NewHubMetrics(prometheus.NewRegistry()))
	pollID := uuid.New()

	// More subscriptions than the command buffer holds, so sends after
	// shutdown cannot all park there.
	subs := make([]*Subscription, 300)
	for i := range subs {
		subs[i] = h.Subscribe(pollID)
	}

	h.Stop()
	for _, sub := range subs {
		select {
		case _, ok := <-sub.Events():
			require.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("events channel was not closed after Stop")
		}
	}

	// The session teardown path cancels each subscription after the hub
	// is gone; none of these may block.
	for _, sub := range subs {
		sub.Cancel()
	}
}

func TestHub_StopClosesAllSubscriptions(t *testing.T) {
	h := NewHub(metrics.NewHubMetrics(prometheus.NewRegistry()))
	pollID := uuid.New()

	sub := h.Subscribe(pollID)
	h.Stop()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel was not closed after Stop")
	}
}
