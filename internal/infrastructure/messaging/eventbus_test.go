package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpulse/engagement-core/internal/domain/shared"
)

type recordingHandler struct {
	mu     sync.Mutex
	types  []shared.EventType
	seen   []shared.Event
	err    error
	notify chan struct{}
}

func newRecordingHandler(types ...shared.EventType) *recordingHandler {
	return &recordingHandler{types: types, notify: make(chan struct{}, 16)}
}

func (h *recordingHandler) EventTypes() []shared.EventType { return h.types }

func (h *recordingHandler) Handle(_ context.Context, event shared.Event) error {
	h.mu.Lock()
	h.seen = append(h.seen, event)
	h.mu.Unlock()
	select {
	case h.notify <- struct{}{}:
	default:
	}
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func (h *recordingHandler) waitFor(t *testing.T, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for h.count() < n {
		select {
		case <-h.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d events, got %d", n, h.count())
		}
	}
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: false})
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	points := newRecordingHandler(shared.EventPointsAwarded)
	streaks := newRecordingHandler(shared.EventStreakExtended)
	require.NoError(t, bus.Subscribe(points))
	require.NoError(t, bus.Subscribe(streaks))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 5)))

	assert.Equal(t, 1, points.count())
	assert.Zero(t, streaks.count())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	all := newRecordingHandler()
	require.NoError(t, bus.SubscribeAll(all))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 5)))
	require.NoError(t, bus.Publish(shared.NewStreakExtendedEvent("user-1", "s-1", "daily_check_in", 2, 2)))

	assert.Equal(t, 2, all.count())
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	failing := newRecordingHandler(shared.EventPointsAwarded)
	failing.err = errors.New("boom")
	healthy := newRecordingHandler(shared.EventPointsAwarded)
	require.NoError(t, bus.Subscribe(failing))
	require.NoError(t, bus.Subscribe(healthy))

	require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 5)))

	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})
	defer bus.Close()

	handler := newRecordingHandler(shared.EventPointsAwarded)
	require.NoError(t, bus.Subscribe(handler))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 5)))
	}

	handler.waitFor(t, 10)
}

func TestInMemoryEventBus_ClosedBusRejectsWork(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "double close is a no-op")

	err := bus.Publish(shared.NewPointsAwardedEvent("user-1", "daily_check_in", 5, 5))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(newRecordingHandler(shared.EventPointsAwarded))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_NilEventAndHandler(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(nil))
	assert.Error(t, bus.SubscribeAll(nil))
}
