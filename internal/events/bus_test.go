package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBus(t *testing.T, size int) *Bus {
	t.Helper()
	bus := NewBus(BusConfig{BufferSize: size}, hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	return bus
}

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := startBus(t, 16)
	all, built := &collector{}, &collector{}
	bus.Subscribe(EventFilter{}, all.handle)
	bus.Subscribe(EventFilter{Types: []EventType{EventSceneBuilt}}, built.handle)

	require.NoError(t, bus.Publish(NewEvent(EventBatchStarted, "render", "p1", "batch started", nil)))
	require.NoError(t, bus.Publish(NewEvent(EventSceneBuilt, "render", "p1", "scene built", map[string]interface{}{"scene": "A"})))

	assert.Eventually(t, func() bool { return all.len() == 2 && built.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, built.events[0].ID)
	assert.False(t, built.events[0].Timestamp.IsZero())
}

func TestTargetFilter(t *testing.T) {
	bus := startBus(t, 16)
	c := &collector{}
	bus.Subscribe(EventFilter{Targets: []string{"p2"}}, c.handle)

	require.NoError(t, bus.Publish(NewEvent(EventBatchStarted, "render", "p1", "", nil)))
	require.NoError(t, bus.Publish(NewEvent(EventBatchStarted, "render", "p2", "", nil)))

	assert.Eventually(t, func() bool { return c.len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "p2", c.events[0].Target)
}

func TestPublishRequiresRunningBus(t *testing.T) {
	bus := NewBus(BusConfig{}, hclog.NewNullLogger())
	assert.Error(t, bus.Publish(NewEvent(EventBatchStarted, "render", "", "", nil)))
}

func TestPublishRejectsUntypedEvent(t *testing.T) {
	bus := startBus(t, 4)
	assert.Error(t, bus.Publish(Event{}))
}

func TestHandlerErrorsAndPanicsAreContained(t *testing.T) {
	bus := startBus(t, 16)
	ok := &collector{}
	bus.Subscribe(EventFilter{}, func(Event) error { return errors.New("boom") })
	bus.Subscribe(EventFilter{}, func(Event) error { panic("boom") })
	bus.Subscribe(EventFilter{}, ok.handle)

	require.NoError(t, bus.Publish(NewEvent(EventSceneFailed, "render", "p1", "", nil)))
	assert.Eventually(t, func() bool { return ok.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestUnsubscribe(t *testing.T) {
	bus := startBus(t, 16)
	c := &collector{}
	sub := bus.Subscribe(EventFilter{}, c.handle)
	require.NoError(t, bus.Unsubscribe(sub.ID))
	assert.Error(t, bus.Unsubscribe(sub.ID))
	assert.Equal(t, 0, bus.Stats().ActiveSubscriptions)
}

func TestRecentAndStats(t *testing.T) {
	bus := startBus(t, 16)
	for _, typ := range []EventType{EventBatchStarted, EventSceneBuilt, EventBatchCompleted} {
		require.NoError(t, bus.Publish(NewEvent(typ, "render", "p1", "", nil)))
	}

	assert.Eventually(t, func() bool { return bus.Stats().TotalEvents == 3 }, time.Second, 5*time.Millisecond)
	recent := bus.Recent(EventFilter{}, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, EventSceneBuilt, recent[0].Type)
	assert.Equal(t, EventBatchCompleted, recent[1].Type)
	assert.Equal(t, int64(1), bus.Stats().EventsByType[string(EventSceneBuilt)])
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	bus := NewBus(BusConfig{BufferSize: 8}, hclog.NewNullLogger())
	require.NoError(t, bus.Start(context.Background()))
	c := &collector{}
	bus.Subscribe(EventFilter{}, c.handle)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(NewEvent(EventSceneState, "render", "p1", "", nil)))
	}
	require.NoError(t, bus.Stop(context.Background()))
	assert.Equal(t, 5, c.len())
}
