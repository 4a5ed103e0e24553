package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

const recentEventsSize = 100

// BusConfig configures the event bus.
type BusConfig struct {
	BufferSize int
}

// Bus is an asynchronous in-process event bus. Publishing never blocks: a
// full buffer drops the event.
type Bus struct {
	config BusConfig
	logger hclog.Logger

	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup

	recentEvents []Event
	stats        EventStats
}

// NewBus creates a new event bus instance
func NewBus(config BusConfig, logger hclog.Logger) *Bus {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	return &Bus{
		config:        config,
		logger:        logger.Named("events"),
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, config.BufferSize),
		recentEvents:  make([]Event, 0, recentEventsSize),
		stats:         EventStats{EventsByType: make(map[string]int64)},
	}
}

// Start starts the event processor
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("event bus is already running")
	}
	b.running = true
	b.stopCh = make(chan struct{})

	b.wg.Add(1)
	go b.processEvents(ctx)

	b.logger.Debug("event bus started", "buffer_size", b.config.BufferSize)
	return nil
}

// Stop stops the event processor and waits for it to exit.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.stopCh)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus stop timed out")
		return ctx.Err()
	}
}

// Publish queues event for delivery.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus is not running")
	}

	if event.Type == "" {
		return fmt.Errorf("invalid event: event type is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventChannel <- event:
		return nil
	default:
		b.mu.Lock()
		b.stats.DroppedEvents++
		b.mu.Unlock()
		b.logger.Warn("event channel full, dropping event", "event_type", event.Type, "event_id", event.ID)
		return fmt.Errorf("event channel full")
	}
}

// Subscribe registers handler for events matching filter.
func (b *Bus) Subscribe(filter EventFilter, handler EventHandler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.New().String(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}
	b.subscriptions[sub.ID] = sub

	b.logger.Debug("new subscription created", "subscription_id", sub.ID, "types", filter.Types)
	return sub
}

// Unsubscribe removes a subscription
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[subscriptionID]; !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(b.subscriptions, subscriptionID)

	b.logger.Debug("subscription removed", "subscription_id", subscriptionID)
	return nil
}

// Recent returns up to limit of the most recent events matching filter,
// oldest first.
func (b *Bus) Recent(filter EventFilter, limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for i := len(b.recentEvents) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if MatchesFilter(b.recentEvents[i], filter) {
			out = append(out, b.recentEvents[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Stats returns a snapshot of bus statistics.
func (b *Bus) Stats() EventStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byType := make(map[string]int64, len(b.stats.EventsByType))
	for k, v := range b.stats.EventsByType {
		byType[k] = v
	}
	return EventStats{
		TotalEvents:         b.stats.TotalEvents,
		DroppedEvents:       b.stats.DroppedEvents,
		EventsByType:        byType,
		ActiveSubscriptions: len(b.subscriptions),
	}
}

func (b *Bus) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopCh:
			b.drain()
			return
		case <-ctx.Done():
			return
		case event := <-b.eventChannel:
			b.handleEvent(event)
		}
	}
}

// drain delivers what was queued before Stop.
func (b *Bus) drain() {
	for {
		select {
		case event := <-b.eventChannel:
			b.handleEvent(event)
		default:
			return
		}
	}
}

func (b *Bus) handleEvent(event Event) {
	b.mu.Lock()
	b.recentEvents = append(b.recentEvents, event)
	if len(b.recentEvents) > recentEventsSize {
		b.recentEvents = b.recentEvents[1:]
	}
	b.stats.TotalEvents++
	b.stats.EventsByType[string(event.Type)]++

	var matching []*Subscription
	for _, sub := range b.subscriptions {
		if MatchesFilter(event, sub.Filter) {
			matching = append(matching, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range matching {
		b.notifySubscriber(sub, event)
	}
}

func (b *Bus) notifySubscriber(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in event handler", "subscription_id", sub.ID, "error", r, "event_id", event.ID)
		}
	}()

	if err := sub.Handler(event); err != nil {
		b.logger.Error("event handler error", "subscription_id", sub.ID, "error", err, "event_id", event.ID)
		return
	}

	b.mu.Lock()
	sub.TriggerCount++
	now := time.Now()
	sub.LastTriggered = &now
	b.mu.Unlock()
}
