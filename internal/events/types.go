// Package events provides the in-process event bus used to stream render
// progress to subscribers such as the websocket endpoint.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Batch events
	EventBatchQueued    EventType = "batch.queued"
	EventBatchStarted   EventType = "batch.started"
	EventBatchCompleted EventType = "batch.completed"
	EventBatchFailed    EventType = "batch.failed"

	// Scene events
	EventSceneState  EventType = "scene.state"
	EventSceneBuilt  EventType = "scene.built"
	EventSceneFailed EventType = "scene.failed"

	// Combination events
	EventCombineCompleted EventType = "combine.completed"
	EventCombineFailed    EventType = "combine.failed"

	// Maintenance events
	EventRetentionSwept EventType = "retention.swept"

	// System events
	EventSystemStarted EventType = "system.started"
	EventSystemStopped EventType = "system.stopped"
)

// EventPriority represents the priority level of an event
type EventPriority int

const (
	PriorityLow    EventPriority = 1
	PriorityNormal EventPriority = 5
	PriorityHigh   EventPriority = 10
)

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Target    string                 `json:"target,omitempty"` // project id when applicable
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  EventPriority          `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventHandler handles a delivered event
type EventHandler func(event Event) error

// EventFilter selects events for a subscription. Empty fields match all.
type EventFilter struct {
	Types   []EventType `json:"types,omitempty"`
	Targets []string    `json:"targets,omitempty"`
}

// Subscription represents an event subscription
type Subscription struct {
	ID            string       `json:"id"`
	Filter        EventFilter  `json:"filter"`
	Handler       EventHandler `json:"-"`
	Created       time.Time    `json:"created"`
	LastTriggered *time.Time   `json:"last_triggered,omitempty"`
	TriggerCount  int64        `json:"trigger_count"`
}

// EventStats represents statistics about events
type EventStats struct {
	TotalEvents         int64            `json:"total_events"`
	DroppedEvents       int64            `json:"dropped_events"`
	EventsByType        map[string]int64 `json:"events_by_type"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
}

// NewEvent creates an event with normal priority.
func NewEvent(eventType EventType, source, target, message string, data map[string]interface{}) Event {
	return Event{
		Type:     eventType,
		Source:   source,
		Target:   target,
		Message:  message,
		Data:     data,
		Priority: PriorityNormal,
	}
}

// MatchesFilter reports whether event passes filter.
func MatchesFilter(event Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		found := false
		for _, t := range filter.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Targets) > 0 {
		found := false
		for _, t := range filter.Targets {
			if t == event.Target {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
