// Package events carries analysis progress from the pipeline to the CLI and
// web UI.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// UIEvent represents an event forwarded to progress listeners.
type UIEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Event types
const (
	EventTypeAnalysisStarted   = "analysis_started"
	EventTypeStageStarted      = "stage_started"
	EventTypeStageCompleted    = "stage_completed"
	EventTypeStageFailed       = "stage_failed"
	EventTypeAnalysisCompleted = "analysis_completed"
	EventTypeChatAnswered      = "chat_answered"
	EventTypeError             = "error"
)

const subscriberBuffer = 100

// EventBus fans events out to named subscribers. A nil *EventBus drops
// everything, so callers never need to check for one.
type EventBus struct {
	subscribers map[string]chan UIEvent
	mutex       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]chan UIEvent),
	}
}

// Subscribe adds a new subscriber to the event bus. Subscribing twice under
// the same name replaces (and closes) the earlier channel.
func (eb *EventBus) Subscribe(name string) <-chan UIEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if old, exists := eb.subscribers[name]; exists {
		close(old)
	}
	ch := make(chan UIEvent, subscriberBuffer)
	eb.subscribers[name] = ch
	return ch
}

// Unsubscribe removes a subscriber from the event bus
func (eb *EventBus) Unsubscribe(name string) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	if ch, exists := eb.subscribers[name]; exists {
		delete(eb.subscribers, name)
		close(ch)
	}
}

// SubscriberCount returns the number of live subscribers.
func (eb *EventBus) SubscriberCount() int {
	if eb == nil {
		return 0
	}
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// Publish broadcasts an event to all subscribers. Slow subscribers whose
// buffer is full miss the event; publishing never blocks.
func (eb *EventBus) Publish(eventType string, data any) {
	if eb == nil {
		return
	}
	event := UIEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Sending under the read lock keeps Unsubscribe from closing a channel mid-send.
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// AnalysisStartedEvent marks the start of one analysis run.
func AnalysisStartedEvent(runID string, afterImages int) map[string]any {
	return map[string]any{
		"run_id":       runID,
		"after_images": afterImages,
	}
}

// StageStartedEvent marks a pipeline stage starting. imageIndex is -1 when
// the stage is not tied to an after image.
func StageStartedEvent(runID, stage string, imageIndex int) map[string]any {
	return stageEvent(runID, stage, imageIndex)
}

// StageCompletedEvent marks a stage finishing successfully.
func StageCompletedEvent(runID, stage string, imageIndex int, duration time.Duration, chars int) map[string]any {
	data := stageEvent(runID, stage, imageIndex)
	data["duration_ms"] = duration.Milliseconds()
	data["chars"] = chars
	return data
}

// StageFailedEvent marks a stage failing; the run aborts afterwards.
func StageFailedEvent(runID, stage string, imageIndex int, err error) map[string]any {
	data := stageEvent(runID, stage, imageIndex)
	data["error"] = err.Error()
	return data
}

// AnalysisCompletedEvent marks the report as assembled.
func AnalysisCompletedEvent(runID string, incompleteTasks int, duration time.Duration) map[string]any {
	return map[string]any{
		"run_id":           runID,
		"incomplete_tasks": incompleteTasks,
		"duration_ms":      duration.Milliseconds(),
	}
}

// ChatAnsweredEvent records which route a chat question took.
func ChatAnsweredEvent(model string, usedImage string) map[string]any {
	return map[string]any{
		"model":      model,
		"used_image": usedImage,
	}
}

// ErrorEvent creates an error event
func ErrorEvent(message string, err error) map[string]any {
	return map[string]any{
		"message": message,
		"error":   err.Error(),
	}
}

func stageEvent(runID, stage string, imageIndex int) map[string]any {
	data := map[string]any{
		"run_id": runID,
		"stage":  stage,
	}
	if imageIndex >= 0 {
		data["image_index"] = imageIndex
	}
	return data
}
