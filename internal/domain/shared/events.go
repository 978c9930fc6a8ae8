// Package shared contains common domain types, errors and events used across
// all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened in the monitoring domain.
const (
	// Session lifecycle events
	EventSessionStarted EventType = "session.started"
	EventSessionStopped EventType = "session.stopped"
	EventSessionExpired EventType = "session.expired"

	// Ingestion events
	EventFrameProcessed     EventType = "ingestion.frame_processed"
	EventEngagementRecorded EventType = "ingestion.engagement_recorded"

	// Roster events
	EventStudentEnrolled EventType = "roster.student_enrolled"
	EventStudentRemoved  EventType = "roster.student_removed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements the Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements the Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements the Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// SessionStartedEvent is emitted when a monitoring session is started.
type SessionStartedEvent struct {
	BaseEvent
	CourseID        int64 `json:"course_id"`
	CourseSessionID int64 `json:"course_session_id"`
	SessionNumber   int   `json:"session_number"`
	DurationMinutes int   `json:"duration_minutes"`
}

// Payload implements the Event interface.
func (e SessionStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":         e.CourseID,
		"course_session_id": e.CourseSessionID,
		"session_number":    e.SessionNumber,
		"duration_minutes":  e.DurationMinutes,
	}
}

// SessionStoppedEvent is emitted when a monitoring session is stopped and its
// occurrence finalized.
type SessionStoppedEvent struct {
	BaseEvent
	CourseID        int64 `json:"course_id"`
	CourseSessionID int64 `json:"course_session_id"`
}

// Payload implements the Event interface.
func (e SessionStoppedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":         e.CourseID,
		"course_session_id": e.CourseSessionID,
	}
}

// FrameProcessedEvent is emitted after a detection batch has been fully
// resolved, successful or not.
type FrameProcessedEvent struct {
	BaseEvent
	BatchID            string `json:"batch_id"`
	AttendanceRecorded int    `json:"attendance_recorded"`
	EngagementRecorded int    `json:"engagement_recorded"`
	Skipped            int    `json:"skipped"`
	Errors             int    `json:"errors"`
}

// Payload implements the Event interface.
func (e FrameProcessedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"batch_id":            e.BatchID,
		"attendance_recorded": e.AttendanceRecorded,
		"engagement_recorded": e.EngagementRecorded,
		"skipped":             e.Skipped,
		"errors":              e.Errors,
	}
}

// SessionExpiredEvent is emitted the first time an active session is
// observed past its end time. The occurrence is still open at that point;
// a later Stop or Start finalizes it.
type SessionExpiredEvent struct {
	BaseEvent
	CourseID        int64 `json:"course_id"`
	CourseSessionID int64 `json:"course_session_id"`
}

// Payload implements the Event interface.
func (e SessionExpiredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"course_id":         e.CourseID,
		"course_session_id": e.CourseSessionID,
	}
}

// EngagementRecordedEvent is emitted when a standalone attention reading is
// stored outside a detection batch.
type EngagementRecordedEvent struct {
	BaseEvent
	StudentID      int64   `json:"student_id"`
	AttentionScore float64 `json:"attention_score"`
	SessionDate    string  `json:"session_date"`
}

// Payload implements the Event interface.
func (e EngagementRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"attention_score": e.AttentionScore,
		"session_date":    e.SessionDate,
	}
}

// StudentEnrolledEvent is emitted when a student is added to the roster.
type StudentEnrolledEvent struct {
	BaseEvent
	StudentID int64  `json:"student_id"`
	Name      string `json:"name"`
}

// Payload implements the Event interface.
func (e StudentEnrolledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"name":       e.Name,
	}
}

// StudentRemovedEvent is emitted when a student is removed from the roster.
type StudentRemovedEvent struct {
	BaseEvent
	StudentID int64 `json:"student_id"`
}

// Payload implements the Event interface.
func (e StudentRemovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber

	// Close releases resources held by the bus.
	Close() error
}
