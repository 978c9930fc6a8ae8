package eventhandler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/internal/infrastructure/messaging"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ═════════════════════════════════════════════════════════════════════════════
// TEST FIXTURES
// ═════════════════════════════════════════════════════════════════════════════

// recordingCache captures invalidation calls so tests can assert which
// cached views a handler dropped.
type recordingCache struct {
	deleted  []string
	patterns []string
}

func (c *recordingCache) Delete(_ context.Context, keys ...string) error {
	c.deleted = append(c.deleted, keys...)
	return nil
}

func (c *recordingCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

// wireEvent mimics an event read back off the Redis bus: a generic envelope
// whose payload numbers decoded as float64, with no concrete event struct.
type wireEvent struct {
	shared.BaseEvent
	payload map[string]interface{}
}

func (e wireEvent) Payload() map[string]interface{} {
	return e.payload
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelFatal})
}

func syncBus() *messaging.InMemoryEventBus {
	return messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode: false,
		Logger:    quietLogger(),
	})
}

// ═════════════════════════════════════════════════════════════════════════════
// SESSION LIFECYCLE
// ═════════════════════════════════════════════════════════════════════════════

// Events reach subscribers through the bus as the shared.Event interface, so
// the handler must recognize them by EventType rather than concrete type.
func TestSessionStoppedInvalidatesThroughBus(t *testing.T) {
	cache := &recordingCache{}
	handler := NewSessionLifecycleHandler(cache, quietLogger())

	bus := syncBus()
	defer bus.Close()
	require.NoError(t, bus.Subscribe(shared.EventSessionStopped, handler.OnSessionStopped))

	err := bus.Publish(shared.SessionStoppedEvent{
		BaseEvent:       shared.NewBaseEvent(shared.EventSessionStopped, "42"),
		CourseID:        7,
		CourseSessionID: 42,
	})
	require.NoError(t, err)

	assert.Contains(t, cache.deleted, "dashboard:today")
	assert.Contains(t, cache.patterns, "report:*")
}

func TestSessionStoppedAcceptsWireFormatEvent(t *testing.T) {
	cache := &recordingCache{}
	handler := NewSessionLifecycleHandler(cache, quietLogger())

	err := handler.OnSessionStopped(wireEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionStopped, "42"),
		payload: map[string]interface{}{
			"course_id":         float64(7),
			"course_session_id": float64(42),
		},
	})
	require.NoError(t, err)

	assert.Contains(t, cache.deleted, "dashboard:today")
	assert.Contains(t, cache.patterns, "report:*")
}

func TestSessionStoppedIgnoresOtherEventTypes(t *testing.T) {
	cache := &recordingCache{}
	handler := NewSessionLifecycleHandler(cache, quietLogger())

	err := handler.OnSessionStopped(shared.SessionStartedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionStarted, "42"),
	})
	require.NoError(t, err)

	assert.Empty(t, cache.deleted)
	assert.Empty(t, cache.patterns)
}

func TestSessionStartedAndExpiredLeaveCacheAlone(t *testing.T) {
	cache := &recordingCache{}
	handler := NewSessionLifecycleHandler(cache, quietLogger())

	require.NoError(t, handler.OnSessionStarted(shared.SessionStartedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionStarted, "42"),
		CourseID:  7,
	}))
	require.NoError(t, handler.OnSessionExpired(shared.SessionExpiredEvent{
		BaseEvent:       shared.NewBaseEvent(shared.EventSessionExpired, "42"),
		CourseID:        7,
		CourseSessionID: 42,
	}))

	assert.Empty(t, cache.deleted)
	assert.Empty(t, cache.patterns)
}

// ═════════════════════════════════════════════════════════════════════════════
// ROSTER CHANGES
// ═════════════════════════════════════════════════════════════════════════════

func TestRosterChangedInvalidatesDashboard(t *testing.T) {
	cache := &recordingCache{}
	handler := NewRosterChangedHandler(cache, quietLogger())

	err := handler.Handle(shared.StudentEnrolledEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventStudentEnrolled, "3"),
		StudentID: 3,
	})
	require.NoError(t, err)

	assert.Contains(t, cache.deleted, "dashboard:today")
}

// ═════════════════════════════════════════════════════════════════════════════
// INGESTION ACTIVITY
// ═════════════════════════════════════════════════════════════════════════════

func TestIngestionActivityInvalidation(t *testing.T) {
	tests := []struct {
		name       string
		event      shared.Event
		invalidate bool
	}{
		{
			name: "frame with stored rows",
			event: shared.FrameProcessedEvent{
				BaseEvent:          shared.NewBaseEvent(shared.EventFrameProcessed, "batch-1"),
				AttendanceRecorded: 2,
				EngagementRecorded: 1,
			},
			invalidate: true,
		},
		{
			name: "frame with nothing stored",
			event: shared.FrameProcessedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventFrameProcessed, "batch-2"),
				Skipped:   4,
			},
			invalidate: false,
		},
		{
			name: "manual engagement reading",
			event: shared.EngagementRecordedEvent{
				BaseEvent:      shared.NewBaseEvent(shared.EventEngagementRecorded, "3"),
				StudentID:      3,
				AttentionScore: 0.8,
			},
			invalidate: true,
		},
		{
			name: "frame off the wire with stored rows",
			event: wireEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventFrameProcessed, "batch-3"),
				payload: map[string]interface{}{
					"attendance_recorded": float64(1),
					"engagement_recorded": float64(0),
				},
			},
			invalidate: true,
		},
		{
			name: "unrelated event",
			event: shared.SessionStartedEvent{
				BaseEvent: shared.NewBaseEvent(shared.EventSessionStarted, "42"),
			},
			invalidate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &recordingCache{}
			handler := NewIngestionActivityHandler(cache, quietLogger())

			require.NoError(t, handler.Handle(tt.event))

			if tt.invalidate {
				assert.Contains(t, cache.deleted, "dashboard:today")
			} else {
				assert.Empty(t, cache.deleted)
			}
		})
	}
}
