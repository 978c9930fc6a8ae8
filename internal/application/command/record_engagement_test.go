package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

func TestRecordEngagement(t *testing.T) {
	store := newMemoryStore()
	h := NewRecordEngagementHandler(startedManager(t), store, nil, quietLogger(), DefaultRecordEngagementHandlerConfig())

	eyes := false
	result, err := h.Handle(context.Background(), RecordEngagementCommand{
		StudentID:      9,
		AttentionScore: score(0.65),
		EyesOpen:       &eyes,
	})

	require.NoError(t, err)
	assert.False(t, result.Skipped)
	require.NotNil(t, result.Record)
	assert.InDelta(t, 0.65, result.Record.AttentionScore, 1e-9)
	assert.False(t, result.Record.EyesOpen)
	assert.True(t, result.Record.FacingCamera) // defaults true when omitted
	require.NotNil(t, result.Record.CourseID)
	assert.Equal(t, int64(7), *result.Record.CourseID)
	require.Len(t, store.engagement, 1)
}

func TestRecordEngagementPublishesEvent(t *testing.T) {
	store := newMemoryStore()
	bus := &captureBus{}
	h := NewRecordEngagementHandler(startedManager(t), store, bus, quietLogger(), DefaultRecordEngagementHandlerConfig())

	_, err := h.Handle(context.Background(), RecordEngagementCommand{
		StudentID:      9,
		AttentionScore: score(0.65),
		SessionDate:    "2026-01-15",
	})
	require.NoError(t, err)

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, shared.EventEngagementRecorded, events[0].EventType())
	recorded, ok := events[0].(shared.EngagementRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(9), recorded.StudentID)
	assert.Equal(t, "2026-01-15", recorded.SessionDate)
}

func TestRecordEngagementSkippedWhenInactive(t *testing.T) {
	store := newMemoryStore()
	h := NewRecordEngagementHandler(monitoring.NewManager(&stubRegistry{}), store, nil, quietLogger(), DefaultRecordEngagementHandlerConfig())

	result, err := h.Handle(context.Background(), RecordEngagementCommand{
		StudentID:      9,
		AttentionScore: score(0.65),
	})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Nil(t, result.Record)
	assert.Empty(t, store.engagement)
}

func TestRecordEngagementDateTimeOverride(t *testing.T) {
	store := newMemoryStore()
	h := NewRecordEngagementHandler(startedManager(t), store, nil, quietLogger(), DefaultRecordEngagementHandlerConfig())

	result, err := h.Handle(context.Background(), RecordEngagementCommand{
		StudentID:      9,
		AttentionScore: score(0.4),
		SessionDate:    "2026-01-15",
		SessionTime:    "09:30:00",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Record)
	assert.Equal(t, "2026-01-15", result.Record.SessionDate)
	assert.Equal(t, "09:30:00", result.Record.SessionTime)
}

func TestRecordEngagementValidation(t *testing.T) {
	h := NewRecordEngagementHandler(startedManager(t), newMemoryStore(), nil, quietLogger(), DefaultRecordEngagementHandlerConfig())

	_, err := h.Handle(context.Background(), RecordEngagementCommand{AttentionScore: score(0.5)})
	assert.ErrorIs(t, err, shared.ErrStudentIDRequired)

	_, err = h.Handle(context.Background(), RecordEngagementCommand{StudentID: 9})
	assert.ErrorIs(t, err, shared.ErrScoreRequired)

	_, err = h.Handle(context.Background(), RecordEngagementCommand{
		StudentID:      9,
		AttentionScore: score(0.5),
		SessionDate:    "15-01-2026",
	})
	assert.True(t, shared.IsValidation(err))
}
