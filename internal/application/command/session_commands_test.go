package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// StartSession
// ─────────────────────────────────────────────────────────────────────────────

func TestStartSession(t *testing.T) {
	mgr := monitoring.NewManager(&stubRegistry{})
	bus := &captureBus{}
	h := NewStartSessionHandler(mgr, bus, quietLogger(), DefaultStartSessionHandlerConfig())

	result, err := h.Handle(context.Background(), StartSessionCommand{CourseID: 3, DurationMinutes: 45})

	require.NoError(t, err)
	assert.True(t, result.Snapshot.Active)
	assert.Equal(t, int64(3), result.Snapshot.CourseID)
	assert.Equal(t, 45, result.Snapshot.DurationMinutes)
	assert.Equal(t, 1, result.Snapshot.SessionNumber)

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, shared.EventSessionStarted, events[0].EventType())
}

func TestStartSessionDefaultDuration(t *testing.T) {
	mgr := monitoring.NewManager(&stubRegistry{})
	h := NewStartSessionHandler(mgr, nil, quietLogger(), DefaultStartSessionHandlerConfig())

	result, err := h.Handle(context.Background(), StartSessionCommand{CourseID: 3})

	require.NoError(t, err)
	assert.Equal(t, 10, result.Snapshot.DurationMinutes)
}

func TestStartSessionValidation(t *testing.T) {
	h := NewStartSessionHandler(monitoring.NewManager(&stubRegistry{}), nil, quietLogger(), DefaultStartSessionHandlerConfig())

	tests := []struct {
		name    string
		cmd     StartSessionCommand
		wantErr error
	}{
		{"missing course", StartSessionCommand{DurationMinutes: 10}, shared.ErrCourseIDRequired},
		{"negative course", StartSessionCommand{CourseID: -1}, shared.ErrCourseIDRequired},
		{"negative duration", StartSessionCommand{CourseID: 1, DurationMinutes: -5}, shared.ErrDurationRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// StopSession
// ─────────────────────────────────────────────────────────────────────────────

func TestStopSession(t *testing.T) {
	reg := &stubRegistry{}
	mgr := monitoring.NewManager(reg)
	_, err := mgr.Start(context.Background(), 30, 5)
	require.NoError(t, err)

	bus := &captureBus{}
	h := NewStopSessionHandler(mgr, bus, quietLogger())

	result, err := h.Handle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Stopped.CourseID)
	assert.False(t, mgr.Snapshot().Active)
	assert.Equal(t, []int64{1}, reg.closed)

	events := bus.published()
	require.Len(t, events, 1)
	assert.Equal(t, shared.EventSessionStopped, events[0].EventType())
}

func TestStopSessionIdempotent(t *testing.T) {
	bus := &captureBus{}
	h := NewStopSessionHandler(monitoring.NewManager(&stubRegistry{}), bus, quietLogger())

	result, err := h.Handle(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Stopped.CourseSessionID)
	assert.Empty(t, bus.published()) // nothing was running, nothing to announce
}
