package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ═════════════════════════════════════════════════════════════════════════════
// SINGLE ENTRY
// ═════════════════════════════════════════════════════════════════════════════

func TestRecordAttendanceDefaultsToNow(t *testing.T) {
	store := newMemoryStore()
	h := NewRecordAttendanceHandler(store, quietLogger(), DefaultRecordAttendanceHandlerConfig())

	result, err := h.Handle(context.Background(), RecordAttendanceCommand{StudentID: 3})

	require.NoError(t, err)
	require.NotNil(t, result.Record)
	assert.Equal(t, int64(3), result.Record.StudentID)
	assert.Equal(t, timeutil.Today(), result.Record.SessionDate)
	assert.NotEmpty(t, result.Record.SessionTime)

	require.Len(t, store.attendance, 1)
	// Manual entry carries no course attribution.
	assert.Nil(t, store.attendance[0].CourseID)
	assert.Nil(t, store.attendance[0].CourseSessionID)
}

func TestRecordAttendanceDateTimeOverride(t *testing.T) {
	store := newMemoryStore()
	h := NewRecordAttendanceHandler(store, quietLogger(), DefaultRecordAttendanceHandlerConfig())

	result, err := h.Handle(context.Background(), RecordAttendanceCommand{
		StudentID:   3,
		SessionDate: "2026-03-02",
		SessionTime: "09:15:00",
	})

	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", result.Record.SessionDate)
	assert.Equal(t, "09:15:00", result.Record.SessionTime)
}

func TestRecordAttendanceValidation(t *testing.T) {
	h := NewRecordAttendanceHandler(newMemoryStore(), quietLogger(), DefaultRecordAttendanceHandlerConfig())

	_, err := h.Handle(context.Background(), RecordAttendanceCommand{})
	assert.ErrorIs(t, err, shared.ErrStudentIDRequired)

	_, err = h.Handle(context.Background(), RecordAttendanceCommand{StudentID: 3, SessionDate: "02.03.2026"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), RecordAttendanceCommand{StudentID: 3, SessionTime: "9am"})
	assert.True(t, shared.IsValidation(err))
}

func TestRecordAttendanceStoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.failFor[3] = errors.New("connection reset")
	h := NewRecordAttendanceHandler(store, quietLogger(), DefaultRecordAttendanceHandlerConfig())

	_, err := h.Handle(context.Background(), RecordAttendanceCommand{StudentID: 3})

	assert.True(t, shared.IsPersistence(err))
}

// ═════════════════════════════════════════════════════════════════════════════
// BULK ENTRY
// ═════════════════════════════════════════════════════════════════════════════

func TestBulkAttendance(t *testing.T) {
	store := newMemoryStore()
	h := NewRecordAttendanceHandler(store, quietLogger(), DefaultRecordAttendanceHandlerConfig())

	result, err := h.HandleBulk(context.Background(), BulkAttendanceCommand{
		StudentIDs:  []int64{1, 2, 3},
		SessionDate: "2026-03-02",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Recorded)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, store.attendance, 3)
	for _, rec := range result.Attendance {
		assert.Equal(t, "2026-03-02", rec.SessionDate)
	}
}

func TestBulkAttendancePartialFailure(t *testing.T) {
	store := newMemoryStore()
	store.failFor[2] = errors.New("connection reset")
	h := NewRecordAttendanceHandler(store, quietLogger(), DefaultRecordAttendanceHandlerConfig())

	result, err := h.HandleBulk(context.Background(), BulkAttendanceCommand{
		StudentIDs: []int64{1, 2, -5},
	})

	// Failed rows are reported per student, not as a run failure.
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recorded)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, int64(2), result.Errors[0].StudentID)
	assert.Equal(t, int64(-5), result.Errors[1].StudentID)
}

func TestBulkAttendanceAllRowsFail(t *testing.T) {
	store := newMemoryStore()
	store.failFor[1] = errors.New("boom")
	store.failFor[2] = errors.New("boom")
	h := NewRecordAttendanceHandler(store, quietLogger(), DefaultRecordAttendanceHandlerConfig())

	_, err := h.HandleBulk(context.Background(), BulkAttendanceCommand{
		StudentIDs: []int64{1, 2},
	})

	assert.True(t, shared.IsPersistence(err))
}

func TestBulkAttendanceValidation(t *testing.T) {
	h := NewRecordAttendanceHandler(newMemoryStore(), quietLogger(), DefaultRecordAttendanceHandlerConfig())

	_, err := h.HandleBulk(context.Background(), BulkAttendanceCommand{})
	assert.ErrorIs(t, err, shared.ErrStudentIDsRequired)

	_, err = h.HandleBulk(context.Background(), BulkAttendanceCommand{
		StudentIDs:  []int64{1},
		SessionDate: "not-a-date",
	})
	assert.True(t, shared.IsValidation(err))
}
