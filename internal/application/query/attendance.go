package query

import (
	"context"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE LOG QUERY
// Raw attendance rows, filtered by one day or one student. The per-student
// variant is the full history; day-bounded slices of it live in the student
// report.
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceQuery fetches attendance rows for a day or for one student.
// StudentID wins when both filters are set; an empty query means today.
type AttendanceQuery struct {
	Date      string
	StudentID int64
}

// Validate validates the query and applies the today default.
func (q *AttendanceQuery) Validate() error {
	if q.StudentID != 0 {
		if q.StudentID < 0 {
			return shared.ErrStudentIDRequired
		}
		return nil
	}
	if q.Date == "" {
		q.Date = timeutil.Today()
	}
	if !timeutil.ValidDate(q.Date) {
		return shared.Validation("query", "Attendance", "date must be YYYY-MM-DD")
	}
	return nil
}

// AttendanceResult is the matching rows plus the filter that produced them.
type AttendanceResult struct {
	Date      string                        `json:"date,omitempty"`
	StudentID int64                         `json:"student_id,omitempty"`
	Count     int                           `json:"count"`
	Records   []monitoring.AttendanceRecord `json:"attendance"`
}

// AttendanceHandler handles the AttendanceQuery.
type AttendanceHandler struct {
	store monitoring.RecordStore
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(store monitoring.RecordStore) *AttendanceHandler {
	return &AttendanceHandler{store: store}
}

// Handle executes the query.
func (h *AttendanceHandler) Handle(ctx context.Context, q AttendanceQuery) (*AttendanceResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		records []monitoring.AttendanceRecord
		err     error
	)
	if q.StudentID > 0 {
		records, err = h.store.AttendanceByStudent(ctx, q.StudentID, "", "")
	} else {
		records, err = h.store.AttendanceByDate(ctx, q.Date)
	}
	if err != nil {
		return nil, shared.Persistence("query", "Attendance", err)
	}
	if records == nil {
		records = []monitoring.AttendanceRecord{}
	}

	return &AttendanceResult{
		Date:      q.Date,
		StudentID: q.StudentID,
		Count:     len(records),
		Records:   records,
	}, nil
}
