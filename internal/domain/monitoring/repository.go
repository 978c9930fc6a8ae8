package monitoring

import (
	"context"
	"time"
)

// RecordStore persists attendance and engagement rows. Implemented by the
// infrastructure layer; the domain has no knowledge of the storage engine.
type RecordStore interface {
	// RecordAttendance inserts an attendance row and fills in its ID.
	RecordAttendance(ctx context.Context, rec *AttendanceRecord) error

	// RecordEngagement inserts an engagement row and fills in its ID.
	RecordEngagement(ctx context.Context, rec *EngagementRecord) error

	// EngagementByStudent returns a student's engagement rows for one date,
	// ordered by timestamp.
	EngagementByStudent(ctx context.Context, studentID int64, date string) ([]EngagementRecord, error)

	// AverageEngagement returns the mean attention score and sample count for
	// a student on one date. Zero samples yield (0, 0, nil).
	AverageEngagement(ctx context.Context, studentID int64, date string) (avg float64, count int, err error)

	// AttendanceByDate returns every attendance row for one date, ordered by
	// session time.
	AttendanceByDate(ctx context.Context, date string) ([]AttendanceRecord, error)

	// AttendanceByStudent returns a student's attendance rows, newest first.
	// Empty bounds leave that side of the range open.
	AttendanceByStudent(ctx context.Context, studentID int64, startDate, endDate string) ([]AttendanceRecord, error)
}

// PresenceTracker keeps a short-lived "seen just now" view of the classroom.
// Best effort: a tracker failure never fails the write that triggered it.
// Typically implemented with Redis TTL keys.
type PresenceTracker interface {
	// MarkPresent records that a student was just detected. The entry
	// expires after ttl unless refreshed by a later detection.
	MarkPresent(ctx context.Context, studentID int64, ttl time.Duration) error

	// PresentNow returns the students currently marked present.
	PresentNow(ctx context.Context) ([]int64, error)

	// PresentCount returns the number of students currently marked present.
	PresentCount(ctx context.Context) (int, error)
}
