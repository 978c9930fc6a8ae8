package query

import (
	"context"
	"errors"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/roster"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPORT QUERY
// One student's attendance history and per-day engagement averages over an
// optional date range, plus a live presence check when Redis is wired.
// ══════════════════════════════════════════════════════════════════════════════

// PresenceChecker is the point-lookup slice of the live presence view.
type PresenceChecker interface {
	IsPresent(ctx context.Context, studentID int64) (bool, error)
	LastSeen(ctx context.Context, studentID int64) (time.Time, error)
}

// StudentReportQuery fetches one student's report. Empty bounds leave that
// side of the range open.
type StudentReportQuery struct {
	StudentID int64
	StartDate string
	EndDate   string
}

// Validate validates the query.
func (q StudentReportQuery) Validate() error {
	if q.StudentID <= 0 {
		return shared.ErrStudentIDRequired
	}
	if q.StartDate != "" && !timeutil.ValidDate(q.StartDate) {
		return shared.Validation("query", "StudentReport", "start_date must be YYYY-MM-DD")
	}
	if q.EndDate != "" && !timeutil.ValidDate(q.EndDate) {
		return shared.Validation("query", "StudentReport", "end_date must be YYYY-MM-DD")
	}
	return nil
}

// StudentSummary identifies the reported student.
type StudentSummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PhotoPath string `json:"photo_path,omitempty"`
}

// ReportPeriod echoes the requested range; "all" marks an open bound.
type ReportPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// StudentStatistics is the headline aggregate of the report.
type StudentStatistics struct {
	// TotalAttendanceDays counts distinct dates with at least one row.
	TotalAttendanceDays int `json:"total_attendance_days"`

	// AvgEngagement is the mean of the per-day averages, so a day with many
	// samples does not outweigh a day with few.
	AvgEngagement float64 `json:"avg_engagement"`

	EngagementSamples int `json:"engagement_samples"`
}

// LivePresence is the student's spot in the live presence view.
type LivePresence struct {
	PresentNow bool       `json:"present_now"`
	LastSeen   *time.Time `json:"last_seen,omitempty"`
}

// StudentReportResult is the student report payload.
type StudentReportResult struct {
	Student          StudentSummary                `json:"student"`
	Period           ReportPeriod                  `json:"period"`
	Statistics       StudentStatistics             `json:"statistics"`
	Attendance       []monitoring.AttendanceRecord `json:"attendance"`
	EngagementByDate []DailyEngagement             `json:"engagement_by_date"`
	Live             *LivePresence                 `json:"live,omitempty"`
}

// StudentReportHandler handles the StudentReportQuery.
type StudentReportHandler struct {
	students roster.Repository
	store    monitoring.RecordStore
	reports  ReportStore
	presence PresenceChecker
}

// NewStudentReportHandler creates a new StudentReportHandler. The presence
// checker is optional; without it the report carries no live section.
func NewStudentReportHandler(
	students roster.Repository,
	store monitoring.RecordStore,
	reports ReportStore,
	presence PresenceChecker,
) *StudentReportHandler {
	return &StudentReportHandler{
		students: students,
		store:    store,
		reports:  reports,
		presence: presence,
	}
}

// Handle executes the query.
func (h *StudentReportHandler) Handle(ctx context.Context, q StudentReportQuery) (*StudentReportResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	student, err := h.students.GetByID(ctx, q.StudentID)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.Persistence("query", "StudentReport", err)
	}

	attendance, err := h.store.AttendanceByStudent(ctx, q.StudentID, q.StartDate, q.EndDate)
	if err != nil {
		return nil, shared.Persistence("query", "StudentReport", err)
	}
	if attendance == nil {
		attendance = []monitoring.AttendanceRecord{}
	}

	byDate, err := h.reports.EngagementByDate(ctx, q.StudentID, q.StartDate, q.EndDate)
	if err != nil {
		return nil, shared.Persistence("query", "StudentReport", err)
	}
	if byDate == nil {
		byDate = []DailyEngagement{}
	}

	result := &StudentReportResult{
		Student: StudentSummary{
			ID:        student.ID,
			Name:      student.Name,
			PhotoPath: student.PhotoPath,
		},
		Period: ReportPeriod{
			StartDate: boundOrAll(q.StartDate),
			EndDate:   boundOrAll(q.EndDate),
		},
		Statistics:       buildStudentStatistics(attendance, byDate),
		Attendance:       attendance,
		EngagementByDate: byDate,
	}

	if h.presence != nil {
		result.Live = h.checkLive(ctx, q.StudentID)
	}

	return result, nil
}

// checkLive checks the live presence view. Best effort: a lookup failure
// yields a nil section, not a failed report.
func (h *StudentReportHandler) checkLive(ctx context.Context, studentID int64) *LivePresence {
	present, err := h.presence.IsPresent(ctx, studentID)
	if err != nil {
		return nil
	}

	live := &LivePresence{PresentNow: present}
	if present {
		if seen, err := h.presence.LastSeen(ctx, studentID); err == nil {
			live.LastSeen = &seen
		}
	}
	return live
}

// buildStudentStatistics folds the fetched rows into the headline aggregate.
func buildStudentStatistics(attendance []monitoring.AttendanceRecord, byDate []DailyEngagement) StudentStatistics {
	days := make(map[string]struct{}, len(attendance))
	for _, rec := range attendance {
		days[rec.SessionDate] = struct{}{}
	}

	stats := StudentStatistics{TotalAttendanceDays: len(days)}
	if len(byDate) == 0 {
		return stats
	}

	var sum float64
	for _, d := range byDate {
		sum += d.AvgEngagement
		stats.EngagementSamples += d.SampleCount
	}
	stats.AvgEngagement = sum / float64(len(byDate))

	return stats
}

// boundOrAll renders an open range bound the way the API reports it.
func boundOrAll(date string) string {
	if date == "" {
		return "all"
	}
	return date
}
