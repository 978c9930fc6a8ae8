package query

import (
	"context"
	"errors"

	"github.com/classpulse/classpulse-backend/internal/domain/course"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE & ENGAGEMENT REPORTS
// Per-student aggregates over the attendance and engagement tables. Every
// report lists the whole roster; students with no rows show zero counts and a
// null average rather than disappearing.
// ══════════════════════════════════════════════════════════════════════════════

// StudentDayStats is one roster row of a single-day (or single-occurrence)
// report. Engagement aggregates are nil when the student produced no readings.
type StudentDayStats struct {
	StudentID       int64    `json:"student_id"`
	Name            string   `json:"name"`
	AttendanceCount int      `json:"attendance_count"`
	AvgEngagement   *float64 `json:"avg_engagement"`
	MaxEngagement   *float64 `json:"max_engagement"`
	MinEngagement   *float64 `json:"min_engagement"`
}

// StudentRangeStats is one roster row of a date-range report. Presence is
// counted in distinct days, not detections.
type StudentRangeStats struct {
	StudentID     int64    `json:"student_id"`
	Name          string   `json:"name"`
	DaysPresent   int      `json:"days_present"`
	AvgEngagement *float64 `json:"avg_engagement"`
}

// StudentCourseStats is one roster row of a per-course report. Presence is
// counted in distinct course occurrences.
type StudentCourseStats struct {
	StudentID       int64    `json:"student_id"`
	Name            string   `json:"name"`
	SessionsPresent int      `json:"sessions_present"`
	AvgEngagement   *float64 `json:"avg_engagement"`
}

// DailyEngagement is one day's engagement aggregate for a single student.
type DailyEngagement struct {
	Date          string  `json:"session_date"`
	AvgEngagement float64 `json:"avg_engagement"`
	SampleCount   int     `json:"sample_count"`
}

// DashboardCounts is the headline aggregate for today.
type DashboardCounts struct {
	TotalStudents      int      `json:"total_students"`
	PresentToday       int      `json:"present_today"`
	AvgEngagementToday *float64 `json:"avg_engagement_today"`
}

// ReportStore is the read model behind the report queries.
type ReportStore interface {
	// DailyStats aggregates attendance and engagement per student for one day.
	DailyStats(ctx context.Context, date string) ([]StudentDayStats, error)

	// RangeStats aggregates over an inclusive date range.
	RangeStats(ctx context.Context, startDate, endDate string) ([]StudentRangeStats, error)

	// OverallStats aggregates over all recorded history.
	OverallStats(ctx context.Context) ([]StudentRangeStats, error)

	// CourseStats aggregates over every occurrence of one course.
	CourseStats(ctx context.Context, courseID int64) ([]StudentCourseStats, error)

	// OccurrenceStats aggregates over a single course occurrence.
	OccurrenceStats(ctx context.Context, courseID, courseSessionID int64) ([]StudentDayStats, error)

	// EngagementByDate aggregates one student's engagement per day, newest
	// first. Empty bounds leave that side of the range open.
	EngagementByDate(ctx context.Context, studentID int64, startDate, endDate string) ([]DailyEngagement, error)

	// Dashboard returns the headline counts for one day.
	Dashboard(ctx context.Context, date string) (*DashboardCounts, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Daily report
// ─────────────────────────────────────────────────────────────────────────────

// DailyReportResult is the daily report payload.
type DailyReportResult struct {
	Date     string            `json:"date"`
	Students []StudentDayStats `json:"students"`
}

// DailyReportHandler builds the per-day roster report.
type DailyReportHandler struct {
	reports ReportStore
}

// NewDailyReportHandler creates a new DailyReportHandler.
func NewDailyReportHandler(reports ReportStore) *DailyReportHandler {
	return &DailyReportHandler{reports: reports}
}

// Handle builds the report. An empty date means today.
func (h *DailyReportHandler) Handle(ctx context.Context, date string) (*DailyReportResult, error) {
	if date == "" {
		date = timeutil.Today()
	}
	if !timeutil.ValidDate(date) {
		return nil, shared.Validation("query", "DailyReport", "date must be YYYY-MM-DD")
	}

	rows, err := h.reports.DailyStats(ctx, date)
	if err != nil {
		return nil, shared.Persistence("query", "DailyReport", err)
	}
	if rows == nil {
		rows = []StudentDayStats{}
	}

	return &DailyReportResult{Date: date, Students: rows}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Weekly report
// ─────────────────────────────────────────────────────────────────────────────

// WeeklyReportResult is the weekly report payload.
type WeeklyReportResult struct {
	StartDate string              `json:"start_date"`
	EndDate   string              `json:"end_date"`
	Students  []StudentRangeStats `json:"students"`
}

// WeeklyReportHandler builds the Monday-to-Sunday roster report.
type WeeklyReportHandler struct {
	reports ReportStore
}

// NewWeeklyReportHandler creates a new WeeklyReportHandler.
func NewWeeklyReportHandler(reports ReportStore) *WeeklyReportHandler {
	return &WeeklyReportHandler{reports: reports}
}

// Handle builds the report for the week containing the given date (today when
// empty).
func (h *WeeklyReportHandler) Handle(ctx context.Context, date string) (*WeeklyReportResult, error) {
	if date == "" {
		date = timeutil.Today()
	}
	day, err := timeutil.ParseDate(date)
	if err != nil {
		return nil, shared.Validation("query", "WeeklyReport", "date must be YYYY-MM-DD")
	}

	start, end := timeutil.StartOfWeek(day)

	rows, err := h.reports.RangeStats(ctx, start, end)
	if err != nil {
		return nil, shared.Persistence("query", "WeeklyReport", err)
	}
	if rows == nil {
		rows = []StudentRangeStats{}
	}

	return &WeeklyReportResult{StartDate: start, EndDate: end, Students: rows}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Overall report
// ─────────────────────────────────────────────────────────────────────────────

// OverallReportHandler builds the all-time roster report.
type OverallReportHandler struct {
	reports ReportStore
}

// NewOverallReportHandler creates a new OverallReportHandler.
func NewOverallReportHandler(reports ReportStore) *OverallReportHandler {
	return &OverallReportHandler{reports: reports}
}

// Handle builds the report.
func (h *OverallReportHandler) Handle(ctx context.Context) ([]StudentRangeStats, error) {
	rows, err := h.reports.OverallStats(ctx)
	if err != nil {
		return nil, shared.Persistence("query", "OverallReport", err)
	}
	if rows == nil {
		rows = []StudentRangeStats{}
	}
	return rows, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Course reports
// ─────────────────────────────────────────────────────────────────────────────

// CourseReportResult combines course metadata, its occurrence history, and
// per-student aggregates across all occurrences.
type CourseReportResult struct {
	Course      *course.Course             `json:"course"`
	Occurrences []course.SessionOccurrence `json:"occurrences"`
	Students    []StudentCourseStats       `json:"students"`
}

// CourseReportHandler builds the per-course report.
type CourseReportHandler struct {
	courses course.Repository
	reports ReportStore
}

// NewCourseReportHandler creates a new CourseReportHandler.
func NewCourseReportHandler(courses course.Repository, reports ReportStore) *CourseReportHandler {
	return &CourseReportHandler{courses: courses, reports: reports}
}

// Handle builds the report for one course.
func (h *CourseReportHandler) Handle(ctx context.Context, courseID int64) (*CourseReportResult, error) {
	if courseID <= 0 {
		return nil, shared.ErrCourseIDRequired
	}

	c, err := h.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, shared.Persistence("query", "CourseReport", err)
	}

	occurrences, err := h.courses.ListOccurrences(ctx, courseID)
	if err != nil {
		return nil, shared.Persistence("query", "CourseReport", err)
	}
	if occurrences == nil {
		occurrences = []course.SessionOccurrence{}
	}

	rows, err := h.reports.CourseStats(ctx, courseID)
	if err != nil {
		return nil, shared.Persistence("query", "CourseReport", err)
	}
	if rows == nil {
		rows = []StudentCourseStats{}
	}

	return &CourseReportResult{Course: c, Occurrences: occurrences, Students: rows}, nil
}

// OccurrenceReportResult is the report for one course occurrence.
type OccurrenceReportResult struct {
	Occurrence *course.SessionOccurrence `json:"occurrence"`
	Students   []StudentDayStats         `json:"students"`
}

// OccurrenceReportHandler builds the per-occurrence report.
type OccurrenceReportHandler struct {
	courses course.Repository
	reports ReportStore
}

// NewOccurrenceReportHandler creates a new OccurrenceReportHandler.
func NewOccurrenceReportHandler(courses course.Repository, reports ReportStore) *OccurrenceReportHandler {
	return &OccurrenceReportHandler{courses: courses, reports: reports}
}

// Handle builds the report for one occurrence of a course.
func (h *OccurrenceReportHandler) Handle(ctx context.Context, courseID, courseSessionID int64) (*OccurrenceReportResult, error) {
	if courseID <= 0 {
		return nil, shared.ErrCourseIDRequired
	}

	occ, err := h.courses.GetOccurrence(ctx, courseSessionID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, shared.ErrOccurrenceNotFound
		}
		return nil, shared.Persistence("query", "OccurrenceReport", err)
	}
	if occ.CourseID != courseID {
		return nil, shared.ErrOccurrenceNotFound
	}

	rows, err := h.reports.OccurrenceStats(ctx, courseID, courseSessionID)
	if err != nil {
		return nil, shared.Persistence("query", "OccurrenceReport", err)
	}
	if rows == nil {
		rows = []StudentDayStats{}
	}

	return &OccurrenceReportResult{Occurrence: occ, Students: rows}, nil
}
