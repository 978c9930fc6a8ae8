package postgres

import (
	"context"
	"fmt"

	"github.com/classpulse/classpulse-backend/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT REPOSITORY IMPLEMENTATION
// Read models for the report endpoints. Every report LEFT JOINs from the
// roster so absent students appear with zero counts and NULL averages.
// ══════════════════════════════════════════════════════════════════════════════

// ReportRepository implements query.ReportStore for PostgreSQL.
type ReportRepository struct {
	conn *Connection
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(conn *Connection) *ReportRepository {
	return &ReportRepository{conn: conn}
}

// DailyStats aggregates attendance and engagement per student for one day.
func (r *ReportRepository) DailyStats(ctx context.Context, date string) ([]query.StudentDayStats, error) {
	sql := `
		SELECT s.id, s.name,
			   COUNT(DISTINCT a.id),
			   AVG(e.attention_score),
			   MAX(e.attention_score),
			   MIN(e.attention_score)
		FROM students s
		LEFT JOIN attendance a ON s.id = a.student_id AND a.session_date = $1
		LEFT JOIN engagement e ON s.id = e.student_id AND e.session_date = $1
		GROUP BY s.id, s.name
		ORDER BY s.name
	`

	rows, err := r.conn.Query(ctx, sql, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	stats := make([]query.StudentDayStats, 0)
	for rows.Next() {
		var row query.StudentDayStats
		err := rows.Scan(&row.StudentID, &row.Name, &row.AttendanceCount,
			&row.AvgEngagement, &row.MaxEngagement, &row.MinEngagement)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stats: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// RangeStats aggregates over an inclusive date range. Presence counts
// distinct days, not detections.
func (r *ReportRepository) RangeStats(ctx context.Context, startDate, endDate string) ([]query.StudentRangeStats, error) {
	sql := `
		SELECT s.id, s.name,
			   COUNT(DISTINCT a.session_date),
			   AVG(e.attention_score)
		FROM students s
		LEFT JOIN attendance a ON s.id = a.student_id AND a.session_date BETWEEN $1 AND $2
		LEFT JOIN engagement e ON s.id = e.student_id AND e.session_date BETWEEN $1 AND $2
		GROUP BY s.id, s.name
		ORDER BY s.name
	`

	return r.scanRangeStats(ctx, sql, startDate, endDate)
}

// OverallStats aggregates over all recorded history.
func (r *ReportRepository) OverallStats(ctx context.Context) ([]query.StudentRangeStats, error) {
	sql := `
		SELECT s.id, s.name,
			   COUNT(DISTINCT a.session_date),
			   AVG(e.attention_score)
		FROM students s
		LEFT JOIN attendance a ON s.id = a.student_id
		LEFT JOIN engagement e ON s.id = e.student_id
		GROUP BY s.id, s.name
		ORDER BY s.name
	`

	return r.scanRangeStats(ctx, sql)
}

// CourseStats aggregates over every occurrence of one course. Presence counts
// distinct occurrences.
func (r *ReportRepository) CourseStats(ctx context.Context, courseID int64) ([]query.StudentCourseStats, error) {
	sql := `
		SELECT s.id, s.name,
			   COUNT(DISTINCT a.course_session_id),
			   AVG(e.attention_score)
		FROM students s
		LEFT JOIN attendance a ON s.id = a.student_id AND a.course_id = $1
		LEFT JOIN engagement e ON s.id = e.student_id AND e.course_id = $1
		GROUP BY s.id, s.name
		ORDER BY s.name
	`

	rows, err := r.conn.Query(ctx, sql, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query course stats: %w", err)
	}
	defer rows.Close()

	stats := make([]query.StudentCourseStats, 0)
	for rows.Next() {
		var row query.StudentCourseStats
		if err := rows.Scan(&row.StudentID, &row.Name, &row.SessionsPresent, &row.AvgEngagement); err != nil {
			return nil, fmt.Errorf("failed to scan course stats: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// OccurrenceStats aggregates over a single course occurrence.
func (r *ReportRepository) OccurrenceStats(ctx context.Context, courseID, courseSessionID int64) ([]query.StudentDayStats, error) {
	sql := `
		SELECT s.id, s.name,
			   COUNT(a.id),
			   AVG(e.attention_score),
			   MAX(e.attention_score),
			   MIN(e.attention_score)
		FROM students s
		LEFT JOIN attendance a ON s.id = a.student_id AND a.course_id = $1 AND a.course_session_id = $2
		LEFT JOIN engagement e ON s.id = e.student_id AND e.course_id = $1 AND e.course_session_id = $2
		GROUP BY s.id, s.name
		ORDER BY s.name
	`

	rows, err := r.conn.Query(ctx, sql, courseID, courseSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query occurrence stats: %w", err)
	}
	defer rows.Close()

	stats := make([]query.StudentDayStats, 0)
	for rows.Next() {
		var row query.StudentDayStats
		err := rows.Scan(&row.StudentID, &row.Name, &row.AttendanceCount,
			&row.AvgEngagement, &row.MaxEngagement, &row.MinEngagement)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence stats: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// EngagementByDate aggregates one student's engagement per day, newest first.
// Empty bounds leave that side of the range open.
func (r *ReportRepository) EngagementByDate(ctx context.Context, studentID int64, startDate, endDate string) ([]query.DailyEngagement, error) {
	sql := `
		SELECT session_date, AVG(attention_score), COUNT(*)
		FROM engagement
		WHERE student_id = $1
	`
	args := []interface{}{studentID}

	if startDate != "" {
		args = append(args, startDate)
		sql += fmt.Sprintf(" AND session_date >= $%d", len(args))
	}
	if endDate != "" {
		args = append(args, endDate)
		sql += fmt.Sprintf(" AND session_date <= $%d", len(args))
	}
	sql += " GROUP BY session_date ORDER BY session_date DESC"

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement by date: %w", err)
	}
	defer rows.Close()

	stats := make([]query.DailyEngagement, 0)
	for rows.Next() {
		var row query.DailyEngagement
		if err := rows.Scan(&row.Date, &row.AvgEngagement, &row.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan engagement by date: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}

// Dashboard returns the headline counts for one day.
func (r *ReportRepository) Dashboard(ctx context.Context, date string) (*query.DashboardCounts, error) {
	sql := `
		SELECT COUNT(DISTINCT s.id),
			   COUNT(DISTINCT a.student_id),
			   AVG(e.attention_score)
		FROM students s
		LEFT JOIN attendance a ON s.id = a.student_id AND a.session_date = $1
		LEFT JOIN engagement e ON s.id = e.student_id AND e.session_date = $1
	`

	var counts query.DashboardCounts
	err := r.conn.QueryRow(ctx, sql, date).Scan(
		&counts.TotalStudents,
		&counts.PresentToday,
		&counts.AvgEngagementToday,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboard counts: %w", err)
	}

	return &counts, nil
}

// scanRangeStats runs one of the range-shaped report queries.
func (r *ReportRepository) scanRangeStats(ctx context.Context, sql string, args ...interface{}) ([]query.StudentRangeStats, error) {
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query range stats: %w", err)
	}
	defer rows.Close()

	stats := make([]query.StudentRangeStats, 0)
	for rows.Next() {
		var row query.StudentRangeStats
		if err := rows.Scan(&row.StudentID, &row.Name, &row.DaysPresent, &row.AvgEngagement); err != nil {
			return nil, fmt.Errorf("failed to scan range stats: %w", err)
		}
		stats = append(stats, row)
	}

	return stats, rows.Err()
}
