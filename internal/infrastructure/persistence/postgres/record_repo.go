package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REPOSITORY IMPLEMENTATION
// The write path of frame ingestion. Inserts here run concurrently per batch
// item, so every method is a single self-contained statement.
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements monitoring.RecordStore for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(conn *Connection) *RecordRepository {
	return &RecordRepository{conn: conn}
}

// RecordAttendance inserts one presence row and fills in the generated ID and
// timestamp.
func (r *RecordRepository) RecordAttendance(ctx context.Context, rec *monitoring.AttendanceRecord) error {
	query := `
		INSERT INTO attendance (student_id, session_date, session_time, course_id, course_session_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, detected_at
	`

	err := r.conn.QueryRow(ctx, query,
		rec.StudentID,
		rec.SessionDate,
		rec.SessionTime,
		rec.CourseID,
		rec.CourseSessionID,
	).Scan(&rec.ID, &rec.DetectedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("attendance: unknown student %d: %w", rec.StudentID, err)
		}
		return fmt.Errorf("failed to record attendance: %w", err)
	}

	return nil
}

// RecordEngagement inserts one attention reading and fills in the generated
// ID and timestamp.
func (r *RecordRepository) RecordEngagement(ctx context.Context, rec *monitoring.EngagementRecord) error {
	query := `
		INSERT INTO engagement (
			student_id, session_date, session_time,
			attention_score, eyes_open, facing_camera,
			course_id, course_session_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, recorded_at
	`

	err := r.conn.QueryRow(ctx, query,
		rec.StudentID,
		rec.SessionDate,
		rec.SessionTime,
		rec.AttentionScore,
		rec.EyesOpen,
		rec.FacingCamera,
		rec.CourseID,
		rec.CourseSessionID,
	).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("engagement: unknown student %d: %w", rec.StudentID, err)
		}
		return fmt.Errorf("failed to record engagement: %w", err)
	}

	return nil
}

// EngagementByStudent returns one student's readings for a day, oldest first.
func (r *RecordRepository) EngagementByStudent(ctx context.Context, studentID int64, date string) ([]monitoring.EngagementRecord, error) {
	query := `
		SELECT id, student_id, session_date, session_time,
			   attention_score, eyes_open, facing_camera,
			   course_id, course_session_id, recorded_at
		FROM engagement
		WHERE student_id = $1 AND session_date = $2
		ORDER BY recorded_at
	`

	rows, err := r.conn.Query(ctx, query, studentID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query engagement: %w", err)
	}
	defer rows.Close()

	records := make([]monitoring.EngagementRecord, 0)
	for rows.Next() {
		var rec monitoring.EngagementRecord
		err := rows.Scan(&rec.ID, &rec.StudentID, &rec.SessionDate, &rec.SessionTime,
			&rec.AttentionScore, &rec.EyesOpen, &rec.FacingCamera,
			&rec.CourseID, &rec.CourseSessionID, &rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan engagement: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// AttendanceByDate returns every attendance row for one date, ordered by
// session time.
func (r *RecordRepository) AttendanceByDate(ctx context.Context, date string) ([]monitoring.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, session_date, session_time,
			   course_id, course_session_id, detected_at
		FROM attendance
		WHERE session_date = $1
		ORDER BY session_time
	`

	rows, err := r.conn.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance by date: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows)
}

// AttendanceByStudent returns a student's attendance rows, newest first.
// Empty bounds leave that side of the range open.
func (r *RecordRepository) AttendanceByStudent(ctx context.Context, studentID int64, startDate, endDate string) ([]monitoring.AttendanceRecord, error) {
	query := `
		SELECT id, student_id, session_date, session_time,
			   course_id, course_session_id, detected_at
		FROM attendance
		WHERE student_id = $1
	`
	args := []interface{}{studentID}

	if startDate != "" {
		args = append(args, startDate)
		query += fmt.Sprintf(" AND session_date >= $%d", len(args))
	}
	if endDate != "" {
		args = append(args, endDate)
		query += fmt.Sprintf(" AND session_date <= $%d", len(args))
	}
	query += " ORDER BY session_date DESC, session_time DESC"

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance by student: %w", err)
	}
	defer rows.Close()

	return scanAttendance(rows)
}

// scanAttendance drains an attendance result set.
func scanAttendance(rows pgx.Rows) ([]monitoring.AttendanceRecord, error) {
	records := make([]monitoring.AttendanceRecord, 0)
	for rows.Next() {
		var rec monitoring.AttendanceRecord
		err := rows.Scan(&rec.ID, &rec.StudentID, &rec.SessionDate, &rec.SessionTime,
			&rec.CourseID, &rec.CourseSessionID, &rec.DetectedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// AverageEngagement returns the mean attention score and sample count for one
// student and day. A day without readings yields (0, 0).
func (r *RecordRepository) AverageEngagement(ctx context.Context, studentID int64, date string) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(attention_score), 0), COUNT(*)
		FROM engagement
		WHERE student_id = $1 AND session_date = $2
	`

	var avg float64
	var count int
	if err := r.conn.QueryRow(ctx, query, studentID, date).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to average engagement: %w", err)
	}

	return avg, count, nil
}
