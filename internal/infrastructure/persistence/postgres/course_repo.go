package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/classpulse/classpulse-backend/internal/domain/course"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE REPOSITORY IMPLEMENTATION
// Implements both the course catalog (course.Repository) and the occurrence
// registry the session manager drives (monitoring.Registry).
// ══════════════════════════════════════════════════════════════════════════════

// CourseRepository implements course.Repository and monitoring.Registry for
// PostgreSQL.
type CourseRepository struct {
	conn *Connection
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(conn *Connection) *CourseRepository {
	return &CourseRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// CreateCourse inserts a course and fills in its generated ID.
func (r *CourseRepository) CreateCourse(ctx context.Context, c *course.Course) error {
	query := `
		INSERT INTO courses (name, code)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at
	`

	if err := r.conn.QueryRow(ctx, query, c.Name, c.Code).Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	return nil
}

// GetCourse returns a course by ID.
func (r *CourseRepository) GetCourse(ctx context.Context, id int64) (*course.Course, error) {
	query := `
		SELECT id, name, COALESCE(code, ''), created_at
		FROM courses
		WHERE id = $1
	`

	var c course.Course
	err := r.conn.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return &c, nil
}

// ListCourses returns all courses with their occurrence counts.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]course.Course, error) {
	query := `
		SELECT c.id, c.name, COALESCE(c.code, ''), c.created_at,
			   COUNT(cs.id) AS session_count
		FROM courses c
		LEFT JOIN course_sessions cs ON cs.course_id = c.id
		GROUP BY c.id, c.name, c.code, c.created_at
		ORDER BY c.name
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]course.Course, 0)
	for rows.Next() {
		var c course.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt, &c.SessionCount); err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}

	return courses, rows.Err()
}

// ListOccurrences returns a course's occurrences ordered by session number.
func (r *CourseRepository) ListOccurrences(ctx context.Context, courseID int64) ([]course.SessionOccurrence, error) {
	query := `
		SELECT id, course_id, session_number, session_date, start_time,
			   end_time, total_students, avg_engagement
		FROM course_sessions
		WHERE course_id = $1
		ORDER BY session_number
	`

	rows, err := r.conn.Query(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences: %w", err)
	}
	defer rows.Close()

	occurrences := make([]course.SessionOccurrence, 0)
	for rows.Next() {
		var o course.SessionOccurrence
		err := rows.Scan(&o.ID, &o.CourseID, &o.SessionNumber, &o.SessionDate,
			&o.StartTime, &o.EndTime, &o.TotalStudents, &o.AvgEngagement)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occurrence: %w", err)
		}
		occurrences = append(occurrences, o)
	}

	return occurrences, rows.Err()
}

// GetOccurrence returns one occurrence by ID.
func (r *CourseRepository) GetOccurrence(ctx context.Context, id int64) (*course.SessionOccurrence, error) {
	query := `
		SELECT id, course_id, session_number, session_date, start_time,
			   end_time, total_students, avg_engagement
		FROM course_sessions
		WHERE id = $1
	`

	var o course.SessionOccurrence
	err := r.conn.QueryRow(ctx, query, id).Scan(&o.ID, &o.CourseID, &o.SessionNumber,
		&o.SessionDate, &o.StartTime, &o.EndTime, &o.TotalStudents, &o.AvgEngagement)
	if err != nil {
		if IsNoRows(err) {
			return nil, course.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get occurrence: %w", err)
	}

	return &o, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Occurrence registry (driven by the session manager)
// ─────────────────────────────────────────────────────────────────────────────

// OpenSession creates the next numbered occurrence for a course. The number
// is assigned inside a transaction so concurrent opens cannot reuse one; the
// unique constraint on (course_id, session_number) backs that up.
func (r *CourseRepository) OpenSession(ctx context.Context, courseID int64, sessionDate string) (monitoring.OpenedOccurrence, error) {
	var opened monitoring.OpenedOccurrence

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check course: %w", err)
		}
		if !exists {
			return course.ErrNotFound
		}

		query := `
			INSERT INTO course_sessions (course_id, session_number, session_date)
			SELECT $1, COALESCE(MAX(session_number), 0) + 1, $2
			FROM course_sessions
			WHERE course_id = $1
			RETURNING id, session_number
		`
		return tx.QueryRow(ctx, query, courseID, sessionDate).Scan(&opened.ID, &opened.SessionNumber)
	})
	if err != nil {
		return monitoring.OpenedOccurrence{}, err
	}

	return opened, nil
}

// FinalizeSession closes an occurrence: stamps its end time and computes the
// summary aggregates from the rows the occurrence accumulated. Finalizing an
// already-finalized occurrence recomputes the same aggregates, so retries are
// harmless.
func (r *CourseRepository) FinalizeSession(ctx context.Context, courseSessionID int64) error {
	query := `
		UPDATE course_sessions SET
			end_time = NOW(),
			total_students = (
				SELECT COUNT(DISTINCT student_id)
				FROM attendance
				WHERE course_session_id = $1
			),
			avg_engagement = (
				SELECT COALESCE(AVG(attention_score), 0)
				FROM engagement
				WHERE course_session_id = $1
			)
		WHERE id = $1
	`

	result, err := r.conn.Exec(ctx, query, courseSessionID)
	if err != nil {
		return fmt.Errorf("failed to finalize occurrence: %w", err)
	}
	if result.RowsAffected() == 0 {
		return course.ErrNotFound
	}

	return nil
}
