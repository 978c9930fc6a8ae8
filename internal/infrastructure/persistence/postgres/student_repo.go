// Package postgres implements the PostgreSQL persistence layer for the
// ClassPulse backend.
package postgres

import (
	"context"
	"fmt"

	"github.com/classpulse/classpulse-backend/internal/domain/roster"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements roster.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student and fills in the generated ID.
func (r *StudentRepository) Create(ctx context.Context, s *roster.Student) error {
	query := `
		INSERT INTO students (name, photo_path)
		VALUES ($1, NULLIF($2, ''))
		RETURNING id, created_at
	`

	err := r.conn.QueryRow(ctx, query, s.Name, s.PhotoPath).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*roster.Student, error) {
	query := `
		SELECT id, name, COALESCE(photo_path, ''), created_at
		FROM students
		WHERE id = $1
	`

	var s roster.Student
	err := r.conn.QueryRow(ctx, query, id).Scan(&s.ID, &s.Name, &s.PhotoPath, &s.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, roster.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return &s, nil
}

// List returns the whole roster ordered by name.
func (r *StudentRepository) List(ctx context.Context) ([]roster.Student, error) {
	query := `
		SELECT id, name, COALESCE(photo_path, ''), created_at
		FROM students
		ORDER BY name
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	students := make([]roster.Student, 0)
	for rows.Next() {
		var s roster.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.PhotoPath, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// Delete removes a student. Encodings, attendance and engagement rows follow
// via ON DELETE CASCADE.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if result.RowsAffected() == 0 {
		return roster.ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Encodings
// ─────────────────────────────────────────────────────────────────────────────

// AddEncoding stores a face encoding for a student.
func (r *StudentRepository) AddEncoding(ctx context.Context, e *roster.Encoding) error {
	query := `
		INSERT INTO student_encodings (student_id, encoding)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.conn.QueryRow(ctx, query, e.StudentID, e.Data).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return roster.ErrNotFound
		}
		return fmt.Errorf("failed to add encoding: %w", err)
	}

	return nil
}

// ListEncodings returns every stored encoding. The recognition process loads
// the full set at startup to build its matcher.
func (r *StudentRepository) ListEncodings(ctx context.Context) ([]roster.Encoding, error) {
	query := `
		SELECT id, student_id, encoding, created_at
		FROM student_encodings
		ORDER BY student_id, id
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list encodings: %w", err)
	}
	defer rows.Close()

	encodings := make([]roster.Encoding, 0)
	for rows.Next() {
		var e roster.Encoding
		if err := rows.Scan(&e.ID, &e.StudentID, &e.Data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan encoding: %w", err)
		}
		encodings = append(encodings, e)
	}

	return encodings, rows.Err()
}
