// Package roster contains the domain model for enrolled students. The
// recognition process matches camera frames against the roster's stored face
// encodings; the encodings themselves are opaque bytes to this system.
package roster

import (
	"context"
	"errors"
	"time"
)

// Domain errors for the roster package.
var (
	ErrNameRequired = errors.New("roster: student name is required")
	ErrNotFound     = errors.New("roster: student not found")
)

// Student is an enrolled student that can appear in detections.
type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	PhotoPath string    `json:"photo_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the student fields required for enrollment.
func (s *Student) Validate() error {
	if s.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// Encoding is one stored face encoding for a student. The payload is produced
// and consumed by the external recognition process.
type Encoding struct {
	ID        int64     `json:"id"`
	StudentID int64     `json:"student_id"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the interface for roster persistence.
type Repository interface {
	// Create inserts a student and fills in their ID.
	Create(ctx context.Context, s *Student) error

	// GetByID returns a student by ID, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Student, error)

	// List returns all students ordered by name.
	List(ctx context.Context) ([]Student, error)

	// Delete removes a student from the roster.
	Delete(ctx context.Context, id int64) error

	// AddEncoding stores an additional face encoding for a student.
	AddEncoding(ctx context.Context, e *Encoding) error

	// ListEncodings returns every stored encoding; the recognition process
	// loads them all at startup.
	ListEncodings(ctx context.Context) ([]Encoding, error)
}
