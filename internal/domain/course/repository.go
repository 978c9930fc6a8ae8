package course

import (
	"context"
	"errors"
)

// Domain errors for the course package.
var (
	ErrNameRequired = errors.New("course: name is required")
	ErrNotFound     = errors.New("course: not found")
)

// Repository defines read/write access to courses and their occurrences.
// Occurrence creation and finalization go through the monitoring registry,
// which the same infrastructure type implements; this interface covers the
// catalog and reporting reads.
type Repository interface {
	// CreateCourse inserts a course and fills in its ID.
	CreateCourse(ctx context.Context, c *Course) error

	// GetCourse returns a course by ID, or ErrNotFound.
	GetCourse(ctx context.Context, id int64) (*Course, error)

	// ListCourses returns all courses with their occurrence counts,
	// ordered by name.
	ListCourses(ctx context.Context) ([]Course, error)

	// ListOccurrences returns a course's occurrences ordered by session
	// number.
	ListOccurrences(ctx context.Context, courseID int64) ([]SessionOccurrence, error)

	// GetOccurrence returns one occurrence by ID, or ErrNotFound.
	GetOccurrence(ctx context.Context, id int64) (*SessionOccurrence, error)
}
