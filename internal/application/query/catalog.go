package query

import (
	"context"
	"errors"

	"github.com/classpulse/classpulse-backend/internal/domain/course"
	"github.com/classpulse/classpulse-backend/internal/domain/roster"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// RosterHandler serves roster listings for the API and the recognition
// process's encoding sync.
type RosterHandler struct {
	students roster.Repository
}

// NewRosterHandler creates a new RosterHandler.
func NewRosterHandler(students roster.Repository) *RosterHandler {
	return &RosterHandler{students: students}
}

// List returns all enrolled students ordered by name.
func (h *RosterHandler) List(ctx context.Context) ([]roster.Student, error) {
	students, err := h.students.List(ctx)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []roster.Student{}
	}
	return students, nil
}

// Get returns one student by ID.
func (h *RosterHandler) Get(ctx context.Context, id int64) (*roster.Student, error) {
	if id <= 0 {
		return nil, shared.ErrStudentNotFound
	}
	s, err := h.students.GetByID(ctx, id)
	if errors.Is(err, roster.ErrNotFound) {
		return nil, shared.ErrStudentNotFound
	}
	return s, err
}

// EncodingOwner pairs a student ID with one of their stored encodings.
type EncodingOwner struct {
	StudentID int64  `json:"student_id"`
	Encoding  []byte `json:"encoding"`
}

// Encodings returns every stored face encoding. The recognition process
// pulls this once at startup to build its matching set.
func (h *RosterHandler) Encodings(ctx context.Context) ([]EncodingOwner, error) {
	encodings, err := h.students.ListEncodings(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]EncodingOwner, 0, len(encodings))
	for _, e := range encodings {
		out = append(out, EncodingOwner{StudentID: e.StudentID, Encoding: e.Data})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE CATALOG QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// CourseCatalogHandler serves course listings and occurrence histories.
type CourseCatalogHandler struct {
	courses course.Repository
}

// NewCourseCatalogHandler creates a new CourseCatalogHandler.
func NewCourseCatalogHandler(courses course.Repository) *CourseCatalogHandler {
	return &CourseCatalogHandler{courses: courses}
}

// List returns all courses with their occurrence counts.
func (h *CourseCatalogHandler) List(ctx context.Context) ([]course.Course, error) {
	courses, err := h.courses.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return courses, nil
}

// CourseOccurrencesResult is a course together with its recorded occurrences.
type CourseOccurrencesResult struct {
	Course      *course.Course             `json:"course"`
	Occurrences []course.SessionOccurrence `json:"sessions"`
}

// Occurrences returns a course's occurrence history, newest number last.
func (h *CourseCatalogHandler) Occurrences(ctx context.Context, courseID int64) (*CourseOccurrencesResult, error) {
	c, err := h.courses.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, err
	}

	occurrences, err := h.courses.ListOccurrences(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if occurrences == nil {
		occurrences = []course.SessionOccurrence{}
	}

	return &CourseOccurrencesResult{Course: c, Occurrences: occurrences}, nil
}
