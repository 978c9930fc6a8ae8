// Package course contains the domain model for courses and their monitored
// session occurrences. A course accumulates numbered occurrences ("session 1",
// "session 2", ...) over time; an occurrence stays open from the moment a
// monitoring session starts until it is finalized with summary aggregates.
package course

import "time"

// Course is a taught course that monitoring sessions are bound to.
type Course struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// SessionCount is the number of occurrences recorded for the course.
	// Populated by list queries, not stored.
	SessionCount int `json:"session_count"`
}

// Validate checks the course fields required for creation.
func (c *Course) Validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	return nil
}

// SessionOccurrence is one persisted instance of a course's monitored
// sessions. EndTime is nil while the occurrence is open; TotalStudents and
// AvgEngagement stay at zero until finalization computes them.
type SessionOccurrence struct {
	ID            int64      `json:"id"`
	CourseID      int64      `json:"course_id"`
	SessionNumber int        `json:"session_number"`
	SessionDate   string     `json:"session_date"` // YYYY-MM-DD
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	TotalStudents int        `json:"total_students"`
	AvgEngagement float64    `json:"avg_engagement"`
}

// IsOpen reports whether the occurrence has not been finalized yet.
func (o *SessionOccurrence) IsOpen() bool {
	return o.EndTime == nil
}
