// Package query contains read operations (CQRS - Queries).
package query

import (
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STATUS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// SessionStatusResult is the externally visible session state. Reading the
// status is what retires an elapsed session, so two consecutive reads can
// legitimately disagree on IsActive.
type SessionStatusResult struct {
	IsActive         bool   `json:"is_active"`
	RemainingSeconds int    `json:"remaining_seconds"`
	DurationMinutes  int    `json:"duration_minutes,omitempty"`
	CourseID         *int64 `json:"course_id,omitempty"`
	CourseSessionID  *int64 `json:"course_session_id,omitempty"`
	SessionNumber    int    `json:"session_number,omitempty"`
}

// SessionStatusHandler reports the current session state.
type SessionStatusHandler struct {
	sessions *monitoring.Manager
}

// NewSessionStatusHandler creates a new SessionStatusHandler.
func NewSessionStatusHandler(sessions *monitoring.Manager) *SessionStatusHandler {
	return &SessionStatusHandler{sessions: sessions}
}

// Handle executes the query.
func (h *SessionStatusHandler) Handle() *SessionStatusResult {
	snap := h.sessions.Snapshot()

	result := &SessionStatusResult{
		IsActive:         snap.Active,
		RemainingSeconds: snap.RemainingSeconds(),
	}
	if snap.Active {
		result.DurationMinutes = snap.DurationMinutes
	}
	if snap.CourseID != 0 {
		id := snap.CourseID
		result.CourseID = &id
	}
	// The occurrence outlives expiry so a late stop can still finalize it.
	if snap.CourseSessionID != 0 {
		id := snap.CourseSessionID
		result.CourseSessionID = &id
		result.SessionNumber = snap.SessionNumber
	}
	return result
}
