// Package monitoring contains the domain model for classroom monitoring:
// the single process-wide session state machine and the record types produced
// by the detection pipeline. This is a pure domain layer with zero external
// dependencies.
package monitoring

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot is an immutable view of the session state at one instant.
// Handlers take exactly one snapshot per request and gate every item in the
// request against it, so a session expiring mid-batch never retroactively
// invalidates items already classified.
type Snapshot struct {
	// Active reports whether a monitoring session is currently running.
	Active bool

	// StartedAt is when the session was started (zero when inactive).
	StartedAt time.Time

	// EndsAt is when the session will expire (zero when inactive).
	EndsAt time.Time

	// DurationMinutes is the configured session length.
	DurationMinutes int

	// CourseID is the course the session is bound to (0 when inactive).
	CourseID int64

	// CourseSessionID is the open occurrence row for this session.
	// It survives lazy expiry so a later Stop can still finalize it.
	CourseSessionID int64

	// SessionNumber is the per-course occurrence number (1, 2, 3, ...).
	SessionNumber int

	// TakenAt is the instant the snapshot was taken.
	TakenAt time.Time
}

// RemainingSeconds returns the whole seconds left until expiry, rounded up.
// Returns 0 for an inactive session.
func (s Snapshot) RemainingSeconds() int {
	if !s.Active {
		return 0
	}
	remaining := s.EndsAt.Sub(s.TakenAt)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

// CourseBound reports whether the snapshot carries an open course occurrence.
func (s Snapshot) CourseBound() bool {
	return s.CourseSessionID != 0
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE SESSION REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// OpenedOccurrence identifies a freshly opened course session occurrence.
type OpenedOccurrence struct {
	ID            int64
	SessionNumber int
}

// Registry persists per-course occurrence numbering and finalized aggregates.
// Implemented by the infrastructure layer. OpenSession must only be called
// from within the Manager's exclusive section: the single-active-session
// invariant is what keeps per-course numbering race-free.
type Registry interface {
	// OpenSession creates the next occurrence for a course on the given date
	// and returns its ID together with the assigned session number.
	OpenSession(ctx context.Context, courseID int64, sessionDate string) (OpenedOccurrence, error)

	// FinalizeSession computes the occurrence's aggregates (distinct
	// attendees, mean attention score) and stamps its end time. Occurrences
	// with zero records finalize to zero aggregates without error.
	FinalizeSession(ctx context.Context, courseSessionID int64) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// sessionState holds the mutable session fields. Guarded by Manager.mu.
type sessionState struct {
	active          bool
	startedAt       time.Time
	endTime         time.Time
	durationMinutes int
	courseID        int64
	courseSessionID int64
	sessionNumber   int
}

// Manager owns the single process-wide monitoring session. All state
// transitions (start, stop, expiry-on-read) run under one mutex, so a
// concurrent Stop can never race the expiry downgrade inside Snapshot.
//
// Expiry is detected, not scheduled: no timer fires when a session runs out.
// The first Snapshot taken at or after the end time downgrades the state.
type Manager struct {
	mu       sync.Mutex
	registry Registry
	clock    func() time.Time
	state    sessionState
	onExpire func(Snapshot)
}

// NewManager creates a session manager backed by the given registry.
func NewManager(registry Registry) *Manager {
	return &Manager{
		registry: registry,
		clock:    time.Now,
	}
}

// SetExpiryHook registers a callback invoked once per session, from its own
// goroutine, when the expiry downgrade fires inside Snapshot. The snapshot it
// receives is the post-downgrade state, occurrence still attached.
func (m *Manager) SetExpiryHook(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// Snapshot returns the current session state. If the session is active but
// its end time has passed, the state is downgraded to inactive as part of
// this call. The course occurrence is deliberately kept: it is still open in
// the registry and a later Stop finalizes it.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if m.state.active && !now.Before(m.state.endTime) {
		m.state.active = false
		m.state.endTime = time.Time{}
		if m.onExpire != nil {
			go m.onExpire(m.snapshotLocked(now))
		}
	}

	return m.snapshotLocked(now)
}

// Start opens a new occurrence for the course and activates the session for
// the given duration. Fails with a validation error when the course ID is not
// positive or the duration is not positive; no occurrence is opened in that
// case.
//
// Starting while a session (or an expired-but-unstopped session) still holds
// an open occurrence finalizes that occurrence first, so no occurrence is
// ever left with a permanently missing end time. The previous behavior of
// silently abandoning the old occurrence was a data-loss bug, not a feature.
func (m *Manager) Start(ctx context.Context, durationMinutes int, courseID int64) (Snapshot, error) {
	if courseID <= 0 {
		return Snapshot{}, shared.ErrCourseIDRequired
	}
	if durationMinutes <= 0 {
		return Snapshot{}, shared.ErrDurationRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.courseSessionID != 0 {
		if err := m.registry.FinalizeSession(ctx, m.state.courseSessionID); err != nil {
			return m.snapshotLocked(m.clock()), shared.Persistence("monitoring", "Start", err)
		}
		m.state = sessionState{}
	}

	now := m.clock()
	opened, err := m.registry.OpenSession(ctx, courseID, formatDate(now))
	if err != nil {
		return m.snapshotLocked(now), shared.Persistence("monitoring", "Start", err)
	}

	m.state = sessionState{
		active:          true,
		startedAt:       now,
		endTime:         now.Add(time.Duration(durationMinutes) * time.Minute),
		durationMinutes: durationMinutes,
		courseID:        courseID,
		courseSessionID: opened.ID,
		sessionNumber:   opened.SessionNumber,
	}

	return m.snapshotLocked(now), nil
}

// Stop finalizes the open occurrence (if any) and resets the session to its
// inactive defaults. The returned snapshot is the state as it was before the
// reset, taken under the same lock, so the caller can attribute the stop to
// the occurrence that was actually closed. When finalization fails the state
// is left untouched so the caller can retry; clearing it would make the
// occurrence unfinalizable.
func (m *Manager) Stop(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stopped := m.snapshotLocked(m.clock())
	if m.state.courseSessionID != 0 {
		if err := m.registry.FinalizeSession(ctx, m.state.courseSessionID); err != nil {
			return stopped, shared.Persistence("monitoring", "Stop", err)
		}
	}

	m.state = sessionState{}
	return stopped, nil
}

// snapshotLocked builds a Snapshot from the current state. Caller holds mu.
func (m *Manager) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		Active:          m.state.active,
		StartedAt:       m.state.startedAt,
		EndsAt:          m.state.endTime,
		DurationMinutes: m.state.durationMinutes,
		CourseID:        m.state.courseID,
		CourseSessionID: m.state.courseSessionID,
		SessionNumber:   m.state.sessionNumber,
		TakenAt:         now,
	}
}

// formatDate renders a calendar date the way records store it (YYYY-MM-DD).
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
