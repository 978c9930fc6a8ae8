// Package eventhandler contains subscribers for domain events. Command
// handlers publish facts about what happened; the side effects that hang
// off those facts (cache invalidation, audit logging) live here, wired
// through the dispatcher so failures retry without touching the request
// path.
package eventhandler

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// CacheInvalidator removes cached report payloads that an event made stale.
type CacheInvalidator interface {
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ─────────────────────────────────────────────────────────────────────────────
// SESSION LIFECYCLE
// ─────────────────────────────────────────────────────────────────────────────

// SessionLifecycleHandler reacts to session start/stop events. Stopping a
// session finalizes an occurrence, which changes course reports and the
// dashboard, so both cached views are dropped.
type SessionLifecycleHandler struct {
	cache   CacheInvalidator
	log     *logger.Logger
	timeout time.Duration
}

// NewSessionLifecycleHandler creates a session lifecycle subscriber.
func NewSessionLifecycleHandler(cache CacheInvalidator, log *logger.Logger) *SessionLifecycleHandler {
	return &SessionLifecycleHandler{
		cache:   cache,
		log:     log.With(logger.Component("session-lifecycle")),
		timeout: 5 * time.Second,
	}
}

// OnSessionStarted logs the new occurrence for the audit trail.
//
// Handlers here key on EventType and read the payload map, never the
// concrete event struct: an event that crossed the Redis bus arrives
// reconstructed from its wire envelope, not as the type that was published.
func (h *SessionLifecycleHandler) OnSessionStarted(event shared.Event) error {
	if event.EventType() != shared.EventSessionStarted {
		return nil
	}

	p := event.Payload()
	h.log.Info("session started",
		logger.CourseID(payloadInt64(p, "course_id")),
		logger.CourseSessionID(payloadInt64(p, "course_session_id")),
		logger.SessionNumber(payloadInt(p, "session_number")),
		logger.Int("duration_minutes", payloadInt(p, "duration_minutes")),
	)
	return nil
}

// OnSessionStopped invalidates cached dashboard and report views.
func (h *SessionLifecycleHandler) OnSessionStopped(event shared.Event) error {
	if event.EventType() != shared.EventSessionStopped {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Delete(ctx, "dashboard:today"); err != nil {
		return err
	}
	if err := h.cache.DeleteByPattern(ctx, "report:*"); err != nil {
		return err
	}

	p := event.Payload()
	h.log.Info("session stopped, cached views invalidated",
		logger.CourseID(payloadInt64(p, "course_id")),
		logger.CourseSessionID(payloadInt64(p, "course_session_id")),
	)
	return nil
}

// OnSessionExpired logs the downgrade for the audit trail. Nothing cached
// changes at expiry: the occurrence is still open and the counts it feeds
// only move when it is finalized.
func (h *SessionLifecycleHandler) OnSessionExpired(event shared.Event) error {
	if event.EventType() != shared.EventSessionExpired {
		return nil
	}

	p := event.Payload()
	h.log.Info("session expired, occurrence awaits finalization",
		logger.CourseID(payloadInt64(p, "course_id")),
		logger.CourseSessionID(payloadInt64(p, "course_session_id")),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ROSTER CHANGES
// ─────────────────────────────────────────────────────────────────────────────

// RosterChangedHandler reacts to enrollment changes. The dashboard counts
// total students, so any roster change makes the cached payload stale.
type RosterChangedHandler struct {
	cache   CacheInvalidator
	log     *logger.Logger
	timeout time.Duration
}

// NewRosterChangedHandler creates a roster change subscriber.
func NewRosterChangedHandler(cache CacheInvalidator, log *logger.Logger) *RosterChangedHandler {
	return &RosterChangedHandler{
		cache:   cache,
		log:     log.With(logger.Component("roster-changed")),
		timeout: 5 * time.Second,
	}
}

// Handle invalidates the dashboard cache on any roster event.
func (h *RosterChangedHandler) Handle(event shared.Event) error {
	switch event.EventType() {
	case shared.EventStudentEnrolled, shared.EventStudentRemoved:
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Delete(ctx, "dashboard:today"); err != nil {
		return err
	}

	h.log.Debug("roster changed, dashboard cache invalidated",
		logger.String("event_type", string(event.EventType())),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// INGESTION ACTIVITY
// ─────────────────────────────────────────────────────────────────────────────

// IngestionActivityHandler reacts to stored detections and readings. Both
// feed today's presence and engagement counts, so the cached dashboard is
// dropped whenever a write landed.
type IngestionActivityHandler struct {
	cache   CacheInvalidator
	log     *logger.Logger
	timeout time.Duration
}

// NewIngestionActivityHandler creates an ingestion activity subscriber.
func NewIngestionActivityHandler(cache CacheInvalidator, log *logger.Logger) *IngestionActivityHandler {
	return &IngestionActivityHandler{
		cache:   cache,
		log:     log.With(logger.Component("ingestion-activity")),
		timeout: 5 * time.Second,
	}
}

// Handle invalidates the dashboard cache when an ingestion event carried at
// least one stored row.
func (h *IngestionActivityHandler) Handle(event shared.Event) error {
	p := event.Payload()

	switch event.EventType() {
	case shared.EventFrameProcessed:
		if payloadInt(p, "attendance_recorded")+payloadInt(p, "engagement_recorded") == 0 {
			return nil
		}
	case shared.EventEngagementRecorded:
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Delete(ctx, "dashboard:today"); err != nil {
		return err
	}

	h.log.Debug("ingestion activity, dashboard cache invalidated",
		logger.String("event_type", string(event.EventType())),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Payload access
// ─────────────────────────────────────────────────────────────────────────────

// payloadInt64 reads a numeric payload field. Events that crossed the Redis
// bus decode their numbers as float64.
func payloadInt64(p map[string]interface{}, key string) int64 {
	switch v := p[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func payloadInt(p map[string]interface{}, key string) int {
	return int(payloadInt64(p, key))
}
