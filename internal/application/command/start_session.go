package command

import (
	"context"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand begins a time-boxed monitoring session for a course.
type StartSessionCommand struct {
	// CourseID is the course being monitored. Required.
	CourseID int64

	// DurationMinutes is the session length. Zero means the default.
	DurationMinutes int
}

// Validate validates the command. The duration default is applied by the
// handler, so zero is accepted here; negatives are not.
func (c StartSessionCommand) Validate() error {
	if c.CourseID <= 0 {
		return shared.ErrCourseIDRequired
	}
	if c.DurationMinutes < 0 {
		return shared.ErrDurationRequired
	}
	return nil
}

// StartSessionHandlerConfig contains configuration for the handler.
type StartSessionHandlerConfig struct {
	// DefaultDurationMinutes is used when the command omits a duration.
	DefaultDurationMinutes int
}

// DefaultStartSessionHandlerConfig returns default configuration.
func DefaultStartSessionHandlerConfig() StartSessionHandlerConfig {
	return StartSessionHandlerConfig{
		DefaultDurationMinutes: 10,
	}
}

// StartSessionHandler handles the StartSessionCommand.
type StartSessionHandler struct {
	sessions *monitoring.Manager
	events   shared.EventPublisher
	log      *logger.Logger

	defaultDuration int
}

// NewStartSessionHandler creates a new StartSessionHandler.
func NewStartSessionHandler(
	sessions *monitoring.Manager,
	events shared.EventPublisher,
	log *logger.Logger,
	config StartSessionHandlerConfig,
) *StartSessionHandler {
	if config.DefaultDurationMinutes <= 0 {
		config = DefaultStartSessionHandlerConfig()
	}
	if log == nil {
		log = logger.Default()
	}
	return &StartSessionHandler{
		sessions:        sessions,
		events:          events,
		log:             log,
		defaultDuration: config.DefaultDurationMinutes,
	}
}

// StartSessionResult is the outcome of starting a session.
type StartSessionResult struct {
	Snapshot monitoring.Snapshot
}

// Handle starts a session, replacing any session already running. A session
// left open for the same or another course is finalized before the new
// occurrence is opened.
func (h *StartSessionHandler) Handle(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	duration := cmd.DurationMinutes
	if duration == 0 {
		duration = h.defaultDuration
	}

	snap, err := h.sessions.Start(ctx, duration, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	h.log.Info("session started",
		logger.CourseID(snap.CourseID),
		logger.CourseSessionID(snap.CourseSessionID),
		logger.SessionNumber(snap.SessionNumber),
		logger.Int("duration_minutes", snap.DurationMinutes),
		logger.String("ends_at", snap.EndsAt.Format(timeutil.ClockLayout)),
	)

	if h.events != nil {
		_ = h.events.Publish(shared.SessionStartedEvent{
			BaseEvent:       shared.NewBaseEvent(shared.EventSessionStarted, formatAggregateID(snap.CourseSessionID)),
			CourseID:        snap.CourseID,
			CourseSessionID: snap.CourseSessionID,
			SessionNumber:   snap.SessionNumber,
			DurationMinutes: snap.DurationMinutes,
		})
	}

	return &StartSessionResult{Snapshot: snap}, nil
}
