package command

import (
	"context"
	"strconv"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STOP SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StopSessionHandler stops the running monitoring session. Stopping when no
// session is running is not an error; the contract of the endpoint is "make
// sure nothing is running", and it already holds.
type StopSessionHandler struct {
	sessions *monitoring.Manager
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewStopSessionHandler creates a new StopSessionHandler.
func NewStopSessionHandler(
	sessions *monitoring.Manager,
	events shared.EventPublisher,
	log *logger.Logger,
) *StopSessionHandler {
	if log == nil {
		log = logger.Default()
	}
	return &StopSessionHandler{
		sessions: sessions,
		events:   events,
		log:      log,
	}
}

// StopSessionResult is the outcome of stopping a session.
type StopSessionResult struct {
	// Stopped is the occurrence that was closed, zero-valued when nothing
	// was running.
	Stopped monitoring.Snapshot
}

// Handle stops the session. Finalization failures are returned as persistence
// errors and leave the session intact so the stop can be retried.
func (h *StopSessionHandler) Handle(ctx context.Context) (*StopSessionResult, error) {
	// Stop hands back the pre-reset state from under its own lock, so the
	// stop is attributed to the occurrence that was actually closed even
	// when a concurrent Start slips in.
	stopped, err := h.sessions.Stop(ctx)
	if err != nil {
		h.log.Error("session stop failed",
			logger.CourseSessionID(stopped.CourseSessionID),
			logger.Err(err),
		)
		return nil, err
	}

	if stopped.CourseSessionID != 0 {
		h.log.Info("session stopped",
			logger.CourseID(stopped.CourseID),
			logger.CourseSessionID(stopped.CourseSessionID),
			logger.SessionNumber(stopped.SessionNumber),
		)

		if h.events != nil {
			_ = h.events.Publish(shared.SessionStoppedEvent{
				BaseEvent:       shared.NewBaseEvent(shared.EventSessionStopped, formatAggregateID(stopped.CourseSessionID)),
				CourseID:        stopped.CourseID,
				CourseSessionID: stopped.CourseSessionID,
			})
		}
	}

	return &StopSessionResult{Stopped: stopped}, nil
}

// formatAggregateID renders a numeric occurrence ID as an event aggregate key.
func formatAggregateID(id int64) string {
	return strconv.FormatInt(id, 10)
}
