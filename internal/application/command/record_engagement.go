package command

import (
	"context"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ENGAGEMENT COMMAND
// Single-reading variant of frame ingestion, for producers that report one
// student's attention outside a detection batch.
// ══════════════════════════════════════════════════════════════════════════════

// RecordEngagementCommand records one attention reading for one student.
type RecordEngagementCommand struct {
	StudentID      int64
	AttentionScore *float64
	EyesOpen       *bool
	FacingCamera   *bool

	// SessionDate overrides the record date (defaults to today).
	SessionDate string

	// SessionTime overrides the record time of day (defaults to now).
	SessionTime string
}

// Validate validates the command. Unlike batched readings, a standalone
// reading must carry an explicit score.
func (c RecordEngagementCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ErrStudentIDRequired
	}
	if c.AttentionScore == nil {
		return shared.ErrScoreRequired
	}
	if c.SessionDate != "" && !timeutil.ValidDate(c.SessionDate) {
		return shared.Validation("monitoring", "RecordEngagement", "session_date must be YYYY-MM-DD")
	}
	if c.SessionTime != "" && !timeutil.ValidClock(c.SessionTime) {
		return shared.Validation("monitoring", "RecordEngagement", "session_time must be HH:MM:SS")
	}
	return nil
}

// RecordEngagementHandlerConfig contains configuration for the handler.
type RecordEngagementHandlerConfig struct {
	// StoreTimeout bounds the persistence call.
	StoreTimeout time.Duration
}

// DefaultRecordEngagementHandlerConfig returns default configuration.
func DefaultRecordEngagementHandlerConfig() RecordEngagementHandlerConfig {
	return RecordEngagementHandlerConfig{
		StoreTimeout: 10 * time.Second,
	}
}

// RecordEngagementHandler handles the RecordEngagementCommand.
type RecordEngagementHandler struct {
	sessions *monitoring.Manager
	store    monitoring.RecordStore
	events   shared.EventPublisher
	log      *logger.Logger

	storeTimeout time.Duration
	clock        func() time.Time
}

// NewRecordEngagementHandler creates a new RecordEngagementHandler. The event
// publisher is optional.
func NewRecordEngagementHandler(
	sessions *monitoring.Manager,
	store monitoring.RecordStore,
	events shared.EventPublisher,
	log *logger.Logger,
	config RecordEngagementHandlerConfig,
) *RecordEngagementHandler {
	if config.StoreTimeout == 0 {
		config = DefaultRecordEngagementHandlerConfig()
	}
	if log == nil {
		log = logger.Default()
	}
	return &RecordEngagementHandler{
		sessions:     sessions,
		store:        store,
		events:       events,
		log:          log,
		storeTimeout: config.StoreTimeout,
		clock:        time.Now,
	}
}

// RecordEngagementResult is the outcome of recording a reading.
type RecordEngagementResult struct {
	// Skipped is true when no session was active and the reading was
	// acknowledged but not stored.
	Skipped bool

	Record *monitoring.EngagementRecord
}

// Handle records the reading. Readings outside an active session are dropped
// without error, matching the batch gating.
func (h *RecordEngagementHandler) Handle(ctx context.Context, cmd RecordEngagementCommand) (*RecordEngagementResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	snap := h.sessions.Snapshot()
	if !snap.Active {
		h.log.Debug("engagement reading skipped, no active session",
			logger.StudentID(cmd.StudentID),
		)
		return &RecordEngagementResult{Skipped: true}, nil
	}

	reading := monitoring.EngagementReading{
		StudentID:      cmd.StudentID,
		AttentionScore: cmd.AttentionScore,
		EyesOpen:       cmd.EyesOpen,
		FacingCamera:   cmd.FacingCamera,
	}

	now := h.clock()
	date := cmd.SessionDate
	if date == "" {
		date = timeutil.DateString(now)
	}
	tod := cmd.SessionTime
	if tod == "" {
		tod = timeutil.ClockString(now)
	}

	rec := &monitoring.EngagementRecord{
		StudentID:       cmd.StudentID,
		SessionDate:     date,
		SessionTime:     tod,
		AttentionScore:  reading.Score(),
		EyesOpen:        reading.EyesOpenValue(),
		FacingCamera:    reading.FacingCameraValue(),
		CourseID:        optionalID(snap.CourseID),
		CourseSessionID: optionalID(snap.CourseSessionID),
	}

	callCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	if err := h.store.RecordEngagement(callCtx, rec); err != nil {
		return nil, shared.Persistence("monitoring", "RecordEngagement", err)
	}

	if h.events != nil {
		_ = h.events.Publish(shared.EngagementRecordedEvent{
			BaseEvent:      shared.NewBaseEvent(shared.EventEngagementRecorded, formatAggregateID(cmd.StudentID)),
			StudentID:      cmd.StudentID,
			AttentionScore: rec.AttentionScore,
			SessionDate:    date,
		})
	}

	return &RecordEngagementResult{Record: rec}, nil
}
