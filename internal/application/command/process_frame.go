// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/circuitbreaker"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS FRAME COMMAND
// Turns one batch of detections and engagement readings from the recognition
// process into durable attendance/engagement rows, gated by the session state.
// ══════════════════════════════════════════════════════════════════════════════

// ProcessFrameCommand is one ingestion batch.
type ProcessFrameCommand struct {
	// Detections are the presence observations. The field is required even
	// when empty; a nil slice means the producer omitted it and the batch is
	// rejected before anything is dispatched.
	Detections []monitoring.Detection

	// Engagement are the attention readings. Optional.
	Engagement []monitoring.EngagementReading

	// SessionDate overrides the record date (defaults to today).
	SessionDate string

	// SessionTime overrides the record time of day (defaults to now).
	SessionTime string
}

// Validate validates the command.
func (c ProcessFrameCommand) Validate() error {
	if c.Detections == nil {
		return shared.ErrDetectionsMissing
	}
	if c.SessionDate != "" && !timeutil.ValidDate(c.SessionDate) {
		return shared.Validation("monitoring", "ProcessFrame", "session_date must be YYYY-MM-DD")
	}
	if c.SessionTime != "" && !timeutil.ValidClock(c.SessionTime) {
		return shared.Validation("monitoring", "ProcessFrame", "session_time must be HH:MM:SS")
	}
	return nil
}

// ItemError describes one failed persistence call inside a batch. A failed
// item never fails the batch; it is reported here instead.
type ItemError struct {
	Type      string `json:"type"` // "attendance" or "engagement"
	StudentID int64  `json:"student_id"`
	Error     string `json:"error"`
}

// ProcessFrameResult is the aggregate outcome of one batch. Emitted exactly
// once, after every item has resolved. For a batch of N items,
// AttendanceRecorded + EngagementRecorded + Skipped + len(Errors) == N.
type ProcessFrameResult struct {
	// BatchID identifies the batch in logs and responses.
	BatchID string `json:"batch_id"`

	// NoData marks a batch that carried zero items; nothing was dispatched.
	NoData bool `json:"no_data,omitempty"`

	// SessionActive is the gating decision the whole batch was classified
	// against.
	SessionActive bool `json:"session_active"`

	AttendanceRecorded int `json:"attendance_recorded"`
	EngagementRecorded int `json:"engagement_recorded"`
	Skipped            int `json:"skipped"`

	Attendance []monitoring.AttendanceRecord `json:"attendance"`
	Engagement []monitoring.EngagementRecord `json:"engagement"`
	Errors     []ItemError                   `json:"errors"`
}

// ErrorsCount returns the number of failed items.
func (r *ProcessFrameResult) ErrorsCount() int {
	return len(r.Errors)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessFrameHandlerConfig contains configuration for the handler.
type ProcessFrameHandlerConfig struct {
	// StoreTimeout bounds each individual persistence call. A stalled
	// storage call fails that one item instead of stalling the batch.
	StoreTimeout time.Duration

	// PresenceTTL is how long a detected student stays in the live
	// presence view without being detected again.
	PresenceTTL time.Duration
}

// DefaultProcessFrameHandlerConfig returns default configuration.
func DefaultProcessFrameHandlerConfig() ProcessFrameHandlerConfig {
	return ProcessFrameHandlerConfig{
		StoreTimeout: 10 * time.Second,
		PresenceTTL:  2 * time.Minute,
	}
}

// ProcessFrameHandler handles the ProcessFrameCommand.
//
// Concurrency: all eligible persistence calls of a batch run concurrently and
// are joined before the result is folded, so the response is assembled
// exactly once and only after every item resolved. The session snapshot is
// taken once per batch; items are never re-gated mid-flight.
type ProcessFrameHandler struct {
	sessions *monitoring.Manager
	store    monitoring.RecordStore
	presence monitoring.PresenceTracker
	breaker  *circuitbreaker.CircuitBreaker
	events   shared.EventPublisher
	log      *logger.Logger

	storeTimeout time.Duration
	presenceTTL  time.Duration
	clock        func() time.Time
}

// NewProcessFrameHandler creates a new ProcessFrameHandler. The presence
// tracker, event publisher and logger are optional.
func NewProcessFrameHandler(
	sessions *monitoring.Manager,
	store monitoring.RecordStore,
	presence monitoring.PresenceTracker,
	events shared.EventPublisher,
	log *logger.Logger,
	config ProcessFrameHandlerConfig,
) *ProcessFrameHandler {
	if config.StoreTimeout == 0 {
		config = DefaultProcessFrameHandlerConfig()
	}
	if log == nil {
		log = logger.Default()
	}

	var breaker *circuitbreaker.CircuitBreaker
	if presence != nil {
		// The presence view is best effort; when Redis flaps the breaker
		// keeps ingestion from paying the connection-timeout tax per item.
		breaker = circuitbreaker.PresenceBreaker(nil)
	}

	return &ProcessFrameHandler{
		sessions:     sessions,
		store:        store,
		presence:     presence,
		breaker:      breaker,
		events:       events,
		log:          log,
		storeTimeout: config.StoreTimeout,
		presenceTTL:  config.PresenceTTL,
		clock:        time.Now,
	}
}

// itemOutcome is the resolution of one batch item. Each slot of the outcome
// slice is written by exactly one goroutine, which is what makes the fold
// race-free without a shared counter.
type itemOutcome struct {
	attendance *monitoring.AttendanceRecord
	engagement *monitoring.EngagementRecord
	itemErr    *ItemError
	skipped    bool
}

// Handle executes the process frame command.
func (h *ProcessFrameHandler) Handle(ctx context.Context, cmd ProcessFrameCommand) (*ProcessFrameResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
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

	// One snapshot gates the entire batch.
	snap := h.sessions.Snapshot()

	result := &ProcessFrameResult{
		BatchID:       uuid.NewString(),
		SessionActive: snap.Active,
		Attendance:    []monitoring.AttendanceRecord{},
		Engagement:    []monitoring.EngagementRecord{},
		Errors:        []ItemError{},
	}

	total := len(cmd.Detections) + len(cmd.Engagement)
	if total == 0 {
		result.NoData = true
		return result, nil
	}

	outcomes := make([]itemOutcome, total)
	var wg sync.WaitGroup

	for i, d := range cmd.Detections {
		if !snap.Active || d.StudentID <= 0 {
			outcomes[i] = itemOutcome{skipped: true}
			continue
		}
		wg.Add(1)
		go func(slot int, d monitoring.Detection) {
			defer wg.Done()
			outcomes[slot] = h.recordAttendance(ctx, snap, d, date, tod)
		}(i, d)
	}

	for i, e := range cmd.Engagement {
		slot := len(cmd.Detections) + i
		if !snap.Active || e.StudentID <= 0 {
			outcomes[slot] = itemOutcome{skipped: true}
			continue
		}
		wg.Add(1)
		go func(slot int, e monitoring.EngagementReading) {
			defer wg.Done()
			outcomes[slot] = h.recordEngagement(ctx, snap, e, date, tod)
		}(slot, e)
	}

	wg.Wait()

	for _, o := range outcomes {
		switch {
		case o.skipped:
			result.Skipped++
		case o.itemErr != nil:
			result.Errors = append(result.Errors, *o.itemErr)
		case o.attendance != nil:
			result.Attendance = append(result.Attendance, *o.attendance)
			result.AttendanceRecorded++
		case o.engagement != nil:
			result.Engagement = append(result.Engagement, *o.engagement)
			result.EngagementRecorded++
		}
	}

	h.log.Info("frame processed",
		logger.BatchID(result.BatchID),
		logger.Bool("session_active", snap.Active),
		logger.Int("attendance", result.AttendanceRecorded),
		logger.Int("engagement", result.EngagementRecorded),
		logger.Int("skipped", result.Skipped),
		logger.Int("errors", result.ErrorsCount()),
	)

	if h.events != nil {
		_ = h.events.Publish(shared.FrameProcessedEvent{
			BaseEvent:          shared.NewBaseEvent(shared.EventFrameProcessed, result.BatchID),
			BatchID:            result.BatchID,
			AttendanceRecorded: result.AttendanceRecorded,
			EngagementRecorded: result.EngagementRecorded,
			Skipped:            result.Skipped,
			Errors:             result.ErrorsCount(),
		})
	}

	return result, nil
}

// recordAttendance persists one detection under the per-item timeout.
func (h *ProcessFrameHandler) recordAttendance(ctx context.Context, snap monitoring.Snapshot, d monitoring.Detection, date, tod string) itemOutcome {
	callCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	rec := &monitoring.AttendanceRecord{
		StudentID:       d.StudentID,
		SessionDate:     date,
		SessionTime:     tod,
		CourseID:        optionalID(snap.CourseID),
		CourseSessionID: optionalID(snap.CourseSessionID),
	}

	if err := h.store.RecordAttendance(callCtx, rec); err != nil {
		return itemOutcome{itemErr: &ItemError{
			Type:      "attendance",
			StudentID: d.StudentID,
			Error:     err.Error(),
		}}
	}

	h.markPresent(ctx, d.StudentID)
	return itemOutcome{attendance: rec}
}

// recordEngagement persists one attention reading under the per-item timeout.
func (h *ProcessFrameHandler) recordEngagement(ctx context.Context, snap monitoring.Snapshot, e monitoring.EngagementReading, date, tod string) itemOutcome {
	callCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	rec := &monitoring.EngagementRecord{
		StudentID:       e.StudentID,
		SessionDate:     date,
		SessionTime:     tod,
		AttentionScore:  e.Score(),
		EyesOpen:        e.EyesOpenValue(),
		FacingCamera:    e.FacingCameraValue(),
		CourseID:        optionalID(snap.CourseID),
		CourseSessionID: optionalID(snap.CourseSessionID),
	}

	if err := h.store.RecordEngagement(callCtx, rec); err != nil {
		return itemOutcome{itemErr: &ItemError{
			Type:      "engagement",
			StudentID: e.StudentID,
			Error:     err.Error(),
		}}
	}

	return itemOutcome{engagement: rec}
}

// markPresent refreshes the live presence view through the circuit breaker.
// Failures are logged and swallowed: presence is a convenience view, not a
// record of truth.
func (h *ProcessFrameHandler) markPresent(ctx context.Context, studentID int64) {
	if h.presence == nil {
		return
	}

	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.presence.MarkPresent(ctx, studentID, h.presenceTTL)
	})
	if err != nil {
		h.log.Warn("presence update failed",
			logger.StudentID(studentID),
			logger.Err(err),
		)
	}
}

// optionalID converts a zero-means-unset ID into a nullable column value.
func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
