package command

import (
	"context"
	"fmt"
	"time"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/circuitbreaker"
	"github.com/classpulse/classpulse-backend/pkg/logger"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTENDANCE COMMANDS
// Manual attendance entry, single and bulk. Unlike frame ingestion these are
// clerical writes: they are not gated by the session manager and carry no
// course attribution, so a correction entered after class still lands.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttendanceCommand records one presence row by hand.
type RecordAttendanceCommand struct {
	StudentID int64

	// SessionDate overrides the record date (defaults to today).
	SessionDate string

	// SessionTime overrides the record time of day (defaults to now).
	SessionTime string
}

// Validate validates the command.
func (c RecordAttendanceCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ErrStudentIDRequired
	}
	return validateDateTimeOverride(c.SessionDate, c.SessionTime, "RecordAttendance")
}

// BulkAttendanceCommand records presence for several students at once, all
// sharing one date and time of day.
type BulkAttendanceCommand struct {
	StudentIDs  []int64
	SessionDate string
	SessionTime string
}

// Validate validates the command.
func (c BulkAttendanceCommand) Validate() error {
	if len(c.StudentIDs) == 0 {
		return shared.ErrStudentIDsRequired
	}
	return validateDateTimeOverride(c.SessionDate, c.SessionTime, "BulkAttendance")
}

// validateDateTimeOverride checks the optional date and time-of-day fields.
func validateDateTimeOverride(date, tod, op string) error {
	if date != "" && !timeutil.ValidDate(date) {
		return shared.Validation("monitoring", op, "session_date must be YYYY-MM-DD")
	}
	if tod != "" && !timeutil.ValidClock(tod) {
		return shared.Validation("monitoring", op, "session_time must be HH:MM:SS")
	}
	return nil
}

// RecordAttendanceHandlerConfig contains configuration for the handler.
type RecordAttendanceHandlerConfig struct {
	// StoreTimeout bounds each persistence call.
	StoreTimeout time.Duration
}

// DefaultRecordAttendanceHandlerConfig returns default configuration.
func DefaultRecordAttendanceHandlerConfig() RecordAttendanceHandlerConfig {
	return RecordAttendanceHandlerConfig{
		StoreTimeout: 10 * time.Second,
	}
}

// RecordAttendanceHandler handles manual attendance writes, single and bulk.
type RecordAttendanceHandler struct {
	store   monitoring.RecordStore
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger

	storeTimeout time.Duration
	clock        func() time.Time
}

// NewRecordAttendanceHandler creates a new RecordAttendanceHandler.
func NewRecordAttendanceHandler(
	store monitoring.RecordStore,
	log *logger.Logger,
	config RecordAttendanceHandlerConfig,
) *RecordAttendanceHandler {
	if config.StoreTimeout == 0 {
		config = DefaultRecordAttendanceHandlerConfig()
	}
	if log == nil {
		log = logger.Default()
	}
	return &RecordAttendanceHandler{
		store: store,
		// Bulk entry hits the store once per student; when the database
		// is down the breaker fails the remainder of the run fast instead
		// of paying the full timeout per row.
		breaker:      circuitbreaker.DatabaseBreaker(nil),
		log:          log,
		storeTimeout: config.StoreTimeout,
		clock:        time.Now,
	}
}

// RecordAttendanceResult is the outcome of one manual attendance write.
type RecordAttendanceResult struct {
	Record *monitoring.AttendanceRecord `json:"attendance"`
}

// Handle records one presence row.
func (h *RecordAttendanceHandler) Handle(ctx context.Context, cmd RecordAttendanceCommand) (*RecordAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	date, tod := h.resolveDateTime(cmd.SessionDate, cmd.SessionTime)

	rec := &monitoring.AttendanceRecord{
		StudentID:   cmd.StudentID,
		SessionDate: date,
		SessionTime: tod,
	}
	if err := h.write(ctx, rec); err != nil {
		return nil, shared.Persistence("monitoring", "RecordAttendance", err)
	}

	h.log.Info("attendance recorded manually",
		logger.StudentID(cmd.StudentID),
		logger.String("session_date", date),
	)

	return &RecordAttendanceResult{Record: rec}, nil
}

// BulkAttendanceResult is the aggregate outcome of a bulk write. Failed rows
// never abort the run; they are reported per student.
type BulkAttendanceResult struct {
	Recorded   int                           `json:"recorded"`
	Failed     int                           `json:"failed"`
	Attendance []monitoring.AttendanceRecord `json:"attendance"`
	Errors     []ItemError                   `json:"errors,omitempty"`
}

// HandleBulk records presence for every listed student. It fails as a whole
// only when no row at all could be written.
func (h *RecordAttendanceHandler) HandleBulk(ctx context.Context, cmd BulkAttendanceCommand) (*BulkAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	date, tod := h.resolveDateTime(cmd.SessionDate, cmd.SessionTime)

	result := &BulkAttendanceResult{
		Attendance: []monitoring.AttendanceRecord{},
		Errors:     []ItemError{},
	}

	for _, studentID := range cmd.StudentIDs {
		if studentID <= 0 {
			result.Errors = append(result.Errors, ItemError{
				Type:      "attendance",
				StudentID: studentID,
				Error:     "student ID must be positive",
			})
			continue
		}

		rec := &monitoring.AttendanceRecord{
			StudentID:   studentID,
			SessionDate: date,
			SessionTime: tod,
		}
		if err := h.write(ctx, rec); err != nil {
			result.Errors = append(result.Errors, ItemError{
				Type:      "attendance",
				StudentID: studentID,
				Error:     err.Error(),
			})
			continue
		}
		result.Attendance = append(result.Attendance, *rec)
	}

	result.Recorded = len(result.Attendance)
	result.Failed = len(result.Errors)

	if result.Recorded == 0 && result.Failed > 0 {
		return nil, shared.Persistence("monitoring", "BulkAttendance",
			fmt.Errorf("all %d rows failed: %s", result.Failed, result.Errors[0].Error))
	}

	h.log.Info("bulk attendance recorded",
		logger.Int("recorded", result.Recorded),
		logger.Int("failed", result.Failed),
		logger.String("session_date", date),
	)

	return result, nil
}

// write persists one row through the breaker under the store timeout.
func (h *RecordAttendanceHandler) write(ctx context.Context, rec *monitoring.AttendanceRecord) error {
	callCtx, cancel := context.WithTimeout(ctx, h.storeTimeout)
	defer cancel()

	return h.breaker.Execute(callCtx, func(ctx context.Context) error {
		return h.store.RecordAttendance(ctx, rec)
	})
}

// resolveDateTime applies the today/now defaults to the override fields.
func (h *RecordAttendanceHandler) resolveDateTime(date, tod string) (string, string) {
	now := h.clock()
	if date == "" {
		date = timeutil.DateString(now)
	}
	if tod == "" {
		tod = timeutil.ClockString(now)
	}
	return date, tod
}
