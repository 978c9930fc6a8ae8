package query

import (
	"context"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGAGEMENT HISTORY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// EngagementHistoryQuery fetches one student's attention readings for a day.
type EngagementHistoryQuery struct {
	StudentID int64

	// Date defaults to today.
	Date string
}

// Validate validates the query.
func (q *EngagementHistoryQuery) Validate() error {
	if q.StudentID <= 0 {
		return shared.ErrStudentIDRequired
	}
	if q.Date == "" {
		q.Date = timeutil.Today()
	}
	if !timeutil.ValidDate(q.Date) {
		return shared.Validation("query", "EngagementHistory", "date must be YYYY-MM-DD")
	}
	return nil
}

// EngagementHistoryResult is the day's readings plus their average.
type EngagementHistoryResult struct {
	StudentID    int64                         `json:"student_id"`
	Date         string                        `json:"date"`
	Records      []monitoring.EngagementRecord `json:"records"`
	AverageScore float64                       `json:"average_score"`
	SampleCount  int                           `json:"sample_count"`
}

// EngagementHistoryHandler handles the EngagementHistoryQuery.
type EngagementHistoryHandler struct {
	store monitoring.RecordStore
}

// NewEngagementHistoryHandler creates a new EngagementHistoryHandler.
func NewEngagementHistoryHandler(store monitoring.RecordStore) *EngagementHistoryHandler {
	return &EngagementHistoryHandler{store: store}
}

// Handle executes the query.
func (h *EngagementHistoryHandler) Handle(ctx context.Context, q EngagementHistoryQuery) (*EngagementHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	records, err := h.store.EngagementByStudent(ctx, q.StudentID, q.Date)
	if err != nil {
		return nil, shared.Persistence("query", "EngagementHistory", err)
	}

	avg, count, err := h.store.AverageEngagement(ctx, q.StudentID, q.Date)
	if err != nil {
		return nil, shared.Persistence("query", "EngagementHistory", err)
	}

	if records == nil {
		records = []monitoring.EngagementRecord{}
	}

	return &EngagementHistoryResult{
		StudentID:    q.StudentID,
		Date:         q.Date,
		Records:      records,
		AverageScore: avg,
		SampleCount:  count,
	}, nil
}
