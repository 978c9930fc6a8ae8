package query

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/course"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type stubReportStore struct {
	daily      []StudentDayStats
	rangeRows  []StudentRangeStats
	courseRows []StudentCourseStats
	byDate     []DailyEngagement
	dashboard  DashboardCounts

	dailyCalls     int
	dashboardCalls int
	lastRange      [2]string
	lastByDate     [2]string
	err            error
}

func (s *stubReportStore) DailyStats(context.Context, string) ([]StudentDayStats, error) {
	s.dailyCalls++
	return s.daily, s.err
}

func (s *stubReportStore) RangeStats(_ context.Context, start, end string) ([]StudentRangeStats, error) {
	s.lastRange = [2]string{start, end}
	return s.rangeRows, s.err
}

func (s *stubReportStore) OverallStats(context.Context) ([]StudentRangeStats, error) {
	return s.rangeRows, s.err
}

func (s *stubReportStore) CourseStats(context.Context, int64) ([]StudentCourseStats, error) {
	return s.courseRows, s.err
}

func (s *stubReportStore) OccurrenceStats(context.Context, int64, int64) ([]StudentDayStats, error) {
	return s.daily, s.err
}

func (s *stubReportStore) EngagementByDate(_ context.Context, _ int64, start, end string) ([]DailyEngagement, error) {
	s.lastByDate = [2]string{start, end}
	return s.byDate, s.err
}

func (s *stubReportStore) Dashboard(context.Context, string) (*DashboardCounts, error) {
	s.dashboardCalls++
	if s.err != nil {
		return nil, s.err
	}
	counts := s.dashboard
	return &counts, nil
}

type stubCourseRepo struct {
	courses     map[int64]*course.Course
	occurrences []course.SessionOccurrence
}

func (s *stubCourseRepo) CreateCourse(context.Context, *course.Course) error { return nil }

func (s *stubCourseRepo) GetCourse(_ context.Context, id int64) (*course.Course, error) {
	if c, ok := s.courses[id]; ok {
		return c, nil
	}
	return nil, course.ErrNotFound
}

func (s *stubCourseRepo) ListCourses(context.Context) ([]course.Course, error) { return nil, nil }

func (s *stubCourseRepo) ListOccurrences(context.Context, int64) ([]course.SessionOccurrence, error) {
	return s.occurrences, nil
}

func (s *stubCourseRepo) GetOccurrence(_ context.Context, id int64) (*course.SessionOccurrence, error) {
	for i := range s.occurrences {
		if s.occurrences[i].ID == id {
			return &s.occurrences[i], nil
		}
	}
	return nil, course.ErrNotFound
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

type registryStub struct{ next int64 }

func (r *registryStub) OpenSession(context.Context, int64, string) (monitoring.OpenedOccurrence, error) {
	r.next++
	return monitoring.OpenedOccurrence{ID: r.next, SessionNumber: int(r.next)}, nil
}

func (r *registryStub) FinalizeSession(context.Context, int64) error { return nil }

func avg(v float64) *float64 { return &v }

// ─────────────────────────────────────────────────────────────────────────────
// Reports
// ─────────────────────────────────────────────────────────────────────────────

func TestDailyReport(t *testing.T) {
	store := &stubReportStore{
		daily: []StudentDayStats{
			{StudentID: 1, Name: "Aida", AttendanceCount: 4, AvgEngagement: avg(0.72)},
			{StudentID: 2, Name: "Bek", AttendanceCount: 0},
		},
	}
	h := NewDailyReportHandler(store)

	result, err := h.Handle(context.Background(), "2026-03-02")

	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", result.Date)
	require.Len(t, result.Students, 2)
	assert.Nil(t, result.Students[1].AvgEngagement) // absent student keeps null average
}

func TestDailyReportRejectsBadDate(t *testing.T) {
	h := NewDailyReportHandler(&stubReportStore{})

	_, err := h.Handle(context.Background(), "March 2")

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestWeeklyReportComputesWeekBounds(t *testing.T) {
	store := &stubReportStore{}
	h := NewWeeklyReportHandler(store)

	// 2026-03-04 is a Wednesday; its week runs Mon 2nd to Sun 8th.
	result, err := h.Handle(context.Background(), "2026-03-04")

	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", result.StartDate)
	assert.Equal(t, "2026-03-08", result.EndDate)
	assert.Equal(t, [2]string{"2026-03-02", "2026-03-08"}, store.lastRange)
}

func TestCourseReport(t *testing.T) {
	courses := &stubCourseRepo{
		courses: map[int64]*course.Course{
			3: {ID: 3, Name: "Algorithms", Code: "CS201"},
		},
		occurrences: []course.SessionOccurrence{
			{ID: 11, CourseID: 3, SessionNumber: 1, SessionDate: "2026-03-02"},
		},
	}
	store := &stubReportStore{
		courseRows: []StudentCourseStats{{StudentID: 1, Name: "Aida", SessionsPresent: 1}},
	}
	h := NewCourseReportHandler(courses, store)

	result, err := h.Handle(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, "Algorithms", result.Course.Name)
	require.Len(t, result.Occurrences, 1)
	require.Len(t, result.Students, 1)
}

func TestCourseReportUnknownCourse(t *testing.T) {
	h := NewCourseReportHandler(&stubCourseRepo{courses: map[int64]*course.Course{}}, &stubReportStore{})

	_, err := h.Handle(context.Background(), 99)

	assert.ErrorIs(t, err, shared.ErrCourseNotFound)
}

func TestOccurrenceReportRejectsForeignOccurrence(t *testing.T) {
	courses := &stubCourseRepo{
		courses: map[int64]*course.Course{3: {ID: 3}},
		occurrences: []course.SessionOccurrence{
			{ID: 11, CourseID: 4, SessionNumber: 1},
		},
	}
	h := NewOccurrenceReportHandler(courses, &stubReportStore{})

	// Occurrence 11 belongs to course 4, not 3.
	_, err := h.Handle(context.Background(), 3, 11)

	assert.ErrorIs(t, err, shared.ErrOccurrenceNotFound)
}

// ─────────────────────────────────────────────────────────────────────────────
// Dashboard
// ─────────────────────────────────────────────────────────────────────────────

func quietLog() *logger.Logger {
	return logger.New(logger.Options{Level: logger.LevelFatal})
}

func TestDashboard(t *testing.T) {
	store := &stubReportStore{
		dashboard: DashboardCounts{TotalStudents: 20, PresentToday: 14, AvgEngagementToday: avg(0.68)},
	}
	mgr := monitoring.NewManager(&registryStub{})
	_, err := mgr.Start(context.Background(), 30, 1)
	require.NoError(t, err)

	h := NewDashboardHandler(store, nil, mgr, nil, quietLog())

	result, err := h.Handle(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 20, result.TotalStudents)
	assert.Equal(t, 14, result.PresentToday)
	require.NotNil(t, result.Session)
	assert.True(t, result.Session.IsActive)
	assert.NotNil(t, result.PresentNow) // always a list, never null
}

func TestDashboardUsesCache(t *testing.T) {
	store := &stubReportStore{
		dashboard: DashboardCounts{TotalStudents: 20, PresentToday: 14},
	}
	h := NewDashboardHandler(store, nil, monitoring.NewManager(&registryStub{}), newMemoryCache(), quietLog())

	_, err := h.Handle(context.Background())
	require.NoError(t, err)
	_, err = h.Handle(context.Background())
	require.NoError(t, err)

	// The second request is served from the cache.
	assert.Equal(t, 1, store.dashboardCalls)
}

func TestDashboardPropagatesStoreFailure(t *testing.T) {
	store := &stubReportStore{err: errors.New("connection refused")}
	h := NewDashboardHandler(store, nil, monitoring.NewManager(&registryStub{}), nil, quietLog())

	_, err := h.Handle(context.Background())

	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Session status
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionStatusIdle(t *testing.T) {
	h := NewSessionStatusHandler(monitoring.NewManager(&registryStub{}))

	result := h.Handle()

	assert.False(t, result.IsActive)
	assert.Zero(t, result.RemainingSeconds)
	assert.Nil(t, result.CourseID)
	assert.Nil(t, result.CourseSessionID)
}

func TestSessionStatusActive(t *testing.T) {
	mgr := monitoring.NewManager(&registryStub{})
	_, err := mgr.Start(context.Background(), 30, 5)
	require.NoError(t, err)

	result := NewSessionStatusHandler(mgr).Handle()

	assert.True(t, result.IsActive)
	assert.Greater(t, result.RemainingSeconds, 0)
	require.NotNil(t, result.CourseID)
	assert.Equal(t, int64(5), *result.CourseID)
	require.NotNil(t, result.CourseSessionID)
	assert.Equal(t, 1, result.SessionNumber)
}
