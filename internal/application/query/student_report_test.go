package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/roster"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/timeutil"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type stubRecordStore struct {
	attendance []monitoring.AttendanceRecord

	lastDate    string
	lastStudent int64
	lastBounds  [2]string
	err         error
}

func (s *stubRecordStore) RecordAttendance(context.Context, *monitoring.AttendanceRecord) error {
	return s.err
}

func (s *stubRecordStore) RecordEngagement(context.Context, *monitoring.EngagementRecord) error {
	return s.err
}

func (s *stubRecordStore) EngagementByStudent(context.Context, int64, string) ([]monitoring.EngagementRecord, error) {
	return nil, s.err
}

func (s *stubRecordStore) AverageEngagement(context.Context, int64, string) (float64, int, error) {
	return 0, 0, s.err
}

func (s *stubRecordStore) AttendanceByDate(_ context.Context, date string) ([]monitoring.AttendanceRecord, error) {
	s.lastDate = date
	return s.attendance, s.err
}

func (s *stubRecordStore) AttendanceByStudent(_ context.Context, studentID int64, start, end string) ([]monitoring.AttendanceRecord, error) {
	s.lastStudent = studentID
	s.lastBounds = [2]string{start, end}
	return s.attendance, s.err
}

type stubRoster struct {
	students map[int64]*roster.Student
}

func (s *stubRoster) Create(context.Context, *roster.Student) error { return nil }

func (s *stubRoster) GetByID(_ context.Context, id int64) (*roster.Student, error) {
	if st, ok := s.students[id]; ok {
		return st, nil
	}
	return nil, roster.ErrNotFound
}

func (s *stubRoster) List(context.Context) ([]roster.Student, error) { return nil, nil }

func (s *stubRoster) Delete(context.Context, int64) error { return nil }

func (s *stubRoster) AddEncoding(context.Context, *roster.Encoding) error { return nil }

func (s *stubRoster) ListEncodings(context.Context) ([]roster.Encoding, error) { return nil, nil }

type stubPresence struct {
	present  bool
	lastSeen time.Time
	err      error
}

func (s *stubPresence) IsPresent(context.Context, int64) (bool, error) {
	return s.present, s.err
}

func (s *stubPresence) LastSeen(context.Context, int64) (time.Time, error) {
	return s.lastSeen, s.err
}

// ─────────────────────────────────────────────────────────────────────────────
// Attendance log
// ─────────────────────────────────────────────────────────────────────────────

func TestAttendanceDefaultsToToday(t *testing.T) {
	store := &stubRecordStore{attendance: []monitoring.AttendanceRecord{{ID: 1, StudentID: 3}}}
	h := NewAttendanceHandler(store)

	result, err := h.Handle(context.Background(), AttendanceQuery{})

	require.NoError(t, err)
	assert.Equal(t, timeutil.Today(), store.lastDate)
	assert.Equal(t, 1, result.Count)
}

func TestAttendanceStudentFilterWins(t *testing.T) {
	store := &stubRecordStore{}
	h := NewAttendanceHandler(store)

	result, err := h.Handle(context.Background(), AttendanceQuery{Date: "2026-03-02", StudentID: 3})

	require.NoError(t, err)
	assert.Equal(t, int64(3), store.lastStudent)
	assert.Empty(t, store.lastDate, "student filter must bypass the date lookup")
	assert.NotNil(t, result.Records)
	assert.Zero(t, result.Count)
}

func TestAttendanceValidation(t *testing.T) {
	h := NewAttendanceHandler(&stubRecordStore{})

	_, err := h.Handle(context.Background(), AttendanceQuery{StudentID: -1})
	assert.ErrorIs(t, err, shared.ErrStudentIDRequired)

	_, err = h.Handle(context.Background(), AttendanceQuery{Date: "03/02/2026"})
	assert.True(t, shared.IsValidation(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// Student report
// ─────────────────────────────────────────────────────────────────────────────

func studentReportFixture() (*stubRoster, *stubRecordStore, *stubReportStore) {
	students := &stubRoster{students: map[int64]*roster.Student{
		3: {ID: 3, Name: "Aliya", PhotoPath: "photos/3.jpg"},
	}}
	records := &stubRecordStore{attendance: []monitoring.AttendanceRecord{
		{ID: 3, StudentID: 3, SessionDate: "2026-03-03", SessionTime: "09:02:11"},
		{ID: 2, StudentID: 3, SessionDate: "2026-03-02", SessionTime: "11:00:00"},
		{ID: 1, StudentID: 3, SessionDate: "2026-03-02", SessionTime: "09:01:40"},
	}}
	reports := &stubReportStore{byDate: []DailyEngagement{
		{Date: "2026-03-03", AvgEngagement: 0.9, SampleCount: 4},
		{Date: "2026-03-02", AvgEngagement: 0.5, SampleCount: 12},
	}}
	return students, records, reports
}

func TestStudentReport(t *testing.T) {
	students, records, reports := studentReportFixture()
	h := NewStudentReportHandler(students, records, reports, nil)

	result, err := h.Handle(context.Background(), StudentReportQuery{StudentID: 3})

	require.NoError(t, err)
	assert.Equal(t, "Aliya", result.Student.Name)
	assert.Equal(t, "all", result.Period.StartDate)
	assert.Equal(t, "all", result.Period.EndDate)

	// Two distinct dates across three rows.
	assert.Equal(t, 2, result.Statistics.TotalAttendanceDays)
	// Mean of the per-day averages, not of the raw samples.
	assert.InDelta(t, 0.7, result.Statistics.AvgEngagement, 1e-9)
	assert.Equal(t, 16, result.Statistics.EngagementSamples)

	assert.Len(t, result.Attendance, 3)
	assert.Len(t, result.EngagementByDate, 2)
	assert.Nil(t, result.Live, "no presence checker wired, no live section")
}

func TestStudentReportPeriodBounds(t *testing.T) {
	students, records, reports := studentReportFixture()
	h := NewStudentReportHandler(students, records, reports, nil)

	result, err := h.Handle(context.Background(), StudentReportQuery{
		StudentID: 3,
		StartDate: "2026-03-01",
		EndDate:   "2026-03-31",
	})

	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", result.Period.StartDate)
	assert.Equal(t, "2026-03-31", result.Period.EndDate)
	assert.Equal(t, [2]string{"2026-03-01", "2026-03-31"}, records.lastBounds)
	assert.Equal(t, [2]string{"2026-03-01", "2026-03-31"}, reports.lastByDate)
}

func TestStudentReportUnknownStudent(t *testing.T) {
	students, records, reports := studentReportFixture()
	h := NewStudentReportHandler(students, records, reports, nil)

	_, err := h.Handle(context.Background(), StudentReportQuery{StudentID: 99})

	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}

func TestStudentReportValidation(t *testing.T) {
	students, records, reports := studentReportFixture()
	h := NewStudentReportHandler(students, records, reports, nil)

	_, err := h.Handle(context.Background(), StudentReportQuery{})
	assert.ErrorIs(t, err, shared.ErrStudentIDRequired)

	_, err = h.Handle(context.Background(), StudentReportQuery{StudentID: 3, StartDate: "march 1"})
	assert.True(t, shared.IsValidation(err))
}

func TestStudentReportLiveSection(t *testing.T) {
	seen := time.Date(2026, 3, 3, 9, 2, 11, 0, time.UTC)

	tests := []struct {
		name     string
		presence *stubPresence
		want     *LivePresence
	}{
		{
			name:     "present with last seen",
			presence: &stubPresence{present: true, lastSeen: seen},
			want:     &LivePresence{PresentNow: true, LastSeen: &seen},
		},
		{
			name:     "absent",
			presence: &stubPresence{present: false},
			want:     &LivePresence{PresentNow: false},
		},
		{
			name:     "lookup failure drops the section",
			presence: &stubPresence{err: errors.New("connection refused")},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, records, reports := studentReportFixture()
			h := NewStudentReportHandler(students, records, reports, tt.presence)

			result, err := h.Handle(context.Background(), StudentReportQuery{StudentID: 3})

			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Live)
		})
	}
}
