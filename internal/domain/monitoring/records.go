package monitoring

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTED RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceRecord is one durable "student was observed present" row.
// CourseID/CourseSessionID are set iff the batch that produced the row was
// gated by a course-bound active session.
type AttendanceRecord struct {
	ID              int64     `json:"id"`
	StudentID       int64     `json:"student_id"`
	SessionDate     string    `json:"session_date"` // YYYY-MM-DD
	SessionTime     string    `json:"session_time"` // HH:MM:SS
	CourseID        *int64    `json:"course_id,omitempty"`
	CourseSessionID *int64    `json:"course_session_id,omitempty"`
	DetectedAt      time.Time `json:"detected_at"`
}

// EngagementRecord is one durable attention reading for a student.
type EngagementRecord struct {
	ID              int64     `json:"id"`
	StudentID       int64     `json:"student_id"`
	SessionDate     string    `json:"session_date"`
	SessionTime     string    `json:"session_time"`
	AttentionScore  float64   `json:"attention_score"`
	EyesOpen        bool      `json:"eyes_open"`
	FacingCamera    bool      `json:"facing_camera"`
	CourseID        *int64    `json:"course_id,omitempty"`
	CourseSessionID *int64    `json:"course_session_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// ══════════════════════════════════════════════════════════════════════════════
// RAW OBSERVATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Detection is a raw presence observation from the recognition process.
type Detection struct {
	StudentID int64 `json:"student_id"`
}

// EngagementReading is a raw attention reading from the recognition process.
// Score defaults to 0 when absent; EyesOpen and FacingCamera default to true
// unless explicitly false, matching the producer's wire format.
type EngagementReading struct {
	StudentID      int64    `json:"student_id"`
	AttentionScore *float64 `json:"attention_score"`
	EyesOpen       *bool    `json:"eyes_open"`
	FacingCamera   *bool    `json:"facing_camera"`
}

// Score returns the attention score with the zero default applied.
func (r EngagementReading) Score() float64 {
	if r.AttentionScore == nil {
		return 0
	}
	return *r.AttentionScore
}

// EyesOpenValue returns eyes_open with the true default applied.
func (r EngagementReading) EyesOpenValue() bool {
	return r.EyesOpen == nil || *r.EyesOpen
}

// FacingCameraValue returns facing_camera with the true default applied.
func (r EngagementReading) FacingCameraValue() bool {
	return r.FacingCamera == nil || *r.FacingCamera
}
