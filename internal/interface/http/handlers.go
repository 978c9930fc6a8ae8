package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/classpulse/classpulse-backend/internal/application/command"
	"github.com/classpulse/classpulse-backend/internal/application/query"
	"github.com/classpulse/classpulse-backend/internal/domain/monitoring"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// validate is the shared request validator. DTOs carry `validate` tags;
// anything deeper is checked by the command's own Validate.
var validate = validator.New()

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "ClassPulse API",
		"version":     "v1",
		"description": "Classroom presence and attention monitoring backend",
		"endpoints": map[string]string{
			"health":    "/health",
			"session":   "/api/v1/session/status",
			"students":  "/api/v1/students",
			"courses":   "/api/v1/courses",
			"reports":   "/api/v1/reports/daily",
			"dashboard": "/api/v1/dashboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// startSessionRequest is the POST /api/v1/session/start payload.
type startSessionRequest struct {
	CourseID        int64 `json:"course_id" validate:"required,gt=0"`
	DurationMinutes int   `json:"duration_minutes" validate:"gte=0"`
}

// handleSessionStart handles POST /api/v1/session/start
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.StartSession.Handle(r.Context(), command.StartSessionCommand{
		CourseID:        req.CourseID,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to start session")
		return
	}

	writeJSON(w, http.StatusOK, sessionSnapshotResponse(result.Snapshot))
}

// handleSessionStop handles POST /api/v1/session/stop
func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.StopSession.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to stop session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stopped":           result.Stopped.CourseSessionID != 0,
		"course_id":         optionalID(result.Stopped.CourseID),
		"course_session_id": optionalID(result.Stopped.CourseSessionID),
	})
}

// handleSessionStatus handles GET /api/v1/session/status
func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.SessionStatus.Handle())
}

// sessionSnapshotResponse shapes a session snapshot for the API.
func sessionSnapshotResponse(snap monitoring.Snapshot) map[string]interface{} {
	resp := map[string]interface{}{
		"is_active":        snap.Active,
		"duration_minutes": snap.DurationMinutes,
	}
	if snap.Active {
		resp["course_id"] = snap.CourseID
		resp["course_session_id"] = snap.CourseSessionID
		resp["session_number"] = snap.SessionNumber
		resp["started_at"] = snap.StartedAt
		resp["ends_at"] = snap.EndsAt
	}
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// INGESTION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// processFrameRequest is the POST /api/v1/ai/process-frame payload, pushed
// by the recognition process once per frame interval. Detections must be
// present (an empty array is a valid "nobody seen" batch; a missing field is
// not), so the DTO keeps pointer semantics for it.
type processFrameRequest struct {
	Detections []monitoring.Detection         `json:"detections"`
	Engagement []monitoring.EngagementReading `json:"engagement"`

	SessionDate string `json:"session_date" validate:"omitempty,datetime=2006-01-02"`
	SessionTime string `json:"session_time" validate:"omitempty,datetime=15:04:05"`
}

// handleProcessFrame handles POST /api/v1/ai/process-frame
func (s *Server) handleProcessFrame(w http.ResponseWriter, r *http.Request) {
	var req processFrameRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.ProcessFrame.Handle(r.Context(), command.ProcessFrameCommand{
		Detections:  req.Detections,
		Engagement:  req.Engagement,
		SessionDate: req.SessionDate,
		SessionTime: req.SessionTime,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to process frame")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// recordEngagementRequest is the POST /api/v1/ai/engagement payload.
type recordEngagementRequest struct {
	StudentID      int64    `json:"student_id" validate:"required,gt=0"`
	AttentionScore *float64 `json:"attention_score" validate:"required"`
	EyesOpen       *bool    `json:"eyes_open"`
	FacingCamera   *bool    `json:"facing_camera"`

	SessionDate string `json:"session_date" validate:"omitempty,datetime=2006-01-02"`
	SessionTime string `json:"session_time" validate:"omitempty,datetime=15:04:05"`
}

// handleRecordEngagement handles POST /api/v1/ai/engagement
func (s *Server) handleRecordEngagement(w http.ResponseWriter, r *http.Request) {
	var req recordEngagementRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordEngagement.Handle(r.Context(), command.RecordEngagementCommand{
		StudentID:      req.StudentID,
		AttentionScore: req.AttentionScore,
		EyesOpen:       req.EyesOpen,
		FacingCamera:   req.FacingCamera,
		SessionDate:    req.SessionDate,
		SessionTime:    req.SessionTime,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record engagement")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleEngagementHistory handles GET /api/v1/ai/engagement/{studentID}
func (s *Server) handleEngagementHistory(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(w, r, "studentID")
	if !ok {
		return
	}

	result, err := s.deps.EngagementHistory.Handle(r.Context(), query.EngagementHistoryQuery{
		StudentID: studentID,
		Date:      getQueryParam(r, "date", ""),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load engagement history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListEncodings handles GET /api/v1/ai/encodings. The recognition
// process pulls the full encoding set at startup.
func (s *Server) handleListEncodings(w http.ResponseWriter, r *http.Request) {
	encodings, err := s.deps.Roster.Encodings(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load encodings")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, encodings, &ResponseMeta{TotalCount: len(encodings)})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE HANDLERS
// Manual attendance entry and the raw attendance log. Unlike the ingestion
// routes these serve a human operator, so they sit outside the API key guard.
// ══════════════════════════════════════════════════════════════════════════════

// recordAttendanceRequest is the POST /api/v1/attendance payload.
type recordAttendanceRequest struct {
	StudentID int64 `json:"student_id" validate:"required,gt=0"`

	SessionDate string `json:"session_date" validate:"omitempty,datetime=2006-01-02"`
	SessionTime string `json:"session_time" validate:"omitempty,datetime=15:04:05"`
}

// handleRecordAttendance handles POST /api/v1/attendance
func (s *Server) handleRecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req recordAttendanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordAttendance.Handle(r.Context(), command.RecordAttendanceCommand{
		StudentID:   req.StudentID,
		SessionDate: req.SessionDate,
		SessionTime: req.SessionTime,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record attendance")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// bulkAttendanceRequest is the POST /api/v1/attendance/bulk payload.
type bulkAttendanceRequest struct {
	StudentIDs []int64 `json:"student_ids" validate:"required,min=1"`

	SessionDate string `json:"session_date" validate:"omitempty,datetime=2006-01-02"`
	SessionTime string `json:"session_time" validate:"omitempty,datetime=15:04:05"`
}

// handleBulkAttendance handles POST /api/v1/attendance/bulk
func (s *Server) handleBulkAttendance(w http.ResponseWriter, r *http.Request) {
	var req bulkAttendanceRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.RecordAttendance.HandleBulk(r.Context(), command.BulkAttendanceCommand{
		StudentIDs:  req.StudentIDs,
		SessionDate: req.SessionDate,
		SessionTime: req.SessionTime,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to record bulk attendance")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleAttendanceLog handles GET /api/v1/attendance?date=YYYY-MM-DD or
// ?student_id=N. With neither filter it serves today's log.
func (s *Server) handleAttendanceLog(w http.ResponseWriter, r *http.Request) {
	q := query.AttendanceQuery{Date: getQueryParam(r, "date", "")}

	if raw := getQueryParam(r, "student_id", ""); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "student_id must be a positive integer")
			return
		}
		q.StudentID = id
	}

	result, err := s.deps.Attendance.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load attendance")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.Count})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// enrollStudentRequest is the POST /api/v1/students payload. Encodings are
// base64 within JSON ([]byte round-trips that way) and optional at
// enrollment.
type enrollStudentRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=200"`
	PhotoPath string   `json:"photo_path" validate:"omitempty,max=500"`
	Encodings [][]byte `json:"encodings"`
}

// handleEnrollStudent handles POST /api/v1/students
func (s *Server) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	var req enrollStudentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	student, err := s.deps.EnrollStudent.Handle(r.Context(), command.EnrollStudentCommand{
		Name:      req.Name,
		PhotoPath: req.PhotoPath,
		Encodings: req.Encodings,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to enroll student")
		return
	}

	writeJSON(w, http.StatusCreated, student)
}

// handleListStudents handles GET /api/v1/students
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.deps.Roster.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list students")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, students, &ResponseMeta{TotalCount: len(students)})
}

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	student, err := s.deps.Roster.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load student")
		return
	}

	writeJSON(w, http.StatusOK, student)
}

// handleRemoveStudent handles DELETE /api/v1/students/{id}
func (s *Server) handleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := s.deps.RemoveStudent.Handle(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err, "failed to remove student")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// createCourseRequest is the POST /api/v1/courses payload.
type createCourseRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
	Code string `json:"code" validate:"omitempty,max=50"`
}

// handleCreateCourse handles POST /api/v1/courses
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	created, err := s.deps.CreateCourse.Handle(r.Context(), command.CreateCourseCommand{
		Name: req.Name,
		Code: req.Code,
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to create course")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleListCourses handles GET /api/v1/courses
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.deps.CourseCatalog.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to list courses")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, courses, &ResponseMeta{TotalCount: len(courses)})
}

// handleCourseOccurrences handles GET /api/v1/courses/{id}/sessions
func (s *Server) handleCourseOccurrences(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.deps.CourseCatalog.Occurrences(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to load course sessions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT & DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleDailyReport handles GET /api/v1/reports/daily?date=YYYY-MM-DD
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.DailyReport.Handle(r.Context(), getQueryParam(r, "date", ""))
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build daily report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleWeeklyReport handles GET /api/v1/reports/weekly?date=YYYY-MM-DD
func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.WeeklyReport.Handle(r.Context(), getQueryParam(r, "date", ""))
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build weekly report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleOverallReport handles GET /api/v1/reports/overall
func (s *Server) handleOverallReport(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.OverallReport.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build overall report")
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleCourseReport handles GET /api/v1/reports/course/{id}
func (s *Server) handleCourseReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.deps.CourseReport.Handle(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build course report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleOccurrenceReport handles GET /api/v1/reports/course/{id}/session/{sessionID}
func (s *Server) handleOccurrenceReport(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sessionID, ok := pathID(w, r, "sessionID")
	if !ok {
		return
	}

	result, err := s.deps.OccurrenceReport.Handle(r.Context(), courseID, sessionID)
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build session report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleStudentReport handles GET /api/v1/reports/student/{id} with optional
// start_date and end_date bounds.
func (s *Server) handleStudentReport(w http.ResponseWriter, r *http.Request) {
	studentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := s.deps.StudentReport.Handle(r.Context(), query.StudentReportQuery{
		StudentID: studentID,
		StartDate: getQueryParam(r, "start_date", ""),
		EndDate:   getQueryParam(r, "end_date", ""),
	})
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build student report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleDashboard handles GET /api/v1/dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Dashboard.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err, "failed to build dashboard")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST PLUMBING
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody decodes and validates a JSON request body. It writes the error
// response itself and reports whether the handler should proceed.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is required")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeJSONError(w, http.StatusBadRequest, "validation_error", validationMessage(verrs[0]))
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "validation_error", "Invalid request")
		return false
	}

	return true
}

// validationMessage renders one field error in a stable, friendly form.
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt", "gte":
		return fe.Field() + " must be positive"
	case "min", "max":
		return fe.Field() + " has invalid length"
	case "datetime":
		return fe.Field() + " has invalid format"
	default:
		return fe.Field() + " is invalid"
	}
}

// pathID parses a positive int64 path segment. It writes the error response
// itself and reports whether the handler should proceed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// writeDomainError maps domain errors onto HTTP statuses: validation
// failures are the caller's fault, missing entities are 404, storage
// failures are a bad gateway so that the recognition process can tell
// "resend later" apart from "fix the payload".
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, shared.ErrAlreadyExists):
		writeJSONError(w, http.StatusConflict, "already_exists", err.Error())
	case shared.IsPersistence(err):
		s.logger.Error(msg, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusBadGateway, "storage_unavailable", msg)
	default:
		s.logger.Error(msg, logger.Err(err), logger.String("request_id", getRequestID(r.Context())))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", msg)
	}
}

// optionalID renders a zero ID as null in JSON payloads.
func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
