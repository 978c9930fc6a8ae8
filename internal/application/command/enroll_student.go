package command

import (
	"context"
	"errors"

	"github.com/classpulse/classpulse-backend/internal/domain/roster"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand adds a student to the roster, optionally with face
// encodings captured at enrollment time.
type EnrollStudentCommand struct {
	Name      string
	PhotoPath string
	Encodings [][]byte
}

// Validate validates the command.
func (c EnrollStudentCommand) Validate() error {
	if c.Name == "" {
		return shared.ErrStudentNameRequired
	}
	return nil
}

// EnrollStudentHandler handles the EnrollStudentCommand.
type EnrollStudentHandler struct {
	students roster.Repository
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(students roster.Repository, events shared.EventPublisher, log *logger.Logger) *EnrollStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &EnrollStudentHandler{students: students, events: events, log: log}
}

// Handle enrolls the student and stores any provided encodings.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*roster.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	student := &roster.Student{
		Name:      cmd.Name,
		PhotoPath: cmd.PhotoPath,
	}

	if err := h.students.Create(ctx, student); err != nil {
		if errors.Is(err, shared.ErrStudentAlreadyExists) {
			return nil, err
		}
		return nil, shared.Persistence("roster", "EnrollStudent", err)
	}

	for _, enc := range cmd.Encodings {
		if len(enc) == 0 {
			continue
		}
		if err := h.students.AddEncoding(ctx, &roster.Encoding{StudentID: student.ID, Data: enc}); err != nil {
			// The student row exists; a failed encoding insert is reported,
			// not rolled back, so re-capturing the face can fix it.
			return nil, shared.Persistence("roster", "EnrollStudent", err)
		}
	}

	h.log.Info("student enrolled",
		logger.StudentID(student.ID),
		logger.String("name", student.Name),
		logger.Int("encodings", len(cmd.Encodings)),
	)

	if h.events != nil {
		_ = h.events.Publish(shared.StudentEnrolledEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventStudentEnrolled, formatAggregateID(student.ID)),
			StudentID: student.ID,
			Name:      student.Name,
		})
	}

	return student, nil
}

// RemoveStudentHandler removes a student and their encodings from the roster.
type RemoveStudentHandler struct {
	students roster.Repository
	events   shared.EventPublisher
	log      *logger.Logger
}

// NewRemoveStudentHandler creates a new RemoveStudentHandler.
func NewRemoveStudentHandler(students roster.Repository, events shared.EventPublisher, log *logger.Logger) *RemoveStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RemoveStudentHandler{students: students, events: events, log: log}
}

// Handle removes the student.
func (h *RemoveStudentHandler) Handle(ctx context.Context, studentID int64) error {
	if studentID <= 0 {
		return shared.ErrStudentIDRequired
	}

	if err := h.students.Delete(ctx, studentID); err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return err
		}
		return shared.Persistence("roster", "RemoveStudent", err)
	}

	h.log.Info("student removed", logger.StudentID(studentID))

	if h.events != nil {
		_ = h.events.Publish(shared.StudentRemovedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventStudentRemoved, formatAggregateID(studentID)),
			StudentID: studentID,
		})
	}

	return nil
}
