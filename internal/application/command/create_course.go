package command

import (
	"context"
	"strings"

	"github.com/classpulse/classpulse-backend/internal/domain/course"
	"github.com/classpulse/classpulse-backend/internal/domain/shared"
	"github.com/classpulse/classpulse-backend/pkg/logger"
)

// CreateCourseCommand registers a course that sessions can be opened against.
type CreateCourseCommand struct {
	Name string
	Code string
}

// Validate validates the command.
func (c CreateCourseCommand) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return course.ErrNameRequired
	}
	return nil
}

// CreateCourseHandler handles the CreateCourseCommand.
type CreateCourseHandler struct {
	courses course.Repository
	log     *logger.Logger
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(courses course.Repository, log *logger.Logger) *CreateCourseHandler {
	if log == nil {
		log = logger.Default()
	}
	return &CreateCourseHandler{courses: courses, log: log}
}

// Handle creates the course.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*course.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	c := &course.Course{
		Name: strings.TrimSpace(cmd.Name),
		Code: strings.TrimSpace(cmd.Code),
	}

	if err := h.courses.CreateCourse(ctx, c); err != nil {
		return nil, shared.Persistence("course", "CreateCourse", err)
	}

	h.log.Info("course created",
		logger.CourseID(c.ID),
		logger.String("name", c.Name),
	)

	return c, nil
}
