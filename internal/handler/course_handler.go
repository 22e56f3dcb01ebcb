package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/response"
	"github.com/stemsi/enrollment-backend/internal/service"
	"github.com/stemsi/enrollment-backend/internal/validator"
)

// CourseHandler handles course catalog endpoints.
type CourseHandler struct {
	courseService *service.CourseService
	log           zerolog.Logger
}

// NewCourseHandler creates a new CourseHandler.
func NewCourseHandler(courseService *service.CourseService, log zerolog.Logger) *CourseHandler {
	return &CourseHandler{
		courseService: courseService,
		log:           log.With().Str("component", "course_handler").Logger(),
	}
}

// ListCourses godoc
// GET /api/v1/courses
// Lists all courses with occupied seats and window state.
func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.courseService.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list courses")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessList(c, http.StatusOK, gin.H{"courses": courses}, len(courses))
}

// ListAvailableCourses godoc
// GET /api/v1/courses/available
// Lists courses whose window is open and that still have free seats.
func (h *CourseHandler) ListAvailableCourses(c *gin.Context) {
	courses, err := h.courseService.ListAvailable(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list available courses")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessList(c, http.StatusOK, gin.H{"courses": courses}, len(courses))
}

// GetCourse godoc
// GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	course, err := h.courseService.Get(c.Request.Context(), id)
	if service.IsNotFound(err) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("course_id", id).Msg("Failed to get course")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"course": course})
}

// CreateCourse godoc
// POST /api/v1/courses
// Creates a course. Local date-times are read in the governing time zone.
func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req model.CreateCourseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	course, err := h.courseService.Create(c.Request.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidWindow):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"closes_at": "closes_at must be after opens_at",
		})
		return
	case errors.Is(err, service.ErrInvalidInstant):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"reason": err.Error(),
		})
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to create course")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"course": course})
}

// DeleteCourse godoc
// DELETE /api/v1/courses/:id
// Deletes a course together with its registrations.
func (h *CourseHandler) DeleteCourse(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	err := h.courseService.Delete(c.Request.Context(), id)
	if service.IsNotFound(err) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("course_id", id).Msg("Failed to delete course")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "course deleted successfully"})
}

// ListCourseRegistrations godoc
// GET /api/v1/courses/:id/registrations
func (h *CourseHandler) ListCourseRegistrations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	regs, err := h.courseService.ListRegistrations(c.Request.Context(), id)
	if service.IsNotFound(err) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("course_id", id).Msg("Failed to list course registrations")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessList(c, http.StatusOK, gin.H{"registrations": regs}, len(regs))
}
