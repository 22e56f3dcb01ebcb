package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/middleware"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/response"
	"github.com/stemsi/enrollment-backend/internal/service"
	"github.com/stemsi/enrollment-backend/internal/validator"
)

// RegistrationHandler handles registration endpoints.
type RegistrationHandler struct {
	registrationService *service.RegistrationService
	log                 zerolog.Logger
}

// NewRegistrationHandler creates a new RegistrationHandler.
func NewRegistrationHandler(registrationService *service.RegistrationService, log zerolog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
		log:                 log.With().Str("component", "registration_handler").Logger(),
	}
}

// Register godoc
// POST /api/v1/registrations
// Registers a student for a course. Students may only register themselves.
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	claims := middleware.GetClaims(c)
	if claims == nil || !(claims.IsAdmin() || claims.IsStudent(req.StudentID)) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	reg, err := h.registrationService.Register(c.Request.Context(), req)
	if err != nil {
		failAdmission(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"registration": reg})
}

// ListRegistrations godoc
// GET /api/v1/registrations
func (h *RegistrationHandler) ListRegistrations(c *gin.Context) {
	regs, err := h.registrationService.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list registrations")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessList(c, http.StatusOK, gin.H{"registrations": regs}, len(regs))
}

// CancelRegistration godoc
// DELETE /api/v1/registrations/:id
// Cancels a registration. Students may only cancel their own.
func (h *RegistrationHandler) CancelRegistration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	if !claims.IsAdmin() {
		reg, err := h.registrationService.Get(c.Request.Context(), id)
		if service.IsNotFound(err) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		if err != nil {
			h.log.Error().Err(err).Str("registration_id", id.String()).Msg("Failed to get registration")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if !claims.IsStudent(reg.StudentID) {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
	}

	reg, err := h.registrationService.Cancel(c.Request.Context(), id)
	if err != nil {
		failAdmission(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"registration": reg})
}
