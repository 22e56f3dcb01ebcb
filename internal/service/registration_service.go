package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/admission"
	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

const publishTimeout = 2 * time.Second

// EventPublisher fans out committed registration changes.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.RegistrationEvent) error
}

// RegistrationService wraps the admission controller and announces its commits.
type RegistrationService struct {
	controller    *admission.Controller
	courses       port.CourseCatalog
	registrations port.RegistrationStore
	publisher     EventPublisher
	log           zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService. publisher may be nil.
func NewRegistrationService(
	controller *admission.Controller,
	courses port.CourseCatalog,
	registrations port.RegistrationStore,
	publisher EventPublisher,
	log zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		controller:    controller,
		courses:       courses,
		registrations: registrations,
		publisher:     publisher,
		log:           log.With().Str("component", "registration_service").Logger(),
	}
}

// Register admits a student into a course. Failures are *admission.Error.
func (s *RegistrationService) Register(ctx context.Context, req model.RegisterRequest) (*model.Registration, error) {
	reg, err := s.controller.Register(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, model.EventRegistered, reg)
	return reg, nil
}

// Cancel withdraws a registration. Failures are *admission.Error.
func (s *RegistrationService) Cancel(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	reg, err := s.controller.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, model.EventCancelled, reg)
	return reg, nil
}

// Get retrieves a registration by ID.
func (s *RegistrationService) Get(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return s.registrations.FetchRegistration(ctx, id)
}

// List retrieves every registration with student and course names.
func (s *RegistrationService) List(ctx context.Context) ([]model.RegistrationDetail, error) {
	regs, err := s.registrations.ListRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	if regs == nil {
		regs = []model.RegistrationDetail{}
	}
	return regs, nil
}

// announce publishes ev after a commit. The commit already happened, so
// failures here are logged and swallowed.
func (s *RegistrationService) announce(ctx context.Context, typ model.EventType, reg *model.Registration) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	log := s.log.With().Str("registration_id", reg.ID.String()).Int("course_id", reg.CourseID).Logger()

	course, err := s.courses.FetchCourse(ctx, reg.CourseID)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping event, course lookup failed")
		return
	}
	occupied, err := s.registrations.CountRegistrations(ctx, reg.CourseID)
	if err != nil {
		log.Warn().Err(err).Msg("Skipping event, occupancy count failed")
		return
	}

	ev := model.RegistrationEvent{
		Type:           typ,
		RegistrationID: reg.ID,
		StudentID:      reg.StudentID,
		CourseID:       reg.CourseID,
		OccupiedSeats:  occupied,
		Capacity:       course.Capacity,
		OccurredAt:     s.controller.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("type", string(typ)).Msg("Failed to publish registration event")
	}
}
