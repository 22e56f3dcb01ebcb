package service

import (
	"context"
	"errors"
	"strings"

	"github.com/stemsi/enrollment-backend/internal/model"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// StudentService handles student business logic.
type StudentService struct {
	students port.StudentStore
}

// NewStudentService creates a new StudentService.
func NewStudentService(students port.StudentStore) *StudentService {
	return &StudentService{students: students}
}

// Create registers a new student. Emails are unique case-insensitively.
func (s *StudentService) Create(ctx context.Context, req model.CreateStudentRequest) (*model.Student, error) {
	student := &model.Student{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
	}
	if err := s.students.CreateStudent(ctx, student); err != nil {
		if errors.Is(err, port.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return student, nil
}

// Get retrieves a student by ID.
func (s *StudentService) Get(ctx context.Context, id int) (*model.Student, error) {
	return s.students.GetStudent(ctx, id)
}

// List retrieves all students.
func (s *StudentService) List(ctx context.Context) ([]model.Student, error) {
	students, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	if students == nil {
		students = []model.Student{}
	}
	return students, nil
}

// Delete removes a student together with their registrations.
func (s *StudentService) Delete(ctx context.Context, id int) error {
	return s.students.DeleteStudent(ctx, id)
}
