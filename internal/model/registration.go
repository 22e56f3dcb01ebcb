package model

import (
	"time"

	"github.com/google/uuid"
)

// Registration is a committed seat of a student in a course.
type Registration struct {
	ID           uuid.UUID `json:"id"`
	StudentID    int       `json:"student_id"`
	CourseID     int       `json:"course_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegistrationDetail enriches Registration with student and course names.
type RegistrationDetail struct {
	Registration
	StudentName string `json:"student_name"`
	CourseName  string `json:"course_name"`
}

// RegisterRequest is the payload for registering a student to a course.
type RegisterRequest struct {
	StudentID int `json:"student_id" binding:"required,min=1"`
	CourseID  int `json:"course_id" binding:"required,min=1"`
}
