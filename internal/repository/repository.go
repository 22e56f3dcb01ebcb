// Package repository implements the storage ports on PostgreSQL via pgx.
package repository

import "github.com/stemsi/enrollment-backend/internal/port"

var (
	_ port.StudentStore      = (*StudentRepository)(nil)
	_ port.CourseStore       = (*CourseRepository)(nil)
	_ port.RegistrationStore = (*RegistrationRepository)(nil)
	_ port.EventLog          = (*EventRepository)(nil)
)
