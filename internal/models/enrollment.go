package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentRow is an enrollment joined with its course, as stored.
type EnrollmentRow struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	CourseID       int
	Status         string
	EnrolledAt     time.Time
	LastAccessedAt *time.Time
	Metadata       map[string]any
	Course         Course
}
