package models

import "ChainAcademy/pkg/tracker"

// The HTTP API and the client library share one wire schema.
type (
	ProgressRecord = tracker.ProgressRecord
	ProgressKey    = tracker.Key
	ModuleID       = tracker.ModuleID
	Enrollment     = tracker.Enrollment
	CourseSummary  = tracker.CourseSummary
	CourseProgress = tracker.CourseProgress
	CourseStat     = tracker.CourseStat
	UserMetrics    = tracker.UserMetrics
	EnrollRequest  = tracker.EnrollRequest
)

const (
	EnrollmentActive    = tracker.EnrollmentActive
	EnrollmentCompleted = tracker.EnrollmentCompleted
)
