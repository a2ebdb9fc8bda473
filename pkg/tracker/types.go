package tracker

import (
	"time"

	"github.com/google/uuid"
)

const (
	EnrollmentActive    = "active"
	EnrollmentCompleted = "completed"
)

type CourseSummary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	LogoURL     string `json:"logoUrl,omitempty"`
}

// Enrollment is an element of GET /api/enrollments.
type Enrollment struct {
	ID             uuid.UUID      `json:"id"`
	CourseID       int            `json:"courseId"`
	Status         string         `json:"status"`
	Progress       float64        `json:"progress"`
	EnrolledAt     time.Time      `json:"enrolledAt"`
	LastAccessedAt *time.Time     `json:"lastAccessedAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Course         CourseSummary  `json:"course"`
}

// CourseProgress is an element of GET /api/enrollments/progress.
type CourseProgress struct {
	CourseID int     `json:"courseId"`
	Progress float64 `json:"progress"`
}

type CourseStat struct {
	CourseID          int    `json:"courseId"`
	Title             string `json:"title"`
	TotalLearningTime int    `json:"totalLearningTime"`
	CompletedQuizzes  int    `json:"completedQuizzes"`
	ContinuePath      string `json:"continuePath"`
}

// UserMetrics is the body of GET /api/user/metrics.
type UserMetrics struct {
	TotalLearningMinutes int          `json:"totalLearningMinutes"`
	CompletedQuizzes     int          `json:"completedQuizzes"`
	EarnedBadges         int          `json:"earnedBadges"`
	LearningStreak       int          `json:"learningStreak"`
	CourseStats          []CourseStat `json:"courseStats"`
}

type EnrollRequest struct {
	CourseID int `json:"courseId"`
}

type ErrorBody struct {
	Message string `json:"message"`
}
