package service

import (
	"ChainAcademy/internal/service/auth"
	"ChainAcademy/internal/service/course"
	"ChainAcademy/internal/service/enrollment"
	"ChainAcademy/internal/service/metrics"
	"ChainAcademy/internal/service/progress"
)

type Collection struct {
	Auth        *auth.AuthService
	Courses     *course.CourseService
	Progress    *progress.ProgressService
	Enrollments *enrollment.EnrollmentService
	Metrics     *metrics.MetricsService
}
