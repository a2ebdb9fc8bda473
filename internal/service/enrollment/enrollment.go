package enrollment

import (
	"context"

	"github.com/google/uuid"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
	"ChainAcademy/pkg/tracker"
)

type enrollmentRepo interface {
	Enroll(ctx context.Context, userID uuid.UUID, courseID int) (*models.EnrollmentRow, error)
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentRow, error)
}

type courseRepo interface {
	CourseByID(ctx context.Context, id int) (*models.Course, error)
}

type progressRepo interface {
	ListProgress(ctx context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error)
}

type logoRepo interface {
	GetLogoURL(ctx context.Context, objectKey string) (string, error)
}

type EnrollmentService struct {
	log            logger.Log
	enrollmentRepo enrollmentRepo
	courseRepo     courseRepo
	progressRepo   progressRepo
	logoRepo       logoRepo
}

// NewEnrollmentService builds the service; l may be nil when object storage
// is not configured, in which case enrollments carry no logo URL.
func NewEnrollmentService(log logger.Log, e enrollmentRepo, c courseRepo, p progressRepo, l logoRepo) *EnrollmentService {
	return &EnrollmentService{
		log:            log,
		enrollmentRepo: e,
		courseRepo:     c,
		progressRepo:   p,
		logoRepo:       l,
	}
}

func (s *EnrollmentService) Enroll(ctx context.Context, userID uuid.UUID, courseID int) (models.Enrollment, error) {
	if courseID <= 0 {
		return models.Enrollment{}, app_errors.ErrCourseRequired
	}
	course, err := s.courseRepo.CourseByID(ctx, courseID)
	if err != nil {
		return models.Enrollment{}, err
	}
	row, err := s.enrollmentRepo.Enroll(ctx, userID, courseID)
	if err != nil {
		return models.Enrollment{}, err
	}
	row.Course = *course

	// Progress made before enrolling still counts.
	records, err := s.progressRepo.ListProgress(ctx, userID, courseID)
	if err != nil {
		return models.Enrollment{}, err
	}
	s.log.Info("user enrolled", "user_id", userID.String(), "course_id", courseID)
	return s.toEnrollment(ctx, *row, records), nil
}

func (s *EnrollmentService) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	rows, err := s.enrollmentRepo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.progressRepo.ListProgress(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	enrollments := make([]models.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, s.toEnrollment(ctx, row, records))
	}
	return enrollments, nil
}

// EnrollmentProgress returns the completion percentage of every enrolled course.
func (s *EnrollmentService) EnrollmentProgress(ctx context.Context, userID uuid.UUID) ([]models.CourseProgress, error) {
	rows, err := s.enrollmentRepo.ListEnrollments(ctx, userID)
	if err != nil {
		return nil, err
	}
	records, err := s.progressRepo.ListProgress(ctx, userID, 0)
	if err != nil {
		return nil, err
	}

	out := make([]models.CourseProgress, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.CourseProgress{
			CourseID: row.CourseID,
			Progress: coursePercent(records, row.Course),
		})
	}
	return out, nil
}

func (s *EnrollmentService) toEnrollment(ctx context.Context, row models.EnrollmentRow, records []models.ProgressRecord) models.Enrollment {
	pct := coursePercent(records, row.Course)
	status := row.Status
	if pct >= 100 {
		status = models.EnrollmentCompleted
	}
	return models.Enrollment{
		ID:             row.ID,
		CourseID:       row.CourseID,
		Status:         status,
		Progress:       pct,
		EnrolledAt:     row.EnrolledAt,
		LastAccessedAt: row.LastAccessedAt,
		Metadata:       row.Metadata,
		Course: models.CourseSummary{
			Title:       row.Course.Title,
			Description: row.Course.Description,
			LogoURL:     s.logoURL(ctx, row.Course),
		},
	}
}

func (s *EnrollmentService) logoURL(ctx context.Context, course models.Course) string {
	if s.logoRepo == nil || course.LogoObjectKey == "" {
		return ""
	}
	url, err := s.logoRepo.GetLogoURL(ctx, course.LogoObjectKey)
	if err != nil {
		s.log.ErrorErr("failed to get logo URL", err, "course_id", course.ID)
		return ""
	}
	return url
}

func coursePercent(records []models.ProgressRecord, course models.Course) float64 {
	return float64(tracker.RoundPercent(tracker.CompletionPercent(records, course.ID, course.TotalSections)))
}
