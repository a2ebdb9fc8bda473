package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
	"ChainAcademy/pkg/tracker"
)

type progressRepo interface {
	UpsertProgress(ctx context.Context, rec models.ProgressRecord) (models.ProgressRecord, error)
	ListProgress(ctx context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error)
}

type courseRepo interface {
	CourseByID(ctx context.Context, id int) (*models.Course, error)
}

type enrollmentRepo interface {
	TouchEnrollment(ctx context.Context, userID uuid.UUID, courseID int, at time.Time, completed bool) error
}

type ProgressService struct {
	log            logger.Log
	progressRepo   progressRepo
	courseRepo     courseRepo
	enrollmentRepo enrollmentRepo
	now            func() time.Time
}

func NewProgressService(log logger.Log, p progressRepo, c courseRepo, e enrollmentRepo) *ProgressService {
	return &ProgressService{
		log:            log,
		progressRepo:   p,
		courseRepo:     c,
		enrollmentRepo: e,
		now:            time.Now,
	}
}

// SaveProgress upserts rec for userID and returns the stored record, which
// may be newer than rec when rec arrived out of order.
func (s *ProgressService) SaveProgress(ctx context.Context, userID uuid.UUID, rec models.ProgressRecord) (models.ProgressRecord, error) {
	rec.UserID = userID
	rec.ModuleID = tracker.NormalizeModuleID(string(rec.ModuleID))
	if err := rec.Validate(); err != nil {
		return models.ProgressRecord{}, err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	rec.Timestamp = tracker.Stamp(rec.Timestamp)

	stored, err := s.progressRepo.UpsertProgress(ctx, rec)
	if err != nil {
		return models.ProgressRecord{}, err
	}

	if err := s.touchEnrollment(ctx, userID, stored); err != nil {
		s.log.ErrorErr("failed to update enrollment activity", err, "user_id", userID.String(), "course_id", stored.CourseID)
	}
	return stored, nil
}

func (s *ProgressService) ListProgress(ctx context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error) {
	return s.progressRepo.ListProgress(ctx, userID, courseID)
}

func (s *ProgressService) touchEnrollment(ctx context.Context, userID uuid.UUID, rec models.ProgressRecord) error {
	completed := false
	if rec.Completed {
		course, err := s.courseRepo.CourseByID(ctx, rec.CourseID)
		if err != nil {
			return err
		}
		records, err := s.progressRepo.ListProgress(ctx, userID, rec.CourseID)
		if err != nil {
			return err
		}
		completed = tracker.CompletionPercent(records, rec.CourseID, course.TotalSections) >= 100
	}
	return s.enrollmentRepo.TouchEnrollment(ctx, userID, rec.CourseID, rec.Timestamp, completed)
}
