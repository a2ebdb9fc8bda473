package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
	"ChainAcademy/pkg/tracker"
)

const (
	minutesSpentKey = "minutesSpent"
	perfectScore    = 100
)

type progressRepo interface {
	ListProgress(ctx context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error)
}

type courseRepo interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
}

type enrollmentRepo interface {
	ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentRow, error)
}

type MetricsService struct {
	log            logger.Log
	progressRepo   progressRepo
	courseRepo     courseRepo
	enrollmentRepo enrollmentRepo
	now            func() time.Time
}

func NewMetricsService(log logger.Log, p progressRepo, c courseRepo, e enrollmentRepo) *MetricsService {
	return &MetricsService{
		log:            log,
		progressRepo:   p,
		courseRepo:     c,
		enrollmentRepo: e,
		now:            time.Now,
	}
}

// UserMetrics aggregates the dashboard numbers of one user. Courses appear in
// courseStats when the user is enrolled in them or has progress there.
func (s *MetricsService) UserMetrics(ctx context.Context, userID uuid.UUID) (models.UserMetrics, error) {
	records, err := s.progressRepo.ListProgress(ctx, userID, 0)
	if err != nil {
		return models.UserMetrics{}, err
	}
	courses, err := s.courseRepo.ListCourses(ctx)
	if err != nil {
		return models.UserMetrics{}, err
	}
	enrollments, err := s.enrollmentRepo.ListEnrollments(ctx, userID)
	if err != nil {
		return models.UserMetrics{}, err
	}

	catalog := make(map[int]models.Course, len(courses))
	for _, c := range courses {
		catalog[c.ID] = c
	}
	active := make(map[int]struct{})
	for _, e := range enrollments {
		active[e.CourseID] = struct{}{}
	}
	for _, r := range records {
		active[r.CourseID] = struct{}{}
	}
	courseIDs := make([]int, 0, len(active))
	for id := range active {
		courseIDs = append(courseIDs, id)
	}
	sort.Ints(courseIDs)

	m := models.UserMetrics{
		LearningStreak: learningStreak(records, s.now()),
		CourseStats:    make([]models.CourseStat, 0, len(courseIDs)),
	}
	for _, r := range records {
		if r.Score != nil && *r.Score >= perfectScore {
			m.EarnedBadges++
		}
	}

	for _, id := range courseIDs {
		stat := models.CourseStat{
			CourseID:     id,
			ContinuePath: tracker.ResolveContinuationPath(records, id, "", fmt.Sprintf("/courses/%d", id)),
		}
		course, known := catalog[id]
		if known {
			stat.Title = course.Title
		}
		for _, r := range records {
			if r.CourseID != id {
				continue
			}
			stat.TotalLearningTime += minutesSpent(r)
			if r.Completed && r.Score != nil {
				stat.CompletedQuizzes++
			}
		}
		if known && tracker.CompletionPercent(records, id, course.TotalSections) >= 100 {
			m.EarnedBadges++
		}

		m.TotalLearningMinutes += stat.TotalLearningTime
		m.CompletedQuizzes += stat.CompletedQuizzes
		m.CourseStats = append(m.CourseStats, stat)
	}
	return m, nil
}

func minutesSpent(r models.ProgressRecord) int {
	raw, ok := r.Metadata[minutesSpentKey]
	if !ok {
		return 0
	}
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		v, _ = n.Float64()
	case string:
		v, _ = strconv.ParseFloat(n, 64)
	default:
		return 0
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return int(math.Round(v))
}

// learningStreak counts consecutive UTC days with activity, ending today or
// yesterday.
func learningStreak(records []models.ProgressRecord, now time.Time) int {
	days := make(map[time.Time]struct{}, len(records))
	for _, r := range records {
		if r.Timestamp.IsZero() {
			continue
		}
		days[truncateDay(r.Timestamp)] = struct{}{}
	}

	day := truncateDay(now)
	if _, ok := days[day]; !ok {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := days[day]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
