package course

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
	"ChainAcademy/pkg/logger"
)

const (
	maxLogoSizeBytes   = 2 << 20
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

type courseRepo interface {
	CourseByID(ctx context.Context, id int) (*models.Course, error)
	ListCourses(ctx context.Context) ([]models.Course, error)
	CoursesByIDs(ctx context.Context, ids []int) ([]models.Course, error)
	SetLogoObjectKey(ctx context.Context, id int, objectKey string) error
}

type searchRepo interface {
	CreateIndexIfNotExist(ctx context.Context) error
	Index(ctx context.Context, course models.Course) error
	Search(ctx context.Context, query string, size int) ([]int, error)
}

type logoRepo interface {
	UploadLogo(ctx context.Context, courseID int, filename string, reader io.Reader, size int64, contentType string) (string, error)
	GetLogoURL(ctx context.Context, objectKey string) (string, error)
}

type CourseService struct {
	log        logger.Log
	courseRepo courseRepo
	searchRepo searchRepo
	logoRepo   logoRepo
}

// NewCourseService builds the catalog service. search and logos are optional:
// without search the catalog is filtered in memory, without logos no logo
// URLs are produced and uploads are refused.
func NewCourseService(log logger.Log, c courseRepo, search searchRepo, logos logoRepo) *CourseService {
	return &CourseService{
		log:        log,
		courseRepo: c,
		searchRepo: search,
		logoRepo:   logos,
	}
}

func (s *CourseService) ListCourses(ctx context.Context) ([]models.CoursePreview, error) {
	courses, err := s.courseRepo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	return s.previews(ctx, courses), nil
}

func (s *CourseService) CourseByID(ctx context.Context, id int) (*models.CoursePreview, error) {
	course, err := s.courseRepo.CourseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := s.preview(ctx, *course)
	return &p, nil
}

func (s *CourseService) SearchCourses(ctx context.Context, query string, limit int) ([]models.CoursePreview, error) {
	query = strings.TrimSpace(query)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)
	if query == "" {
		return s.ListCourses(ctx)
	}

	if s.searchRepo == nil {
		return s.filterCatalog(ctx, query, limit)
	}
	ids, err := s.searchRepo.Search(ctx, query, limit)
	if err != nil {
		s.log.ErrorErr("course search failed, filtering catalog instead", err, "query", query)
		return s.filterCatalog(ctx, query, limit)
	}
	courses, err := s.courseRepo.CoursesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.previews(ctx, courses), nil
}

// Reindex pushes the whole catalog into the search index and returns the
// number of indexed courses.
func (s *CourseService) Reindex(ctx context.Context) (int, error) {
	if s.searchRepo == nil {
		return 0, app_errors.ErrSearchDisabled
	}
	if err := s.searchRepo.CreateIndexIfNotExist(ctx); err != nil {
		return 0, err
	}
	courses, err := s.courseRepo.ListCourses(ctx)
	if err != nil {
		return 0, err
	}
	for i, c := range courses {
		if err := s.searchRepo.Index(ctx, c); err != nil {
			return i, err
		}
	}
	s.log.Info("course search index rebuilt", "courses", len(courses))
	return len(courses), nil
}

func (s *CourseService) UploadCourseLogo(
	ctx context.Context,
	courseID int,
	filename string,
	reader io.Reader,
	size int64,
	contentType string,
) (string, error) {
	if s.logoRepo == nil {
		return "", app_errors.ErrStorageDisabled
	}
	if _, err := s.courseRepo.CourseByID(ctx, courseID); err != nil {
		return "", err
	}
	if size > maxLogoSizeBytes {
		return "", app_errors.ErrFileSize
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", app_errors.ErrNotImage
	}

	objectKey, err := s.logoRepo.UploadLogo(ctx, courseID, filename, reader, size, contentType)
	if err != nil {
		s.log.ErrorErr("failed to upload logo to storage", err)
		return "", err
	}
	if err = s.courseRepo.SetLogoObjectKey(ctx, courseID, objectKey); err != nil {
		s.log.ErrorErr("failed to save logo key to db", err)
		return "", err
	}
	return s.logoRepo.GetLogoURL(ctx, objectKey)
}

func (s *CourseService) filterCatalog(ctx context.Context, query string, limit int) ([]models.CoursePreview, error) {
	courses, err := s.courseRepo.ListCourses(ctx)
	if err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(query))
	matched := make([]models.Course, 0)
	for _, c := range courses {
		text := strings.ToLower(c.Title + " " + c.Description + " " + c.Slug)
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched = append(matched, c)
				break
			}
		}
		if len(matched) == limit {
			break
		}
	}
	return s.previews(ctx, matched), nil
}

func (s *CourseService) previews(ctx context.Context, courses []models.Course) []models.CoursePreview {
	out := make([]models.CoursePreview, 0, len(courses))
	for _, c := range courses {
		out = append(out, s.preview(ctx, c))
	}
	return out
}

func (s *CourseService) preview(ctx context.Context, c models.Course) models.CoursePreview {
	p := models.CoursePreview{
		ID:            c.ID,
		Slug:          c.Slug,
		Title:         c.Title,
		Description:   c.Description,
		TotalSections: c.TotalSections,
	}
	if s.logoRepo != nil && c.LogoObjectKey != "" {
		url, err := s.logoRepo.GetLogoURL(ctx, c.LogoObjectKey)
		if err != nil {
			s.log.ErrorErr("failed to get logo URL", err, "course_id", c.ID)
		}
		p.LogoURL = url
	}
	return p
}
