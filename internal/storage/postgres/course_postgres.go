package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
)

type CoursePostgres struct {
	db *pgxpool.Pool
}

func NewCoursePostgres(db *pgxpool.Pool) *CoursePostgres {
	return &CoursePostgres{db: db}
}

const courseColumns = `id, slug, title, description, logo_object_key, total_sections, created_at`

func (r *CoursePostgres) CourseByID(ctx context.Context, id int) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var c models.Course
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.LogoObjectKey, &c.TotalSections, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, app_errors.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &c, nil
}

func (r *CoursePostgres) ListCourses(ctx context.Context) ([]models.Course, error) {
	return r.queryCourses(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY id`)
}

// CoursesByIDs keeps the order of ids, which is the search ranking.
func (r *CoursePostgres) CoursesByIDs(ctx context.Context, ids []int) ([]models.Course, error) {
	if len(ids) == 0 {
		return []models.Course{}, nil
	}
	query := `
		SELECT c.id, c.slug, c.title, c.description, c.logo_object_key, c.total_sections, c.created_at
		FROM unnest($1::int[]) WITH ORDINALITY AS ranked(id, pos)
		INNER JOIN courses c ON c.id = ranked.id
		ORDER BY ranked.pos
	`
	return r.queryCourses(ctx, query, ids)
}

func (r *CoursePostgres) queryCourses(ctx context.Context, query string, args ...any) ([]models.Course, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.LogoObjectKey, &c.TotalSections, &c.CreatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read courses: %w", err)
	}
	return courses, nil
}

func (r *CoursePostgres) SetLogoObjectKey(ctx context.Context, id int, objectKey string) error {
	tag, err := r.db.Exec(ctx, `UPDATE courses SET logo_object_key = $2 WHERE id = $1`, id, objectKey)
	if err != nil {
		return fmt.Errorf("failed to update course logo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return app_errors.ErrCourseNotFound
	}
	return nil
}
