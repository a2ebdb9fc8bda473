package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"ChainAcademy/internal/app_errors"
	"ChainAcademy/internal/models"
)

type EnrollmentPostgres struct {
	db *pgxpool.Pool
}

func NewEnrollmentPostgres(db *pgxpool.Pool) *EnrollmentPostgres {
	return &EnrollmentPostgres{db: db}
}

func (r *EnrollmentPostgres) Enroll(ctx context.Context, userID uuid.UUID, courseID int) (*models.EnrollmentRow, error) {
	query := `
		INSERT INTO enrollments (user_id, course_id, status, enrolled_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, enrolled_at
	`
	e := models.EnrollmentRow{UserID: userID, CourseID: courseID}
	err := r.db.QueryRow(ctx, query, userID, courseID, models.EnrollmentActive, time.Now().UTC()).
		Scan(&e.ID, &e.Status, &e.EnrolledAt)
	if err != nil {
		switch {
		case isCode(err, uniqueViolation):
			return nil, app_errors.ErrAlreadyEnrolled
		case isCode(err, foreignKeyViolation):
			return nil, app_errors.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to enroll: %w", err)
	}
	return &e, nil
}

func (r *EnrollmentPostgres) ListEnrollments(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentRow, error) {
	query := `
		SELECT e.id, e.user_id, e.course_id, e.status, e.enrolled_at, e.last_accessed_at, e.metadata,
		       c.id, c.slug, c.title, c.description, c.logo_object_key, c.total_sections, c.created_at
		FROM enrollments e
		INNER JOIN courses c ON c.id = e.course_id
		WHERE e.user_id = $1
		ORDER BY e.enrolled_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := make([]models.EnrollmentRow, 0)
	for rows.Next() {
		var e models.EnrollmentRow
		c := &e.Course
		if err := rows.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Status, &e.EnrolledAt, &e.LastAccessedAt, &e.Metadata,
			&c.ID, &c.Slug, &c.Title, &c.Description, &c.LogoObjectKey, &c.TotalSections, &c.CreatedAt); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read enrollments: %w", err)
	}
	return enrollments, nil
}

// TouchEnrollment records activity in a course the user is enrolled in. It
// is a no-op for courses the user never enrolled in.
func (r *EnrollmentPostgres) TouchEnrollment(ctx context.Context, userID uuid.UUID, courseID int, at time.Time, completed bool) error {
	query := `
		UPDATE enrollments
		SET last_accessed_at = GREATEST(COALESCE(last_accessed_at, $3), $3),
		    status = CASE WHEN $4 THEN $5 ELSE status END
		WHERE user_id = $1 AND course_id = $2
	`
	if _, err := r.db.Exec(ctx, query, userID, courseID, at, completed, models.EnrollmentCompleted); err != nil {
		return fmt.Errorf("failed to touch enrollment: %w", err)
	}
	return nil
}
