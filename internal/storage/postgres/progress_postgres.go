package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ChainAcademy/internal/models"
)

type ProgressPostgres struct {
	db *pgxpool.Pool
}

func NewProgressPostgres(db *pgxpool.Pool) *ProgressPostgres {
	return &ProgressPostgres{db: db}
}

const progressColumns = `user_id, course_id, module_id, section_id, completed, score, progress,
	last_completed_path, last_quiz_path, continue_path, metadata, updated_at`

// UpsertProgress merges r into the stored record of the same key. Writes
// older than the stored record are ignored; either way the stored record is
// returned.
func (r *ProgressPostgres) UpsertProgress(ctx context.Context, rec models.ProgressRecord) (models.ProgressRecord, error) {
	metadata := rec.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	query := `
		INSERT INTO user_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, course_id, module_id, section_id) DO UPDATE SET
			completed           = EXCLUDED.completed,
			score               = COALESCE(EXCLUDED.score, user_progress.score),
			progress            = COALESCE(EXCLUDED.progress, user_progress.progress),
			last_completed_path = COALESCE(NULLIF(EXCLUDED.last_completed_path, ''), user_progress.last_completed_path),
			last_quiz_path      = COALESCE(NULLIF(EXCLUDED.last_quiz_path, ''), user_progress.last_quiz_path),
			continue_path       = COALESCE(NULLIF(EXCLUDED.continue_path, ''), user_progress.continue_path),
			metadata            = user_progress.metadata || EXCLUDED.metadata,
			updated_at          = EXCLUDED.updated_at
		WHERE user_progress.updated_at <= EXCLUDED.updated_at
		RETURNING ` + progressColumns

	row := r.db.QueryRow(ctx, query,
		rec.UserID, rec.CourseID, string(rec.ModuleID), rec.SectionID, rec.Completed, rec.Score, rec.Progress,
		rec.LastCompletedPath, rec.LastQuizPath, rec.ContinuePath, metadata, rec.Timestamp,
	)
	stored, err := scanProgress(row)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.ProgressRecord{}, fmt.Errorf("failed to upsert progress: %w", err)
	}

	// A newer record already exists.
	return r.ProgressByKey(ctx, rec.UserID, rec.Key())
}

func (r *ProgressPostgres) ProgressByKey(ctx context.Context, userID uuid.UUID, key models.ProgressKey) (models.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress
		WHERE user_id = $1 AND course_id = $2 AND module_id = $3 AND section_id = $4`
	row := r.db.QueryRow(ctx, query, userID, key.CourseID, string(key.ModuleID), key.SectionID)
	rec, err := scanProgress(row)
	if err != nil {
		return models.ProgressRecord{}, fmt.Errorf("failed to load progress %s: %w", key, err)
	}
	return rec, nil
}

// ListProgress returns the user's records, oldest first. courseID 0 means
// every course.
func (r *ProgressPostgres) ListProgress(ctx context.Context, userID uuid.UUID, courseID int) ([]models.ProgressRecord, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress
		WHERE user_id = $1 AND ($2 = 0 OR course_id = $2)
		ORDER BY updated_at ASC, course_id, module_id, section_id`
	rows, err := r.db.Query(ctx, query, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	records := make([]models.ProgressRecord, 0)
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	return records, nil
}

func scanProgress(row pgx.Row) (models.ProgressRecord, error) {
	var (
		rec      models.ProgressRecord
		moduleID string
	)
	err := row.Scan(
		&rec.UserID, &rec.CourseID, &moduleID, &rec.SectionID, &rec.Completed, &rec.Score, &rec.Progress,
		&rec.LastCompletedPath, &rec.LastQuizPath, &rec.ContinuePath, &rec.Metadata, &rec.Timestamp,
	)
	if err != nil {
		return models.ProgressRecord{}, err
	}
	rec.ModuleID = models.ModuleID(moduleID)
	rec.Timestamp = rec.Timestamp.UTC()
	if len(rec.Metadata) == 0 {
		rec.Metadata = nil
	}
	return rec, nil
}
