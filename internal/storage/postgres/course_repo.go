package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/course-platform/internal/upload/models"
)

type CourseRepo struct {
	db *sqlx.DB
}

func NewCourseRepo(db *sqlx.DB) *CourseRepo {
	return &CourseRepo{db: db}
}

func (r *CourseRepo) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	const q = `SELECT id, instructor_id, title FROM courses WHERE id = $1`

	var c models.Course
	if err := r.db.GetContext(ctx, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("course get by id: %w", err)
	}
	return &c, nil
}

func (r *CourseRepo) VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	const q = `
		SELECT id, course_id, title, url, storage_key, duration, position, file_size, uploaded_at
		FROM course_videos
		WHERE id = $1
	`
	var v models.Video
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("video get by id: %w", err)
	}
	return &v, nil
}
