package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/romariotrain/course-platform/internal/upload/models"
)

const pgUniqueViolation = "23505"

const sessionColumns = `
	id, course_id, instructor_id, initiator_role,
	title, file_name, file_size, mime_type,
	part_size, total_parts, upload_id, storage_key,
	auto_detect_duration, provided_duration, resolved_duration,
	status, error_message, video_id, completing,
	expires_at, completed_at, created_at, updated_at
`

type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.UploadSession) error {
	const q = `
		INSERT INTO upload_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.CourseID, s.InstructorID, s.InitiatorRole,
		s.Title, s.FileName, s.FileSize, s.MimeType,
		s.PartSize, s.TotalParts, s.UploadID, s.StorageKey,
		s.AutoDetectDuration, s.ProvidedDuration, s.ResolvedDuration,
		s.Status, s.ErrorMessage, s.VideoID, s.Completing,
		s.ExpiresAt, s.CompletedAt, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		// Частичный уникальный индекс: один активный upload на (course, instructor).
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: upload already in progress for course %s", models.ErrConflict, s.CourseID)
		}
		return fmt.Errorf("session create: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.UploadSession, error) {
	const q = `SELECT ` + sessionColumns + ` FROM upload_sessions WHERE id = $1`

	var s models.UploadSession
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("session get by id: %w", err)
	}

	parts, err := r.partsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Parts = parts
	return &s, nil
}

func (r *SessionRepo) partsOf(ctx context.Context, id uuid.UUID) ([]models.UploadedPart, error) {
	const q = `
		SELECT part_number, etag, size_bytes, recorded_at
		FROM upload_parts
		WHERE session_id = $1
		ORDER BY part_number ASC
	`
	var parts []models.UploadedPart
	if err := r.db.SelectContext(ctx, &parts, q, id); err != nil {
		return nil, fmt.Errorf("session parts: %w", err)
	}
	return parts, nil
}

func (r *SessionRepo) MarkUploading(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE upload_sessions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`
	res, err := r.db.ExecContext(ctx, q, id, models.StatusUploading, models.StatusInitiated)
	if err != nil {
		return fmt.Errorf("session mark uploading: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Либо сессии нет, либо она уже не initiated.
		return r.checkStillActive(ctx, id)
	}
	return nil
}

// checkStillActive maps a no-op conditional update to the right sentinel.
func (r *SessionRepo) checkStillActive(ctx context.Context, id uuid.UUID) error {
	var status models.UploadStatus
	err := r.db.GetContext(ctx, &status, `SELECT status FROM upload_sessions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("session status: %w", err)
	}
	switch status {
	case models.StatusCompleted:
		return models.ErrAlreadyCompleted
	case models.StatusAborted, models.StatusFailed:
		return fmt.Errorf("%w: session is %s", models.ErrTerminalState, status)
	}
	return nil
}

func (r *SessionRepo) UpsertPart(ctx context.Context, id uuid.UUID, part models.UploadedPart) (int, error) {
	// Атомарный keyed upsert: конкурентные записи разных частей не теряются,
	// повторная запись той же части заменяет receipt.
	const q = `
		INSERT INTO upload_parts (session_id, part_number, etag, size_bytes, recorded_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (
			SELECT 1 FROM upload_sessions
			WHERE id = $1 AND status IN ($6, $7)
		)
		ON CONFLICT (session_id, part_number)
		DO UPDATE SET etag = EXCLUDED.etag, size_bytes = EXCLUDED.size_bytes, recorded_at = EXCLUDED.recorded_at
	`
	res, err := r.db.ExecContext(ctx, q,
		id, part.PartNumber, part.ETag, part.SizeBytes, part.RecordedAt,
		models.StatusInitiated, models.StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("part upsert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := r.checkStillActive(ctx, id); err != nil {
			return 0, err
		}
		return 0, models.ErrNotFound
	}

	var recorded int
	if err := r.db.GetContext(ctx, &recorded, `SELECT COUNT(*) FROM upload_parts WHERE session_id = $1`, id); err != nil {
		return 0, fmt.Errorf("part count: %w", err)
	}
	return recorded, nil
}

func (r *SessionRepo) BeginCompletion(ctx context.Context, id uuid.UUID) (*models.UploadSession, error) {
	const q = `
		UPDATE upload_sessions
		SET completing = TRUE, updated_at = NOW()
		WHERE id = $1 AND completing = FALSE AND status IN ($2, $3)
		RETURNING ` + sessionColumns

	var s models.UploadSession
	err := r.db.GetContext(ctx, &s, q, id, models.StatusInitiated, models.StatusUploading)
	if err == nil {
		parts, err := r.partsOf(ctx, id)
		if err != nil {
			return nil, err
		}
		s.Parts = parts
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("begin completion: %w", err)
	}

	// Claim не взят: разбираемся почему.
	sess, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	switch {
	case sess.Status == models.StatusCompleted:
		// Уже завершена — вызывающий вернёт мемоизированный результат.
		return sess, nil
	case sess.Terminal():
		return nil, fmt.Errorf("%w: session is %s", models.ErrTerminalState, sess.Status)
	default:
		return nil, fmt.Errorf("%w: completion already in progress", models.ErrConflict)
	}
}

func (r *SessionRepo) AbandonCompletion(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE upload_sessions SET completing = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("abandon completion: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) FinishCompletion(ctx context.Context, id uuid.UUID, video *models.Video) (*models.Video, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Лочим курс: назначение position сериализуется per course.
	var courseID uuid.UUID
	if err := tx.GetContext(ctx, &courseID,
		`SELECT id FROM courses WHERE id = $1 FOR UPDATE`, video.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("lock course: %w", err)
	}

	const insertVideo = `
		INSERT INTO course_videos (id, course_id, title, url, storage_key, duration, position, file_size, uploaded_at)
		SELECT $1, $2, $3, $4, $5, $6, COALESCE(MAX(position), 0) + 1, $7, $8
		FROM course_videos WHERE course_id = $2
		RETURNING position
	`
	stored := *video
	if err := tx.GetContext(ctx, &stored.Position, insertVideo,
		video.ID, video.CourseID, video.Title, video.URL, video.StorageKey,
		video.Duration, video.FileSize, video.UploadedAt,
	); err != nil {
		return nil, fmt.Errorf("append video: %w", err)
	}

	const updateSession = `
		UPDATE upload_sessions
		SET status = $2, completing = FALSE, video_id = $3,
		    resolved_duration = $4, completed_at = $5, updated_at = NOW()
		WHERE id = $1 AND status != $2
	`
	res, err := tx.ExecContext(ctx, updateSession,
		id, models.StatusCompleted, video.ID, video.Duration, video.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Сессию уже завершил кто-то другой; наша вставка откатится.
		return nil, fmt.Errorf("%w: session completed concurrently", models.ErrConflict)
	}

	if err := insertOutbox(ctx, tx, models.NewVideoUploaded(&stored, id)); err != nil {
		return nil, fmt.Errorf("add outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &stored, nil
}

func (r *SessionRepo) MarkAborted(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `
		UPDATE upload_sessions
		SET status = $2, error_message = $3, completing = FALSE, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`
	res, err := r.db.ExecContext(ctx, q, id, models.StatusAborted, reason,
		models.StatusInitiated, models.StatusUploading)
	if err != nil {
		return fmt.Errorf("session mark aborted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := r.checkStillActive(ctx, id); err != nil {
			return err
		}
		return models.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.UploadSession, error) {
	const q = `
		SELECT ` + sessionColumns + `
		FROM upload_sessions
		WHERE status IN ($2, $3) AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $4
	`
	var rows []models.UploadSession
	if err := r.db.SelectContext(ctx, &rows, q, now,
		models.StatusInitiated, models.StatusUploading, limit); err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	out := make([]*models.UploadSession, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}
