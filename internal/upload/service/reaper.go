package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/romariotrain/course-platform/internal/upload/repository"
)

// Reaper terminates upload sessions that never reached a terminal state
// within their TTL. It frees the one-active-upload slot and best-effort
// aborts the storage-side multipart upload so parts do not pile up there.
type Reaper struct {
	sessions  repository.SessionRepository
	storage   Storage
	interval  time.Duration
	batchSize int
	clock     func() time.Time
	logger    zerolog.Logger
}

type ReaperConfig struct {
	Sessions  repository.SessionRepository
	Storage   Storage
	Interval  time.Duration
	BatchSize int
	Logger    zerolog.Logger
}

func NewReaper(cfg ReaperConfig) (*Reaper, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session repository is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage adapter is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Reaper{
		sessions:  cfg.Sessions,
		storage:   cfg.Storage,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		clock:     time.Now,
		logger:    cfg.Logger.With().Str("component", "session_reaper").Logger(),
	}, nil
}

// Start блокирует до отмены контекста, сканируя просроченные сессии раз в interval.
func (r *Reaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.interval).
		Int("batch_size", r.batchSize).
		Msg("session reaper started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Err(ctx.Err()).Msg("session reaper stopped")
			return ctx.Err()

		case <-ticker.C:
			if err := r.ReapOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("failed to reap expired sessions")
				// Продолжаем работать, не падаем
			}
		}
	}
}

// ReapOnce aborts one batch of expired sessions. A failed storage abort is
// logged but never blocks freeing the session slot.
func (r *Reaper) ReapOnce(ctx context.Context) error {
	expired, err := r.sessions.ListExpired(ctx, r.clock(), r.batchSize)
	if err != nil {
		return fmt.Errorf("list expired sessions: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	r.logger.Info().Int("count", len(expired)).Msg("reaping expired sessions")

	var reaped, leaked int
	for _, sess := range expired {
		sessLogger := r.logger.With().
			Str("session_id", sess.ID.String()).
			Str("course_id", sess.CourseID.String()).
			Logger()

		if err := r.storage.Abort(ctx, sess.StorageKey, sess.UploadID); err != nil {
			// Утечка на стороне хранилища: multipart upload останется открыт.
			sessLogger.Warn().Err(err).Msg("storage-side abort failed, multipart upload leaked")
			leaked++
		}

		if err := r.sessions.MarkAborted(ctx, sess.ID, "expired"); err != nil {
			sessLogger.Error().Err(err).Msg("failed to mark session aborted")
			continue
		}
		reaped++
	}

	r.logger.Info().
		Int("total", len(expired)).
		Int("reaped", reaped).
		Int("leaked", leaked).
		Msg("reap batch completed")

	return nil
}
