package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/course-platform/internal/config"
	pg "github.com/romariotrain/course-platform/internal/storage/postgres"
	"github.com/romariotrain/course-platform/internal/upload/httpapi"
	"github.com/romariotrain/course-platform/internal/upload/s3"
	"github.com/romariotrain/course-platform/internal/upload/service"
)

func run(ctx context.Context, logger zerolog.Logger) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	storage, err := s3.NewClient(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("s3 client: %w", err)
	}

	// Dependencies
	sessions := pg.NewSessionRepo(db)
	courses := pg.NewCourseRepo(db)
	svc := service.New(sessions, courses, storage, cfg.PartURLTTL, logger)
	h := httpapi.New(svc)
	router := httpapi.NewRouter(h)

	reaper, err := service.NewReaper(service.ReaperConfig{
		Sessions:  sessions,
		Storage:   storage,
		Interval:  cfg.ReaperInterval,
		BatchSize: cfg.ReaperBatchSize,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("reaper: %w", err)
	}
	go func() { _ = reaper.Start(ctx) }()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen and serve: %w", err)
	}
}
