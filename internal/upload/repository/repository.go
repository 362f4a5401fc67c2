package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/romariotrain/course-platform/internal/upload/models"
)

// SessionRepository persists upload sessions. Implementations must enforce
// the one-active-session-per-(course, instructor) constraint in Create and
// apply part upserts atomically per part number, not as a whole-document write.
type SessionRepository interface {
	// Create persists a new session in state Initiated. Returns
	// models.ErrConflict when a non-terminal session already exists for the
	// same (course, instructor) pair.
	Create(ctx context.Context, s *models.UploadSession) error

	// GetByID returns the session with its recorded parts.
	GetByID(ctx context.Context, id uuid.UUID) (*models.UploadSession, error)

	// MarkUploading moves Initiated -> Uploading. No-op when the session is
	// already Uploading.
	MarkUploading(ctx context.Context, id uuid.UUID) error

	// UpsertPart records a part receipt, replacing a previous receipt for the
	// same part number. Returns the number of distinct parts recorded.
	UpsertPart(ctx context.Context, id uuid.UUID, part models.UploadedPart) (int, error)

	// BeginCompletion claims the session for finalization so only one caller
	// talks to the object store. Returns the claimed session; a session that
	// is already Completed is returned unchanged (the caller reads the memo).
	// Returns models.ErrConflict while another completion is in flight and
	// models.ErrTerminalState for aborted/failed sessions.
	BeginCompletion(ctx context.Context, id uuid.UUID) (*models.UploadSession, error)

	// AbandonCompletion releases a claim after a failed finalization, leaving
	// the session in its prior non-terminal state.
	AbandonCompletion(ctx context.Context, id uuid.UUID) error

	// FinishCompletion appends the video to the course (assigning the next
	// 1-based position), marks the session Completed and memoizes the video
	// id — atomically. Returns the stored video.
	FinishCompletion(ctx context.Context, id uuid.UUID, video *models.Video) (*models.Video, error)

	// MarkAborted terminates a non-terminal session with a reason.
	MarkAborted(ctx context.Context, id uuid.UUID, reason string) error

	// ListExpired returns non-terminal sessions whose ExpiresAt passed.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.UploadSession, error)
}

// CourseRepository is the slice of course persistence this module consumes.
type CourseRepository interface {
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
}
