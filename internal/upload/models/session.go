package models

import (
	"time"

	"github.com/google/uuid"
)

type UploadStatus string

const (
	StatusInitiated UploadStatus = "initiated"
	StatusUploading UploadStatus = "uploading"
	StatusCompleted UploadStatus = "completed"
	StatusAborted   UploadStatus = "aborted"
	StatusFailed    UploadStatus = "failed"
)

const (
	// MaxFileSize — верхняя граница для одного видео (5 GiB).
	MaxFileSize = int64(5) << 30
	// MinPartSize — минимальный размер части (5 MiB), ограничение multipart протокола.
	MinPartSize = int64(5) << 20
	// SessionTTL — сколько живёт незавершённая сессия до реапера.
	SessionTTL = 24 * time.Hour
)

// AllowedVideoTypes — допустимые mime типы для загрузки.
var AllowedVideoTypes = map[string]struct{}{
	"video/mp4":       {},
	"video/quicktime": {},
	"video/x-m4v":     {},
	"video/webm":      {},
	"video/x-matroska": {},
	"video/3gpp":      {},
}

// UploadedPart is one acknowledged chunk of a multipart upload. ETag is the
// opaque receipt returned by the object store for the transferred bytes.
type UploadedPart struct {
	PartNumber int       `db:"part_number"`
	ETag       string    `db:"etag"`
	SizeBytes  int64     `db:"size_bytes"`
	RecordedAt time.Time `db:"recorded_at"`
}

// UploadSession is the durable record of one multipart upload attempt.
type UploadSession struct {
	ID            uuid.UUID    `db:"id"`
	CourseID      uuid.UUID    `db:"course_id"`
	InstructorID  uuid.UUID    `db:"instructor_id"`
	InitiatorRole Role         `db:"initiator_role"`

	Title    string `db:"title"`
	FileName string `db:"file_name"`
	FileSize int64  `db:"file_size"`
	MimeType string `db:"mime_type"`

	PartSize   int64 `db:"part_size"`
	TotalParts int   `db:"total_parts"`

	UploadID   string `db:"upload_id"`
	StorageKey string `db:"storage_key"`

	AutoDetectDuration bool `db:"auto_detect_duration"`
	// ProvidedDuration — длительность в секундах, заявленная клиентом. 0 = не задана.
	ProvidedDuration int `db:"provided_duration"`
	ResolvedDuration int `db:"resolved_duration"`

	Status       UploadStatus `db:"status"`
	ErrorMessage string       `db:"error_message"`

	// VideoID memoizes the completion result so a repeated Complete call
	// returns the same Video instead of appending a second one.
	VideoID *uuid.UUID `db:"video_id"`
	// Completing is the single-finalizer claim: set while one call is
	// talking to the object store, cleared if that call fails.
	Completing bool `db:"completing"`

	ExpiresAt   time.Time  `db:"expires_at"`
	CompletedAt *time.Time `db:"completed_at"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`

	// Parts загружается отдельным запросом, не членом строки сессии.
	Parts []UploadedPart `db:"-"`
}

func (s *UploadSession) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusAborted, StatusFailed:
		return true
	}
	return false
}

func (s *UploadSession) Active() bool {
	return !s.Terminal()
}

// Part returns the recorded part with the given number, if any.
func (s *UploadSession) Part(n int) (UploadedPart, bool) {
	for _, p := range s.Parts {
		if p.PartNumber == n {
			return p, true
		}
	}
	return UploadedPart{}, false
}

// MissingParts lists part numbers in [1, TotalParts] that have no receipt yet.
func (s *UploadSession) MissingParts() []int {
	seen := make(map[int]struct{}, len(s.Parts))
	for _, p := range s.Parts {
		seen[p.PartNumber] = struct{}{}
	}
	var missing []int
	for n := 1; n <= s.TotalParts; n++ {
		if _, ok := seen[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}
