package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/course-platform/internal/upload/models"
	"github.com/romariotrain/course-platform/internal/upload/service"
)

type InitiateUploadRequest struct {
	Title              string `json:"title"`
	FileName           string `json:"file_name"`
	FileSize           int64  `json:"file_size"`
	MimeType           string `json:"mime_type"`
	PartSize           int64  `json:"part_size"`
	TotalParts         int    `json:"total_parts"`
	AutoDetectDuration bool   `json:"auto_detect_duration"`
	ProvidedDuration   int    `json:"provided_duration,omitempty"`
}

type InitiateUploadResponse struct {
	SessionID  uuid.UUID `json:"session_id"`
	UploadID   string    `json:"upload_id"`
	StorageKey string    `json:"storage_key"`
	PartSize   int64     `json:"part_size"`
	TotalParts int       `json:"total_parts"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type PartURLsRequest struct {
	PartNumbers []int `json:"part_numbers"`
}

type PartURLResponse struct {
	PartNumber int       `json:"part_number"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type RecordPartRequest struct {
	ETag      string `json:"etag"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type RecordPartResponse struct {
	PartNumber int `json:"part_number"`
	Recorded   int `json:"recorded"`
	Remaining  int `json:"remaining"`
}

type CompleteUploadRequest struct {
	Parts    []CompletedPartDTO `json:"parts"`
	Duration int                `json:"duration,omitempty"`
}

type CompletedPartDTO struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

type VideoResponse struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Duration   int       `json:"duration"`
	Position   int       `json:"position"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type AbortUploadRequest struct {
	Reason string `json:"reason,omitempty"`
}

type SessionResponse struct {
	SessionID    uuid.UUID           `json:"session_id"`
	CourseID     uuid.UUID           `json:"course_id"`
	Status       models.UploadStatus `json:"status"`
	Title        string              `json:"title"`
	FileName     string              `json:"file_name"`
	FileSize     int64               `json:"file_size"`
	PartSize     int64               `json:"part_size"`
	TotalParts   int                 `json:"total_parts"`
	Recorded     int                 `json:"recorded"`
	MissingParts []int               `json:"missing_parts,omitempty"`
	ExpiresAt    time.Time           `json:"expires_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

func toVideoResponse(v *models.Video) VideoResponse {
	return VideoResponse{
		ID:         v.ID,
		CourseID:   v.CourseID,
		Title:      v.Title,
		URL:        v.URL,
		Duration:   v.Duration,
		Position:   v.Position,
		FileSize:   v.FileSize,
		UploadedAt: v.UploadedAt,
	}
}

func toSessionResponse(s *models.UploadSession) SessionResponse {
	return SessionResponse{
		SessionID:    s.ID,
		CourseID:     s.CourseID,
		Status:       s.Status,
		Title:        s.Title,
		FileName:     s.FileName,
		FileSize:     s.FileSize,
		PartSize:     s.PartSize,
		TotalParts:   s.TotalParts,
		Recorded:     len(s.Parts),
		MissingParts: s.MissingParts(),
		ExpiresAt:    s.ExpiresAt,
		CompletedAt:  s.CompletedAt,
		ErrorMessage: s.ErrorMessage,
	}
}

func toPartURLResponses(urls []service.PartURL) []PartURLResponse {
	out := make([]PartURLResponse, 0, len(urls))
	for _, u := range urls {
		out = append(out, PartURLResponse{PartNumber: u.PartNumber, URL: u.URL, ExpiresAt: u.ExpiresAt})
	}
	return out
}
