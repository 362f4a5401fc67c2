package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is created exactly once, as a side effect of a successful upload
// completion, and appended to the owning course's video list.
type Video struct {
	ID         uuid.UUID `db:"id"`
	CourseID   uuid.UUID `db:"course_id"`
	Title      string    `db:"title"`
	URL        string    `db:"url"`
	StorageKey string    `db:"storage_key"`
	// Duration в секундах, 0 = неизвестна.
	Duration int `db:"duration"`
	// Position — 1-based, append-only порядок внутри курса.
	Position   int       `db:"position"`
	FileSize   int64     `db:"file_size"`
	UploadedAt time.Time `db:"uploaded_at"`
}

// Course is the slice of the course aggregate this module depends on:
// existence, ownership and the video list it appends to.
type Course struct {
	ID           uuid.UUID `db:"id"`
	InstructorID uuid.UUID `db:"instructor_id"`
	Title        string    `db:"title"`
}
