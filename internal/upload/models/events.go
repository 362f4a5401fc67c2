package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	AggregateID() uuid.UUID
	OccurredAt() time.Time
}

// VideoUploaded publishes the fact that a multipart upload was finalized and
// a video was appended to a course. Consumed by search indexing / notifications.
type VideoUploaded struct {
	eventID    uuid.UUID
	videoID    uuid.UUID
	courseID   uuid.UUID
	sessionID  uuid.UUID
	title      string
	duration   int
	position   int
	occurredAt time.Time
}

func NewVideoUploaded(v *Video, sessionID uuid.UUID) *VideoUploaded {
	return &VideoUploaded{
		eventID:    uuid.New(),
		videoID:    v.ID,
		courseID:   v.CourseID,
		sessionID:  sessionID,
		title:      v.Title,
		duration:   v.Duration,
		position:   v.Position,
		occurredAt: time.Now(),
	}
}

// Реализация интерфейса DomainEvent
func (e *VideoUploaded) EventID() uuid.UUID     { return e.eventID }
func (e *VideoUploaded) EventType() string      { return "VideoUploaded" }
func (e *VideoUploaded) AggregateID() uuid.UUID { return e.courseID }
func (e *VideoUploaded) OccurredAt() time.Time  { return e.occurredAt }

func (e *VideoUploaded) VideoID() uuid.UUID   { return e.videoID }
func (e *VideoUploaded) SessionID() uuid.UUID { return e.sessionID }

// Кастомная JSON сериализация
func (e *VideoUploaded) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EventID    uuid.UUID `json:"event_id"`
		VideoID    uuid.UUID `json:"video_id"`
		CourseID   uuid.UUID `json:"course_id"`
		SessionID  uuid.UUID `json:"session_id"`
		Title      string    `json:"title"`
		Duration   int       `json:"duration"`
		Position   int       `json:"position"`
		OccurredAt time.Time `json:"occurred_at"`
	}{
		EventID:    e.eventID,
		VideoID:    e.videoID,
		CourseID:   e.courseID,
		SessionID:  e.sessionID,
		Title:      e.title,
		Duration:   e.duration,
		Position:   e.position,
		OccurredAt: e.occurredAt,
	})
}
