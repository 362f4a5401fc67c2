package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/course-platform/internal/upload/domain"
	"github.com/romariotrain/course-platform/internal/upload/models"
)

// Memory is an in-memory implementation of both SessionRepository and
// CourseRepository with the same error semantics as the postgres one.
// Used by unit tests and local runs without a database.
type Memory struct {
	mu       sync.RWMutex
	courses  map[uuid.UUID]*models.Course
	sessions map[uuid.UUID]*models.UploadSession
	parts    map[uuid.UUID]map[int]models.UploadedPart
	videos   map[uuid.UUID]*models.Video
	// byCourse keeps видео курса в порядке добавления.
	byCourse map[uuid.UUID][]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		courses:  make(map[uuid.UUID]*models.Course),
		sessions: make(map[uuid.UUID]*models.UploadSession),
		parts:    make(map[uuid.UUID]map[int]models.UploadedPart),
		videos:   make(map[uuid.UUID]*models.Video),
		byCourse: make(map[uuid.UUID][]uuid.UUID),
	}
}

// AddCourse seeds a course. Test helper, not part of the repository contract.
func (m *Memory) AddCourse(c *models.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.courses[c.ID] = &cp
}

func (m *Memory) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Memory) Create(ctx context.Context, s *models.UploadSession) error {
	if s == nil || s.ID == uuid.Nil {
		return models.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return models.ErrConflict
	}
	// Один активный upload на (course, instructor) — тот же инвариант, что и
	// частичный уникальный индекс в postgres.
	for _, other := range m.sessions {
		if other.CourseID == s.CourseID && other.InstructorID == s.InstructorID && other.Active() {
			return fmt.Errorf("%w: upload already in progress for course %s", models.ErrConflict, s.CourseID)
		}
	}

	cp := *s
	cp.Parts = nil
	m.sessions[s.ID] = &cp
	m.parts[s.ID] = make(map[int]models.UploadedPart)
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id uuid.UUID) (*models.UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cloneSession(id)
}

// cloneSession возвращает защитную копию. Держатель должен владеть m.mu.
func (m *Memory) cloneSession(id uuid.UUID) (*models.UploadSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	cp.Parts = m.sortedParts(id)
	return &cp, nil
}

func (m *Memory) sortedParts(id uuid.UUID) []models.UploadedPart {
	byNumber := m.parts[id]
	out := make([]models.UploadedPart, 0, len(byNumber))
	for _, p := range byNumber {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PartNumber < out[j].PartNumber })
	return out
}

func (m *Memory) MarkUploading(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.ErrNotFound
	}
	if s.Status != models.StatusUploading {
		if !domain.CanTransition(s.Status, models.StatusUploading) {
			if s.Status == models.StatusCompleted {
				return models.ErrAlreadyCompleted
			}
			return models.ErrTerminalState
		}
		s.Status = models.StatusUploading
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (m *Memory) UpsertPart(ctx context.Context, id uuid.UUID, part models.UploadedPart) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return 0, models.ErrNotFound
	}
	if s.Status == models.StatusCompleted {
		return 0, models.ErrAlreadyCompleted
	}
	if s.Terminal() {
		return 0, models.ErrTerminalState
	}

	m.parts[id][part.PartNumber] = part
	s.UpdatedAt = time.Now()
	return len(m.parts[id]), nil
}

func (m *Memory) BeginCompletion(ctx context.Context, id uuid.UUID) (*models.UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	switch {
	case s.Status == models.StatusCompleted:
		return m.cloneSession(id)
	case s.Terminal():
		return nil, models.ErrTerminalState
	case s.Completing:
		return nil, fmt.Errorf("%w: completion already in progress", models.ErrConflict)
	}

	s.Completing = true
	s.UpdatedAt = time.Now()
	return m.cloneSession(id)
}

func (m *Memory) AbandonCompletion(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.ErrNotFound
	}
	s.Completing = false
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) FinishCompletion(ctx context.Context, id uuid.UUID, video *models.Video) (*models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if s.Status == models.StatusCompleted {
		if s.VideoID != nil {
			if v, ok := m.videos[*s.VideoID]; ok {
				cp := *v
				return &cp, nil
			}
		}
		return nil, models.ErrAlreadyCompleted
	}
	if err := domain.ValidateTransition(s.Status, models.StatusCompleted); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTerminalState, err)
	}

	cp := *video
	cp.Position = len(m.byCourse[video.CourseID]) + 1
	m.videos[cp.ID] = &cp
	m.byCourse[cp.CourseID] = append(m.byCourse[cp.CourseID], cp.ID)

	now := time.Now()
	s.Status = models.StatusCompleted
	s.Completing = false
	s.VideoID = &cp.ID
	s.ResolvedDuration = cp.Duration
	s.CompletedAt = &now
	s.UpdatedAt = now

	out := cp
	return &out, nil
}

func (m *Memory) MarkAborted(ctx context.Context, id uuid.UUID, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.ErrNotFound
	}
	if s.Status == models.StatusCompleted {
		return models.ErrAlreadyCompleted
	}
	if !domain.CanTransition(s.Status, models.StatusAborted) {
		return models.ErrTerminalState
	}

	s.Status = models.StatusAborted
	s.ErrorMessage = reason
	s.Completing = false
	s.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.UploadSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.UploadSession
	for id, s := range m.sessions {
		if s.Active() && s.ExpiresAt.Before(now) {
			cp, err := m.cloneSession(id)
			if err != nil {
				continue
			}
			out = append(out, cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *v
	return &cp, nil
}
