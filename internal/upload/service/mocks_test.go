package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/course-platform/internal/upload/models"
	"github.com/romariotrain/course-platform/internal/upload/s3"
)

type SessionStoreMock struct {
	mock.Mock
}

func (m *SessionStoreMock) Create(ctx context.Context, s *models.UploadSession) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *SessionStoreMock) GetByID(ctx context.Context, id uuid.UUID) (*models.UploadSession, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.UploadSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStoreMock) MarkUploading(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *SessionStoreMock) UpsertPart(ctx context.Context, id uuid.UUID, part models.UploadedPart) (int, error) {
	args := m.Called(ctx, id, part)
	return args.Int(0), args.Error(1)
}

func (m *SessionStoreMock) BeginCompletion(ctx context.Context, id uuid.UUID) (*models.UploadSession, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.UploadSession), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStoreMock) AbandonCompletion(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *SessionStoreMock) FinishCompletion(ctx context.Context, id uuid.UUID, video *models.Video) (*models.Video, error) {
	args := m.Called(ctx, id, video)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *SessionStoreMock) MarkAborted(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *SessionStoreMock) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.UploadSession, error) {
	args := m.Called(ctx, now, limit)
	if v := args.Get(0); v != nil {
		return v.([]*models.UploadSession), args.Error(1)
	}
	return nil, args.Error(1)
}

type CourseStoreMock struct {
	mock.Mock
}

func (m *CourseStoreMock) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Course), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CourseStoreMock) VideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Video), args.Error(1)
	}
	return nil, args.Error(1)
}

type StorageMock struct {
	mock.Mock
}

func (m *StorageMock) Initiate(ctx context.Context, fileName, folder, contentType string, metadata map[string]string) (string, string, error) {
	args := m.Called(ctx, fileName, folder, contentType, metadata)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *StorageMock) PartUploadURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, uploadID, partNumber, ttl)
	return args.String(0), args.Error(1)
}

func (m *StorageMock) Complete(ctx context.Context, key, uploadID string, parts []s3.PartInfo) error {
	args := m.Called(ctx, key, uploadID, parts)
	return args.Error(0)
}

func (m *StorageMock) Abort(ctx context.Context, key, uploadID string) error {
	args := m.Called(ctx, key, uploadID)
	return args.Error(0)
}

func (m *StorageMock) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *StorageMock) HeadMetadata(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	if v := args.Get(0); v != nil {
		return v.(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}
