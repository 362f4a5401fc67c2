package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/course-platform/internal/upload/domain"
	"github.com/romariotrain/course-platform/internal/upload/models"
	"github.com/romariotrain/course-platform/internal/upload/repository"
	"github.com/romariotrain/course-platform/internal/upload/s3"
)

// Storage is the multipart protocol this service drives. Reads go through
// the same interface so tests can substitute the object store entirely.
type Storage interface {
	Initiate(ctx context.Context, fileName, folder, contentType string, metadata map[string]string) (key, uploadID string, err error)
	PartUploadURL(ctx context.Context, key, uploadID string, partNumber int, ttl time.Duration) (string, error)
	Complete(ctx context.Context, key, uploadID string, parts []s3.PartInfo) error
	Abort(ctx context.Context, key, uploadID string) error
	PublicURL(key string) string
	HeadMetadata(ctx context.Context, key string) (map[string]string, error)
}

// durationMetadataKey — object metadata ключ, в который клиент может записать
// длительность при прямой загрузке байт.
const durationMetadataKey = "duration-seconds"

const storageFolder = "courses/videos"

// Service owns the upload session state machine: initiate, part URLs, part
// receipts, completion and abort. It never sees the uploaded bytes.
type Service struct {
	sessions repository.SessionRepository
	courses  repository.CourseRepository
	storage  Storage
	urlTTL   time.Duration
	clock    func() time.Time
	idGen    func() uuid.UUID
	log      zerolog.Logger
}

func New(sessions repository.SessionRepository, courses repository.CourseRepository, storage Storage, urlTTL time.Duration, log zerolog.Logger) *Service {
	return &Service{
		sessions: sessions,
		courses:  courses,
		storage:  storage,
		urlTTL:   urlTTL,
		clock:    time.Now,
		idGen:    uuid.New,
		log:      log.With().Str("component", "upload_service").Logger(),
	}
}

type InitiateRequest struct {
	Title              string
	FileName           string
	FileSize           int64
	MimeType           string
	PartSize           int64
	TotalParts         int
	AutoDetectDuration bool
	ProvidedDuration   int
}

type InitiateResult struct {
	SessionID  uuid.UUID
	UploadID   string
	StorageKey string
	PartSize   int64
	TotalParts int
	ExpiresAt  time.Time
}

type PartURL struct {
	PartNumber int
	URL        string
	ExpiresAt  time.Time
}

type PartProgress struct {
	PartNumber int
	Recorded   int
	Remaining  int
}

// Initiate validates the request, opens a multipart upload in storage and
// persists a new session. Validation errors are detected before any storage
// call; a storage failure here leaves no session behind.
func (s *Service) Initiate(ctx context.Context, courseID uuid.UUID, caller models.Caller, req InitiateRequest) (*InitiateResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(course.InstructorID) {
		return nil, fmt.Errorf("%w: caller is neither course instructor nor admin", models.ErrForbidden)
	}

	key, uploadID, err := s.storage.Initiate(ctx, req.FileName, storageFolder, req.MimeType, map[string]string{
		"course-id": courseID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: initiate multipart upload: %v", models.ErrStorageUnavailable, err)
	}

	now := s.clock()
	sess := &models.UploadSession{
		ID:                 s.idGen(),
		CourseID:           courseID,
		InstructorID:       course.InstructorID,
		InitiatorRole:      caller.Role,
		Title:              req.Title,
		FileName:           req.FileName,
		FileSize:           req.FileSize,
		MimeType:           req.MimeType,
		PartSize:           req.PartSize,
		TotalParts:         req.TotalParts,
		UploadID:           uploadID,
		StorageKey:         key,
		AutoDetectDuration: req.AutoDetectDuration,
		ProvidedDuration:   req.ProvidedDuration,
		Status:             models.StatusInitiated,
		ExpiresAt:          now.Add(models.SessionTTL),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		// Проигравший гонку оставил бы открытый multipart upload — отменяем его.
		if abortErr := s.storage.Abort(ctx, key, uploadID); abortErr != nil {
			s.log.Warn().Err(abortErr).Str("storage_key", key).Msg("failed to abort orphan multipart upload")
		}
		return nil, err
	}

	return &InitiateResult{
		SessionID:  sess.ID,
		UploadID:   uploadID,
		StorageKey: key,
		PartSize:   sess.PartSize,
		TotalParts: sess.TotalParts,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}

func validateInitiate(req InitiateRequest) error {
	if req.Title == "" || req.FileName == "" {
		return fmt.Errorf("%w: title and file name are required", models.ErrInvalidArgument)
	}
	if _, ok := models.AllowedVideoTypes[req.MimeType]; !ok {
		return fmt.Errorf("%w: mime type %q is not an allowed video type", models.ErrInvalidArgument, req.MimeType)
	}
	if req.FileSize <= 0 || req.FileSize > models.MaxFileSize {
		return fmt.Errorf("%w: file size %d out of range (0, %d]", models.ErrInvalidArgument, req.FileSize, models.MaxFileSize)
	}
	if req.PartSize < models.MinPartSize {
		return fmt.Errorf("%w: part size %d below minimum %d", models.ErrInvalidArgument, req.PartSize, models.MinPartSize)
	}
	if req.TotalParts < 1 {
		return fmt.Errorf("%w: total parts must be >= 1, got %d", models.ErrInvalidArgument, req.TotalParts)
	}
	if expected := int((req.FileSize + req.PartSize - 1) / req.PartSize); expected != req.TotalParts {
		return fmt.Errorf("%w: total parts %d does not match file size / part size (expected %d)", models.ErrInvalidArgument, req.TotalParts, expected)
	}
	if !req.AutoDetectDuration && req.ProvidedDuration <= 0 {
		return fmt.Errorf("%w: positive duration is required when auto-detect is off", models.ErrInvalidArgument)
	}
	return nil
}

// PartUploadURLs presigns one short-lived URL per requested part number.
// The caller uploads the bytes directly to storage with these URLs.
func (s *Service) PartUploadURLs(ctx context.Context, sessionID uuid.UUID, caller models.Caller, partNumbers []int) ([]PartURL, error) {
	sess, err := s.ownedActiveSession(ctx, sessionID, caller)
	if err != nil {
		return nil, err
	}
	if len(partNumbers) == 0 {
		return nil, fmt.Errorf("%w: no part numbers requested", models.ErrInvalidArgument)
	}
	for _, n := range partNumbers {
		if n < 1 || n > sess.TotalParts {
			return nil, fmt.Errorf("%w: part number %d out of range [1, %d]", models.ErrInvalidArgument, n, sess.TotalParts)
		}
	}

	if sess.Status == models.StatusInitiated {
		if err := s.sessions.MarkUploading(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	expiresAt := s.clock().Add(s.urlTTL)
	urls := make([]PartURL, 0, len(partNumbers))
	for _, n := range partNumbers {
		u, err := s.storage.PartUploadURL(ctx, sess.StorageKey, sess.UploadID, n, s.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: presign part %d: %v", models.ErrStorageUnavailable, n, err)
		}
		urls = append(urls, PartURL{PartNumber: n, URL: u, ExpiresAt: expiresAt})
	}
	return urls, nil
}

// RecordPart stores the receipt the object store returned for one transferred
// part. Re-recording the same part number replaces the receipt, so a client
// may retry a chunk after a dropped acknowledgment.
func (s *Service) RecordPart(ctx context.Context, sessionID uuid.UUID, caller models.Caller, partNumber int, etag string, size int64) (*PartProgress, error) {
	sess, err := s.ownedActiveSession(ctx, sessionID, caller)
	if err != nil {
		return nil, err
	}
	if partNumber < 1 || partNumber > sess.TotalParts {
		return nil, fmt.Errorf("%w: part number %d out of range [1, %d]", models.ErrInvalidArgument, partNumber, sess.TotalParts)
	}
	if etag == "" {
		return nil, fmt.Errorf("%w: receipt tag is required", models.ErrInvalidArgument)
	}

	if sess.Status == models.StatusInitiated {
		if err := s.sessions.MarkUploading(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	recorded, err := s.sessions.UpsertPart(ctx, sessionID, models.UploadedPart{
		PartNumber: partNumber,
		ETag:       etag,
		SizeBytes:  size,
		RecordedAt: s.clock(),
	})
	if err != nil {
		return nil, err
	}

	return &PartProgress{
		PartNumber: partNumber,
		Recorded:   recorded,
		Remaining:  sess.TotalParts - recorded,
	}, nil
}

// Complete validates the submitted part set, finalizes the multipart object
// and appends the resulting video to the course. Calling it again after
// success returns the same video without touching storage.
func (s *Service) Complete(ctx context.Context, sessionID uuid.UUID, caller models.Caller, parts []s3.PartInfo, duration int) (*models.Video, error) {
	sess, err := s.ownedSession(ctx, sessionID, caller)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.StatusCompleted {
		return s.memoizedVideo(ctx, sess)
	}
	if sess.Terminal() {
		return nil, fmt.Errorf("%w: session is %s", models.ErrTerminalState, sess.Status)
	}

	ordered, err := validateParts(parts, sess)
	if err != nil {
		return nil, err
	}

	claimed, err := s.sessions.BeginCompletion(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if claimed.Status == models.StatusCompleted {
		// Конкурент успел первым — возвращаем его результат.
		return s.memoizedVideo(ctx, claimed)
	}

	if err := s.storage.Complete(ctx, sess.StorageKey, sess.UploadID, ordered); err != nil {
		if abandonErr := s.sessions.AbandonCompletion(ctx, sessionID); abandonErr != nil {
			s.log.Error().Err(abandonErr).Str("session_id", sessionID.String()).Msg("failed to release completion claim")
		}
		return nil, fmt.Errorf("%w: %v", models.ErrStorageFinalization, err)
	}

	resolved := domain.ResolveDuration(duration, sess, s.probeDuration(ctx, sess))

	video := &models.Video{
		ID:         s.idGen(),
		CourseID:   sess.CourseID,
		Title:      sess.Title,
		URL:        s.storage.PublicURL(sess.StorageKey),
		StorageKey: sess.StorageKey,
		Duration:   resolved,
		FileSize:   sess.FileSize,
		UploadedAt: s.clock(),
	}

	stored, err := s.sessions.FinishCompletion(ctx, sessionID, video)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Str("video_id", stored.ID.String()).
		Int("position", stored.Position).
		Int("duration", stored.Duration).
		Msg("upload completed")

	return stored, nil
}

// probeDuration best-effort reads the duration the uploader may have attached
// as object metadata. Only consulted when auto-detect is on.
func (s *Service) probeDuration(ctx context.Context, sess *models.UploadSession) int {
	if !sess.AutoDetectDuration {
		return 0
	}
	meta, err := s.storage.HeadMetadata(ctx, sess.StorageKey)
	if err != nil {
		s.log.Warn().Err(err).Str("storage_key", sess.StorageKey).Msg("duration probe failed")
		return 0
	}
	v, ok := meta[durationMetadataKey]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func validateParts(parts []s3.PartInfo, sess *models.UploadSession) ([]s3.PartInfo, error) {
	if len(parts) != sess.TotalParts {
		return nil, fmt.Errorf("%w: got %d parts, expected %d", models.ErrIncompleteParts, len(parts), sess.TotalParts)
	}

	ordered := make([]s3.PartInfo, len(parts))
	copy(ordered, parts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PartNumber < ordered[j].PartNumber })

	for i, p := range ordered {
		want := i + 1
		if p.PartNumber == want {
			continue
		}
		if i > 0 && p.PartNumber == ordered[i-1].PartNumber {
			return nil, fmt.Errorf("%w: duplicate part number %d", models.ErrNonSequentialParts, p.PartNumber)
		}
		return nil, fmt.Errorf("%w: missing part number %d", models.ErrNonSequentialParts, want)
	}

	// Каждая заявленная часть должна быть предварительно зарегистрирована.
	if missing := sess.MissingParts(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: parts %v were never recorded", models.ErrIncompleteParts, missing)
	}

	return ordered, nil
}

func (s *Service) memoizedVideo(ctx context.Context, sess *models.UploadSession) (*models.Video, error) {
	if sess.VideoID == nil {
		return nil, fmt.Errorf("%w: completed session has no video reference", models.ErrAlreadyCompleted)
	}
	return s.courses.VideoByID(ctx, *sess.VideoID)
}

// Abort cancels a non-terminal session and releases storage-side resources.
// A failed storage abort is logged and the session is still terminated: the
// reaper leak policy applies, the uniqueness slot must always be freed.
func (s *Service) Abort(ctx context.Context, sessionID uuid.UUID, caller models.Caller, reason string) error {
	sess, err := s.ownedSession(ctx, sessionID, caller)
	if err != nil {
		return err
	}
	if sess.Status == models.StatusCompleted {
		return models.ErrAlreadyCompleted
	}
	if sess.Terminal() {
		return fmt.Errorf("%w: session is %s", models.ErrTerminalState, sess.Status)
	}

	if err := s.storage.Abort(ctx, sess.StorageKey, sess.UploadID); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("storage abort failed")
	}

	if reason == "" {
		reason = "aborted by caller"
	}
	return s.sessions.MarkAborted(ctx, sessionID, reason)
}

// GetSession returns the session with its progress for the owning caller.
func (s *Service) GetSession(ctx context.Context, sessionID uuid.UUID, caller models.Caller) (*models.UploadSession, error) {
	return s.ownedSession(ctx, sessionID, caller)
}

func (s *Service) ownedSession(ctx context.Context, sessionID uuid.UUID, caller models.Caller) (*models.UploadSession, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !caller.CanManage(sess.InstructorID) {
		return nil, fmt.Errorf("%w: caller does not own this upload", models.ErrForbidden)
	}
	return sess, nil
}

// ownedActiveSession дополнительно отклоняет терминальные сессии.
func (s *Service) ownedActiveSession(ctx context.Context, sessionID uuid.UUID, caller models.Caller) (*models.UploadSession, error) {
	sess, err := s.ownedSession(ctx, sessionID, caller)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.StatusCompleted {
		return nil, models.ErrAlreadyCompleted
	}
	if sess.Terminal() {
		return nil, fmt.Errorf("%w: session is %s", models.ErrTerminalState, sess.Status)
	}
	return sess, nil
}
