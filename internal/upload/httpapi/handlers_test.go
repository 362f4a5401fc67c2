package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/course-platform/internal/upload/models"
	"github.com/romariotrain/course-platform/internal/upload/repository"
	"github.com/romariotrain/course-platform/internal/upload/s3"
	"github.com/romariotrain/course-platform/internal/upload/service"
)

// fakeStorage is a deterministic stand-in for the object store: the handler
// tests exercise the full stack below it.
type fakeStorage struct {
	failComplete bool
	headMeta     map[string]string
}

func (f *fakeStorage) Initiate(_ context.Context, fileName, folder, _ string, _ map[string]string) (string, string, error) {
	return folder + "/" + fileName, "upload-123", nil
}

func (f *fakeStorage) PartUploadURL(_ context.Context, key, _ string, partNumber int, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://s3.local/%s?partNumber=%d", key, partNumber), nil
}

func (f *fakeStorage) Complete(context.Context, string, string, []s3.PartInfo) error {
	if f.failComplete {
		return fmt.Errorf("finalize rejected")
	}
	return nil
}

func (f *fakeStorage) Abort(context.Context, string, string) error { return nil }

func (f *fakeStorage) PublicURL(key string) string { return "https://cdn.local/" + key }

func (f *fakeStorage) HeadMetadata(context.Context, string) (map[string]string, error) {
	return f.headMeta, nil
}

type testEnv struct {
	router       http.Handler
	repo         *repository.Memory
	storage      *fakeStorage
	courseID     uuid.UUID
	instructorID uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := repository.NewMemory()
	storage := &fakeStorage{}
	svc := service.New(repo, repo, storage, 15*time.Minute, zerolog.Nop())

	env := &testEnv{
		router:       NewRouter(New(svc)),
		repo:         repo,
		storage:      storage,
		courseID:     uuid.New(),
		instructorID: uuid.New(),
	}
	repo.AddCourse(&models.Course{ID: env.courseID, InstructorID: env.instructorID, Title: "Go course"})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, caller *models.Caller) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != nil {
		req.Header.Set("X-User-Id", caller.ID.String())
		req.Header.Set("X-User-Role", string(caller.Role))
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func validInitiateBody() InitiateUploadRequest {
	return InitiateUploadRequest{
		Title:            "Lesson 1",
		FileName:         "lesson1.mp4",
		FileSize:         100 << 20,
		MimeType:         "video/mp4",
		PartSize:         5 << 20,
		TotalParts:       20,
		ProvidedDuration: 120,
	}
}

func TestRouter_RequiresIdentityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/courses/"+env.courseID.String()+"/uploads", validInitiateBody(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Malformed role is rejected too.
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+uuid.NewString(), nil)
	req.Header.Set("X-User-Id", uuid.NewString())
	req.Header.Set("X-User-Role", "superuser")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitiateUpload_UnknownCourse(t *testing.T) {
	env := newTestEnv(t)
	caller := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}

	rec := env.do(t, http.MethodPost, "/courses/"+uuid.NewString()+"/uploads", validInitiateBody(), caller)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInitiateUpload_ValidationAndForbidden(t *testing.T) {
	env := newTestEnv(t)
	path := "/courses/" + env.courseID.String() + "/uploads"

	// Bad payload: part count does not cover the file.
	body := validInitiateBody()
	body.TotalParts = 7
	rec := env.do(t, http.MethodPost, path, body, &models.Caller{ID: env.instructorID, Role: models.RoleInstructor})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Someone else's instructor id.
	rec = env.do(t, http.MethodPost, path, validInitiateBody(), &models.Caller{ID: uuid.New(), Role: models.RoleInstructor})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInitiateUpload_SecondActiveSessionConflicts(t *testing.T) {
	env := newTestEnv(t)
	caller := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}
	path := "/courses/" + env.courseID.String() + "/uploads"

	rec := env.do(t, http.MethodPost, path, validInitiateBody(), caller)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, path, validInitiateBody(), caller)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

// Full happy path: initiate, presign, record every part, complete.
func TestUploadFlow_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	caller := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}

	rec := env.do(t, http.MethodPost, "/courses/"+env.courseID.String()+"/uploads", validInitiateBody(), caller)
	require.Equal(t, http.StatusCreated, rec.Code)
	initiated := decode[InitiateUploadResponse](t, rec)
	require.NotEqual(t, uuid.Nil, initiated.SessionID)
	assert.Equal(t, 20, initiated.TotalParts)

	base := "/uploads/" + initiated.SessionID.String()

	rec = env.do(t, http.MethodPost, base+"/part-urls", PartURLsRequest{PartNumbers: []int{1, 2, 3}}, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	urls := decode[map[string][]PartURLResponse](t, rec)
	require.Len(t, urls["urls"], 3)
	assert.Contains(t, urls["urls"][0].URL, "partNumber=1")

	completed := make([]CompletedPartDTO, 0, 20)
	for n := 1; n <= 20; n++ {
		etag := fmt.Sprintf("t%d", n)
		rec = env.do(t, http.MethodPut, fmt.Sprintf("%s/parts/%d", base, n), RecordPartRequest{ETag: etag, SizeBytes: 5 << 20}, caller)
		require.Equal(t, http.StatusOK, rec.Code)
		progress := decode[RecordPartResponse](t, rec)
		assert.Equal(t, n, progress.Recorded)
		assert.Equal(t, 20-n, progress.Remaining)
		completed = append(completed, CompletedPartDTO{PartNumber: n, ETag: etag})
	}

	rec = env.do(t, http.MethodGet, base, nil, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[SessionResponse](t, rec)
	assert.Equal(t, models.StatusUploading, sess.Status)
	assert.Equal(t, 20, sess.Recorded)
	assert.Empty(t, sess.MissingParts)

	rec = env.do(t, http.MethodPost, base+"/complete", CompleteUploadRequest{Parts: completed}, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	video := decode[VideoResponse](t, rec)
	assert.Equal(t, env.courseID, video.CourseID)
	assert.Equal(t, "Lesson 1", video.Title)
	assert.Equal(t, 120, video.Duration)
	assert.Equal(t, 1, video.Position)
	assert.Contains(t, video.URL, "https://cdn.local/")

	// Repeating the completion returns the same video.
	rec = env.do(t, http.MethodPost, base+"/complete", CompleteUploadRequest{Parts: completed}, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[VideoResponse](t, rec)
	assert.Equal(t, video.ID, again.ID)
	assert.Equal(t, video.Position, again.Position)
}

func TestCompleteUpload_IncompletePartsRejected(t *testing.T) {
	env := newTestEnv(t)
	caller := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}

	rec := env.do(t, http.MethodPost, "/courses/"+env.courseID.String()+"/uploads", validInitiateBody(), caller)
	require.Equal(t, http.StatusCreated, rec.Code)
	initiated := decode[InitiateUploadResponse](t, rec)
	base := "/uploads/" + initiated.SessionID.String()

	// Only part 1 is recorded out of 20.
	rec = env.do(t, http.MethodPut, base+"/parts/1", RecordPartRequest{ETag: "t1"}, caller)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/complete", CompleteUploadRequest{
		Parts: []CompletedPartDTO{{PartNumber: 1, ETag: "t1"}},
	}, caller)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCompleteUpload_StorageFailureMapsToBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.storage.failComplete = true
	caller := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}

	rec := env.do(t, http.MethodPost, "/courses/"+env.courseID.String()+"/uploads", validInitiateBody(), caller)
	require.Equal(t, http.StatusCreated, rec.Code)
	initiated := decode[InitiateUploadResponse](t, rec)
	base := "/uploads/" + initiated.SessionID.String()

	completed := make([]CompletedPartDTO, 0, 20)
	for n := 1; n <= 20; n++ {
		etag := fmt.Sprintf("t%d", n)
		rec = env.do(t, http.MethodPut, fmt.Sprintf("%s/parts/%d", base, n), RecordPartRequest{ETag: etag}, caller)
		require.Equal(t, http.StatusOK, rec.Code)
		completed = append(completed, CompletedPartDTO{PartNumber: n, ETag: etag})
	}

	rec = env.do(t, http.MethodPost, base+"/complete", CompleteUploadRequest{Parts: completed}, caller)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The session survives a storage failure: retry is possible.
	rec = env.do(t, http.MethodGet, base, nil, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[SessionResponse](t, rec)
	assert.Equal(t, models.StatusUploading, sess.Status)
}

func TestAbortUpload_TerminatesSession(t *testing.T) {
	env := newTestEnv(t)
	caller := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}

	rec := env.do(t, http.MethodPost, "/courses/"+env.courseID.String()+"/uploads", validInitiateBody(), caller)
	require.Equal(t, http.StatusCreated, rec.Code)
	initiated := decode[InitiateUploadResponse](t, rec)
	base := "/uploads/" + initiated.SessionID.String()

	rec = env.do(t, http.MethodDelete, base, AbortUploadRequest{Reason: "wrong file"}, caller)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, base, nil, caller)
	require.Equal(t, http.StatusOK, rec.Code)
	sess := decode[SessionResponse](t, rec)
	assert.Equal(t, models.StatusAborted, sess.Status)
	assert.Equal(t, "wrong file", sess.ErrorMessage)

	// Aborting twice is a conflict.
	rec = env.do(t, http.MethodDelete, base, nil, caller)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetSession_ForbiddenForStranger(t *testing.T) {
	env := newTestEnv(t)
	owner := &models.Caller{ID: env.instructorID, Role: models.RoleInstructor}

	rec := env.do(t, http.MethodPost, "/courses/"+env.courseID.String()+"/uploads", validInitiateBody(), owner)
	require.Equal(t, http.StatusCreated, rec.Code)
	initiated := decode[InitiateUploadResponse](t, rec)

	stranger := &models.Caller{ID: uuid.New(), Role: models.RoleInstructor}
	rec = env.do(t, http.MethodGet, "/uploads/"+initiated.SessionID.String(), nil, stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin can read anyone's session.
	admin := &models.Caller{ID: uuid.New(), Role: models.RoleAdmin}
	rec = env.do(t, http.MethodGet, "/uploads/"+initiated.SessionID.String(), nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}
