package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/romariotrain/course-platform/internal/upload/models"
	"github.com/romariotrain/course-platform/internal/upload/s3"
	"github.com/romariotrain/course-platform/internal/upload/service"
)

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// InitiateUpload handles POST /courses/{courseID}/uploads
func (h *Handler) InitiateUpload(w http.ResponseWriter, r *http.Request) {
	courseID, err := uuid.Parse(chi.URLParam(r, "courseID"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid course id")
		return
	}
	defer r.Body.Close()

	var req InitiateUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	result, err := h.svc.Initiate(r.Context(), courseID, callerFromContext(r.Context()), service.InitiateRequest{
		Title:              req.Title,
		FileName:           req.FileName,
		FileSize:           req.FileSize,
		MimeType:           req.MimeType,
		PartSize:           req.PartSize,
		TotalParts:         req.TotalParts,
		AutoDetectDuration: req.AutoDetectDuration,
		ProvidedDuration:   req.ProvidedDuration,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, InitiateUploadResponse{
		SessionID:  result.SessionID,
		UploadID:   result.UploadID,
		StorageKey: result.StorageKey,
		PartSize:   result.PartSize,
		TotalParts: result.TotalParts,
		ExpiresAt:  result.ExpiresAt,
	})
}

// PartUploadURLs handles POST /uploads/{sessionID}/part-urls
func (h *Handler) PartUploadURLs(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()

	var req PartURLsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	urls, err := h.svc.PartUploadURLs(r.Context(), sessionID, callerFromContext(r.Context()), req.PartNumbers)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"urls": toPartURLResponses(urls)})
}

// RecordPart handles PUT /uploads/{sessionID}/parts/{partNumber}
func (h *Handler) RecordPart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	partNumber, err := strconv.Atoi(chi.URLParam(r, "partNumber"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid part number")
		return
	}
	defer r.Body.Close()

	var req RecordPartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	progress, err := h.svc.RecordPart(r.Context(), sessionID, callerFromContext(r.Context()), partNumber, req.ETag, req.SizeBytes)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RecordPartResponse{
		PartNumber: progress.PartNumber,
		Recorded:   progress.Recorded,
		Remaining:  progress.Remaining,
	})
}

// CompleteUpload handles POST /uploads/{sessionID}/complete
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	parts := make([]s3.PartInfo, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, s3.PartInfo{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	video, err := h.svc.Complete(r.Context(), sessionID, callerFromContext(r.Context()), parts, req.Duration)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(video))
}

// AbortUpload handles DELETE /uploads/{sessionID}
func (h *Handler) AbortUpload(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()

	var req AbortUploadRequest
	// Body опционален.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := h.svc.Abort(r.Context(), sessionID, callerFromContext(r.Context()), req.Reason); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

// GetSession handles GET /uploads/{sessionID}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	sess, err := h.svc.GetSession(r.Context(), sessionID, callerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrForbidden):
		writeErrorJSON(w, http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeErrorJSON(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		writeErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrAlreadyCompleted), errors.Is(err, models.ErrTerminalState):
		writeErrorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrIncompleteParts), errors.Is(err, models.ErrNonSequentialParts):
		writeErrorJSON(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrStorageUnavailable), errors.Is(err, models.ErrStorageFinalization):
		writeErrorJSON(w, http.StatusBadGateway, err.Error())
	default:
		writeErrorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
