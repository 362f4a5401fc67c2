package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/romariotrain/course-platform/internal/upload/models"
)

type callerKey struct{}

// CallerIdentity reads the identity the gateway resolved after authenticating
// the request. This service trusts the headers; it never checks credentials.
func CallerIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get("X-User-Id"))
		if err != nil {
			writeErrorJSON(w, http.StatusUnauthorized, "missing or invalid X-User-Id header")
			return
		}
		role := models.Role(r.Header.Get("X-User-Role"))
		if !role.Valid() {
			writeErrorJSON(w, http.StatusUnauthorized, "missing or invalid X-User-Role header")
			return
		}

		ctx := context.WithValue(r.Context(), callerKey{}, models.Caller{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) models.Caller {
	c, _ := ctx.Value(callerKey{}).(models.Caller)
	return c
}
