package domain

import "github.com/romariotrain/course-platform/internal/upload/models"

// ResolveDuration picks the authoritative clip duration, in seconds.
// Priority, first positive wins:
//  1. explicit value passed with the completion call;
//  2. the duration the client declared at initiation (auto-detect off);
//  3. a duration already resolved earlier (repeated completion);
//  4. a value probed from object metadata;
//  5. 0 — unknown, never negative, never invented.
func ResolveDuration(explicit int, sess *models.UploadSession, probed int) int {
	if explicit > 0 {
		return explicit
	}
	if !sess.AutoDetectDuration && sess.ProvidedDuration > 0 {
		return sess.ProvidedDuration
	}
	if sess.ResolvedDuration > 0 {
		return sess.ResolvedDuration
	}
	if probed > 0 {
		return probed
	}
	return 0
}
