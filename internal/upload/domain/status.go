package domain

import (
	"fmt"

	"github.com/romariotrain/course-platform/internal/upload/models"
)

func IsTerminal(s models.UploadStatus) bool {
	switch s {
	case models.StatusCompleted, models.StatusAborted, models.StatusFailed:
		return true
	}
	return false
}

func CanTransition(from, to models.UploadStatus) bool {
	switch from {
	case models.StatusInitiated:
		return to == models.StatusUploading ||
			to == models.StatusCompleted ||
			to == models.StatusAborted ||
			to == models.StatusFailed
	case models.StatusUploading:
		return to == models.StatusCompleted ||
			to == models.StatusAborted ||
			to == models.StatusFailed
	case models.StatusCompleted, models.StatusAborted, models.StatusFailed:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to models.UploadStatus) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	return nil
}
