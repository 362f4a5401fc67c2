package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")

	// ErrAlreadyCompleted — операция над уже завершённой сессией.
	ErrAlreadyCompleted = errors.New("upload already completed")
	// ErrTerminalState — сессия aborted/failed, дальнейшие мутации запрещены.
	ErrTerminalState = errors.New("upload session already terminated")

	ErrIncompleteParts    = errors.New("incomplete parts")
	ErrNonSequentialParts = errors.New("non-sequential parts")

	// ErrStorageUnavailable — адаптер хранилища не ответил / отклонил вызов.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageFinalization — хранилище отклонило completion (stale receipt и т.п.).
	// Сессия остаётся незавершённой, повторная попытка допустима.
	ErrStorageFinalization = errors.New("storage finalization failed")
)
