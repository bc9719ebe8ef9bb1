package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidMode      = errors.New("invalid job mode")
	ErrQuotaExceeded    = errors.New("quota exceeded")
	ErrConcurrencyLimit = errors.New("concurrent job limit exceeded")
	ErrTerminalState    = errors.New("job already in terminal state")
	ErrStateConflict    = errors.New("job state changed concurrently")
	ErrProviderFailure  = errors.New("provider failure")
)
