package domain

import "errors"

// Tipos de error del core. Se comparan con errors.Is y se envuelven con %w.
var (
	ErrValidation         = errors.New("validation error")
	ErrAuth               = errors.New("auth error")
	ErrBackend            = errors.New("backend error")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
