// Package common defines shared sentinel errors used across the audio
// server. Callers should use errors.Is to match these values: every error
// returned by the pipeline wraps exactly one of them, so the transport
// layer can map kinds to statuses without string inspection.
package common

import "errors"

var (
	// Validation errors, detected before any side effect.
	ErrInvalidFormat      = errors.New("invalid format")
	ErrPreconditionFailed = errors.New("precondition failed")

	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Conversion errors.
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrConversionFailed  = errors.New("conversion failed")

	// Object-storage errors. Store-specific failures are always wrapped
	// into this kind; SDK error types never leak past the storage package.
	ErrStorage = errors.New("storage error")

	// Uncategorized failures (local I/O and the like).
	ErrInternal = errors.New("internal error")
)
