package domain

import "errors"

// Error taxonomy. Concrete errors wrap one of these with fmt.Errorf("...: %w").
var (
	// ErrValidation rejects malformed input before any mutation.
	ErrValidation = errors.New("validation error")

	// ErrPersistence covers an unreadable, unwritable or malformed config file.
	ErrPersistence = errors.New("persistence error")

	// ErrFileAccess covers hosts file read/write failures (usually permissions).
	ErrFileAccess = errors.New("file access error")

	// ErrExternalCommand covers a missing or failing display tool.
	ErrExternalCommand = errors.New("external command error")

	// ErrQuotaExceeded is returned when the daily exception limit is used up.
	ErrQuotaExceeded = errors.New("daily exception limit reached")

	// ErrNoSuchRule is returned when no rule matches the requested domain.
	ErrNoSuchRule = errors.New("no rule for domain")
)
