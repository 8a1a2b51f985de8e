package repositories

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when a conditional status update finds
	// the stored state different from the expected one. It indicates either a
	// programming error or a lost race between two workers; the caller must
	// abort the operation.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateActive is returned when creating an application while
	// another non-terminal application exists for the same (user, job) pair.
	ErrDuplicateActive = errors.New("an active application already exists for this job")

	// ErrBudgetExceeded is returned when reserving cost would push the
	// accumulated spend for the period over the configured ceiling.
	ErrBudgetExceeded = errors.New("generation budget exceeded for period")

	// ErrMissingContent is returned when an application is moved to applied
	// without at least one successful content-generation usage row.
	ErrMissingContent = errors.New("application has no successful generated content")
)
