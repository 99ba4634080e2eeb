package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail signals a unique violation on subscriptions.email.
	ErrDuplicateEmail = errors.New("email already subscribed")

	// ErrAlreadyCompleted signals a second Complete call for the same
	// idempotency key. Reservation and completion share one transaction,
	// so hitting this is a programming error, not a race.
	ErrAlreadyCompleted = errors.New("idempotency record already completed")
)
