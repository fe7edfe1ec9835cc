package domain

import "errors"

var (
	// ErrStudentNotFound is returned when a student id has no profile.
	ErrStudentNotFound = errors.New("student not found")
	// ErrHouseNotFound is returned when a house row is missing from the registry.
	ErrHouseNotFound = errors.New("house not found")
	// ErrUnknownHouse indicates a house name outside the fixed enumeration.
	ErrUnknownHouse = errors.New("unknown house name")
	// ErrInvalidAnswers indicates a malformed quiz submission.
	ErrInvalidAnswers = errors.New("invalid quiz answers")
	// ErrStoreUnavailable indicates the persistent store is unreachable or misconfigured.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUserExists is returned by identity providers when an email is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by identity providers for unknown emails.
	ErrUserNotFound = errors.New("user not found")
)
