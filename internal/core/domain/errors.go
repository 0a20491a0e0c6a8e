package domain

import "errors"

// Common errors for the domain layer
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrServiceUnavailable = errors.New("service unavailable")

	ErrConfiguration      = errors.New("invalid configuration")
	ErrConnectionNotFound = errors.New("connection string not found")
	ErrUnknownColumn      = errors.New("invalid column name")

	ErrUserNotFound  = errors.New("no user found")
	ErrRoleNotFound  = errors.New("no role found")
	ErrAlreadyInRole = errors.New("user already in role")
	ErrNotInRole     = errors.New("user not in role")
	ErrRolePopulated = errors.New("role populated")

	// ErrStoreInconsistent is returned when a mutating statement did not
	// affect exactly the expected number of rows.
	ErrStoreInconsistent = errors.New("db failure")
)
