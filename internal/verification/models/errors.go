package models

import (
	"errors"
	"fmt"

	"kycgate/pkg/platform/sentinel"
)

var (
	// ErrUsernameTaken and ErrEmailTaken identify which unique field collided.
	ErrUsernameTaken = fmt.Errorf("username already registered: %w", sentinel.ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", sentinel.ErrConflict)

	ErrRequestNotFound = fmt.Errorf("verification request: %w", sentinel.ErrNotFound)
	ErrAlreadyReviewed = fmt.Errorf("verification request already reviewed: %w", sentinel.ErrInvalidState)
)

// IsConflict reports whether err is a uniqueness collision.
func IsConflict(err error) bool {
	return errors.Is(err, sentinel.ErrConflict)
}
