package sentinel

import "errors"

// Sentinel errors describe facts about stored resources. Stores return them
// (optionally wrapped) and the service layer decides what they mean for the
// caller:
//   - ErrNotFound: no record with the requested key
//   - ErrConflict: a unique field is already taken
//   - ErrInvalidState: the record cannot make the requested transition
//   - ErrUnavailable: the backend could not be reached
//
// Input problems are not facts about storage; those use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
