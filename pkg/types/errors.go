package types

import "errors"

// Domain errors for fingerprinting and clone reporting
var (
	// Configuration errors
	ErrInvalidBlockSize = errors.New("block size must be >= 1")

	// Precondition violations on chunk calls
	ErrEmptyResourceID = errors.New("resource ID is required")
	ErrNilStatements   = errors.New("statement sequence is required")

	// Hash decoding errors
	ErrInvalidHash = errors.New("hash must be 16 hexadecimal characters")

	// Clone report errors
	ErrTooFewParts   = errors.New("clone group needs at least two parts")
	ErrInvalidSpan   = errors.New("start line must be before or equal to end line")
	ErrMissingOrigin = errors.New("clone part resource ID is required")
)
