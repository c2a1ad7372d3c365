package app

import "errors"

// Sentinel errors returned by App operations so the HTTP layer can map
// failures to statuses without string matching.
var (
	// ErrNotFound indicates the keyed entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request failed shape validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientCredits indicates the user cannot pay for a generation.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNoBillingAccount indicates the user has no billing customer record.
	ErrNoBillingAccount = errors.New("no billing account")
	// ErrGenerationUnavailable indicates the AI provider failed.
	ErrGenerationUnavailable = errors.New("story generation unavailable")
)
