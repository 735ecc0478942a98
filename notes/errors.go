package notes

import "errors"

// Sentinel errors for note operations.
var (
	ErrInvalidSort  = errors.New("notes: invalid sort")
	ErrInvalidPage  = errors.New("notes: invalid page")
	ErrInvalidScope = errors.New("notes: invalid scope")
	ErrInvalidNote  = errors.New("notes: invalid note")
)
