package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates a failed password check.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSnapshot indicates no aggregated snapshot has been published yet.
	ErrNoSnapshot = errors.New("no snapshot available")
	// ErrGateNotConfigured indicates the close password has not been set up.
	ErrGateNotConfigured = errors.New("close gate not configured")
)
