package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNotReady indicates no remote client is bound yet (transport unavailable)
	ErrNotReady = errors.New("remote service is not ready")

	// ErrServerOffline indicates the story service is unreachable
	ErrServerOffline = errors.New("story service is unreachable")

	// ErrAuthFailed indicates the credentials or token were rejected
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrForbidden indicates the remote service refused the caller
	ErrForbidden = errors.New("operation not permitted")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrNotAuthenticated indicates an operation needs a signed-in identity
	ErrNotAuthenticated = errors.New("not signed in")

	// ErrAlreadyAuthenticated is returned by identity providers that refuse a
	// second login while a session is active
	ErrAlreadyAuthenticated = errors.New("user is already authenticated")

	// ErrLoginSuperseded indicates a later login attempt replaced this one
	ErrLoginSuperseded = errors.New("login superseded by a newer attempt")

	// ErrInvalidCategory indicates an unknown story category
	ErrInvalidCategory = errors.New("invalid category")

	// ErrInvalidProfile indicates a profile outside the field limits
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrEmptyTitle indicates a story without a title
	ErrEmptyTitle = errors.New("story title is required")

	// ErrMediaUnavailable indicates no audio output could be opened
	ErrMediaUnavailable = errors.New("media resource unavailable")
)
