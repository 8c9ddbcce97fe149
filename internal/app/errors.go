package app

import "errors"

var (
	// ErrUnauthenticated indicates the request carried no valid identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized indicates the caller does not own the resource.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("invalid input")
	// ErrExternalProvider indicates the identity provider could not complete
	// an operation after local state was already changed.
	ErrExternalProvider = errors.New("external provider error")
	// ErrUpstream indicates a dependency (transcript API, model gateway)
	// failed.
	ErrUpstream = errors.New("upstream error")
)
