package sentinel

import "errors"

// Sentinel dependency errors. Dependencies should return these (optionally wrapped)
// so services can translate them into domain errors exactly once.
var (
	ErrNotFound        = errors.New("not found")
	ErrExpired         = errors.New("expired")
	ErrScopeMismatch   = errors.New("scope mismatch")
	ErrStillProcessing = errors.New("still processing")
	ErrUnauthorized    = errors.New("unauthorized")
)
