package models

import "errors"

// Sentinel errors for common failure conditions
var (
	// Session state errors
	ErrSessionNotFound = errors.New("session not found")

	// MFA errors
	ErrMFANotEnrolled = errors.New("identity has no enrolled second factor")
	ErrMFACodeInvalid = errors.New("second factor code is invalid")
	ErrMFANotPending  = errors.New("session has no pending second factor")

	// Config errors
	ErrConfigInvalid = errors.New("security config update is invalid")
)
