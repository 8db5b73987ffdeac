// Package common defines shared constants and sentinel errors used across
// the FailSeed server and its terminal client. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrVersionConflict = errors.New("version conflict")

	// Validation errors raised before any external call or mutation.
	ErrValidation    = errors.New("validation error")
	ErrInputTooLarge = errors.New("input too large")

	// Conversation lifecycle errors.
	ErrSafetyConcern     = errors.New("safety concern")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrAlreadyCompleted  = errors.New("conversation already completed")
	ErrTurnLimitReached  = errors.New("turn limit reached")
	ErrExportUnavailable = errors.New("export disabled")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
