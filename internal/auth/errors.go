package auth

import "errors"

// Rejections produced by the gate and the issuance flows. The HTTP layer maps
// each of them to a status code; nothing below the transport edge does.
var (
	ErrUnauthenticated    = errors.New("auth: not authenticated")
	ErrInvalidCredentials = errors.New("auth: could not validate credentials")
	ErrEmailNotConfirmed  = errors.New("auth: email not confirmed")
	ErrUserNotActive      = errors.New("auth: user is not active")
	ErrForbidden          = errors.New("auth: operation forbidden")
	ErrInvalidEmailToken  = errors.New("auth: invalid token for email verification")
	ErrVerificationFailed = errors.New("auth: verification error")
)

// Token codec failures.
var (
	ErrInvalidScope       = errors.New("auth: invalid token scope")
	ErrMalformedOrExpired = errors.New("auth: token malformed or expired")
)

// Store and input validation results.
var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
