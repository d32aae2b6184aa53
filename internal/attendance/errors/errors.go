package errors

import "errors"

var (
	// ErrTokenInvalid covers malformed tokens and tampered tags alike; the
	// scanner gets the same answer either way.
	ErrTokenInvalid = errors.New("attendance token is invalid")

	ErrTokenExpired     = errors.New("attendance token has expired")
	ErrSessionNotActive = errors.New("session is not active")
	ErrIdentityRequired = errors.New("a user id or email is required")
)
