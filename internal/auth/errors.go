package auth

import "errors"

var (
	// ErrDecode is returned when a credential is not a three-part token with a JSON payload.
	ErrDecode = errors.New("malformed credential")

	// ErrExpiredCredential is returned when the credential's exp claim has passed.
	ErrExpiredCredential = errors.New("credential expired")

	// ErrInsufficientRole is returned when the credential's role does not grant the surface.
	ErrInsufficientRole = errors.New("insufficient role")
)
