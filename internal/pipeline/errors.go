package pipeline

import "errors"

var (
	// ErrRenewalDenied is returned when the renewal endpoint refuses to issue a credential.
	ErrRenewalDenied = errors.New("renewal denied")

	// ErrNetwork is returned when the renewal endpoint cannot be reached.
	ErrNetwork = errors.New("renewal endpoint unreachable")

	// ErrNoSubject is returned when no subject id is stored for the session.
	ErrNoSubject = errors.New("no subject id available for renewal")
)
