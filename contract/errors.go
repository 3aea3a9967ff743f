package contract

import "errors"

// Command failure taxonomy. Every failure is raised before any state write
// or event append, so a rejected command leaves no partial effects. Callers
// match with errors.Is.
var (
	// ErrUnauthorized means the caller lacks the role the command requires
	// (issuer authorization, or ownership for issuer-set changes).
	ErrUnauthorized = errors.New("not an authorized issuer")

	// ErrNotFound means the referenced certificate id does not exist.
	ErrNotFound = errors.New("certificate not found")

	// ErrAlreadyRevoked means a revoke targeted an already-invalid
	// certificate. Revocation transitions isValid exactly once.
	ErrAlreadyRevoked = errors.New("certificate already revoked")

	// ErrInvalidInput means a malformed argument: empty or oversized
	// strings, bad dates, or an expiry not after the issue date.
	ErrInvalidInput = errors.New("invalid input")
)
