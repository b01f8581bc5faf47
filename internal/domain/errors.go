package domain

import "errors"

var (
	// ErrMalformedToken is returned when a token string cannot be parsed.
	ErrMalformedToken = errors.New("malformed token")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidSignature is returned when the token signature does not verify.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrRevokedOrUnknown is returned when a refresh token is not the stored one.
	ErrRevokedOrUnknown = errors.New("refresh token revoked or unknown")
	// ErrStorageUnavailable wraps failures of a backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidTokenRequest is returned when a token is requested with an empty
	// subject or a non-positive lifetime.
	ErrInvalidTokenRequest = errors.New("invalid token request")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

// IsAuthFailure reports whether err is an authentication rejection, as opposed to
// an infrastructure failure. Auth failures are rendered uniformly to clients.
func IsAuthFailure(err error) bool {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return false
	}
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrRevokedOrUnknown) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrUserNotFound)
}
