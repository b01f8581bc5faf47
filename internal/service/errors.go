package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

var (
	errWrongKind      = fmt.Errorf("%w: not a refresh token", domain.ErrMalformedToken)
	errUnknownSubject = fmt.Errorf("%w: subject no longer exists", domain.ErrRevokedOrUnknown)
	errRotationLost   = fmt.Errorf("%w: refresh token rotated concurrently", domain.ErrRevokedOrUnknown)
)

// rejectionReason labels a refresh failure for audit logs. The label never
// reaches the client.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, errWrongKind):
		return "wrong_kind"
	case errors.Is(err, errUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, errRotationLost):
		return "rotation_lost"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domain.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, domain.ErrRevokedOrUnknown):
		return "revoked"
	default:
		return "error"
	}
}
