package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hotel-booking/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewUnauthorized is the single response for every authentication failure.
// It carries no detail about which check failed.
func NewUnauthorized() error {
	return NewDomainError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewStorageUnavailable(err error) error {
	return &DomainError{
		Code:       "STORAGE_UNAVAILABLE",
		Message:    "storage temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts service errors to DomainError. Storage failures are
// checked before auth failures so an unreachable store is never reported as 401.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fromFiberError(fiberErr)
	}

	var mapped error
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable):
		mapped = NewStorageUnavailable(err)
	case domain.IsAuthFailure(err):
		mapped = NewUnauthorized()
	case errors.Is(err, domain.ErrEmailTaken):
		mapped = NewConflict("email already registered", nil)
	case errors.Is(err, domain.ErrInvalidTokenRequest):
		mapped = NewValidationError("invalid token request", nil)
	default:
		mapped = NewInternalError(err)
	}
	return mapped.(*DomainError)
}

func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}

func fromFiberError(fe *fiber.Error) *DomainError {
	if fe.Code == http.StatusUnauthorized {
		return NewUnauthorized().(*DomainError)
	}
	code := strings.ToUpper(strings.ReplaceAll(http.StatusText(fe.Code), " ", "_"))
	if code == "" {
		code = "HTTP_ERROR"
	}
	return NewDomainError(code, fe.Message, fe.Code, nil)
}
