package apperrors

import (
	"errors"
	"net/http"
)

// Kind strings surfaced in error response bodies so callers can distinguish
// failure classes that share an HTTP status code.
const (
	KindValidation        = "validation"
	KindUnauthorized      = "unauthorized"
	KindNoTarget          = "no_target_configured"
	KindRemoteUnavailable = "remote_unavailable"
	KindRemoteRejected    = "remote_rejected"
	KindTargetGone        = "target_gone"
	KindInternal          = "internal"
)

// HTTPStatus maps an error to the appropriate HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRemoteRejected):
		return http.StatusConflict
	case errors.Is(err, ErrNoTarget),
		errors.Is(err, ErrRemoteUnavailable),
		errors.Is(err, ErrTargetGone):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Kind maps an error to its externally observable kind string.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNoTarget):
		return KindNoTarget
	case errors.Is(err, ErrRemoteRejected):
		return KindRemoteRejected
	case errors.Is(err, ErrTargetGone):
		return KindTargetGone
	case errors.Is(err, ErrRemoteUnavailable):
		return KindRemoteUnavailable
	default:
		return KindInternal
	}
}
