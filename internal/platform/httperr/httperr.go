// Package httperr renders apperr values as echo HTTP errors.
package httperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

// Body is the JSON error payload returned to clients.
type Body struct {
	Code      apperr.Code `json:"code"`
	Message   string      `json:"message"`
	Available *int        `json:"available,omitempty"`
	Requested *int        `json:"requested,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
}

// From converts err to an *echo.HTTPError. Existing echo errors pass through.
// Infrastructure failures get a generic message; the cause is kept as
// Internal for logging.
func From(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return &echo.HTTPError{
			Code:     http.StatusServiceUnavailable,
			Message:  Body{Code: apperr.CodeStorageUnavailable, Message: "service temporarily unavailable, retry later", Retryable: true},
			Internal: err,
		}
	}

	body := Body{Code: ae.Code, Message: ae.Message}
	status := http.StatusInternalServerError
	switch ae.Code {
	case apperr.CodeInvalidArgument, apperr.CodeInvalidQuantity, apperr.CodeAmbiguousTarget:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeInsufficientStock:
		status = http.StatusConflict
		available, requested := ae.Available, ae.Requested
		body.Available = &available
		body.Requested = &requested
	case apperr.CodeTransactionTimeout:
		status = http.StatusServiceUnavailable
		body.Message = "inventory is busy, retry later"
		body.Retryable = true
	case apperr.CodeStorageUnavailable:
		status = http.StatusServiceUnavailable
		body.Message = "service temporarily unavailable, retry later"
		body.Retryable = true
	}
	return &echo.HTTPError{Code: status, Message: body, Internal: err}
}
