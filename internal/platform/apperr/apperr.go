// Package apperr holds the error kinds shared by the domain packages and
// their translation to HTTP responses.
package apperr

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)

// kindError is an error with a fixed user-facing message that matches one
// of the kinds above under errors.Is.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

// New returns a sentinel whose message is msg and whose kind is kind.
func New(kind error, msg string) error { return &kindError{kind: kind, msg: msg} }

// Invalid wraps a validation failure so it maps to 400.
func Invalid(msg string) error { return &kindError{kind: ErrInvalid, msg: msg} }

// Validation converts an ozzo-validation result into an ErrInvalid error.
// Internal rule errors are returned untouched.
func Validation(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return Invalid(err.Error())
}

// HTTP maps a service error to an echo.HTTPError. Unknown errors become 500
// and keep the original as Internal so the access logger can record it.
func HTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
