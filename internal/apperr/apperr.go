package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for the transport boundary.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindPermissionDenied   Kind = "PERMISSION_DENIED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindInactiveAccount    Kind = "INACTIVE_USER"
)

// Sentinels usable with errors.Is regardless of message.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("user account is inactive")
)

// Error is a classified, caller-correctable failure.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindValidation:
		return target == ErrValidation
	case KindPermissionDenied:
		return target == ErrPermissionDenied
	case KindInvalidCredentials:
		return target == ErrInvalidCredentials
	case KindInactiveAccount:
		return target == ErrInactiveAccount
	}
	return false
}

// NotFound reports a missing entity, e.g. NotFound("Loan") -> "Loan not found".
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// ValidationFields carries per-field messages for the errors map of the envelope.
func ValidationFields(msg string, fields map[string]string) error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func PermissionDenied(msg string) error {
	if msg == "" {
		msg = "You don't have permission to perform this action"
	}
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

func InvalidCredentials(msg string) error {
	if msg == "" {
		msg = "Invalid credentials"
	}
	return &Error{Kind: KindInvalidCredentials, Message: msg}
}

func InactiveAccount() error {
	return &Error{Kind: KindInactiveAccount, Message: "User account is inactive"}
}

// TransitionError is returned when a loan status change is not in the
// transition table. It is a validation failure.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrValidation
}

func NewTransitionError(from, to string) error {
	return &TransitionError{From: from, To: to}
}

// HTTPStatus maps an error to the status code rendered by the API.
func HTTPStatus(err error) int {
	var te *TransitionError
	if errors.As(err, &te) {
		return http.StatusUnprocessableEntity
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindPermissionDenied, KindInactiveAccount:
		return http.StatusForbidden
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// IsClassified reports whether err is safe to show to the caller verbatim.
func IsClassified(err error) bool {
	var te *TransitionError
	var ae *Error
	return errors.As(err, &te) || errors.As(err, &ae)
}

// FieldsOf returns per-field details when present.
func FieldsOf(err error) map[string]string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}
