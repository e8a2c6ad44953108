// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindValidation
	KindReferenceData
	KindPersistence
	KindPaymentGateway
	KindSignatureVerification
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth_error"
	case KindValidation:
		return "validation_error"
	case KindReferenceData:
		return "reference_data_error"
	case KindPersistence:
		return "persistence_error"
	case KindPaymentGateway:
		return "payment_gateway_error"
	case KindSignatureVerification:
		return "signature_verification_error"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// Error is an application error. Message is safe to show to the user;
// Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Auth(message string) *Error {
	return New(KindAuth, message, nil)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

func ReferenceData(message string, err error) *Error {
	return New(KindReferenceData, message, err)
}

func Persistence(message string, err error) *Error {
	return New(KindPersistence, message, err)
}

func PaymentGateway(message string, err error) *Error {
	return New(KindPaymentGateway, message, err)
}

func SignatureVerification(message string) *Error {
	return New(KindSignatureVerification, message, nil)
}

func Conflict(message string) *Error {
	return New(KindConflict, message, nil)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation, KindSignatureVerification:
		return http.StatusBadRequest
	case KindReferenceData:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPaymentGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the user-displayable message for err.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}
