package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidTransition
	KindInvalidSignature
	KindGatewayUnreachable
	KindGatewayTimeout
	KindGatewayRejected
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindGatewayUnreachable:
		return "gateway_unreachable"
	case KindGatewayTimeout:
		return "gateway_timeout"
	case KindGatewayRejected:
		return "gateway_rejected"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is the application error carried across service boundaries.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New returns an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithMessage returns a copy of e with a more specific message, keeping its code.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap attaches a cause to a copy of e.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

// Storage wraps an unexpected persistence failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Code: "storage_error", Message: op, Err: err}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrValidation         = New(KindValidation, "validation_failed", "invalid input")
	ErrEmptyCart          = New(KindValidation, "empty_cart", "order must contain at least one item")
	ErrInvalidQuantity    = New(KindValidation, "invalid_quantity", "quantity must be at least 1")
	ErrInvalidStatus      = New(KindValidation, "invalid_status", "unknown order status")
	ErrUnauthorized       = New(KindUnauthorized, "unauthorized", "authentication required")
	ErrInvalidCredentials = New(KindUnauthorized, "invalid_credentials", "username or password is incorrect")
	ErrForbidden          = New(KindForbidden, "forbidden", "not allowed to perform this operation")
	ErrUserNotFound       = New(KindNotFound, "user_not_found", "user not found")
	ErrOrderNotFound      = New(KindNotFound, "order_not_found", "order not found")
	ErrDishNotFound       = New(KindNotFound, "dish_not_found", "dish not found")
	ErrCategoryNotFound   = New(KindNotFound, "category_not_found", "category not found")
	ErrConflict           = New(KindConflict, "conflict", "resource already exists")
	ErrInvalidTransition  = New(KindInvalidTransition, "invalid_transition", "order status change not allowed")
	ErrInvalidChallenge   = New(KindValidation, "invalid_reset_code", "reset code is invalid or expired")
	ErrInvalidSignature   = New(KindInvalidSignature, "invalid_signature", "payment signature does not verify")
	ErrInvalidAmount      = New(KindValidation, "invalid_amount", "paid amount does not match order total")
	ErrGatewayUnreachable = New(KindGatewayUnreachable, "gateway_unreachable", "payment gateway unreachable")
	ErrGatewayTimeout     = New(KindGatewayTimeout, "gateway_timeout", "payment gateway timed out, outcome unknown")
	ErrGatewayRejected    = New(KindGatewayRejected, "gateway_rejected", "payment gateway rejected the request")
)
