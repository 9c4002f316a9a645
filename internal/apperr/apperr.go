// Package apperr defines the error taxonomy shared by the service and HTTP
// layers. Each error carries a Kind that decides how it is surfaced to users.
package apperr

import "errors"

// Kind classifies an error for user-facing handling.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindPaymentDeclined
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindPaymentDeclined:
		return "payment_declined"
	default:
		return "internal"
	}
}

// InternalMessage is the only text users ever see for internal errors.
const InternalMessage = "Internal server error."

// Error is the application error type.
type Error struct {
	Kind        Kind
	Message     string            // internal message for logs
	UserMessage string            // safe to show to the user
	Fields      map[string]string // field -> message, validation only
	Cause       error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrPaymentDeclined = &Error{Kind: KindPaymentDeclined}
	ErrInternal        = &Error{Kind: KindInternal}
)

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NotFound reports a missing event or registration.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, UserMessage: message}
}

// Validation reports field-level problems found before any payment attempt.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, UserMessage: message, Fields: fields}
}

// Declined reports a card problem; userMessage comes from the processor and
// is shown verbatim.
func Declined(userMessage string, cause error) *Error {
	return &Error{Kind: KindPaymentDeclined, Message: "payment declined", UserMessage: userMessage, Cause: cause}
}

// Internal wraps an infrastructure failure. The cause is never shown to users.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, UserMessage: InternalMessage, Cause: cause}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UserMessage returns the text safe to show for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.UserMessage != "" && e.Kind != KindInternal {
		return e.UserMessage
	}
	return InternalMessage
}

// FieldsOf returns the validation field messages of err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
