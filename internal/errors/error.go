package errors

import (
	"errors"
	"fmt"
)

// Category groups error codes by the subsystem that failed.
type Category string

const (
	CategoryConfig Category = "config"
	CategoryBroker Category = "broker"
	CategoryExport Category = "export"
	CategoryServer Category = "server"
)

// Error is a categorized error with an operator-facing hint.
type Error struct {
	// Code is a unique error identifier (e.g., "C001").
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail names the offending value or setting.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds the offending value or setting.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with formatting.
func (e *Error) WithDetailf(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion replaces the registered hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// Wrap sets the underlying error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// New creates an Error from a registered code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates an uncoded Error with a formatted message.
func Newf(category Category, format string, args ...any) *Error {
	return &Error{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError returns err as an *Error, wrapping it under code when it is not
// one already.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(code).Wrap(err)
}

// Join combines several configuration errors into one, keeping the first
// error's code. It returns nil when errs is empty.
func Join(errs ...*Error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	rest := make([]error, 0, len(errs))
	rest = append(rest, errs[0].Wrapped)
	for _, e := range errs[1:] {
		rest = append(rest, e)
	}
	first := *errs[0]
	first.Wrapped = errors.Join(rest...)
	return &first
}
