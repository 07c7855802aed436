package apiclient

import (
	"errors"
	"fmt"

	"meeting-analyzer/internal/domain"
)

var (
	// Sentinel errors for errors.Is checks by classification.
	ErrServer      = errors.New("analysis service: request failed")
	ErrUnreachable = errors.New("analysis service: no response")
	ErrClient      = errors.New("analysis service: invalid request")
)

// Default user-facing messages when the service gives none.
const (
	MessageServerError = "Server error occurred"
	MessageUnreachable = "No response from server. Please check if the backend is running."
)

// Error is a classified failure of one remote operation.
type Error struct {
	Kind      domain.ErrorKind
	Operation string
	Status    int
	Message   string
	Err       error // underlying transport or decode error, if any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", e.Operation, e.Message)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the classification sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := []error{sentinelFor(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func sentinelFor(kind domain.ErrorKind) error {
	switch kind {
	case domain.ErrorKindUnreachable:
		return ErrUnreachable
	case domain.ErrorKindClient:
		return ErrClient
	default:
		return ErrServer
	}
}

// KindOf returns the classification of err, defaulting to server error for
// anything that did not come from this package.
func KindOf(err error) domain.ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return domain.ErrorKindServer
}

// MessageOf returns the human-readable message for display.
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func clientError(op, message string) *Error {
	return &Error{Kind: domain.ErrorKindClient, Operation: op, Message: message}
}

func unreachableError(op string, err error) *Error {
	return &Error{Kind: domain.ErrorKindUnreachable, Operation: op, Message: MessageUnreachable, Err: err}
}

func serverError(op string, status int, message string, err error) *Error {
	if message == "" {
		message = MessageServerError
	}
	return &Error{Kind: domain.ErrorKindServer, Operation: op, Status: status, Message: message, Err: err}
}
