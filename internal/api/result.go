package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// User-facing messages for failures that carry no backend message
const (
	DefaultErrorMessage = "Something went wrong"
	TimeoutMessage      = "The request took too long. Check your connection."
	NetworkMessage      = "Connection error. Check your internet."
	DecodeMessage       = "Unexpected response from the server"
	CanceledMessage     = "The request was cancelled."
)

// StatusTimeout is reported when the request deadline expires
const StatusTimeout = http.StatusRequestTimeout

// StatusCanceled is reported when the caller cancels its own context. It is
// the non-standard "client closed request" code.
const StatusCanceled = 499

// Failure causes carried in Result.Err
var (
	ErrTimeout  = errors.New("request timed out")
	ErrNetwork  = errors.New("network error")
	ErrCanceled = errors.New("request cancelled")
	ErrDecode   = errors.New("invalid response body")
	ErrStatus   = errors.New("unsuccessful status")
)

// Result is the uniform outcome of every backend call
type Result[T any] struct {
	Success bool                `json:"success"`
	Data    T                   `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Status  int                 `json:"status,omitempty"`

	// Err classifies a failure (ErrTimeout, ErrNetwork, ErrCanceled, ErrDecode, ErrStatus)
	Err error `json:"-"`
}

// Unreachable reports whether the failure happened before any HTTP answer
func (r Result[T]) Unreachable() bool {
	return errors.Is(r.Err, ErrTimeout) || errors.Is(r.Err, ErrNetwork)
}

// FirstError returns the text a user should see for a failed result: the
// backend message, or the first field error when the message is missing.
func (r Result[T]) FirstError() string {
	if r.Message != "" && r.Message != DefaultErrorMessage {
		return r.Message
	}
	if len(r.Errors) > 0 {
		fields := make([]string, 0, len(r.Errors))
		for field := range r.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			if msgs := r.Errors[field]; len(msgs) > 0 {
				return msgs[0]
			}
		}
	}
	return DefaultErrorMessage
}

// AsError returns nil for a successful result and an *Error otherwise
func (r Result[T]) AsError() error {
	if r.Success {
		return nil
	}
	return &Error{
		Status:  r.Status,
		Message: r.FirstError(),
		Errors:  r.Errors,
		Err:     r.Err,
	}
}

// Error describes a failed backend call
type Error struct {
	Status  int
	Message string
	Errors  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by an *Error, or 0
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
