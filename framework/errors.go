package framework

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// AssertionError is raised when an assertion fails
type AssertionError struct {
	Message string
	stack   pkgerrors.StackTrace
}

// NewAssertionError creates an assertion failure capturing the caller's stack
func NewAssertionError(format string, args ...any) *AssertionError {
	msg := fmt.Sprintf(format, args...)
	e := &AssertionError{Message: msg}
	if st, ok := pkgerrors.New(msg).(stackTracer); ok {
		// drop the NewAssertionError frame
		trace := st.StackTrace()
		if len(trace) > 1 {
			trace = trace[1:]
		}
		e.stack = trace
	}
	return e
}

func (e *AssertionError) Error() string {
	return e.Message
}

// StackTrace implements the github.com/pkg/errors stackTracer interface
func (e *AssertionError) StackTrace() pkgerrors.StackTrace {
	return e.stack
}

// IsAssertionError checks if the error is or wraps an AssertionError
func IsAssertionError(err error) bool {
	var assertErr *AssertionError
	return err != nil && errors.As(err, &assertErr)
}

// IgnoreError is raised by a test to mark itself ignored at runtime
type IgnoreError struct {
	Reason string
}

func (e *IgnoreError) Error() string {
	return fmt.Sprintf("ignored: %s", e.Reason)
}

// SkipError is raised by a test to mark itself skipped at runtime
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("skipped: %s", e.Reason)
}

// StackOf returns the formatted stack trace carried by err, if any
func StackOf(err error) string {
	var st stackTracer
	if errors.As(err, &st) && len(st.StackTrace()) > 0 {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}
