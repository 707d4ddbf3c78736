package harness

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/urfave/cli/v2"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, discovery errors and aborted runs.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError represents a failure from test assertions (exit code 1)
type TestFailureError struct {
	Message string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Message)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ReportError means no report could be produced, e.g. because the transform
// could not be read (exit code 3)
type ReportError struct {
	Err error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("report error: %v", e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// NewReportError creates a new ReportError
func NewReportError(err error) *ReportError {
	return &ReportError{Err: err}
}

// IsReportError checks if the error is or wraps a ReportError
func IsReportError(err error) bool {
	var reportErr *ReportError
	return err != nil && errors.As(err, &reportErr)
}

// ExitCode maps an error returned by a run to the process exit code.
// Unclassified errors exit with 1.
func ExitCode(err error) int {
	var exitErr cli.ExitCoder
	switch {
	case err == nil:
		return exitcodes.Success
	case IsReportError(err):
		return exitcodes.ReportErr
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case IsTestFailureError(err):
		return exitcodes.TestFailure
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	}
	return exitcodes.TestFailure
}
