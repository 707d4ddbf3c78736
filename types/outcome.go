package types

import (
	"fmt"
	"time"
)

// Outcome captures the classified result of a single test case.
// An Outcome is never mutated once it has been reported.
type Outcome struct {
	Status     TestStatus    `json:"status"`
	Message    string        `json:"message,omitempty"`
	StackTrace string        `json:"stackTrace,omitempty"`
	Note       string        `json:"note,omitempty"` // Secondary failure, e.g. teardown after a failed body
	Asserts    int           `json:"asserts,omitempty"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Duration   time.Duration `json:"duration"`
}

func Success() Outcome {
	return Outcome{Status: TestStatusSuccess}
}

func Failure(message, stack string) Outcome {
	return Outcome{Status: TestStatusFailure, Message: message, StackTrace: stack}
}

func Error(message, stack string) Outcome {
	return Outcome{Status: TestStatusError, Message: message, StackTrace: stack}
}

func Ignored(reason string) Outcome {
	return Outcome{Status: TestStatusIgnored, Message: reason}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: TestStatusSkipped, Message: reason}
}

func NotRunnable(reason string) Outcome {
	return Outcome{Status: TestStatusNotRunnable, Message: reason}
}

// NotRun builds the outcome for a test that was never invoked because of its run-state
func NotRun(state RunState, reason string) Outcome {
	return Outcome{Status: state.OutcomeStatus(), Message: reason}
}

// Executed reports whether the test body was invoked
func (o Outcome) Executed() bool {
	return o.Status.Executed()
}

// IsFailure reports whether the outcome is a Failure or an Error
func (o Outcome) IsFailure() bool {
	return o.Status.IsFailure()
}

// WithTiming returns a copy of the outcome stamped with start and end times
func (o Outcome) WithTiming(start, end time.Time) Outcome {
	o.Start = start
	o.End = end
	o.Duration = end.Sub(start)
	return o
}

// WithNote returns a copy of the outcome carrying a secondary note
func (o Outcome) WithNote(note string) Outcome {
	if o.Note == "" {
		o.Note = note
	} else {
		o.Note = o.Note + "\n" + note
	}
	return o
}

// String implements the Stringer interface for Outcome
func (o Outcome) String() string {
	if o.Message == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Message)
}
