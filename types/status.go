// Package types contains the plain-data types shared across the op-harness packages.
// Everything here is safe to copy across an isolation boundary.
package types

// TestStatus represents the result status of a test node as written to the report
type TestStatus string

const (
	TestStatusSuccess     TestStatus = "Success"
	TestStatusFailure     TestStatus = "Failure"
	TestStatusError       TestStatus = "Error"
	TestStatusIgnored     TestStatus = "Ignored"
	TestStatusSkipped     TestStatus = "Skipped"
	TestStatusNotRunnable TestStatus = "NotRunnable"
)

// Executed reports whether a test with this status had its body invoked
func (s TestStatus) Executed() bool {
	switch s {
	case TestStatusSuccess, TestStatusFailure, TestStatusError:
		return true
	}
	return false
}

// IsFailure reports whether the status counts towards a failing run
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFailure || s == TestStatusError
}

// Valid reports whether s is one of the known statuses
func (s TestStatus) Valid() bool {
	switch s {
	case TestStatusSuccess, TestStatusFailure, TestStatusError,
		TestStatusIgnored, TestStatusSkipped, TestStatusNotRunnable:
		return true
	}
	return false
}

// RunState is the scheduling disposition of a test node prior to execution
type RunState string

const (
	RunStateRunnable    RunState = "Runnable"
	RunStateIgnored     RunState = "Ignored"
	RunStateSkipped     RunState = "Skipped"
	RunStateExplicit    RunState = "Explicit"
	RunStateNotRunnable RunState = "NotRunnable"
)

// String implements the Stringer interface for RunState
func (r RunState) String() string {
	return string(r)
}

// OutcomeStatus maps a non-runnable run-state to the status its tests report.
// Explicit tests that were not selected report as skipped.
func (r RunState) OutcomeStatus() TestStatus {
	switch r {
	case RunStateIgnored:
		return TestStatusIgnored
	case RunStateSkipped, RunStateExplicit:
		return TestStatusSkipped
	case RunStateNotRunnable:
		return TestStatusNotRunnable
	default:
		return TestStatusSuccess
	}
}
