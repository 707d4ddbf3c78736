// Package exitcodes defines the standard exit codes used by op-harness.
package exitcodes

// Exit code constants used by op-harness
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every executed test passed
// * TestFailure (1): Used when one or more tests failed or errored
// * RuntimeErr (2): Used for usage errors and fatal runs, such as an aborted run
// * ReportErr (3): Used when no report could be produced
const (
	Success     = 0 // All executed tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Usage errors or fatal runs
	ReportErr   = 3 // Report could not be produced
)
