package types

import "fmt"

// Phase identifies where a fault outside of a test case occurred
type Phase string

const (
	PhaseFixtureSetup    Phase = "fixture-setup"
	PhaseFixtureTeardown Phase = "fixture-teardown"
	PhaseBoundary        Phase = "boundary"
	PhaseRun             Phase = "run"
)

// Fault describes an error that escaped classification at the case level.
// It carries plain data only so it can cross an isolation boundary.
type Fault struct {
	Phase      Phase  `json:"phase"`
	Test       string `json:"test,omitempty"` // Full name of the node the fault belongs to, if any
	Kind       string `json:"kind,omitempty"` // Type name of the raised value
	Message    string `json:"message"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// Error implements the error interface for Fault
func (f *Fault) Error() string {
	if f.Test != "" {
		return fmt.Sprintf("%s failed in %s: %s", f.Phase, f.Test, f.Message)
	}
	return fmt.Sprintf("%s failed: %s", f.Phase, f.Message)
}
