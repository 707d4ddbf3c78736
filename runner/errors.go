package runner

import (
	"errors"
	"fmt"
)

// FixtureSetupError reports that a suite's fixture could not be set up. It is
// recovered at the suite: every case below the suite reports it as an Error.
type FixtureSetupError struct {
	Suite string
	Err   error
}

func (e *FixtureSetupError) Error() string {
	return fmt.Sprintf("fixture-setup failed in %s: %v", e.Suite, e.Err)
}

func (e *FixtureSetupError) Unwrap() error {
	return e.Err
}

// IsFixtureSetupError checks if the error is a FixtureSetupError
func IsFixtureSetupError(err error) bool {
	var setupErr *FixtureSetupError
	return err != nil && errors.As(err, &setupErr)
}
