package discovery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoFixtures is returned when a unit has no fixtures and no explicit
// fixture list was supplied
var ErrNoFixtures = errors.New("no fixtures found")

// DiscoveryError reports a malformed or ambiguous marker. It is fatal to the
// node it names only.
type DiscoveryError struct {
	Node string
	Err  error
}

func (e *DiscoveryError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("discovery failed: %v", e.Err)
	}
	return fmt.Sprintf("discovery failed for %s: %v", e.Node, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// IsDiscoveryError checks if the error is a DiscoveryError
func IsDiscoveryError(err error) bool {
	var discErr *DiscoveryError
	return err != nil && errors.As(err, &discErr)
}

// AmbiguousLifecycleMethodError is raised when a fixture declares more than
// one method for the same lifecycle role
type AmbiguousLifecycleMethodError struct {
	Fixture string
	Role    string
	Methods []string
}

func (e *AmbiguousLifecycleMethodError) Error() string {
	return fmt.Sprintf("fixture %s has more than one %s method: %s", e.Fixture, e.Role, strings.Join(e.Methods, ", "))
}

// IsAmbiguousLifecycleMethod checks if the error is or wraps an AmbiguousLifecycleMethodError
func IsAmbiguousLifecycleMethod(err error) bool {
	var ambErr *AmbiguousLifecycleMethodError
	return err != nil && errors.As(err, &ambErr)
}
