package framework

import "reflect"

// Fixture marks the embedding struct as a test fixture without needing a fixture
// marker in the registration table.
type Fixture struct{}

func (Fixture) isHarnessFixture() {}

// FixtureType is only implemented by types embedding Fixture
type FixtureType interface {
	isHarnessFixture()
}

// FixtureInterface is the capability queried by discovery
var FixtureInterface = reflect.TypeFor[FixtureType]()

// ContextType is the parameter type accepted by test and lifecycle methods
var ContextType = reflect.TypeFor[*Context]()
