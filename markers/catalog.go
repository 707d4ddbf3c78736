// Package markers defines the catalog of declarative markers recognized by op-harness
// and the construct kinds each marker may decorate.
package markers

import (
	"fmt"
	"strings"
	"sync"
)

// ConstructKind identifies the kind of code construct a marker is attached to
type ConstructKind uint8

const (
	KindUnit ConstructKind = 1 << iota
	KindType
	KindMethod
	KindProperty
)

// String implements the Stringer interface for ConstructKind
func (k ConstructKind) String() string {
	var parts []string
	for _, kind := range []ConstructKind{KindUnit, KindType, KindMethod, KindProperty} {
		if k&kind == 0 {
			continue
		}
		switch kind {
		case KindUnit:
			parts = append(parts, "unit")
		case KindType:
			parts = append(parts, "type")
		case KindMethod:
			parts = append(parts, "method")
		case KindProperty:
			parts = append(parts, "property")
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Marker names recognized by the default catalog
const (
	NameFixture         = "fixture"
	NameTest            = "test"
	NameSetUp           = "setup"
	NameTearDown        = "teardown"
	NameFixtureSetUp    = "fixture-setup"
	NameFixtureTearDown = "fixture-teardown"
	NameIgnore          = "ignore"
	NameExplicit        = "explicit"
	NamePlatform        = "platform"
	NameCategory        = "category"
	NameProperty        = "property"
	NameExpectedError   = "expected-error"
	NameSuite           = "suite"
)

// Parameter names used by the default catalog
const (
	ParamDescription = "description"
	ParamReason      = "reason"
	ParamInclude     = "include"
	ParamExclude     = "exclude"
	ParamName        = "name"
	ParamValue       = "value"
	ParamType        = "type"
	ParamMessage     = "message"
	ParamMatch       = "match"
)

// Marker describes one kind of declarative annotation. A Marker is immutable.
type Marker struct {
	name    string
	targets ConstructKind
	params  []string
}

// NewMarker creates a marker definition applicable to the given construct kinds
func NewMarker(name string, targets ConstructKind, params ...string) *Marker {
	p := make([]string, len(params))
	copy(p, params)
	return &Marker{name: name, targets: targets, params: p}
}

func (m *Marker) Name() string {
	return m.name
}

func (m *Marker) Targets() ConstructKind {
	return m.targets
}

// Params returns the declared parameter names in order
func (m *Marker) Params() []string {
	p := make([]string, len(m.params))
	copy(p, m.params)
	return p
}

// AppliesTo reports whether the marker may decorate constructs of kind k
func (m *Marker) AppliesTo(k ConstructKind) bool {
	return m.targets&k != 0
}

func (m *Marker) hasParam(name string) bool {
	for _, p := range m.params {
		if p == name {
			return true
		}
	}
	return false
}

// Catalog is a fixed registry of markers keyed by name
type Catalog struct {
	markers map[string]*Marker
	order   []string
}

// NewCatalog builds a catalog, rejecting duplicate marker names
func NewCatalog(markers ...*Marker) (*Catalog, error) {
	c := &Catalog{markers: make(map[string]*Marker, len(markers))}
	for _, m := range markers {
		if m == nil || m.name == "" {
			return nil, fmt.Errorf("marker name cannot be empty")
		}
		if _, exists := c.markers[m.name]; exists {
			return nil, fmt.Errorf("duplicate marker %q", m.name)
		}
		c.markers[m.name] = m
		c.order = append(c.order, m.name)
	}
	return c, nil
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// Default returns the catalog of markers understood by the discovery package
func Default() *Catalog {
	defaultCatalogOnce.Do(func() {
		common := KindUnit | KindType | KindMethod
		c, err := NewCatalog(
			NewMarker(NameFixture, KindType, ParamDescription),
			NewMarker(NameTest, KindMethod, ParamDescription),
			NewMarker(NameSetUp, KindMethod),
			NewMarker(NameTearDown, KindMethod),
			NewMarker(NameFixtureSetUp, KindMethod),
			NewMarker(NameFixtureTearDown, KindMethod),
			NewMarker(NameIgnore, common, ParamReason),
			NewMarker(NameExplicit, common, ParamReason),
			NewMarker(NamePlatform, common, ParamInclude, ParamExclude, ParamReason),
			NewMarker(NameCategory, common, ParamName),
			NewMarker(NameProperty, common, ParamName, ParamValue),
			NewMarker(NameExpectedError, KindMethod, ParamType, ParamName, ParamMessage, ParamMatch),
			NewMarker(NameSuite, KindProperty),
		)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup returns the marker registered under name
func (c *Catalog) Lookup(name string) (*Marker, bool) {
	m, ok := c.markers[name]
	return m, ok
}

// Names returns all marker names in registration order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Validate checks that an instance names a known marker, decorates a construct
// the marker applies to and only sets declared parameters.
func (c *Catalog) Validate(inst Instance, kind ConstructKind) error {
	m, ok := c.Lookup(inst.Name)
	if !ok {
		return fmt.Errorf("unknown marker %q", inst.Name)
	}
	if !m.AppliesTo(kind) {
		return fmt.Errorf("marker %q cannot be applied to a %s (allowed: %s)", inst.Name, kind, m.targets)
	}
	for _, p := range inst.params {
		if !m.hasParam(p.name) {
			return fmt.Errorf("marker %q has no parameter %q", inst.Name, p.name)
		}
	}
	return nil
}
