// Package discovery builds the test model from a unit's markers
package discovery

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum-optimism/infra/op-harness/framework"
	"github.com/ethereum-optimism/infra/op-harness/markers"
	"github.com/ethereum-optimism/infra/op-harness/model"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

var errorType = reflect.TypeFor[error]()

// Options configures Build
type Options struct {
	Log     log.Logger
	Catalog *markers.Catalog
	// Fixtures is an explicit list of type names to build. Listed types are
	// built even when they carry no fixture marker.
	Fixtures []string
	Platform Platform
}

type builder struct {
	refl     reflector.Reflector
	catalog  *markers.Catalog
	log      log.Logger
	platform Platform
}

// Build constructs the suite tree for unit. The root suite is named after the
// unit. Problems with individual fixtures or methods do not fail the build;
// the affected node is marked NotRunnable with the problem as its reason.
func Build(refl reflector.Reflector, unit *reflector.Unit, opts Options) (*model.Suite, error) {
	if opts.Log == nil {
		opts.Log = log.New()
	}
	if opts.Catalog == nil {
		opts.Catalog = markers.Default()
	}
	if opts.Platform == (Platform{}) {
		opts.Platform = CurrentPlatform()
	}
	b := &builder{refl: refl, catalog: opts.Catalog, log: opts.Log, platform: opts.Platform}

	var children []model.Node
	found := false
	if len(opts.Fixtures) > 0 {
		for _, name := range opts.Fixtures {
			t, ok := unit.Lookup(name)
			if !ok {
				return nil, &DiscoveryError{Node: name, Err: fmt.Errorf("type is not registered in unit %s", unit.Name())}
			}
			found = true
			if node := b.buildFixture(t, ""); node != nil {
				children = append(children, node)
			}
		}
	} else {
		var fixtures bool
		children, fixtures = b.buildTypes(refl.ListTypes(unit), "")
		found = found || fixtures
		for _, t := range allTypes(refl, unit) {
			suites := b.buildSuiteProperties(t)
			if len(suites) > 0 {
				found = true
				children = append(children, suites...)
			}
		}
	}
	if !found {
		return nil, &DiscoveryError{Node: unit.Name(), Err: ErrNoFixtures}
	}

	attrs, problems := b.attributes(unit, unit.Name(), unit.Name())
	b.markNotRunnable(&attrs, problems)
	root := model.NewSuite(attrs, nil, model.Hooks{}, children...)
	if err := model.Validate(root); err != nil {
		return nil, &DiscoveryError{Node: unit.Name(), Err: err}
	}
	b.log.Debug("Built test tree", "unit", unit.Name(), "fixtures", len(children), "tests", model.CountCases(root))
	return root, nil
}

// buildTypes builds fixtures among ts. Nested types of a type that is not a
// fixture are considered on their own.
func (b *builder) buildTypes(ts []*reflector.TypeRef, prefix string) ([]model.Node, bool) {
	var nodes []model.Node
	found := false
	for _, t := range ts {
		if !b.isFixture(t) {
			nested, ok := b.buildTypes(b.refl.ListNestedTypes(t), prefix)
			nodes = append(nodes, nested...)
			found = found || ok
			continue
		}
		found = true
		if node := b.buildFixture(t, prefix); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, found
}

func shortName(t *reflector.TypeRef) string {
	if t.Type() == nil || t.Type().Name() == "" {
		return t.Name()
	}
	return t.Type().Name()
}

func (b *builder) isFixture(t *reflector.TypeRef) bool {
	return b.refl.HasMarker(t, markers.NameFixture, true) || b.refl.Implements(t, framework.FixtureInterface)
}

func allTypes(refl reflector.Reflector, unit *reflector.Unit) []*reflector.TypeRef {
	var out []*reflector.TypeRef
	var walk func([]*reflector.TypeRef)
	walk = func(ts []*reflector.TypeRef) {
		for _, t := range ts {
			out = append(out, t)
			walk(refl.ListNestedTypes(t))
		}
	}
	walk(refl.ListTypes(unit))
	return out
}

var lifecycleRoles = []string{markers.NameSetUp, markers.NameTearDown, markers.NameFixtureSetUp, markers.NameFixtureTearDown}

// buildFixture returns the suite for t, or nil when t has neither tests nor
// nested fixtures.
func (b *builder) buildFixture(t *reflector.TypeRef, prefix string) model.Node {
	fullName := prefix + t.Name()
	attrs, problems := b.attributes(t, shortName(t), fullName)
	problems = append(problems, t.Errors()...)
	if d, ok := b.firstMarker(t, markers.NameFixture); ok {
		attrs.Description = d.StringParam(markers.ParamDescription)
	}

	roles := make(map[string][]*reflector.MethodRef, len(lifecycleRoles))
	var cases []model.Node
	for _, m := range b.refl.ListMethods(t) {
		if m.Kind() == markers.KindProperty {
			continue
		}
		for _, role := range lifecycleRoles {
			if b.refl.HasMarker(m, role, true) {
				roles[role] = append(roles[role], m)
			}
		}
		if b.refl.HasMarker(m, markers.NameTest, true) {
			cases = append(cases, b.buildCase(m, fullName))
			continue
		}
		// Markers on hooks and plain methods still have to be valid
		for _, inst := range b.refl.ListMarkers(m) {
			if err := b.catalog.Validate(inst, m.Kind()); err != nil {
				problems = append(problems, fmt.Errorf("method %s: %w", m.Name(), err))
			}
		}
	}

	var hooks model.Hooks
	for _, role := range lifecycleRoles {
		methods := roles[role]
		if len(methods) == 0 {
			continue
		}
		if len(methods) > 1 {
			names := make([]string, 0, len(methods))
			for _, m := range methods {
				names = append(names, m.Name())
			}
			problems = append(problems, &AmbiguousLifecycleMethodError{Fixture: fullName, Role: role, Methods: names})
			continue
		}
		if _, err := checkSignature(methods[0]); err != nil {
			problems = append(problems, fmt.Errorf("%s method: %w", role, err))
			continue
		}
		switch role {
		case markers.NameSetUp:
			hooks.SetUp = methods[0]
		case markers.NameTearDown:
			hooks.TearDown = methods[0]
		case markers.NameFixtureSetUp:
			hooks.FixtureSetUp = methods[0]
		case markers.NameFixtureTearDown:
			hooks.FixtureTearDown = methods[0]
		}
	}

	nested, _ := b.buildTypes(b.refl.ListNestedTypes(t), prefix)
	children := append(cases, nested...)
	if len(children) == 0 {
		b.log.Debug("Skipping fixture without tests", "fixture", fullName)
		return nil
	}
	b.markNotRunnable(&attrs, problems)
	return model.NewSuite(attrs, t, hooks, children...)
}

func (b *builder) buildCase(m *reflector.MethodRef, suiteName string) model.Node {
	fullName := suiteName + "." + m.Name()
	attrs, problems := b.attributes(m, m.Name(), fullName)
	if d, ok := b.firstMarker(m, markers.NameTest); ok {
		attrs.Description = d.StringParam(markers.ParamDescription)
	}
	takesContext, err := checkSignature(m)
	if err != nil {
		problems = append(problems, err)
	}
	expected, err := b.expectedError(m)
	if err != nil {
		problems = append(problems, err)
	}
	b.markNotRunnable(&attrs, problems)
	return model.NewCase(attrs, m, takesContext, expected)
}

// attributes resolves the markers shared by units, types and methods. The
// returned problems are invalid markers found on c.
func (b *builder) attributes(c reflector.Construct, name, fullName string) (model.Attributes, []error) {
	attrs := model.Attributes{Name: name, FullName: fullName, RunState: types.RunStateRunnable}
	var problems []error
	for _, inst := range b.refl.ListMarkers(c) {
		if err := b.catalog.Validate(inst, c.Kind()); err != nil {
			problems = append(problems, err)
		}
	}

	if inst, ok := b.firstMarker(c, markers.NameIgnore); ok {
		attrs.RunState = types.RunStateIgnored
		attrs.Reason = inst.StringParam(markers.ParamReason)
	}
	if inst, ok := b.firstMarker(c, markers.NameExplicit); ok {
		attrs.Explicit = true
		attrs.RunState = types.RunStateExplicit
		attrs.Reason = inst.StringParam(markers.ParamReason)
	}
	for _, inst := range b.refl.GetMarkers(c, markers.NamePlatform, true) {
		if ok, reason := b.platform.Supports(inst); !ok {
			attrs.RunState = types.RunStateSkipped
			attrs.Reason = reason
			break
		}
	}

	for _, inst := range b.refl.GetMarkers(c, markers.NameCategory, true) {
		attrs.Categories = append(attrs.Categories, inst.StringParam(markers.ParamName))
	}
	for _, inst := range b.refl.GetMarkers(c, markers.NameProperty, true) {
		v, _ := inst.Param(markers.ParamValue)
		attrs.Properties = append(attrs.Properties, model.Property{Name: inst.StringParam(markers.ParamName), Value: v})
	}
	return attrs, problems
}

func (b *builder) firstMarker(c reflector.Construct, name string) (markers.Instance, bool) {
	ms := b.refl.GetMarkers(c, name, true)
	if len(ms) == 0 {
		return markers.Instance{}, false
	}
	return ms[0], true
}

func (b *builder) markNotRunnable(attrs *model.Attributes, problems []error) {
	if len(problems) == 0 {
		return
	}
	err := errors.Join(problems...)
	b.log.Warn("Marking node not runnable", "node", attrs.FullName, "err", err)
	attrs.RunState = types.RunStateNotRunnable
	attrs.Reason = (&DiscoveryError{Node: attrs.FullName, Err: err}).Error()
}

// checkSignature accepts func(), func() error, func(*framework.Context) and
// func(*framework.Context) error
func checkSignature(m *reflector.MethodRef) (takesContext bool, err error) {
	ft := m.Signature()
	validIn := ft.NumIn() == 0 || (ft.NumIn() == 1 && ft.In(0) == framework.ContextType)
	validOut := ft.NumOut() == 0 || (ft.NumOut() == 1 && ft.Out(0) == errorType)
	if !validIn || !validOut || ft.IsVariadic() {
		return false, fmt.Errorf("method %s has signature %s, expected one of func(), func() error, func(*framework.Context), func(*framework.Context) error", m.Name(), ft)
	}
	return ft.NumIn() == 1, nil
}

func (b *builder) expectedError(m *reflector.MethodRef) (*model.ExpectedError, error) {
	ms := b.refl.GetMarkers(m, markers.NameExpectedError, true)
	if len(ms) == 0 {
		return nil, nil
	}
	if len(ms) > 1 {
		return nil, fmt.Errorf("method %s has %d expected-error markers", m.Name(), len(ms))
	}
	inst := ms[0]
	exp := &model.ExpectedError{Match: markers.MatchExact}
	if v, ok := b.refl.GetMarkerParam(inst, markers.ParamType); ok {
		t, isType := v.(reflect.Type)
		if !isType || t == nil {
			return nil, fmt.Errorf("expected-error type parameter must be a reflect.Type, got %T", v)
		}
		exp.Type = t
	}
	exp.TypeName = inst.StringParam(markers.ParamName)
	if v, ok := b.refl.GetMarkerParam(inst, markers.ParamMessage); ok {
		exp.Message = fmt.Sprint(v)
		exp.HasMessage = true
	}
	if v, ok := b.refl.GetMarkerParam(inst, markers.ParamMatch); ok {
		switch p := v.(type) {
		case markers.MatchPolicy:
			exp.Match = p
		case string:
			policy, err := markers.ParseMatchPolicy(p)
			if err != nil {
				return nil, err
			}
			exp.Match = policy
		default:
			return nil, fmt.Errorf("expected-error match parameter has type %T", v)
		}
	}
	return exp, nil
}

// buildSuiteProperties builds the suites contributed by suite properties of t.
// A suite property is invoked on a fresh instance of t and returns the fixture
// values to include; each value's type must be registered in the unit.
func (b *builder) buildSuiteProperties(t *reflector.TypeRef) []model.Node {
	var nodes []model.Node
	for _, m := range b.refl.ListMethods(t) {
		if m.Kind() != markers.KindProperty || !b.refl.HasMarker(m, markers.NameSuite, true) {
			continue
		}
		fullName := t.Name() + "." + m.Name()
		attrs, problems := b.attributes(m, m.Name(), fullName)
		children, err := b.suiteMembers(t, m, fullName+".")
		if err != nil {
			problems = append(problems, err)
		}
		if len(children) == 0 && len(problems) == 0 {
			continue
		}
		b.markNotRunnable(&attrs, problems)
		nodes = append(nodes, model.NewSuite(attrs, nil, model.Hooks{}, children...))
	}
	return nodes
}

func (b *builder) suiteMembers(t *reflector.TypeRef, m *reflector.MethodRef, prefix string) ([]model.Node, error) {
	inst, err := b.refl.New(t)
	if err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", t.Name(), err)
	}
	out, err := b.refl.Invoke(m, inst)
	if err != nil {
		return nil, fmt.Errorf("suite property %s failed: %w", m.Name(), err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("suite property %s must return a single list", m.Name())
	}
	list := reflect.ValueOf(out[0])
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return nil, fmt.Errorf("suite property %s returned %T, expected a slice", m.Name(), out[0])
	}
	unit := t.Unit()
	var nodes []model.Node
	for i := 0; i < list.Len(); i++ {
		v := list.Index(i).Interface()
		member, ok := unit.LookupType(reflect.TypeOf(v))
		if !ok {
			return nodes, fmt.Errorf("suite property %s returned unregistered type %T", m.Name(), v)
		}
		if node := b.buildFixture(member, prefix); node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}
