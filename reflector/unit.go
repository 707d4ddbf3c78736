// Package reflector exposes a loaded code unit to the test builder: its fixture
// types, their methods and the markers attached to each construct.
//
// Go has no attributes, so markers live in a registration table built with
// NewUnit and Unit.Register (or loaded from a YAML manifest). Method enumeration
// and invocation use the reflect package.
package reflector

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/ethereum-optimism/infra/op-harness/markers"
)

// Construct is anything markers can be attached to
type Construct interface {
	Kind() markers.ConstructKind
	Name() string
	ownMarkers() []markers.Instance
}

// Unit is a named code unit: the registration table of fixture types
type Unit struct {
	name    string
	markers []markers.Instance
	types   []*TypeRef
	byName  map[string]*TypeRef
	byType  map[reflect.Type]*TypeRef
}

// NewUnit creates an empty unit carrying unit-level markers
func NewUnit(name string, unitMarkers ...markers.Instance) *Unit {
	return &Unit{
		name:    name,
		markers: append([]markers.Instance(nil), unitMarkers...),
		byName:  make(map[string]*TypeRef),
		byType:  make(map[reflect.Type]*TypeRef),
	}
}

func (u *Unit) Kind() markers.ConstructKind      { return markers.KindUnit }
func (u *Unit) Name() string                     { return u.name }
func (u *Unit) ownMarkers() []markers.Instance   { return u.markers }
func (u *Unit) AddMarkers(m ...markers.Instance) { u.markers = append(u.markers, m...) }

// Register adds a top-level type to the unit. sample is a value or pointer of
// the struct type; it is only used to obtain the type.
func (u *Unit) Register(sample any, typeMarkers ...markers.Instance) *TypeRef {
	return u.register(sample, nil, typeMarkers)
}

// Lookup returns a registered type by name, as reported by TypeRef.Name
func (u *Unit) Lookup(name string) (*TypeRef, bool) {
	t, ok := u.byName[name]
	return t, ok
}

// LookupType returns the registered TypeRef for a Go type
func (u *Unit) LookupType(t reflect.Type) (*TypeRef, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	ref, ok := u.byType[t]
	return ref, ok
}

func (u *Unit) register(sample any, parent *TypeRef, typeMarkers []markers.Instance) *TypeRef {
	typ := reflect.TypeOf(sample)
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	ref := &TypeRef{
		unit:    u,
		typ:     typ,
		parent:  parent,
		markers: append([]markers.Instance(nil), typeMarkers...),
		methods: make(map[string]*MethodRef),
	}
	switch {
	case typ == nil:
		ref.name = "<nil>"
		ref.errs = append(ref.errs, fmt.Errorf("cannot register a nil value"))
	case parent != nil:
		ref.name = parent.name + "." + typ.Name()
	default:
		ref.name = typ.String()
	}
	if typ != nil && typ.Kind() != reflect.Struct {
		ref.errs = append(ref.errs, fmt.Errorf("type %s is not a struct", typ))
	}
	if _, exists := u.byName[ref.name]; exists {
		ref.errs = append(ref.errs, fmt.Errorf("type %s registered more than once", ref.name))
	} else {
		u.byName[ref.name] = ref
	}
	if typ != nil {
		if _, exists := u.byType[typ]; !exists {
			u.byType[typ] = ref
		}
	}
	if parent == nil {
		u.types = append(u.types, ref)
	} else {
		parent.nested = append(parent.nested, ref)
	}
	return ref
}

// TypeRef is a registered struct type
type TypeRef struct {
	unit        *Unit
	typ         reflect.Type
	name        string
	parent      *TypeRef
	markers     []markers.Instance
	methods     map[string]*MethodRef
	methodOrder []string
	nested      []*TypeRef
	factory     func() any
	errs        []error
}

func (t *TypeRef) Kind() markers.ConstructKind    { return markers.KindType }
func (t *TypeRef) Name() string                   { return t.name }
func (t *TypeRef) ownMarkers() []markers.Instance { return t.markers }

// Type returns the underlying struct type
func (t *TypeRef) Type() reflect.Type { return t.typ }

// Unit returns the unit the type is registered in
func (t *TypeRef) Unit() *Unit { return t.unit }

// Parent returns the enclosing type of a nested type
func (t *TypeRef) Parent() *TypeRef { return t.parent }

// Errors returns registration problems recorded for this type
func (t *TypeRef) Errors() []error { return t.errs }

// AddMarkers attaches more markers to the type
func (t *TypeRef) AddMarkers(m ...markers.Instance) *TypeRef {
	t.markers = append(t.markers, m...)
	return t
}

// Method attaches markers to a method of the type. Methods are reported in the
// order they are first annotated.
func (t *TypeRef) Method(name string, methodMarkers ...markers.Instance) *TypeRef {
	t.annotate(name, markers.KindMethod, methodMarkers)
	return t
}

// Property attaches markers to a property-like method: one taking no arguments
// and returning a value.
func (t *TypeRef) Property(name string, propertyMarkers ...markers.Instance) *TypeRef {
	t.annotate(name, markers.KindProperty, propertyMarkers)
	return t
}

// Nested registers a type nested inside t and returns it
func (t *TypeRef) Nested(sample any, typeMarkers ...markers.Instance) *TypeRef {
	return t.unit.register(sample, t, typeMarkers)
}

// Factory overrides how fixture instances are created
func (t *TypeRef) Factory(fn func() any) *TypeRef {
	t.factory = fn
	return t
}

func (t *TypeRef) annotate(name string, kind markers.ConstructKind, ms []markers.Instance) {
	if m, ok := t.methods[name]; ok {
		m.markers = append(m.markers, ms...)
		if kind == markers.KindProperty {
			m.kind = kind
		}
		return
	}
	m := &MethodRef{owner: t, name: name, kind: kind, markers: append([]markers.Instance(nil), ms...)}
	if t.typ != nil {
		rm, ok := reflect.PointerTo(t.typ).MethodByName(name)
		if !ok {
			t.errs = append(t.errs, fmt.Errorf("type %s has no exported method %s", t.name, name))
		} else {
			m.method = rm
			m.found = true
		}
	}
	t.methods[name] = m
	t.methodOrder = append(t.methodOrder, name)
}

// methodRefs lists annotated methods in annotation order followed by the
// remaining exported methods sorted by name.
func (t *TypeRef) methodRefs() []*MethodRef {
	refs := make([]*MethodRef, 0, len(t.methodOrder))
	for _, name := range t.methodOrder {
		if m := t.methods[name]; m.found {
			refs = append(refs, m)
		}
	}
	if t.typ == nil {
		return refs
	}
	ptr := reflect.PointerTo(t.typ)
	var rest []*MethodRef
	for i := 0; i < ptr.NumMethod(); i++ {
		rm := ptr.Method(i)
		if _, annotated := t.methods[rm.Name]; annotated {
			continue
		}
		rest = append(rest, &MethodRef{owner: t, name: rm.Name, kind: markers.KindMethod, method: rm, found: true})
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].name < rest[j].name })
	return append(refs, rest...)
}

// MethodRef is an exported method of a registered type
type MethodRef struct {
	owner   *TypeRef
	name    string
	kind    markers.ConstructKind
	method  reflect.Method
	found   bool
	markers []markers.Instance
}

func (m *MethodRef) Kind() markers.ConstructKind    { return m.kind }
func (m *MethodRef) Name() string                   { return m.name }
func (m *MethodRef) ownMarkers() []markers.Instance { return m.markers }

// Owner returns the type declaring the method
func (m *MethodRef) Owner() *TypeRef { return m.owner }

// FullName returns the type-qualified method name
func (m *MethodRef) FullName() string { return m.owner.name + "." + m.name }

// Signature returns the method's function type without the receiver
func (m *MethodRef) Signature() reflect.Type {
	ft := m.method.Type
	in := make([]reflect.Type, 0, ft.NumIn())
	for i := 1; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	out := make([]reflect.Type, 0, ft.NumOut())
	for i := 0; i < ft.NumOut(); i++ {
		out = append(out, ft.Out(i))
	}
	return reflect.FuncOf(in, out, ft.IsVariadic())
}
