package reflector

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/ethereum-optimism/infra/op-harness/markers"
)

// ErrBadInvocation is returned when a method cannot be called with the given
// instance or arguments. It is never the result of running user code.
var ErrBadInvocation = errors.New("bad invocation")

var errorType = reflect.TypeFor[error]()

// Reflector is the introspection capability the test builder depends on
type Reflector interface {
	ListTypes(unit *Unit) []*TypeRef
	ListNestedTypes(t *TypeRef) []*TypeRef
	ListMethods(t *TypeRef) []*MethodRef
	ListMarkers(c Construct) []markers.Instance
	HasMarker(c Construct, name string, inherited bool) bool
	GetMarkers(c Construct, name string, inherited bool) []markers.Instance
	GetMarkerParam(inst markers.Instance, param string) (any, bool)
	Implements(t *TypeRef, iface reflect.Type) bool
	New(t *TypeRef) (any, error)
	Invoke(m *MethodRef, instance any, args ...any) ([]any, error)
}

// Panic is returned by Invoke when the invoked method panicked
type Panic struct {
	Value any
	Stack string
}

func (p *Panic) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.Value)
}

// Unwrap returns the panic value when it is an error
func (p *Panic) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// Runtime implements Reflector on top of the reflect package
type Runtime struct{}

var _ Reflector = (*Runtime)(nil)

func NewRuntime() *Runtime {
	return &Runtime{}
}

// ListTypes returns the unit's top-level types in registration order
func (r *Runtime) ListTypes(unit *Unit) []*TypeRef {
	out := make([]*TypeRef, len(unit.types))
	copy(out, unit.types)
	return out
}

func (r *Runtime) ListNestedTypes(t *TypeRef) []*TypeRef {
	out := make([]*TypeRef, len(t.nested))
	copy(out, t.nested)
	return out
}

// ListMethods returns the exported methods of t: those annotated on t first,
// then those annotated on embedded registered types, then the rest by name.
func (r *Runtime) ListMethods(t *TypeRef) []*MethodRef {
	all := t.methodRefs()
	seen := make(map[string]bool, len(all))
	var ordered []*MethodRef
	for _, m := range all {
		if _, ok := t.methods[m.name]; ok {
			ordered = append(ordered, m)
			seen[m.name] = true
		}
	}
	byName := make(map[string]*MethodRef, len(all))
	for _, m := range all {
		byName[m.name] = m
	}
	for _, base := range embeddedTypes(t) {
		for _, name := range base.methodOrder {
			if m, ok := byName[name]; ok && !seen[name] {
				ordered = append(ordered, m)
				seen[name] = true
			}
		}
	}
	for _, m := range all {
		if !seen[m.name] {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// ListMarkers returns every marker declared directly on c
func (r *Runtime) ListMarkers(c Construct) []markers.Instance {
	own := c.ownMarkers()
	out := make([]markers.Instance, len(own))
	copy(out, own)
	return out
}

func (r *Runtime) HasMarker(c Construct, name string, inherited bool) bool {
	return len(r.GetMarkers(c, name, inherited)) > 0
}

// GetMarkers returns the markers named name on c in declaration order. With
// inherited set, markers on embedded registered types follow the construct's own.
func (r *Runtime) GetMarkers(c Construct, name string, inherited bool) []markers.Instance {
	var out []markers.Instance
	collect := func(ms []markers.Instance) {
		for _, m := range ms {
			if m.Name == name {
				out = append(out, m)
			}
		}
	}
	collect(c.ownMarkers())
	if !inherited {
		return out
	}
	switch v := c.(type) {
	case *TypeRef:
		for _, base := range embeddedTypes(v) {
			collect(base.markers)
		}
	case *MethodRef:
		for _, base := range embeddedTypes(v.owner) {
			if m, ok := base.methods[v.name]; ok {
				collect(m.markers)
			}
		}
	}
	return out
}

func (r *Runtime) GetMarkerParam(inst markers.Instance, param string) (any, bool) {
	return inst.Param(param)
}

// Implements reports whether a pointer to t implements iface
func (r *Runtime) Implements(t *TypeRef, iface reflect.Type) bool {
	if t.typ == nil || iface == nil || iface.Kind() != reflect.Interface {
		return false
	}
	return reflect.PointerTo(t.typ).Implements(iface)
}

// New creates a fresh instance of t, a pointer to the struct unless a factory
// was registered.
func (r *Runtime) New(t *TypeRef) (inst any, err error) {
	if t.factory != nil {
		defer func() {
			if rec := recover(); rec != nil {
				inst, err = nil, &Panic{Value: rec, Stack: string(debug.Stack())}
			}
		}()
		inst = t.factory()
		if inst == nil {
			return nil, fmt.Errorf("factory for %s returned nil", t.name)
		}
		return inst, nil
	}
	if t.typ == nil {
		return nil, fmt.Errorf("%w: type %s is not resolvable", ErrBadInvocation, t.name)
	}
	return reflect.New(t.typ).Interface(), nil
}

// Invoke calls m on instance. A panic inside the method is returned as a
// *Panic; a non-nil trailing error result is returned as the error. Other
// results are returned in order.
func (r *Runtime) Invoke(m *MethodRef, instance any, args ...any) (results []any, err error) {
	rv := reflect.ValueOf(instance)
	if !rv.IsValid() {
		return nil, fmt.Errorf("%w: nil instance for %s", ErrBadInvocation, m.FullName())
	}
	fn := rv.MethodByName(m.name)
	if !fn.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", ErrBadInvocation, instance, m.name)
	}
	ft := fn.Type()
	if ft.IsVariadic() || len(args) != ft.NumIn() {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadInvocation, m.FullName(), ft.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(ft.In(i))
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(ft.In(i)) {
			return nil, fmt.Errorf("%w: argument %d of %s: %s is not assignable to %s", ErrBadInvocation, i, m.FullName(), v.Type(), ft.In(i))
		}
		in[i] = v
	}

	defer func() {
		if rec := recover(); rec != nil {
			results, err = nil, &Panic{Value: rec, Stack: string(debug.Stack())}
		}
	}()
	out := fn.Call(in)
	results = make([]any, 0, len(out))
	for i, o := range out {
		if i == len(out)-1 && ft.Out(i) == errorType {
			if !o.IsNil() {
				err = o.Interface().(error)
			}
			continue
		}
		results = append(results, o.Interface())
	}
	return results, err
}

// embeddedTypes returns the registered types embedded in t, depth first
func embeddedTypes(t *TypeRef) []*TypeRef {
	if t.typ == nil || t.typ.Kind() != reflect.Struct {
		return nil
	}
	var out []*TypeRef
	visited := map[reflect.Type]bool{t.typ: true}
	var walk func(reflect.Type)
	walk = func(st reflect.Type) {
		for i := 0; i < st.NumField(); i++ {
			f := st.Field(i)
			if !f.Anonymous {
				continue
			}
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() != reflect.Struct || visited[ft] {
				continue
			}
			visited[ft] = true
			if base, ok := t.unit.byType[ft]; ok {
				out = append(out, base)
			}
			walk(ft)
		}
	}
	walk(t.typ)
	return out
}
