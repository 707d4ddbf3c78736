package markers

import (
	"fmt"
	"reflect"
)

type paramValue struct {
	name  string
	value any
}

// Instance is a marker attached to a construct, with its parameter values in
// declaration order
type Instance struct {
	Name   string
	params []paramValue
}

// Option sets a parameter on a marker instance
type Option func(*Instance)

// New creates a marker instance by name. Most callers use the typed
// constructors such as Test or Ignore instead.
func New(name string, opts ...Option) Instance {
	inst := Instance{Name: name}
	for _, opt := range opts {
		opt(&inst)
	}
	return inst
}

// WithParam sets an arbitrary parameter value
func WithParam(name string, value any) Option {
	return func(i *Instance) {
		i.set(name, value)
	}
}

func (i *Instance) set(name string, value any) {
	for idx := range i.params {
		if i.params[idx].name == name {
			i.params[idx].value = value
			return
		}
	}
	i.params = append(i.params, paramValue{name: name, value: value})
}

// Param returns the value of a parameter, if set
func (i Instance) Param(name string) (any, bool) {
	for _, p := range i.params {
		if p.name == name {
			return p.value, true
		}
	}
	return nil, false
}

// StringParam returns a string parameter, or "" when absent or not a string
func (i Instance) StringParam(name string) string {
	v, ok := i.Param(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// ParamNames returns the names of the parameters that were set, in order
func (i Instance) ParamNames() []string {
	names := make([]string, 0, len(i.params))
	for _, p := range i.params {
		names = append(names, p.name)
	}
	return names
}

// String implements the Stringer interface for Instance
func (i Instance) String() string {
	if len(i.params) == 0 {
		return i.Name
	}
	s := i.Name + "("
	for idx, p := range i.params {
		if idx > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", p.name, p.value)
	}
	return s + ")"
}

// Description sets the description of a fixture or test
func Description(text string) Option {
	return WithParam(ParamDescription, text)
}

func Fixture(opts ...Option) Instance {
	return New(NameFixture, opts...)
}

func Test(opts ...Option) Instance {
	return New(NameTest, opts...)
}

func SetUp() Instance {
	return New(NameSetUp)
}

func TearDown() Instance {
	return New(NameTearDown)
}

func FixtureSetUp() Instance {
	return New(NameFixtureSetUp)
}

func FixtureTearDown() Instance {
	return New(NameFixtureTearDown)
}

func Ignore(reason string) Instance {
	return New(NameIgnore, WithParam(ParamReason, reason))
}

func Explicit(reason string) Instance {
	return New(NameExplicit, WithParam(ParamReason, reason))
}

// Platform restricts a construct to platforms. include and exclude are comma
// separated lists of GOOS, GOARCH or GOOS/GOARCH names.
func Platform(include, exclude string, opts ...Option) Instance {
	base := []Option{WithParam(ParamInclude, include), WithParam(ParamExclude, exclude)}
	return New(NamePlatform, append(base, opts...)...)
}

// Reason sets an explicit reason on ignore, explicit or platform markers
func Reason(text string) Option {
	return WithParam(ParamReason, text)
}

func Category(name string) Instance {
	return New(NameCategory, WithParam(ParamName, name))
}

func Property(name string, value any) Instance {
	return New(NameProperty, WithParam(ParamName, name), WithParam(ParamValue, value))
}

func Suite() Instance {
	return New(NameSuite)
}

// ExpectedError declares that a test is expected to raise an error
func ExpectedError(opts ...Option) Instance {
	return New(NameExpectedError, opts...)
}

// ErrorType matches the raised error by its exact dynamic type
func ErrorType(t reflect.Type) Option {
	return WithParam(ParamType, t)
}

// ErrorTypeOf matches the raised error by the exact type T
func ErrorTypeOf[T any]() Option {
	return ErrorType(reflect.TypeFor[T]())
}

// ErrorName matches the raised error by its fully qualified type name, e.g.
// "*io/fs.PathError". Use it when the type cannot be referenced directly.
func ErrorName(name string) Option {
	return WithParam(ParamName, name)
}

// Message sets the expected message and the policy used to match it
func Message(text string, policy MatchPolicy) Option {
	return func(i *Instance) {
		i.set(ParamMessage, text)
		i.set(ParamMatch, policy)
	}
}
