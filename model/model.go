// Package model holds the in-memory test tree built by discovery and walked by
// the runner. Nodes are immutable once constructed.
package model

import (
	"fmt"
	"reflect"

	"github.com/ethereum-optimism/infra/op-harness/markers"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Node is either a *Suite or a *Case
type Node interface {
	Name() string
	FullName() string
	RunState() types.RunState
	Reason() string
	Categories() []string
	Properties() []Property
	Description() string
	IsExplicit() bool
}

// Property is a named value attached to a node
type Property struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Attributes are the properties common to every node
type Attributes struct {
	Name        string
	FullName    string
	Description string
	RunState    types.RunState
	Reason      string
	Categories  []string
	Properties  []Property
	Explicit    bool
}

type base struct {
	attrs Attributes
}

func newBase(a Attributes) base {
	if a.FullName == "" {
		a.FullName = a.Name
	}
	if a.RunState == "" {
		a.RunState = types.RunStateRunnable
	}
	if a.RunState == types.RunStateRunnable {
		a.Reason = ""
	} else if a.Reason == "" {
		a.Reason = defaultReason(a.RunState)
	}
	a.Categories = DedupCategories(a.Categories)
	a.Properties = MergeProperties(a.Properties)
	return base{attrs: a}
}

func defaultReason(state types.RunState) string {
	switch state {
	case types.RunStateExplicit:
		return "explicit"
	case types.RunStateIgnored:
		return "ignored"
	case types.RunStateSkipped:
		return "skipped"
	default:
		return "not runnable"
	}
}

func (b *base) Name() string             { return b.attrs.Name }
func (b *base) FullName() string         { return b.attrs.FullName }
func (b *base) RunState() types.RunState { return b.attrs.RunState }
func (b *base) Reason() string           { return b.attrs.Reason }
func (b *base) Description() string      { return b.attrs.Description }
func (b *base) IsExplicit() bool         { return b.attrs.Explicit }

func (b *base) Categories() []string {
	out := make([]string, len(b.attrs.Categories))
	copy(out, b.attrs.Categories)
	return out
}

func (b *base) Properties() []Property {
	out := make([]Property, len(b.attrs.Properties))
	copy(out, b.attrs.Properties)
	return out
}

// Hooks are the lifecycle methods of a fixture. Any of them may be nil.
type Hooks struct {
	SetUp           *reflector.MethodRef
	TearDown        *reflector.MethodRef
	FixtureSetUp    *reflector.MethodRef
	FixtureTearDown *reflector.MethodRef
}

// Suite groups child nodes. A suite built from a fixture type owns its hooks
// and creates one fixture instance per run.
type Suite struct {
	base
	fixture  *reflector.TypeRef
	hooks    Hooks
	children []Node
}

// NewSuite creates a suite. fixture is nil for suites with no fixture type,
// such as the root.
func NewSuite(attrs Attributes, fixture *reflector.TypeRef, hooks Hooks, children ...Node) *Suite {
	c := make([]Node, len(children))
	copy(c, children)
	return &Suite{base: newBase(attrs), fixture: fixture, hooks: hooks, children: c}
}

// Children returns the suite's children in declaration order
func (s *Suite) Children() []Node {
	out := make([]Node, len(s.children))
	copy(out, s.children)
	return out
}

func (s *Suite) Fixture() *reflector.TypeRef { return s.fixture }
func (s *Suite) Hooks() Hooks                { return s.hooks }

// TestCount returns the number of cases below the suite
func (s *Suite) TestCount() int {
	return CountCases(s)
}

// ExpectedError is the resolved expected-error marker of a case
type ExpectedError struct {
	Type       reflect.Type
	TypeName   string
	Message    string
	HasMessage bool
	Match      markers.MatchPolicy
}

// Describe names the expected kind for failure messages
func (e *ExpectedError) Describe() string {
	if e.Type != nil {
		return e.Type.String()
	}
	return e.TypeName
}

// Case is a single test method
type Case struct {
	base
	method       *reflector.MethodRef
	takesContext bool
	expected     *ExpectedError
}

// NewCase creates a leaf node for method. takesContext records whether the
// method accepts a *framework.Context.
func NewCase(attrs Attributes, method *reflector.MethodRef, takesContext bool, expected *ExpectedError) *Case {
	return &Case{base: newBase(attrs), method: method, takesContext: takesContext, expected: expected}
}

func (c *Case) Method() *reflector.MethodRef  { return c.method }
func (c *Case) TakesContext() bool            { return c.takesContext }
func (c *Case) ExpectedError() *ExpectedError { return c.expected }

// DedupCategories removes duplicate and empty category names, keeping the
// first occurrence order
func DedupCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// MergeProperties collapses duplicate names. The last value wins; the
// position of the first occurrence is kept. Unnamed properties are dropped.
func MergeProperties(in []Property) []Property {
	index := make(map[string]int, len(in))
	out := make([]Property, 0, len(in))
	for _, p := range in {
		if p.Name == "" {
			continue
		}
		if i, ok := index[p.Name]; ok {
			out[i].Value = p.Value
			continue
		}
		index[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

// Walk visits n and its descendants depth first in declaration order. Returning
// false from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	if s, ok := n.(*Suite); ok {
		for _, c := range s.children {
			Walk(c, fn)
		}
	}
}

// CountCases returns the number of cases at or below n
func CountCases(n Node) int {
	count := 0
	Walk(n, func(node Node) bool {
		if _, ok := node.(*Case); ok {
			count++
		}
		return true
	})
	return count
}

// Find returns the node with the given full name
func Find(root Node, fullName string) (Node, bool) {
	var found Node
	Walk(root, func(n Node) bool {
		if found != nil {
			return false
		}
		if n.FullName() == fullName {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Cases returns all cases at or below n in execution order
func Cases(n Node) []*Case {
	var out []*Case
	Walk(n, func(node Node) bool {
		if c, ok := node.(*Case); ok {
			out = append(out, c)
		}
		return true
	})
	return out
}

// Validate checks that full names are unique within the tree
func Validate(root Node) error {
	seen := make(map[string]bool)
	var err error
	Walk(root, func(n Node) bool {
		if err != nil {
			return false
		}
		if seen[n.FullName()] {
			err = fmt.Errorf("duplicate node name %q", n.FullName())
			return false
		}
		seen[n.FullName()] = true
		return true
	})
	return err
}
