package runner

import (
	"github.com/ethereum-optimism/infra/op-harness/model"
)

// Filter selects which nodes of a tree take part in a run
type Filter struct {
	// Categories restricts the run to nodes in at least one of the categories.
	// Empty matches everything.
	Categories []string
	// Selection restricts the run to the named suites and cases and their
	// descendants. Empty selects everything.
	Selection []string
	// RunExplicit runs explicit nodes that were not selected by name
	RunExplicit bool
	// EmitEmptySuites reports suites that have no matching cases as started and
	// finished with no children, preserving the tree's shape
	EmitEmptySuites bool
}

// IsEmpty reports whether the filter matches every node
func (f Filter) IsEmpty() bool {
	return len(f.Categories) == 0 && len(f.Selection) == 0
}

// Targets reports whether n was selected by its own name, which is what lets
// an explicit node run
func (f Filter) Targets(n model.Node) bool {
	if f.RunExplicit {
		return true
	}
	for _, name := range f.Selection {
		if name == n.FullName() {
			return true
		}
	}
	return false
}

// TargetsSubtree reports whether n or any node below it was selected by its
// own name. An explicit suite runs when it is targeted this way.
func (f Filter) TargetsSubtree(n model.Node) bool {
	if f.Targets(n) {
		return true
	}
	if s, ok := n.(*model.Suite); ok {
		for _, child := range s.Children() {
			if f.TargetsSubtree(child) {
				return true
			}
		}
	}
	return false
}

func (f Filter) matchesCategories(n model.Node) bool {
	for _, c := range n.Categories() {
		for _, want := range f.Categories {
			if c == want {
				return true
			}
		}
	}
	return false
}

func (f Filter) selects(n model.Node) bool {
	for _, name := range f.Selection {
		if name == n.FullName() {
			return true
		}
	}
	return false
}

// Plan returns the nodes that take part in the run. A node is included when it
// passes both the category and the selection check on its own or through an
// ancestor, or, for a suite, when any descendant is included. The root is
// always included.
func (f Filter) Plan(root *model.Suite) map[model.Node]bool {
	included := make(map[model.Node]bool)
	var visit func(n model.Node, catOK, selOK bool) bool
	visit = func(n model.Node, catOK, selOK bool) bool {
		catOK = catOK || len(f.Categories) == 0 || f.matchesCategories(n)
		selOK = selOK || len(f.Selection) == 0 || f.selects(n)
		in := catOK && selOK
		if s, ok := n.(*model.Suite); ok {
			for _, child := range s.Children() {
				if visit(child, catOK, selOK) {
					in = true
				}
			}
		}
		if in {
			included[n] = true
		}
		return in
	}
	visit(root, false, false)
	included[root] = true
	return included
}
