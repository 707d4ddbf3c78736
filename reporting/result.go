package reporting

import (
	"time"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ResultNode is a suite or case in a result tree. Suites carry a rollup, cases
// an outcome.
type ResultNode struct {
	FullName    string
	Name        string
	Parent      string
	IsSuite     bool
	Description string
	RunState    types.RunState
	Categories  []string
	Properties  []events.Property

	Outcome types.Outcome // cases
	Rollup  types.Rollup  // suites

	// Finished is false for nodes that were started but never finished. Such
	// nodes only remain after a fatal run end.
	Finished bool
	Children []*ResultNode
}

// Status is the case outcome status, or the status derived from the rollup for
// a suite
func (n *ResultNode) Status() types.TestStatus {
	if n.IsSuite {
		return n.Rollup.Status()
	}
	return n.Outcome.Status
}

// Executed reports whether any test at or below n ran
func (n *ResultNode) Executed() bool {
	if n.IsSuite {
		return n.Rollup.Run > 0
	}
	return n.Outcome.Executed()
}

// Duration is the case duration or, for a suite, the sum over its cases
func (n *ResultNode) Duration() time.Duration {
	if n.IsSuite {
		return n.Rollup.Duration
	}
	return n.Outcome.Duration
}

// Walk visits n and its descendants depth first. Returning false from fn skips
// the node's children.
func (n *ResultNode) Walk(fn func(*ResultNode) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Leaves returns the number of cases at or below n
func (n *ResultNode) Leaves() int {
	count := 0
	n.Walk(func(node *ResultNode) bool {
		if !node.IsSuite {
			count++
		}
		return true
	})
	return count
}

// Recompute sums the outcomes of the cases below a suite
func (n *ResultNode) Recompute() types.Rollup {
	var r types.Rollup
	for _, c := range n.Children {
		if c.IsSuite {
			r.Merge(c.Recompute())
		} else {
			r.Add(c.Outcome)
		}
	}
	return r
}

// ResultTree is everything an aggregator learned about one run
type ResultTree struct {
	RunID  string
	Name   string
	Start  time.Time
	End    time.Time
	Roots  []*ResultNode
	Fatal  *types.Fault
	Faults []types.Fault
	// Finished is set once RunFinished was received
	Finished bool
}

// Rollup sums the rollups of the top level suites
func (t *ResultTree) Rollup() types.Rollup {
	var r types.Rollup
	for _, root := range t.Roots {
		if root.IsSuite {
			r.Merge(root.Rollup)
		} else {
			r.Add(root.Outcome)
		}
	}
	return r
}

// Leaves returns the number of cases in the tree
func (t *ResultTree) Leaves() int {
	count := 0
	for _, root := range t.Roots {
		count += root.Leaves()
	}
	return count
}

func (t *ResultTree) Walk(fn func(*ResultNode) bool) {
	for _, root := range t.Roots {
		root.Walk(fn)
	}
}

// Failed returns the cases that failed or errored, in tree order
func (t *ResultTree) Failed() []*ResultNode {
	var out []*ResultNode
	t.Walk(func(n *ResultNode) bool {
		if !n.IsSuite && n.Outcome.IsFailure() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// IsFatal reports whether the run ended abnormally
func (t *ResultTree) IsFatal() bool {
	return t.Fatal != nil
}
