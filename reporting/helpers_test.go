package reporting

import (
	"time"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

var runStart = time.Date(2026, 10, 19, 12, 30, 0, 0, time.UTC)

// node describes a suite or case to replay as events
type node struct {
	name       string
	suite      bool
	children   []*node
	outcome    types.Outcome
	categories []string
}

func suiteOf(name string, children ...*node) *node {
	return &node{name: name, suite: true, children: children}
}

func caseOf(name string, outcome types.Outcome) *node {
	outcome.Duration = 5 * time.Millisecond
	outcome.Start = runStart
	outcome.End = runStart.Add(outcome.Duration)
	return &node{name: name, outcome: outcome}
}

func passed(asserts int) types.Outcome {
	o := types.Success()
	o.Asserts = asserts
	return o
}

// play emits the events the engine would emit for root
func play(sink events.Sink, root *node) events.RunResult {
	sink.RunStarted(events.RunInfo{ID: "run-1", Name: root.name, TestCount: countCases(root), Start: runStart})
	rollup := playNode(sink, root, "", "")
	result := events.RunResult{ID: "run-1", Name: root.name, Rollup: rollup, Start: runStart, End: runStart.Add(time.Second)}
	sink.RunFinished(result)
	return result
}

func playNode(sink events.Sink, n *node, prefix, parent string) types.Rollup {
	full := n.name
	if prefix != "" {
		full = prefix + "." + n.name
	}
	info := events.TestInfo{FullName: full, Name: n.name, Parent: parent, IsSuite: n.suite, Categories: n.categories}
	var r types.Rollup
	if !n.suite {
		sink.TestStarted(info)
		sink.TestFinished(info, n.outcome)
		r.Add(n.outcome)
		return r
	}
	info.TestCount = countCases(n)
	sink.SuiteStarted(info)
	for _, c := range n.children {
		r.Merge(playNode(sink, c, full, full))
	}
	sink.SuiteFinished(info, r)
	return r
}

func countCases(n *node) int {
	if !n.suite {
		return 1
	}
	total := 0
	for _, c := range n.children {
		total += countCases(c)
	}
	return total
}

// sampleRun is a unit with one fixture: a pass, an assertion failure and an
// ignored case
func sampleRun() *node {
	fail := types.Failure("expected 1 but was 2", "main.go:12")
	fail.Asserts = 1
	return suiteOf("unit",
		suiteOf("Fixture",
			caseOf("TestPass", passed(2)),
			caseOf("TestFail", fail),
			caseOf("TestIgnored", types.Ignored("flaky")),
		),
	)
}

func aggregate(root *node) *ResultTree {
	agg := NewAggregator(nil)
	play(agg, root)
	return agg.Tree()
}
