// Package reporting turns the events of a run into a result tree and renders
// it as an XML document, a summary table or console progress.
package reporting

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

// Aggregator builds a ResultTree from events alone. Nodes are keyed by full
// name, so an event delivered twice leaves the tree unchanged.
type Aggregator struct {
	log   log.Logger
	mu    sync.Mutex
	tree  *ResultTree
	nodes map[string]*ResultNode
	open  []*ResultNode // started suites, innermost last
}

var _ events.Sink = (*Aggregator)(nil)

func NewAggregator(logger log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New()
	}
	return &Aggregator{
		log:   logger,
		tree:  &ResultTree{},
		nodes: make(map[string]*ResultNode),
	}
}

// Tree returns the tree built so far. It must not be modified while events
// are still arriving.
func (a *Aggregator) Tree() *ResultTree {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree
}

func (a *Aggregator) RunStarted(run events.RunInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tree.RunID = run.ID
	a.tree.Name = run.Name
	a.tree.Start = run.Start
}

func (a *Aggregator) SuiteStarted(suite events.TestInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.nodes[suite.FullName]; ok {
		return
	}
	node := a.attach(suite)
	node.IsSuite = true
	a.open = append(a.open, node)
}

func (a *Aggregator) TestStarted(test events.TestInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.nodes[test.FullName]; ok {
		return
	}
	a.attach(test)
}

func (a *Aggregator) TestFinished(test events.TestInfo, outcome types.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	node, ok := a.nodes[test.FullName]
	if !ok {
		node = a.attach(test)
	}
	if node.Finished {
		a.log.Debug("Ignoring duplicate result", "test", test.FullName)
		return
	}
	node.Outcome = outcome
	node.Finished = true
}

func (a *Aggregator) SuiteFinished(suite events.TestInfo, rollup types.Rollup) {
	a.mu.Lock()
	defer a.mu.Unlock()
	node, ok := a.nodes[suite.FullName]
	if !ok {
		node = a.attach(suite)
		node.IsSuite = true
	}
	if node.Finished {
		return
	}
	node.Rollup = rollup
	node.Finished = true
	for i := len(a.open) - 1; i >= 0; i-- {
		if a.open[i] == node {
			a.open = append(a.open[:i], a.open[i+1:]...)
			break
		}
	}
}

func (a *Aggregator) RunFinished(result events.RunResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tree.Finished {
		return
	}
	if a.tree.RunID == "" {
		a.tree.RunID = result.ID
		a.tree.Name = result.Name
		a.tree.Start = result.Start
	}
	a.tree.End = result.End
	a.tree.Finished = true
	if result.Fatal != nil {
		f := *result.Fatal
		a.tree.Fatal = &f
		a.flush(f)
	}
}

func (a *Aggregator) UnhandledException(fault types.Fault) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.tree.Faults {
		if f == fault {
			return
		}
	}
	a.tree.Faults = append(a.tree.Faults, fault)
}

// attach creates a node under its parent, or as a root when the parent is
// unknown
func (a *Aggregator) attach(info events.TestInfo) *ResultNode {
	node := &ResultNode{
		FullName:    info.FullName,
		Name:        info.Name,
		Parent:      info.Parent,
		IsSuite:     info.IsSuite,
		Description: info.Description,
		RunState:    info.RunState,
		Categories:  info.Categories,
		Properties:  info.Properties,
	}
	a.nodes[info.FullName] = node
	if parent, ok := a.nodes[info.Parent]; ok && info.Parent != "" {
		parent.Children = append(parent.Children, node)
	} else {
		a.tree.Roots = append(a.tree.Roots, node)
	}
	return node
}

// flush finishes everything that was still open when the run ended. Started
// cases report the fatal fault as an error, open suites sum what they have.
func (a *Aggregator) flush(fatal types.Fault) {
	now := time.Now()
	for _, node := range a.nodes {
		if !node.IsSuite && !node.Finished {
			node.Outcome = types.Error(fatal.Message, fatal.StackTrace).WithTiming(now, now)
			node.Finished = true
		}
	}
	for i := len(a.open) - 1; i >= 0; i-- {
		node := a.open[i]
		node.Rollup = node.Recompute()
		node.Finished = true
		a.log.Debug("Flushed open suite", "suite", node.FullName, "tests", node.Rollup.Total)
	}
	a.open = nil
}
