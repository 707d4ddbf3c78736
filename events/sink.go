// Package events defines the callback protocol between the engine and its
// listeners and the plain-data messages used to carry it across an isolation
// boundary.
package events

import (
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Sink receives the events of one run. Events are delivered from a single
// goroutine; a sink never sees two calls at once from the same run.
type Sink interface {
	RunStarted(run RunInfo)
	SuiteStarted(suite TestInfo)
	TestStarted(test TestInfo)
	TestFinished(test TestInfo, outcome types.Outcome)
	SuiteFinished(suite TestInfo, rollup types.Rollup)
	RunFinished(result RunResult)
	UnhandledException(fault types.Fault)
}

// TestInfo identifies a suite or case by value
type TestInfo struct {
	FullName    string         `json:"fullName"`
	Name        string         `json:"name"`
	Parent      string         `json:"parent,omitempty"`
	IsSuite     bool           `json:"isSuite,omitempty"`
	TestCount   int            `json:"testCount,omitempty"`
	RunState    types.RunState `json:"runState,omitempty"`
	Description string         `json:"description,omitempty"`
	Categories  []string       `json:"categories,omitempty"`
	Properties  []Property     `json:"properties,omitempty"`
}

// Property is a node property rendered as text
type Property struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RunInfo describes a run when it starts
type RunInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TestCount int       `json:"testCount"`
	Start     time.Time `json:"start"`
}

// RunResult describes how a run ended. Fatal is set when the run did not
// complete normally.
type RunResult struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Rollup types.Rollup `json:"rollup"`
	Fatal  *types.Fault `json:"fatal,omitempty"`
	Start  time.Time    `json:"start"`
	End    time.Time    `json:"end"`
}

// IsFatal reports whether the run was aborted
func (r RunResult) IsFatal() bool {
	return r.Fatal != nil
}

// NopSink ignores all events
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) RunStarted(RunInfo)                   {}
func (NopSink) SuiteStarted(TestInfo)                {}
func (NopSink) TestStarted(TestInfo)                 {}
func (NopSink) TestFinished(TestInfo, types.Outcome) {}
func (NopSink) SuiteFinished(TestInfo, types.Rollup) {}
func (NopSink) RunFinished(RunResult)                {}
func (NopSink) UnhandledException(types.Fault)       {}
