package events

import "github.com/ethereum-optimism/infra/op-harness/types"

// Multicast fans every event out to its sinks in the order they were added.
// Each sink sees the full sequence unchanged.
type Multicast struct {
	sinks []Sink
}

var _ Sink = (*Multicast)(nil)

func NewMulticast(sinks ...Sink) *Multicast {
	m := &Multicast{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add appends a sink. Nil sinks are ignored.
func (m *Multicast) Add(s Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

func (m *Multicast) Len() int {
	return len(m.sinks)
}

func (m *Multicast) RunStarted(run RunInfo) {
	for _, s := range m.sinks {
		s.RunStarted(run)
	}
}

func (m *Multicast) SuiteStarted(suite TestInfo) {
	for _, s := range m.sinks {
		s.SuiteStarted(suite)
	}
}

func (m *Multicast) TestStarted(test TestInfo) {
	for _, s := range m.sinks {
		s.TestStarted(test)
	}
}

func (m *Multicast) TestFinished(test TestInfo, outcome types.Outcome) {
	for _, s := range m.sinks {
		s.TestFinished(test, outcome)
	}
}

func (m *Multicast) SuiteFinished(suite TestInfo, rollup types.Rollup) {
	for _, s := range m.sinks {
		s.SuiteFinished(suite, rollup)
	}
}

func (m *Multicast) RunFinished(result RunResult) {
	for _, s := range m.sinks {
		s.RunFinished(result)
	}
}

func (m *Multicast) UnhandledException(fault types.Fault) {
	for _, s := range m.sinks {
		s.UnhandledException(fault)
	}
}
