package metrics

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// ResultAborted is the run result label of a run that ended fatally
const ResultAborted = "Aborted"

// Sink records run events as metrics
type Sink struct {
	mu    sync.Mutex
	runID string
}

var _ events.Sink = (*Sink)(nil)

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) RunStarted(run events.RunInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = run.ID
}

func (s *Sink) SuiteStarted(events.TestInfo)                {}
func (s *Sink) TestStarted(events.TestInfo)                 {}
func (s *Sink) SuiteFinished(events.TestInfo, types.Rollup) {}

func (s *Sink) TestFinished(_ events.TestInfo, outcome types.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	RecordCase(s.runID, outcome)
}

func (s *Sink) RunFinished(result events.RunResult) {
	label := string(result.Rollup.Status())
	if result.IsFatal() {
		label = ResultAborted
	}
	RecordRun(result.ID, label, result.Rollup, result.End.Sub(result.Start))
}

func (s *Sink) UnhandledException(fault types.Fault) {
	RecordUnhandled(fault.Phase)
}
