// Package boundary runs the engine in an execution context separate from its
// caller. Events cross the boundary as plain Message values only.
package boundary

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-harness/discovery"
	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/markers"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

// Boundary runs one request in isolation. Run blocks until the isolated run
// has finished or was abandoned; sink is only called from the caller's
// goroutine.
type Boundary interface {
	Run(ctx context.Context, req Request, sink events.Sink) error
}

// Request describes one isolated run. It crosses a process boundary as JSON.
type Request struct {
	RunID           string   `json:"runId,omitempty"`
	Fixtures        []string `json:"fixtures,omitempty"`
	Categories      []string `json:"categories,omitempty"`
	Selection       []string `json:"selection,omitempty"`
	RunExplicit     bool     `json:"runExplicit,omitempty"`
	EmitEmptySuites bool     `json:"emitEmptySuites,omitempty"`
	// Manifest is a marker manifest the child applies to its unit before
	// discovery. In-process runs apply it once up front instead.
	Manifest string `json:"manifest,omitempty"`
}

func (r Request) Filter() runner.Filter {
	return runner.Filter{
		Categories:      r.Categories,
		Selection:       r.Selection,
		RunExplicit:     r.RunExplicit,
		EmitEmptySuites: r.EmitEmptySuites,
	}
}

// Engine builds and runs the test tree of a unit
type Engine struct {
	Log       log.Logger
	Unit      *reflector.Unit
	Reflector reflector.Reflector
	Catalog   *markers.Catalog
	Platform  discovery.Platform
}

// Execute discovers the unit's tests and runs them, reporting to sink. A
// discovery error is returned before any event is emitted.
func (e Engine) Execute(ctx context.Context, req Request, sink events.Sink) (events.RunResult, error) {
	if e.Unit == nil {
		return events.RunResult{}, errors.New("no unit to run")
	}
	if e.Log == nil {
		e.Log = log.New()
	}
	if e.Reflector == nil {
		e.Reflector = reflector.NewRuntime()
	}
	root, err := discovery.Build(e.Reflector, e.Unit, discovery.Options{
		Log:      e.Log,
		Catalog:  e.Catalog,
		Fixtures: req.Fixtures,
		Platform: e.Platform,
	})
	if err != nil {
		return events.RunResult{}, err
	}
	r, err := runner.New(runner.Config{
		Log:       e.Log,
		Reflector: e.Reflector,
		Filter:    req.Filter(),
		RunID:     req.RunID,
	})
	if err != nil {
		return events.RunResult{}, err
	}
	return r.Run(ctx, root, sink), nil
}

// ApplyManifest attaches the markers of the manifest at path to the engine's
// unit
func (e Engine) ApplyManifest(path string) error {
	if e.Unit == nil {
		return errors.New("no unit to apply the manifest to")
	}
	reg, err := registry.NewRegistry(registry.Config{
		Log:          e.Log,
		ManifestFile: path,
		Catalog:      e.Catalog,
	})
	if err != nil {
		return err
	}
	return reg.Apply(e.Unit)
}

// BoundaryFault reports that the isolated context itself failed, as opposed
// to a test inside it
type BoundaryFault struct {
	Boundary string
	Err      error
}

func (f *BoundaryFault) Error() string {
	return fmt.Sprintf("%s boundary failed: %v", f.Boundary, f.Err)
}

func (f *BoundaryFault) Unwrap() error {
	return f.Err
}

// IsBoundaryFault checks if the error is a BoundaryFault
func IsBoundaryFault(err error) bool {
	var fault *BoundaryFault
	return err != nil && errors.As(err, &fault)
}

// tracker passes events on to a sink and remembers enough of the run to
// finish it on the sink's behalf
type tracker struct {
	sink     events.Sink
	run      *events.RunInfo
	rollup   types.Rollup
	finished bool
}

var _ events.Sink = (*tracker)(nil)

func (t *tracker) RunStarted(run events.RunInfo) {
	t.run = &run
	t.sink.RunStarted(run)
}

func (t *tracker) SuiteStarted(suite events.TestInfo) { t.sink.SuiteStarted(suite) }
func (t *tracker) TestStarted(test events.TestInfo)   { t.sink.TestStarted(test) }

func (t *tracker) TestFinished(test events.TestInfo, outcome types.Outcome) {
	t.rollup.Add(outcome)
	t.sink.TestFinished(test, outcome)
}

func (t *tracker) SuiteFinished(suite events.TestInfo, rollup types.Rollup) {
	t.sink.SuiteFinished(suite, rollup)
}

func (t *tracker) RunFinished(result events.RunResult) {
	t.finished = true
	t.sink.RunFinished(result)
}

func (t *tracker) UnhandledException(fault types.Fault) {
	t.sink.UnhandledException(fault)
}

// abandon reports fault and a fatal RunFinished, unless the run already
// finished or never started
func (t *tracker) abandon(fault types.Fault) {
	if t.finished || t.run == nil {
		return
	}
	t.finished = true
	if fault.Phase != types.PhaseRun {
		t.sink.UnhandledException(fault)
	}
	t.sink.RunFinished(events.RunResult{
		ID:     t.run.ID,
		Name:   t.run.Name,
		Rollup: t.rollup,
		Fatal:  &fault,
		Start:  t.run.Start,
		End:    nowFunc(),
	})
}
