package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/framework"
	"github.com/ethereum-optimism/infra/op-harness/model"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config holds configuration for creating a new runner
type Config struct {
	Log       log.Logger
	Reflector reflector.Reflector
	Filter    Filter
	// RunID identifies the run in events; a UUID is generated when empty
	RunID string
}

// Runner executes a test tree. A Runner may be reused for several runs, one
// at a time.
type Runner struct {
	log    log.Logger
	refl   reflector.Reflector
	filter Filter
	runID  string
	tracer trace.Tracer
}

// New creates a runner
func New(cfg Config) (*Runner, error) {
	if cfg.Reflector == nil {
		return nil, fmt.Errorf("reflector is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Runner{
		log:    cfg.Log,
		refl:   cfg.Reflector,
		filter: cfg.Filter,
		runID:  cfg.RunID,
		tracer: otel.Tracer("test runner"),
	}, nil
}

// run holds the state of a single Run call
type run struct {
	*Runner
	ctx      context.Context
	sink     events.Sink
	counter  *framework.Counter
	included map[model.Node]bool
	aborted  bool
}

// notRun is the state a subtree reports instead of running
type notRun struct {
	state  types.RunState
	reason string
	err    *types.Outcome // set when the subtree reports an error instead
}

// Run walks root and reports every event to sink. It returns the value
// passed to RunFinished. A cancelled ctx aborts the run: no further cases
// start, open suites are finished and RunFinished carries a fatal fault.
func (r *Runner) Run(ctx context.Context, root *model.Suite, sink events.Sink) events.RunResult {
	if sink == nil {
		sink = events.NopSink{}
	}
	runID := r.runID
	if runID == "" {
		runID = uuid.New().String()
	}
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("run %s", root.Name()))
	defer span.End()

	st := &run{
		Runner:   r,
		ctx:      ctx,
		sink:     sink,
		counter:  framework.NewCounter(),
		included: r.filter.Plan(root),
	}

	total := 0
	for _, c := range model.Cases(root) {
		if st.included[c] {
			total++
		}
	}

	start := time.Now()
	r.log.Info("Starting run", "runID", runID, "root", root.FullName(), "tests", total)
	sink.RunStarted(events.RunInfo{ID: runID, Name: root.Name(), TestCount: total, Start: start})

	rollup := st.runSuite(root, "", nil)

	result := events.RunResult{ID: runID, Name: root.Name(), Rollup: rollup, Start: start, End: time.Now()}
	if st.aborted {
		result.Fatal = &types.Fault{Phase: types.PhaseRun, Message: AbortMessage}
		span.SetStatus(codes.Error, AbortMessage)
	} else if rollup.IsFailure() {
		span.SetStatus(codes.Error, "tests failed")
	}
	r.log.Info("Run finished", "runID", runID, "status", rollup.Status(), "asserts", st.counter.Value(), "aborted", st.aborted)
	sink.RunFinished(result)
	return result
}

// Info converts a node into the plain data carried by events
func Info(n model.Node, parent string) events.TestInfo {
	info := events.TestInfo{
		FullName:    n.FullName(),
		Name:        n.Name(),
		Parent:      parent,
		RunState:    n.RunState(),
		Description: n.Description(),
		Categories:  n.Categories(),
	}
	for _, p := range n.Properties() {
		info.Properties = append(info.Properties, events.Property{Name: p.Name, Value: fmt.Sprint(p.Value)})
	}
	if s, ok := n.(*model.Suite); ok {
		info.IsSuite = true
		info.TestCount = s.TestCount()
	}
	return info
}

func (st *run) runSuite(s *model.Suite, parent string, inherited *notRun) types.Rollup {
	ctx, span := st.tracer.Start(st.ctx, fmt.Sprintf("suite %s", s.FullName()))
	defer span.End()

	info := Info(s, parent)
	st.sink.SuiteStarted(info)

	var rollup types.Rollup
	defer func() {
		span.SetAttributes(attribute.Int("tests", rollup.Total), attribute.Int("failed", rollup.Failed+rollup.Errors))
		st.sink.SuiteFinished(info, rollup)
	}()

	if inherited == nil && s.RunState() != types.RunStateRunnable &&
		!(s.RunState() == types.RunStateExplicit && st.filter.TargetsSubtree(s)) {
		inherited = &notRun{state: s.RunState(), reason: s.Reason()}
	}
	if inherited != nil {
		rollup = st.reportSubtree(s, inherited)
		return rollup
	}

	var instance any
	if fixture := s.Fixture(); fixture != nil {
		var setupErr error
		instance, setupErr = st.refl.New(fixture)
		if setupErr == nil && s.Hooks().FixtureSetUp != nil {
			setupErr = st.invoke(ctx, s.Hooks().FixtureSetUp, instance, s.FullName())
		}
		if setupErr != nil {
			r := describe(setupErr)
			fse := &FixtureSetupError{Suite: s.FullName(), Err: setupErr}
			st.log.Warn("Fixture setup failed", "suite", s.FullName(), "err", r.message)
			span.SetStatus(codes.Error, fse.Error())
			out := types.Error(fmt.Sprintf("fixture-setup failed in %s: %s", s.FullName(), r.message), r.stack)
			rollup = st.reportSubtree(s, &notRun{err: &out})
			if instance != nil {
				st.fixtureTearDown(ctx, s, instance)
			}
			return rollup
		}
	}

	for _, child := range s.Children() {
		if st.ctx.Err() != nil {
			st.aborted = true
			break
		}
		if !st.included[child] {
			if cs, ok := child.(*model.Suite); ok && st.filter.EmitEmptySuites {
				childInfo := Info(cs, s.FullName())
				st.sink.SuiteStarted(childInfo)
				st.sink.SuiteFinished(childInfo, types.Rollup{})
			}
			continue
		}
		switch c := child.(type) {
		case *model.Suite:
			rollup.Merge(st.runSuite(c, s.FullName(), nil))
		case *model.Case:
			rollup.Add(st.runCase(ctx, c, s, instance))
		}
	}
	if st.ctx.Err() != nil {
		st.aborted = true
	}

	if instance != nil {
		st.fixtureTearDown(ctx, s, instance)
	}
	return rollup
}

// reportSubtree reports every included case below s as not run, without
// invoking anything. Nested suites are still started and finished.
func (st *run) reportSubtree(s *model.Suite, nr *notRun) types.Rollup {
	var rollup types.Rollup
	for _, child := range s.Children() {
		if !st.included[child] {
			continue
		}
		switch c := child.(type) {
		case *model.Suite:
			info := Info(c, s.FullName())
			st.sink.SuiteStarted(info)
			sub := st.reportSubtree(c, nr)
			st.sink.SuiteFinished(info, sub)
			rollup.Merge(sub)
		case *model.Case:
			info := Info(c, s.FullName())
			st.sink.TestStarted(info)
			var out types.Outcome
			if nr.err != nil {
				now := time.Now()
				out = nr.err.WithTiming(now, now)
			} else {
				out = types.NotRun(nr.state, nr.reason)
			}
			st.sink.TestFinished(info, out)
			rollup.Add(out)
		}
	}
	return rollup
}

func (st *run) runCase(ctx context.Context, c *model.Case, s *model.Suite, instance any) types.Outcome {
	info := Info(c, s.FullName())
	st.sink.TestStarted(info)

	outcome := st.execute(ctx, c, s, instance)
	if outcome.IsFailure() {
		st.log.Debug("Test failed", "test", c.FullName(), "status", outcome.Status, "message", outcome.Message)
	}
	st.sink.TestFinished(info, outcome)
	return outcome
}

func (st *run) execute(ctx context.Context, c *model.Case, s *model.Suite, instance any) types.Outcome {
	if c.RunState() != types.RunStateRunnable &&
		!(c.RunState() == types.RunStateExplicit && st.filter.Targets(c)) {
		return types.NotRun(c.RunState(), c.Reason())
	}
	if instance == nil {
		return types.NotRunnable(fmt.Sprintf("%s has no fixture instance", c.FullName()))
	}

	ctx, span := st.tracer.Start(ctx, fmt.Sprintf("test %s", c.Name()))
	defer span.End()

	tctx := framework.NewContext(ctx, c.FullName(), st.counter, st.log)
	hooks := s.Hooks()
	start := time.Now()

	var err error
	if hooks.SetUp != nil {
		err = st.invokeWith(hooks.SetUp, instance, tctx)
	}
	if err == nil {
		if c.TakesContext() {
			_, err = st.refl.Invoke(c.Method(), instance, tctx)
		} else {
			_, err = st.refl.Invoke(c.Method(), instance)
		}
	}
	outcome := Classify(ctx, c.ExpectedError(), err)

	if hooks.TearDown != nil {
		if tdErr := st.invokeWith(hooks.TearDown, instance, tctx); tdErr != nil {
			r := describe(tdErr)
			if outcome.IsFailure() {
				outcome = outcome.WithNote(fmt.Sprintf("TearDown : %s : %s", r.kindName(), r.message))
			} else {
				outcome = unexpected(r)
			}
		}
	}

	outcome = outcome.WithTiming(start, time.Now())
	outcome.Asserts = tctx.AssertCount()
	if outcome.IsFailure() {
		span.SetStatus(codes.Error, outcome.Message)
	}
	return outcome
}

// invoke calls a fixture-level hook with a context of its own
func (st *run) invoke(ctx context.Context, m *reflector.MethodRef, instance any, name string) error {
	return st.invokeWith(m, instance, framework.NewContext(ctx, name, st.counter, st.log))
}

func (st *run) invokeWith(m *reflector.MethodRef, instance any, tctx *framework.Context) error {
	var err error
	if takesContext(m) {
		_, err = st.refl.Invoke(m, instance, tctx)
	} else {
		_, err = st.refl.Invoke(m, instance)
	}
	return err
}

func takesContext(m *reflector.MethodRef) bool {
	sig := m.Signature()
	return sig.NumIn() == 1 && sig.In(0) == framework.ContextType
}

// fixtureTearDown runs the fixture-teardown hook. It runs even after the run
// was aborted; a failure is reported as an unhandled exception and leaves the
// recorded outcomes untouched.
func (st *run) fixtureTearDown(ctx context.Context, s *model.Suite, instance any) {
	m := s.Hooks().FixtureTearDown
	if m == nil {
		return
	}
	err := st.invoke(context.WithoutCancel(ctx), m, instance, s.FullName())
	if err == nil {
		return
	}
	r := describe(err)
	st.log.Warn("Fixture teardown failed", "suite", s.FullName(), "err", r.message)
	st.sink.UnhandledException(types.Fault{
		Phase:      types.PhaseFixtureTeardown,
		Test:       s.FullName(),
		Kind:       r.kindName(),
		Message:    r.message,
		StackTrace: r.stack,
	})
}
