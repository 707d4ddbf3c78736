package boundary

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/discovery"
	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastResult(t *testing.T, rec *events.Recorder) events.RunResult {
	t.Helper()
	msgs := rec.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, events.KindRunFinished, last.Kind)
	return *last.Result
}

func TestInProcessRun(t *testing.T) {
	b := NewInProcess(InProcessConfig{Engine: Engine{Unit: newTestUnit(newBlocker())}})
	rec := events.NewRecorder()

	err := b.Run(context.Background(), Request{RunID: "in-process"}, rec)
	require.NoError(t, err)

	assert.Equal(t, []events.Kind{
		events.KindRunStarted,
		events.KindSuiteStarted, events.KindSuiteStarted,
		events.KindTestStarted, events.KindTestFinished,
		events.KindTestStarted, events.KindTestFinished,
		events.KindTestStarted, events.KindTestFinished,
		events.KindTestStarted, events.KindTestFinished,
		events.KindTestStarted, events.KindTestFinished,
		events.KindTestStarted, events.KindTestFinished,
		events.KindSuiteFinished, events.KindSuiteFinished,
		events.KindRunFinished,
	}, rec.Kinds())

	res := lastResult(t, rec)
	assert.Equal(t, "in-process", res.ID)
	assert.False(t, res.IsFatal())
	assert.Equal(t, 1, res.Rollup.Passed)
	assert.Equal(t, 1, res.Rollup.Failed)
	assert.Equal(t, 4, res.Rollup.Skipped)
}

func TestInProcessSelection(t *testing.T) {
	b := NewInProcess(InProcessConfig{Engine: Engine{Unit: newTestUnit(newBlocker())}})
	rec := events.NewRecorder()

	err := b.Run(context.Background(), Request{Selection: []string{failName}}, rec)
	require.NoError(t, err)
	res := lastResult(t, rec)
	assert.Equal(t, 1, res.Rollup.Total)
	assert.Equal(t, 1, res.Rollup.Failed)
}

func TestInProcessDiscoveryError(t *testing.T) {
	b := NewInProcess(InProcessConfig{Engine: Engine{Unit: newTestUnit(newBlocker())}})
	rec := events.NewRecorder()

	err := b.Run(context.Background(), Request{Fixtures: []string{"boundary.missing"}}, rec)
	require.Error(t, err)
	assert.True(t, discovery.IsDiscoveryError(err))
	assert.False(t, IsBoundaryFault(err))
	assert.Empty(t, rec.Messages())
}

func TestInProcessEscapedPanic(t *testing.T) {
	b := NewInProcess(InProcessConfig{Engine: Engine{
		Unit:      newTestUnit(newBlocker()),
		Reflector: panickingReflector{reflector.NewRuntime()},
	}})
	rec := events.NewRecorder()

	err := b.Run(context.Background(), Request{}, rec)
	require.Error(t, err)
	assert.True(t, IsBoundaryFault(err))

	kinds := rec.Kinds()
	require.GreaterOrEqual(t, len(kinds), 3)
	assert.Equal(t, events.KindUnhandledException, kinds[len(kinds)-2])
	fault := rec.Messages()[len(kinds)-2].Fault
	assert.Equal(t, types.PhaseBoundary, fault.Phase)
	assert.Equal(t, "reflector exploded", fault.Message)
	assert.Equal(t, "*errors.errorString", fault.Kind)
	assert.NotEmpty(t, fault.StackTrace)

	res := lastResult(t, rec)
	require.True(t, res.IsFatal())
	assert.Equal(t, types.PhaseBoundary, res.Fatal.Phase)
}

func TestInProcessCancel(t *testing.T) {
	blk := newBlocker()
	b := NewInProcess(InProcessConfig{Engine: Engine{Unit: newTestUnit(blk)}})
	rec := events.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-blk.started
		cancel()
	}()

	err := b.Run(ctx, Request{Selection: []string{passName, waitName, noiseName}}, rec)
	require.NoError(t, err)

	res := lastResult(t, rec)
	require.True(t, res.IsFatal())
	assert.Equal(t, runner.AbortMessage, res.Fatal.Message)

	// events received before the abort are all delivered
	var finished []string
	for _, m := range rec.Messages() {
		if m.Kind == events.KindTestFinished {
			finished = append(finished, m.Test.FullName)
		}
	}
	assert.Equal(t, []string{passName, waitName}, finished)
}

func TestInProcessAbandon(t *testing.T) {
	blk := newBlocker()
	defer close(blk.release)
	b := NewInProcess(InProcessConfig{Engine: Engine{Unit: newTestUnit(blk)}, AbortGrace: 50 * time.Millisecond})
	rec := events.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-blk.started
		cancel()
	}()

	err := b.Run(ctx, Request{Selection: []string{passName, stuckName}}, rec)
	require.Error(t, err)
	assert.True(t, IsBoundaryFault(err))

	res := lastResult(t, rec)
	require.True(t, res.IsFatal())
	assert.Equal(t, runner.AbortMessage, res.Fatal.Message)
	assert.Equal(t, 1, res.Rollup.Passed)
	assert.Contains(t, rec.Kinds(), events.KindTestStarted)
}
