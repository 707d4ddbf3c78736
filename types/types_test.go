package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStateOutcomeStatus(t *testing.T) {
	assert.Equal(t, TestStatusIgnored, RunStateIgnored.OutcomeStatus())
	assert.Equal(t, TestStatusSkipped, RunStateSkipped.OutcomeStatus())
	assert.Equal(t, TestStatusSkipped, RunStateExplicit.OutcomeStatus())
	assert.Equal(t, TestStatusNotRunnable, RunStateNotRunnable.OutcomeStatus())

	o := NotRun(RunStateExplicit, "explicit")
	assert.False(t, o.Executed())
	assert.Equal(t, "Skipped: explicit", o.String())
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []TestStatus{TestStatusSuccess, TestStatusFailure, TestStatusError} {
		assert.True(t, s.Executed(), s)
		assert.True(t, s.Valid(), s)
	}
	for _, s := range []TestStatus{TestStatusIgnored, TestStatusSkipped, TestStatusNotRunnable} {
		assert.False(t, s.Executed(), s)
		assert.False(t, s.IsFailure(), s)
	}
	assert.False(t, TestStatus("Passed").Valid())
}

func TestOutcomeHelpers(t *testing.T) {
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	o := Failure("expected 1", "main.go:1").WithTiming(start, start.Add(15*time.Millisecond))
	assert.Equal(t, 15*time.Millisecond, o.Duration)
	assert.True(t, o.IsFailure())

	o = o.WithNote("teardown failed").WithNote("second")
	assert.Equal(t, "teardown failed\nsecond", o.Note)
	assert.Equal(t, "Success", Success().String())
}

func TestRollup(t *testing.T) {
	var r Rollup
	r.Add(Outcome{Status: TestStatusSuccess, Asserts: 2, Duration: time.Second})
	r.Add(Ignored("later"))
	r.Add(Skipped("platform"))
	require.Equal(t, TestStatusSuccess, r.Status())
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Run)
	assert.Equal(t, 2, r.NotRun())
	assert.False(t, r.IsFailure())

	var child Rollup
	child.Add(Error("boom", ""))
	r.Merge(child)
	assert.Equal(t, TestStatusError, r.Status())
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2, r.Asserts)

	r.Add(Failure("bad", ""))
	assert.Equal(t, TestStatusFailure, r.Status())
}

func TestRollupStatusWhenNothingRan(t *testing.T) {
	var r Rollup
	assert.Equal(t, TestStatusSuccess, r.Status())
	r.Add(Skipped("platform"))
	assert.Equal(t, TestStatusSkipped, r.Status())
	r.Add(NotRunnable("bad signature"))
	assert.Equal(t, TestStatusNotRunnable, r.Status())
	r.Add(Ignored("later"))
	assert.Equal(t, TestStatusIgnored, r.Status())
}

func TestFaultError(t *testing.T) {
	f := &Fault{Phase: PhaseFixtureSetup, Test: "unit.Fixture", Message: "boom"}
	assert.Equal(t, "fixture-setup failed in unit.Fixture: boom", f.Error())
	f = &Fault{Phase: PhaseBoundary, Message: "exit 2"}
	assert.Equal(t, "boundary failed: exit 2", f.Error())
}
