package reporting

import (
	"bytes"
	"testing"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func TestConsoleListenerProgress(t *testing.T) {
	var buf bytes.Buffer
	play(NewConsoleListener(&buf, false), sampleRun())
	assert.Equal(t, "..F.N\n", buf.String())
}

func TestConsoleListenerLabels(t *testing.T) {
	var buf bytes.Buffer
	play(NewConsoleListener(&buf, true), sampleRun())
	assert.Equal(t, ".[unit.Fixture.TestPass]\n.[unit.Fixture.TestFail]\nF.[unit.Fixture.TestIgnored]\nN\n", buf.String())
}

func TestConsoleListenerUnhandledException(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleListener(&buf, false)
	c.TestStarted(events.TestInfo{FullName: "unit.Fixture.TestPass", Name: "TestPass"})
	c.UnhandledException(types.Fault{Phase: types.PhaseBoundary, Kind: "string", Message: "boom", StackTrace: "main.go:3"})

	assert.Equal(t, ".\n##### Unhandled Exception while running unit.Fixture.TestPass\nboundary failed: boom\nmain.go:3\n", buf.String())
}

func TestConsoleListenerAborted(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleListener(&buf, true)
	c.UnhandledException(types.Fault{Phase: types.PhaseFixtureTeardown, Test: "unit.Fixture", Message: "cleanup failed"})
	c.RunFinished(events.RunResult{Fatal: &types.Fault{Phase: types.PhaseRun, Message: "Test run aborted"}})

	assert.Equal(t, "##### Unhandled Exception while running unit.Fixture\nfixture-teardown failed in unit.Fixture: cleanup failed\n\n##### Run aborted: Test run aborted\n", buf.String())
}

func TestConsoleListenerHideProgress(t *testing.T) {
	var buf bytes.Buffer
	play(NewConsoleListener(&buf, false).HideProgress(), sampleRun())
	assert.Empty(t, buf.String())

	buf.Reset()
	play(NewConsoleListener(&buf, true).HideProgress(), sampleRun())
	assert.Equal(t, "[unit.Fixture.TestPass]\n[unit.Fixture.TestFail]\n[unit.Fixture.TestIgnored]\n", buf.String())
}
