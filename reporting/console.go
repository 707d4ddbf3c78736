package reporting

import (
	"fmt"
	"io"
	"sync"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/fatih/color"
)

// ConsoleListener prints run progress: a dot per started case, F for a failed
// one and N for one that did not run. With labels each case's name is printed
// as it starts.
type ConsoleListener struct {
	mu       sync.Mutex
	w        io.Writer
	labels   bool
	progress bool
	current  string

	failed *color.Color
	notRun *color.Color
	banner *color.Color
}

var _ events.Sink = (*ConsoleListener)(nil)

// NewConsoleListener writes progress to w. Colour follows the fatih/color
// defaults, so it is off when w is not a terminal or NO_COLOR is set.
func NewConsoleListener(w io.Writer, labels bool) *ConsoleListener {
	return &ConsoleListener{
		w:        w,
		labels:   labels,
		progress: true,
		failed:   color.New(color.FgRed, color.Bold),
		notRun:   color.New(color.FgYellow),
		banner:   color.New(color.FgRed),
	}
}

// HideProgress stops the listener from printing progress characters. Labels
// and unhandled exceptions are still printed.
func (c *ConsoleListener) HideProgress() *ConsoleListener {
	c.progress = false
	return c
}

func (c *ConsoleListener) RunStarted(events.RunInfo)                   {}
func (c *ConsoleListener) SuiteStarted(events.TestInfo)                {}
func (c *ConsoleListener) SuiteFinished(events.TestInfo, types.Rollup) {}

func (c *ConsoleListener) TestStarted(test events.TestInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = test.FullName
	if c.progress {
		fmt.Fprint(c.w, ".")
	}
	if c.labels {
		fmt.Fprintf(c.w, "[%s]\n", test.FullName)
	}
}

func (c *ConsoleListener) TestFinished(test events.TestInfo, outcome types.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.progress:
	case outcome.IsFailure():
		c.failed.Fprint(c.w, "F")
	case !outcome.Executed():
		c.notRun.Fprint(c.w, "N")
	}
	c.current = ""
}

func (c *ConsoleListener) RunFinished(result events.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.progress {
		fmt.Fprintln(c.w)
	}
	if result.Fatal != nil {
		c.banner.Fprintf(c.w, "##### Run aborted: %s\n", result.Fatal.Message)
	}
}

func (c *ConsoleListener) UnhandledException(fault types.Fault) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := fault.Test
	if name == "" {
		name = c.current
	}
	// labels already end their line
	if c.progress && !c.labels {
		fmt.Fprintln(c.w)
	}
	c.banner.Fprintf(c.w, "##### Unhandled Exception while running %s\n", name)
	fmt.Fprintln(c.w, fault.Error())
	if fault.StackTrace != "" {
		fmt.Fprintln(c.w, fault.StackTrace)
	}
}
