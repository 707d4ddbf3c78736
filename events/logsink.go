package events

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

// LogSink writes events to a logger and, when an interval is set, periodically
// logs progress along with the longest running tests.
type LogSink struct {
	logger   log.Logger
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	mu       sync.RWMutex

	runID          string
	totalTests     int
	completedTests int
	failedTests    int
	runStartTime   time.Time
	suiteStarts    map[string]time.Time
	runningTests   map[string]time.Time
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a log sink. A zero interval disables progress updates.
func NewLogSink(logger log.Logger, interval time.Duration) *LogSink {
	if logger == nil {
		logger = log.New()
	}
	return &LogSink{
		logger:       logger,
		interval:     interval,
		suiteStarts:  make(map[string]time.Time),
		runningTests: make(map[string]time.Time),
	}
}

func (l *LogSink) RunStarted(run RunInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.runID = run.ID
	l.totalTests = run.TestCount
	l.completedTests = 0
	l.failedTests = 0
	l.runStartTime = time.Now()
	l.suiteStarts = make(map[string]time.Time)
	l.runningTests = make(map[string]time.Time)

	l.logger.Info("Starting run", "runID", run.ID, "name", run.Name, "totalTests", run.TestCount)

	if l.interval > 0 && l.ticker == nil {
		l.ticker = time.NewTicker(l.interval)
		l.stopCh = make(chan struct{})
		go l.progressReporter(l.ticker, l.stopCh)
	}
}

func (l *LogSink) SuiteStarted(suite TestInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.suiteStarts[suite.FullName] = time.Now()
	l.logger.Debug("Starting suite", "suite", suite.FullName, "suiteTests", suite.TestCount)
}

func (l *LogSink) TestStarted(test TestInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.runningTests[test.FullName] = time.Now()
	l.logger.Debug("Test started", "test", test.FullName, "runningTests", len(l.runningTests))
}

func (l *LogSink) TestFinished(test TestInfo, outcome types.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.runningTests, test.FullName)
	l.completedTests++
	if outcome.IsFailure() {
		l.failedTests++
		l.logger.Warn("Test failed", "test", test.FullName, "status", outcome.Status, "message", outcome.Message)
		return
	}
	l.logger.Debug("Test completed", "test", test.FullName, "status", outcome.Status,
		"completed", l.completedTests, "total", l.totalTests)
}

func (l *LogSink) SuiteFinished(suite TestInfo, rollup types.Rollup) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var duration time.Duration
	if start, ok := l.suiteStarts[suite.FullName]; ok {
		duration = time.Since(start).Truncate(time.Millisecond)
		delete(l.suiteStarts, suite.FullName)
	}
	l.logger.Info("Completed suite", "suite", suite.FullName, "status", rollup.Status(),
		"passed", rollup.Passed, "failed", rollup.Failed, "errors", rollup.Errors, "duration", duration)
}

func (l *LogSink) RunFinished(result RunResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stop()
	duration := time.Since(l.runStartTime).Truncate(time.Millisecond)
	if result.Fatal != nil {
		l.logger.Error("Run aborted", "runID", result.ID, "completed", l.completedTests,
			"total", l.totalTests, "err", result.Fatal.Message, "duration", duration)
		return
	}
	l.logger.Info("Completed run", "runID", result.ID, "status", result.Rollup.Status(),
		"total", result.Rollup.Total, "passed", result.Rollup.Passed, "failed", result.Rollup.Failed,
		"errors", result.Rollup.Errors, "notRun", result.Rollup.NotRun(), "duration", duration)
}

func (l *LogSink) UnhandledException(fault types.Fault) {
	l.logger.Error("Unhandled exception", "phase", fault.Phase, "test", fault.Test, "kind", fault.Kind, "err", fault.Message)
}

// stop must be called with the lock held
func (l *LogSink) stop() {
	if l.ticker == nil {
		return
	}
	l.ticker.Stop()
	close(l.stopCh)
	l.ticker = nil
	l.stopCh = nil
}

func (l *LogSink) progressReporter(ticker *time.Ticker, stopCh chan struct{}) {
	for {
		select {
		case <-ticker.C:
			l.reportProgress()
		case <-stopCh:
			return
		}
	}
}

func (l *LogSink) reportProgress() {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var percentComplete float64
	if l.totalTests > 0 {
		percentComplete = float64(l.completedTests) * 100.0 / float64(l.totalTests)
	}
	l.logger.Info("Progress update",
		"runID", l.runID,
		"completed", l.completedTests,
		"total", l.totalTests,
		"failed", l.failedTests,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(l.runningTests),
		"longestRunning", formatRunningTests(l.runningTests, 3),
	)
}

// formatRunningTests lists the longest running tests first
func formatRunningTests(runningTests map[string]time.Time, maxShow int) string {
	if len(runningTests) == 0 {
		return ""
	}

	type runningTest struct {
		name     string
		duration time.Duration
	}
	now := time.Now()
	tests := make([]runningTest, 0, len(runningTests))
	for name, start := range runningTests {
		tests = append(tests, runningTest{name: name, duration: now.Sub(start)})
	}
	sort.Slice(tests, func(i, j int) bool {
		if tests[i].duration == tests[j].duration {
			return tests[i].name < tests[j].name
		}
		return tests[i].duration > tests[j].duration
	})

	var parts []string
	for i, t := range tests {
		if i >= maxShow {
			parts = append(parts, fmt.Sprintf("+%d more", len(tests)-maxShow))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", t.name, t.duration.Truncate(time.Second)))
	}
	return strings.Join(parts, ", ")
}
