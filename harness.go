// Package harness runs the tests of a unit across an isolation boundary and
// reports the results. It can run once or continuously, on an interval or
// whenever the test binary changes.
package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/boundary"
	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// harness implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &harness{}

type harness struct {
	ctx      context.Context
	config   *Config
	version  string
	boundary boundary.Boundary
	watcher  *binaryWatcher

	mu     sync.Mutex
	result *RunOutcome

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating harness with config",
		"binary", config.Binary,
		"fixtures", config.Fixtures,
		"categories", config.Categories,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"watch", config.Watch)

	if config.Binary == "" && config.Engine != nil && config.Manifest != "" {
		if err := config.Engine.ApplyManifest(config.Manifest); err != nil {
			return nil, fmt.Errorf("failed to apply manifest: %w", err)
		}
	}

	b, err := config.Boundary()
	if err != nil {
		return nil, fmt.Errorf("failed to create boundary: %w", err)
	}

	return &harness{
		ctx:              ctx,
		config:           config,
		version:          version,
		boundary:         b,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start runs the tests once and, unless in run-once mode, keeps running
// them on the configured interval or binary changes.
// Start implements the cliapp.Lifecycle interface.
func (h *harness) Start(ctx context.Context) error {
	h.ctx = ctx
	h.done = make(chan struct{})
	h.running.Store(true)

	if h.config.RunOnce {
		h.config.Log.Info("Starting op-harness in run-once mode", "version", h.version)
	} else {
		h.config.Log.Info("Starting op-harness in continuous mode", "version", h.version, "interval", h.config.RunInterval, "watch", h.config.Watch)
	}

	// Run tests immediately on startup
	outcome := h.runTests(ctx)

	if h.config.RunOnce {
		h.config.Log.Info("Tests completed, exiting (run-once mode)", "exitCode", outcome.ExitCode)
		h.running.Store(false)
		if outcome.ExitCode != exitcodes.Success {
			return outcome.Err
		}
		go func() {
			h.shutdownCallback(nil)
		}()
		return nil
	}

	// a broken setup fails the same way on every run
	if IsReportError(outcome.Err) || (IsRuntimeError(outcome.Err) && outcome.Document == nil) {
		h.running.Store(false)
		return outcome.Err
	}

	var changes <-chan struct{}
	if h.config.Watch {
		w, err := newBinaryWatcher(h.config.Log, h.config.Binary, 0)
		if err != nil {
			h.running.Store(false)
			return NewRuntimeError(fmt.Errorf("failed to watch test binary: %w", err))
		}
		h.watcher = w
		changes = w.Changes
	}
	var tick <-chan time.Time
	if h.config.RunInterval > 0 {
		ticker := time.NewTicker(h.config.RunInterval)
		tick = ticker.C
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			select {
			case <-h.done:
			case <-ctx.Done():
			}
			ticker.Stop()
		}()
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if h.watcher != nil {
			defer h.watcher.Close()
		}
		h.config.Log.Debug("Starting periodic test runner goroutine", "interval", h.config.RunInterval)

		for {
			select {
			case <-tick:
				h.config.Log.Info("Running periodic tests")
			case <-changes:
				h.config.Log.Info("Test binary changed, running tests")
			case <-h.done:
				h.config.Log.Debug("Done signal received, stopping periodic test runner")
				return
			case <-ctx.Done():
				h.config.Log.Debug("Context canceled, stopping periodic test runner")
				h.running.Store(false)
				return
			}
			if !h.running.Load() {
				return
			}
			h.runTests(ctx)
		}
	}()
	h.config.Log.Debug("op-harness started successfully")
	return nil
}

func (h *harness) runTests(ctx context.Context) *RunOutcome {
	outcome := RunOnce(ctx, h.config, h.boundary)
	h.mu.Lock()
	h.result = outcome
	h.mu.Unlock()
	if h.config.OnRun != nil {
		h.config.OnRun(outcome)
	}

	if outcome.Err != nil {
		h.config.Log.Warn("Test run finished", "run_id", outcome.RunID, "exitCode", outcome.ExitCode, "err", outcome.Err)
	} else {
		h.config.Log.Info("Test run finished", "run_id", outcome.RunID, "exitCode", outcome.ExitCode)
	}
	return outcome
}

// Result returns the outcome of the latest run
func (h *harness) Result() *RunOutcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Stop stops the harness.
// Stop implements the cliapp.Lifecycle interface.
func (h *harness) Stop(ctx context.Context) error {
	h.config.Log.Info("Stopping op-harness")

	if !h.running.Load() {
		h.config.Log.Debug("Harness already stopped, nothing to do")
		return nil
	}

	h.running.Store(false)
	close(h.done)

	waited := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.config.Log.Info("op-harness stopped successfully")
	return nil
}

// Stopped returns true if the harness is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (h *harness) Stopped() bool {
	return !h.running.Load()
}
