package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-harness/boundary"
	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/reporting"
)

// RunOutcome is the result of one run. ExitCode is what the run calls for;
// Err explains any code other than Success.
type RunOutcome struct {
	RunID    string
	ExitCode int
	Err      error
	Tree     *reporting.ResultTree
	Document *reporting.Document
}

func (o *RunOutcome) fail(err error) *RunOutcome {
	o.Err = err
	o.ExitCode = ExitCode(err)
	return o
}

func (o *RunOutcome) String() string {
	if o.Document == nil {
		return fmt.Sprintf("Run %s produced no report: %v", o.RunID, o.Err)
	}
	d := o.Document
	return fmt.Sprintf("Run %s: %d run, %d failures, %d errors, %d not run",
		o.RunID, d.Run(), d.Failures, d.Errors, d.NotRun)
}

// RunOnce performs one run across b and writes its reports. A transform that
// cannot be loaded fails the run before any test is started.
func RunOnce(ctx context.Context, cfg *Config, b boundary.Boundary) *RunOutcome {
	out := &RunOutcome{RunID: uuid.New().String()}

	var tmpl *template.Template
	if !cfg.XMLConsole {
		t, err := reporting.LoadTransform(cfg.TransformPath)
		if err != nil {
			return out.fail(NewReportError(err))
		}
		tmpl = t
	}

	agg := reporting.NewAggregator(cfg.Log)
	console := reporting.NewConsoleListener(cfg.Stdout, cfg.Labels)
	if cfg.XMLConsole {
		console.HideProgress()
	}
	sink := events.NewMulticast(agg, console, events.NewLogSink(cfg.Log, cfg.ProgressInterval), metrics.NewSink())

	cfg.Log.Info("Starting run", "run_id", out.RunID)
	err := b.Run(ctx, cfg.Request(out.RunID), sink)
	tree := agg.Tree()
	if err != nil && (!boundary.IsBoundaryFault(err) || !tree.Finished) {
		cfg.Log.Error("Run failed", "run_id", out.RunID, "err", err)
		metrics.RecordErrorDetails("run", err)
		return out.fail(NewRuntimeError(err))
	}
	if err != nil {
		cfg.Log.Warn("Run was abandoned", "run_id", out.RunID, "err", err)
	}
	out.Tree = tree
	out.Document = reporting.NewDocument(tree)

	if err := writeReports(cfg, out, tmpl); err != nil {
		metrics.RecordErrorDetails("report", err)
		return out.fail(NewReportError(err))
	}

	switch {
	case tree.IsFatal():
		return out.fail(NewRuntimeError(fmt.Errorf("run aborted: %s", tree.Fatal.Message)))
	case len(tree.Failed()) > 0:
		return out.fail(NewTestFailureError(out.String()))
	}
	out.ExitCode = exitcodes.Success
	return out
}

func writeReports(cfg *Config, out *RunOutcome, tmpl *template.Template) error {
	data, err := out.Document.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.XMLPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(cfg.XMLPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	cfg.Log.Info("Wrote report", "path", cfg.XMLPath)

	if cfg.XMLConsole {
		_, err := cfg.Stdout.Write(data)
		return err
	}
	if err := reporting.ApplyTransform(tmpl, out.Document, cfg.Stdout); err != nil {
		return err
	}
	if cfg.ShowTable {
		table, err := reporting.NewSummaryTable(fmt.Sprintf("Run %s", out.RunID), true).Format(out.Tree)
		if err != nil {
			return err
		}
		fmt.Fprint(cfg.Stdout, table)
	}
	return nil
}
