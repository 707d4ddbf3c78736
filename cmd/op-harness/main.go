package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	harness "github.com/ethereum-optimism/infra/op-harness"
	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum-optimism/infra/op-harness/service"
	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "op-harness"
	app.Usage = "Marker driven test runner"
	app.Description = "op-harness discovers the tests of a test binary, runs them in a child process and writes an XML report"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.ExitErrHandler = exitErrHandler

	var svc *service.Service
	app.Action = cliapp.LifecycleCmd(harness.MainAction(Version, nil, func(o *harness.RunOutcome) {
		if svc != nil {
			svc.Healthz.RecordRun(runStatus(o))
		}
	}))
	app.Before = func(ctx *cli.Context) error {
		svc = service.New(serviceConfig(ctx))
		svc.Start(ctx.Context)
		return nil
	}
	app.After = func(*cli.Context) error {
		if svc != nil {
			svc.Shutdown()
		}
		return nil
	}

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	// Start CLI
	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func exitErrHandler(c *cli.Context, err error) {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		// Use the exit code from the ExitCoder
		cli.HandleExitCoder(exitErr)
	} else if err != nil {
		code := harness.ExitCode(err)
		if code == exitcodes.Success {
			code = exitcodes.TestFailure
		}
		cli.HandleExitCoder(cli.Exit(err.Error(), code))
	}
}

// serviceConfig starts the metrics server when enabled by the metrics flags,
// and the healthz server only for runs that keep going
func serviceConfig(ctx *cli.Context) service.Config {
	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	cfg := service.DefaultConfig()
	cfg.HealthzEnabled = ctx.Duration(flags.RunInterval.Name) > 0 || ctx.Bool(flags.Watch.Name)
	cfg.MetricsEnabled = metricsCfg.Enabled
	cfg.MetricsAddr = metricsCfg.ListenAddr
	cfg.MetricsPort = metricsCfg.ListenPort
	return cfg
}

func runStatus(o *harness.RunOutcome) service.RunStatus {
	return service.RunStatus{
		RunID:    o.RunID,
		ExitCode: o.ExitCode,
		Summary:  o.String(),
		Finished: time.Now(),
	}
}
