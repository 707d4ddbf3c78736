package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-harness/boundary"
	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

var Version = "v0.1.0"

// MainAction creates the harness lifecycle from the command line. engine runs
// the tests in process when no test binary is given and may be nil. onRun, if
// set, observes every finished run.
func MainAction(version string, engine *boundary.Engine, onRun func(*RunOutcome)) cliapp.LifecycleAction {
	return func(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
		logCfg := oplog.ReadCLIConfig(ctx)
		log := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
		oplog.SetGlobalLogHandler(log.Handler())
		oplog.SetupDefaults()

		cfg, err := NewConfig(ctx, log, engine)
		if err != nil {
			// Wrap in RuntimeError to signal this should exit with code 2
			return nil, NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
		}
		if ctx.App.Writer != nil {
			cfg.Stdout = ctx.App.Writer
		}
		cfg.OnRun = onRun
		cfg.Log.Debug("Config", "config", cfg)

		h, err := New(ctx.Context, cfg, version, closeApp)
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create harness: %w", err))
		}
		return h, nil
	}
}

// Main is the entry point of a test binary:
//
//	func main() {
//		os.Exit(harness.Main(boundary.Engine{Unit: unit}))
//	}
//
// Started by a Subprocess boundary it serves the request found in its
// environment. Otherwise it reads the op-harness flags and runs the tests in
// process. The exit code is returned rather than acted on.
func Main(engine boundary.Engine) int {
	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	if boundary.IsChild() {
		return boundary.ServeChild(ctx, engine, os.Stdout, "")
	}

	app := cli.NewApp()
	app.Version = Version
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "Run the tests compiled into this binary"
	app.Flags = cliapp.ProtectFlags(flags.Flags)
	app.Action = cliapp.LifecycleCmd(MainAction(Version, &engine, nil))
	app.ExitErrHandler = func(*cli.Context, error) {}
	return ExitCode(app.RunContext(ctx, os.Args))
}
