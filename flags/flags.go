package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "OP_HARNESS"

// DefaultXMLPath is where the XML report is written unless --xml is set
const DefaultXMLPath = "TestResult.xml"

var (
	Binary = &cli.StringFlag{
		Name:    "binary",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BINARY"),
		Usage:   "Path to a test binary built with harness.Main. Its tests run in a child process.",
	}
	BinaryArgs = &cli.StringSliceFlag{
		Name:    "binary-arg",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BINARY_ARG"),
		Usage:   "Extra argument passed to the test binary (repeatable)",
	}
	Manifest = &cli.StringFlag{
		Name:    "manifest",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "MANIFEST"),
		Usage:   "Path to a YAML marker manifest applied to the unit before discovery",
	}
	Fixture = &cli.StringSliceFlag{
		Name:    "fixture",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FIXTURE"),
		Usage:   "Full name of a fixture or namespace to load instead of the whole unit (repeatable)",
	}
	Category = &cli.StringSliceFlag{
		Name:    "category",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CATEGORY"),
		Usage:   "Only run tests carrying one of these categories (repeatable)",
	}
	Test = &cli.StringSliceFlag{
		Name:    "test",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST"),
		Usage:   "Full name of a test or suite to run; explicit tests named here run (repeatable)",
	}
	RunExplicit = &cli.BoolFlag{
		Name:    "run-explicit",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_EXPLICIT"),
		Usage:   "Run tests marked explicit without naming them",
	}
	EmitEmptySuites = &cli.BoolFlag{
		Name:    "emit-empty-suites",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EMIT_EMPTY_SUITES"),
		Usage:   "Report suites left without tests by the category filter",
	}
	XML = &cli.StringFlag{
		Name:    "xml",
		Value:   DefaultXMLPath,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "XML"),
		Usage:   "Path of the XML report",
	}
	XMLConsole = &cli.BoolFlag{
		Name:    "xml-console",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "XML_CONSOLE"),
		Usage:   "Print the XML report instead of the summary and progress",
	}
	Transform = &cli.StringFlag{
		Name:    "transform",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TRANSFORM"),
		Usage:   "Path to a text/template used to print the summary instead of the built-in one",
	}
	Labels = &cli.BoolFlag{
		Name:    "labels",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LABELS"),
		Usage:   "Print the name of each test as it starts",
	}
	ShowTable = &cli.BoolFlag{
		Name:    "table",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TABLE"),
		Usage:   "Print a results table after each run",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Watch = &cli.BoolFlag{
		Name:    "watch",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WATCH"),
		Usage:   "Run again whenever the test binary changes",
	}
	AbortGrace = &cli.DurationFlag{
		Name:    "abort-grace",
		Value:   5 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ABORT_GRACE"),
		Usage:   "Time a cancelled run gets to finish before it is abandoned",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress log lines. Set to 0 to disable.",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Binary,
	BinaryArgs,
	Manifest,
	Fixture,
	Category,
	Test,
	RunExplicit,
	EmitEmptySuites,
	XML,
	XMLConsole,
	Transform,
	Labels,
	ShowTable,
	RunInterval,
	Watch,
	AbortGrace,
	ProgressInterval,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
