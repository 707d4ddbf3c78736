package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-harness/boundary"
	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	Binary           string           // Test binary run in a child process
	BinaryArgs       []string         // Extra arguments for the test binary
	Engine           *boundary.Engine // Runs tests in process when Binary is empty
	Manifest         string           // Marker manifest applied before discovery
	Fixtures         []string
	Categories       []string
	Selection        []string
	RunExplicit      bool
	EmitEmptySuites  bool
	XMLPath          string
	XMLConsole       bool   // Print the XML report instead of the summary
	TransformPath    string // Empty selects the built-in summary
	Labels           bool
	ShowTable        bool
	RunInterval      time.Duration // Interval between test runs
	RunOnce          bool          // Indicates if the service should exit after one test run
	Watch            bool          // Run again when the test binary changes
	AbortGrace       time.Duration
	ProgressInterval time.Duration
	Stdout           io.Writer
	Log              log.Logger

	// OnRun is called with the outcome of every run the lifecycle performs
	OnRun func(*RunOutcome)
}

// NewConfig creates a new Config from cli context. engine is used when no
// test binary is given.
func NewConfig(ctx *cli.Context, log log.Logger, engine *boundary.Engine) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	binary := ctx.String(flags.Binary.Name)
	if binary == "" && engine == nil {
		return nil, errors.New("a test binary is required")
	}
	if binary != "" {
		abs, err := filepath.Abs(binary)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for test binary '%s': %w", binary, err)
		}
		binary = abs
	}

	manifest := ctx.String(flags.Manifest.Name)
	if manifest != "" {
		abs, err := filepath.Abs(manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for manifest '%s': %w", manifest, err)
		}
		manifest = abs
	}

	watch := ctx.Bool(flags.Watch.Name)
	if watch && binary == "" {
		return nil, errors.New("watch mode needs a test binary")
	}

	xmlPath := ctx.String(flags.XML.Name)
	if xmlPath == "" {
		xmlPath = flags.DefaultXMLPath
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)

	return &Config{
		Binary:           binary,
		BinaryArgs:       ctx.StringSlice(flags.BinaryArgs.Name),
		Engine:           engine,
		Manifest:         manifest,
		Fixtures:         ctx.StringSlice(flags.Fixture.Name),
		Categories:       ctx.StringSlice(flags.Category.Name),
		Selection:        ctx.StringSlice(flags.Test.Name),
		RunExplicit:      ctx.Bool(flags.RunExplicit.Name),
		EmitEmptySuites:  ctx.Bool(flags.EmitEmptySuites.Name),
		XMLPath:          xmlPath,
		XMLConsole:       ctx.Bool(flags.XMLConsole.Name),
		TransformPath:    ctx.String(flags.Transform.Name),
		Labels:           ctx.Bool(flags.Labels.Name),
		ShowTable:        ctx.Bool(flags.ShowTable.Name),
		RunInterval:      runInterval,
		RunOnce:          runInterval == 0 && !watch,
		Watch:            watch,
		AbortGrace:       ctx.Duration(flags.AbortGrace.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		Stdout:           os.Stdout,
		Log:              log,
	}, nil
}

// Request is the boundary request for one run of this configuration
func (c *Config) Request(runID string) boundary.Request {
	req := boundary.Request{
		RunID:           runID,
		Fixtures:        c.Fixtures,
		Categories:      c.Categories,
		Selection:       c.Selection,
		RunExplicit:     c.RunExplicit,
		EmitEmptySuites: c.EmitEmptySuites,
	}
	// in-process runs have the manifest applied once in New
	if c.Binary != "" {
		req.Manifest = c.Manifest
	}
	return req
}

// Boundary creates the isolation boundary runs of this configuration use
func (c *Config) Boundary() (boundary.Boundary, error) {
	if c.Binary != "" {
		return boundary.NewSubprocess(boundary.SubprocessConfig{
			Log:    c.Log,
			Binary: c.Binary,
			Args:   c.BinaryArgs,
		})
	}
	if c.Engine == nil {
		return nil, errors.New("no engine to run tests in process")
	}
	engine := *c.Engine
	if engine.Log == nil {
		engine.Log = c.Log
	}
	return boundary.NewInProcess(boundary.InProcessConfig{
		Engine:     engine,
		AbortGrace: c.AbortGrace,
	}), nil
}
