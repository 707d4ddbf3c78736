package flags

import (
	"strings"
	"testing"
	"time"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestOptionalFlagsDontSetRequired asserts that all flags deemed optional set
// the Required field to false.
func TestOptionalFlagsDontSetRequired(t *testing.T) {
	for _, flag := range optionalFlags {
		reqFlag, ok := flag.(cli.RequiredFlag)
		require.True(t, ok)
		require.False(t, reqFlag.IsRequired())
	}
}

// TestUniqueFlags asserts that all flag names are unique, to avoid accidental conflicts between the many flags.
func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		name := flag.Names()[0]
		if _, ok := seenCLI[name]; ok {
			t.Errorf("duplicate flag %s", name)
			continue
		}
		seenCLI[name] = struct{}{}
	}
}

// TestBetaFlags test that all flags starting with "beta." have "BETA_" in the env var, and vice versa.
func TestBetaFlags(t *testing.T) {
	for _, flag := range Flags {
		envFlag, ok := flag.(interface {
			GetEnvVars() []string
		})
		if !ok || len(envFlag.GetEnvVars()) == 0 { // skip flags without env-var support
			continue
		}
		name := flag.Names()[0]
		envName := envFlag.GetEnvVars()[0]
		if strings.HasPrefix(name, "beta.") {
			require.Contains(t, envName, "BETA_", "%q flag must contain BETA in env var to match \"beta.\" flag name", name)
		}
		if strings.Contains(envName, "BETA_") {
			require.True(t, strings.HasPrefix(name, "beta."), "%q flag must start with \"beta.\" in flag name to match \"BETA_\" env var", name)
		}
	}
}

func TestEnvVarFormat(t *testing.T) {
	for _, flag := range Flags {
		flagName := flag.Names()[0]

		t.Run(flagName, func(t *testing.T) {
			envFlagGetter, ok := flag.(interface {
				GetEnvVars() []string
			})
			require.True(t, ok, "must be able to cast the flag to an EnvVar interface")
			envFlags := envFlagGetter.GetEnvVars()
			require.Equal(t, 1, len(envFlags), "flags should have exactly one env var")
			require.Equal(t, opservice.FlagNameToEnvVarName(flagName, EnvVarPrefix), envFlags[0])
		})
	}
}

func TestSelectionFlags(t *testing.T) {
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			assert.Equal(t, []string{"unit.A", "unit.B"}, ctx.StringSlice(Fixture.Name))
			assert.Equal(t, []string{"fast"}, ctx.StringSlice(Category.Name))
			assert.Equal(t, []string{"unit.A.TestOne"}, ctx.StringSlice(Test.Name))
			assert.True(t, ctx.Bool(RunExplicit.Name))
			assert.Equal(t, DefaultXMLPath, ctx.String(XML.Name))
			assert.Equal(t, 5*time.Second, ctx.Duration(AbortGrace.Name))
			assert.Equal(t, time.Duration(0), ctx.Duration(RunInterval.Name))
			return CheckRequired(ctx)
		},
	}
	err := app.Run([]string{"app",
		"--fixture", "unit.A", "--fixture", "unit.B",
		"--category", "fast",
		"--test", "unit.A.TestOne",
		"--run-explicit",
	})
	require.NoError(t, err)
}

func TestFlagsFromEnv(t *testing.T) {
	t.Setenv("OP_HARNESS_XML", "out.xml")
	t.Setenv("OP_HARNESS_RUN_INTERVAL", "30m")
	app := &cli.App{
		Flags: Flags,
		Action: func(ctx *cli.Context) error {
			assert.Equal(t, "out.xml", ctx.String(XML.Name))
			assert.Equal(t, 30*time.Minute, ctx.Duration(RunInterval.Name))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"app"}))
}
