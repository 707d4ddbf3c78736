// Package templates holds the presentation templates for reports and the
// functions available to them.
package templates

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Summary is the default plain-text presentation of a report
//
//go:embed summary.tmpl
var Summary string

// GetTemplateFunc returns the centralized template functions used across the application
func GetTemplateFunc() template.FuncMap {
	return template.FuncMap{
		"formatDuration": formatDuration,
		"formatSeconds": func(s string) string {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return s
			}
			return formatDuration(time.Duration(f * float64(time.Second)))
		},
		"getStatusText": func(status string) string {
			return getStatusString(types.TestStatus(status))
		},
		"upper": strings.ToUpper,
		"indent": func(n int, s string) string {
			pad := strings.Repeat(" ", n)
			return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
		},
		"add": func(a, b int) int {
			return a + b
		},
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// getStatusString returns a consistent lowercase status string
func getStatusString(status types.TestStatus) string {
	switch status {
	case types.TestStatusSuccess:
		return "pass"
	case types.TestStatusFailure:
		return "fail"
	case types.TestStatusError:
		return "error"
	case types.TestStatusIgnored:
		return "ignored"
	case types.TestStatusSkipped:
		return "skip"
	case types.TestStatusNotRunnable:
		return "not runnable"
	default:
		return "unknown"
	}
}
