package templates

import (
	"bytes"
	"testing"
	"text/template"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateFunctions(t *testing.T) {
	funcs := GetTemplateFunc()

	tests := []struct {
		name string
		tmpl string
		data any
		want string
	}{
		{"duration under a second", `{{formatDuration .}}`, 250 * time.Millisecond, "250ms"},
		{"duration over a second", `{{formatDuration .}}`, 1500 * time.Millisecond, "1.5s"},
		{"seconds attribute", `{{formatSeconds .}}`, "2.250", "2.25s"},
		{"bad seconds attribute", `{{formatSeconds .}}`, "n/a", "n/a"},
		{"status text", `{{getStatusText .}}`, "Failure", "fail"},
		{"unknown status", `{{getStatusText .}}`, "Bogus", "unknown"},
		{"indent", `{{indent 2 .}}`, "a\nb", "  a\n  b"},
		{"add", `{{add 1 2}}`, nil, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := template.New("t").Funcs(funcs).Parse(tt.tmpl)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, tmpl.Execute(&buf, tt.data))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestSummaryTemplateParses(t *testing.T) {
	_, err := template.New("summary").Funcs(GetTemplateFunc()).Parse(Summary)
	require.NoError(t, err)
}
