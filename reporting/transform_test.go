package reporting

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformDefaultSummary(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Transform(NewDocument(aggregate(sampleRun())), "", &buf))
	out := buf.String()

	assert.Contains(t, out, "Tests run: 2, Failures: 1, Errors: 0, Not run: 1, Time: 15ms")
	assert.Contains(t, out, "Failures:\n1) unit.Fixture.TestFail : fail\n   expected 1 but was 2\n   main.go:12")
	assert.Contains(t, out, "Tests not run:\n1) unit.Fixture.TestIgnored : flaky")
	assert.NotContains(t, out, "Run aborted")
	assert.NotContains(t, out, "Unhandled exceptions")
}

func TestTransformCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(`{{range .Cases}}{{upper (getStatusText .Status)}} {{.Name}}
{{end}}`), 0o644))

	var buf bytes.Buffer
	require.NoError(t, Transform(NewDocument(aggregate(sampleRun())), path, &buf))
	assert.Equal(t, "PASS unit.Fixture.TestPass\nFAIL unit.Fixture.TestFail\nIGNORED unit.Fixture.TestIgnored\n", buf.String())
}

func TestTransformErrors(t *testing.T) {
	doc := NewDocument(aggregate(sampleRun()))
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.tmpl")
	err := Transform(doc, missing, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, IsTransformError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), missing)

	broken := filepath.Join(dir, "broken.tmpl")
	require.NoError(t, os.WriteFile(broken, []byte("{{range .Cases}"), 0o644))
	err = Transform(doc, broken, &bytes.Buffer{})
	assert.True(t, IsTransformError(err))

	failing := filepath.Join(dir, "failing.tmpl")
	require.NoError(t, os.WriteFile(failing, []byte("{{.NoSuchField}}"), 0o644))
	err = Transform(doc, failing, &bytes.Buffer{})
	assert.True(t, IsTransformError(err))

	assert.False(t, IsTransformError(nil))
}

func TestLoadTransformBeforeRun(t *testing.T) {
	_, err := LoadTransform(filepath.Join(t.TempDir(), "missing.tmpl"))
	assert.True(t, IsTransformError(err))

	tmpl, err := LoadTransform("")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, ApplyTransform(tmpl, NewDocument(aggregate(sampleRun())), &buf))
	assert.Contains(t, buf.String(), "Tests run: 2")
}
