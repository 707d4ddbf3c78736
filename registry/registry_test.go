package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum-optimism/infra/op-harness/markers"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type calcFixture struct{}

func (c *calcFixture) TestAdd()    {}
func (c *calcFixture) TestDivide() {}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "missing path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "nonexistent file",
			cfg:     Config{ManifestFile: "nonexistent.yaml"},
			wantErr: true,
		},
		{
			name:    "invalid yaml",
			cfg:     Config{ManifestFile: writeManifest(t, "types: [")},
			wantErr: true,
		},
		{
			name:    "unnamed type",
			cfg:     Config{ManifestFile: writeManifest(t, "types:\n  - markers: []\n")},
			wantErr: true,
		},
		{
			name: "valid",
			cfg:  Config{ManifestFile: writeManifest(t, "types:\n  - name: registry.calcFixture\n")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, r.GetManifest())
			assert.NotNil(t, r.GetConfig().Log)
		})
	}
}

func TestApply(t *testing.T) {
	path := writeManifest(t, `
unit:
  - category: {name: nightly}
types:
  - name: registry.calcFixture
    markers:
      - fixture: {description: Calculator}
      - property: {name: owner, value: infra}
    methods:
      - name: TestAdd
        markers:
          - test: {}
          - category: {name: fast}
      - name: TestDivide
        markers:
          - test: {}
          - expected-error: {name: "*errors.errorString", message: "divide", match: contains}
`)
	r, err := NewRegistry(Config{ManifestFile: path})
	require.NoError(t, err)

	unit := reflector.NewUnit("calc")
	ref := unit.Register(&calcFixture{})
	require.NoError(t, r.Apply(unit))

	refl := reflector.NewRuntime()
	assert.True(t, refl.HasMarker(unit, markers.NameCategory, false))
	assert.True(t, refl.HasMarker(ref, markers.NameFixture, false))

	methods := refl.ListMethods(ref)
	require.Len(t, methods, 2)
	assert.Equal(t, "TestAdd", methods[0].Name())

	expected := refl.GetMarkers(methods[1], markers.NameExpectedError, false)
	require.Len(t, expected, 1)
	match, ok := expected[0].Param(markers.ParamMatch)
	require.True(t, ok)
	assert.Equal(t, markers.MatchContains, match)
	assert.Equal(t, "*errors.errorString", expected[0].StringParam(markers.ParamName))
}

func TestApplyReportsProblems(t *testing.T) {
	path := writeManifest(t, `
types:
  - name: registry.unknownFixture
  - name: registry.calcFixture
    markers:
      - test: {}
      - ignore: {reason: flaky}
    methods:
      - name: TestAdd
        markers:
          - expected-error: {match: sometimes}
          - category: {label: wrong}
`)
	r, err := NewRegistry(Config{ManifestFile: path})
	require.NoError(t, err)

	unit := reflector.NewUnit("calc")
	ref := unit.Register(&calcFixture{})
	err = r.Apply(unit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry.unknownFixture")
	assert.Contains(t, err.Error(), `marker "test" cannot be applied to a type`)
	assert.Contains(t, err.Error(), "unknown match policy")
	assert.Contains(t, err.Error(), `has no parameter "label"`)

	// valid entries are still applied
	refl := reflector.NewRuntime()
	assert.True(t, refl.HasMarker(ref, markers.NameIgnore, false))
	assert.False(t, refl.HasMarker(ref, markers.NameTest, false))
}
