package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.Same(t, c, Default())

	names := c.Names()
	assert.Equal(t, NameFixture, names[0])
	assert.Contains(t, names, NameExpectedError)
	assert.Contains(t, names, NameSuite)

	m, ok := c.Lookup(NamePlatform)
	require.True(t, ok)
	assert.Equal(t, []string{ParamInclude, ParamExclude, ParamReason}, m.Params())
	assert.True(t, m.AppliesTo(KindUnit))
	assert.False(t, m.AppliesTo(KindProperty))

	_, ok = c.Lookup("TestFixture")
	assert.False(t, ok)
}

func TestNewCatalog(t *testing.T) {
	_, err := NewCatalog(NewMarker("a", KindType), NewMarker("a", KindMethod))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate marker "a"`)

	_, err = NewCatalog(NewMarker("", KindType))
	require.Error(t, err)

	c, err := NewCatalog(NewMarker("b", KindType), NewMarker("a", KindMethod))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, c.Names())
}

func TestValidate(t *testing.T) {
	c := Default()
	tests := []struct {
		name    string
		inst    Instance
		kind    ConstructKind
		wantErr string
	}{
		{
			name: "test on method",
			inst: Test(Description("adds")),
			kind: KindMethod,
		},
		{
			name:    "test on type",
			inst:    Test(),
			kind:    KindType,
			wantErr: `marker "test" cannot be applied to a type (allowed: method)`,
		},
		{
			name: "ignore on unit",
			inst: Ignore("later"),
			kind: KindUnit,
		},
		{
			name:    "unknown marker",
			inst:    New("bogus"),
			kind:    KindMethod,
			wantErr: `unknown marker "bogus"`,
		},
		{
			name: "setup without parameters",
			inst: SetUp(),
			kind: KindMethod,
		},
		{
			name:    "setup with a reason",
			inst:    New(NameSetUp, Reason("nope")),
			kind:    KindMethod,
			wantErr: `marker "setup" has no parameter "reason"`,
		},
		{
			name: "expected error with message",
			inst: ExpectedError(ErrorName("*errors.errorString"), Message("boom", MatchContains)),
			kind: KindMethod,
		},
		{
			name: "suite on property",
			inst: Suite(),
			kind: KindProperty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.inst, tt.kind)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestConstructKindString(t *testing.T) {
	assert.Equal(t, "none", ConstructKind(0).String())
	assert.Equal(t, "method", KindMethod.String())
	assert.Equal(t, "unit|type|method", (KindUnit | KindType | KindMethod).String())
}

func TestInstanceParams(t *testing.T) {
	inst := Property("owner", 7)
	v, ok := inst.Param(ParamValue)
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, "owner", inst.StringParam(ParamName))
	assert.Equal(t, "", inst.StringParam(ParamValue))
	assert.Equal(t, "property(name=owner, value=7)", inst.String())

	inst = New(NameCategory, WithParam(ParamName, "a"), WithParam(ParamName, "b"))
	assert.Equal(t, []string{ParamName}, inst.ParamNames())
	assert.Equal(t, "b", inst.StringParam(ParamName))

	assert.Equal(t, "setup", SetUp().String())

	inst = ExpectedError(Message("x", MatchRegex))
	v, _ = inst.Param(ParamMatch)
	assert.Equal(t, MatchRegex, v)
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, p)

	p, err = ParseMatchPolicy("startswith")
	require.NoError(t, err)
	assert.Equal(t, MatchStartsWith, p)

	_, err = ParseMatchPolicy("glob")
	assert.Error(t, err)
}
