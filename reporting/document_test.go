package reporting

import (
	"strings"
	"testing"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSerialize(t *testing.T) {
	data, err := Serialize(aggregate(sampleRun()))
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<test-results name="unit" run-id="run-1" total="3" failures="1" errors="0" not-run="1" ignored="1" skipped="0" not-runnable="0" date="2026-10-19" time="12:30:00">`)
	assert.Contains(t, out, `<test-suite name="Fixture" executed="True" result="Failure" success="False" time="0.015" asserts="3" children="3" total="3" passed="1" failed="1" errors="0" ignored="1" skipped="0" not-runnable="0">`)
	assert.Contains(t, out, `<test-case name="unit.Fixture.TestPass" executed="True" result="Success" success="True" time="0.005" asserts="2">`)
	assert.Contains(t, out, `<message>expected 1 but was 2</message>`)
	assert.Contains(t, out, `<stack-trace>main.go:12</stack-trace>`)
	assert.Contains(t, out, `<test-case name="unit.Fixture.TestIgnored" executed="False" result="Ignored" success="True" time="0.005" asserts="0">`)
	assert.Contains(t, out, `<reason>`)
	assert.Contains(t, out, `<message>flaky</message>`)
}

func TestSerializeCaseElementsCarryNoCounts(t *testing.T) {
	agg := NewAggregator(nil)
	suite := events.TestInfo{FullName: "unit", Name: "unit", IsSuite: true, TestCount: 1}
	test := events.TestInfo{FullName: "unit.TestFail", Name: "TestFail", Parent: "unit"}
	fail := types.Failure("expected 1 but was 2", "main.go:12")

	agg.RunStarted(events.RunInfo{ID: "run-1", Name: "unit", TestCount: 1, Start: runStart})
	agg.SuiteStarted(suite)
	agg.TestStarted(test)
	agg.TestFinished(test, fail)
	var rollup types.Rollup
	rollup.Add(fail)
	agg.SuiteFinished(suite, rollup)
	agg.RunFinished(events.RunResult{ID: "run-1", Name: "unit", Rollup: rollup, Start: runStart, End: runStart})

	var data []byte
	require.NotPanics(t, func() {
		var err error
		data, err = Serialize(agg.Tree())
		require.NoError(t, err)
	})
	out := string(data)
	assert.Contains(t, out, `<test-case name="unit.TestFail" executed="True" result="Failure" success="False" time="0.000" asserts="0">`)
	assert.Contains(t, out, `children="1" total="1" passed="0" failed="1" errors="0" ignored="0" skipped="0" not-runnable="0"`)

	doc, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, doc.Verify())
	require.Len(t, doc.Cases(), 1)
	assert.False(t, doc.Cases()[0].HasCounts())
	assert.True(t, doc.Results[0].HasCounts())
}

func TestVerifyRejectsCaseWithCounts(t *testing.T) {
	doc, err := Parse([]byte(`<test-results name="x" total="1">` +
		`<test-suite name="s" executed="True" result="Success" success="True" time="0.000" asserts="0" children="1" total="1" passed="1" failed="0" errors="0" ignored="0" skipped="0" not-runnable="0">` +
		`<results><test-case name="s.T" executed="True" result="Success" success="True" time="0.000" asserts="0" total="1"/></results>` +
		`</test-suite></test-results>`))
	require.NoError(t, err)
	err = doc.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case s.T carries suite counts")
}

func TestSerializeStripsTerminalCodes(t *testing.T) {
	fail := types.Failure("\x1b[31mexpected 1 but was 2\x1b[0m", "")
	tree := aggregate(suiteOf("unit", caseOf("TestColour", fail)))

	data, err := Serialize(tree)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\x1b")
	assert.Contains(t, string(data), "<message>expected 1 but was 2</message>")
}

func TestParseRoundTrip(t *testing.T) {
	tree := aggregate(sampleRun())
	tree.Faults = append(tree.Faults, types.Fault{Phase: types.PhaseFixtureTeardown, Test: "unit.Fixture", Kind: "string", Message: "cleanup\nfailed"})
	data, err := Serialize(tree)
	require.NoError(t, err)

	doc, err := Parse(data)
	require.NoError(t, err)
	require.NoError(t, doc.Verify())

	want := NewDocument(tree)
	if diff := cmp.Diff(want, doc, cmpopts.IgnoreFields(Document{}, "XMLName")); diff != "" {
		t.Errorf("parsed document mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, doc.FailedCases(), 1)
	assert.Equal(t, "expected 1 but was 2", doc.FailedCases()[0].Failure.Message)
	require.Len(t, doc.NotRunCases(), 1)
	assert.Equal(t, 2, doc.Run())
	assert.Equal(t, "0.015", doc.Seconds())
}

func TestVerifyDetectsTampering(t *testing.T) {
	data, err := Serialize(aggregate(sampleRun()))
	require.NoError(t, err)

	tampered := strings.Replace(string(data), `passed="1"`, `passed="2"`, 1)
	doc, err := Parse([]byte(tampered))
	require.NoError(t, err)
	err = doc.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suite unit")

	tampered = strings.Replace(string(data), `failures="1"`, `failures="0"`, 1)
	doc, err = Parse([]byte(tampered))
	require.NoError(t, err)
	require.Error(t, doc.Verify())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("<test-results"))
	require.Error(t, err)

	doc, err := Parse([]byte(`<test-results name="x"><test-suite name="s" executed="Maybe"/></test-results>`))
	assert.Nil(t, doc)
	require.Error(t, err)
}

var statuses = []types.Outcome{
	types.Success(),
	types.Failure("expected 1 but was 2", "stack"),
	types.Error("*errors.errorString : boom", "stack"),
	types.Ignored("flaky"),
	types.Skipped("Only supported on windows"),
	types.NotRunnable("bad signature"),
}

func genNode(t *rapid.T, name string, depth int) *node {
	if depth > 0 && (depth >= 4 || rapid.Bool().Draw(t, name+".leaf")) {
		out := rapid.SampledFrom(statuses).Draw(t, name+".outcome")
		if out.Executed() {
			out.Asserts = rapid.IntRange(0, 5).Draw(t, name+".asserts")
		}
		return caseOf(name, out)
	}
	n := suiteOf(name)
	count := rapid.IntRange(0, 4).Draw(t, name+".children")
	for i := 0; i < count; i++ {
		n.children = append(n.children, genNode(t, name+string(rune('a'+i)), depth+1))
	}
	return n
}

// Serializing the tree built from the same events is byte-identical, parsing
// it back verifies, and the tree holds one leaf per started case.
func TestSerializeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root := genNode(t, "unit", 0)
		rec := events.NewRecorder()
		play(rec, root)

		first, second := NewAggregator(nil), NewAggregator(nil)
		if err := rec.Replay(first); err != nil {
			t.Fatal(err)
		}
		if err := rec.Replay(second); err != nil {
			t.Fatal(err)
		}

		a, err := Serialize(first.Tree())
		if err != nil {
			t.Fatal(err)
		}
		b, err := Serialize(second.Tree())
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Fatalf("documents differ:\n%s\n%s", a, b)
		}
		again, _ := Serialize(first.Tree())
		if string(a) != string(again) {
			t.Fatal("serializing twice gave different documents")
		}

		doc, err := Parse(a)
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Verify(); err != nil {
			t.Fatal(err)
		}

		started := 0
		for _, k := range rec.Kinds() {
			if k == events.KindTestStarted {
				started++
			}
		}
		if leaves := first.Tree().Leaves(); leaves != started {
			t.Fatalf("%d leaves for %d started cases", leaves, started)
		}
		if len(doc.Cases()) != started {
			t.Fatalf("%d document cases for %d started cases", len(doc.Cases()), started)
		}
	})
}
