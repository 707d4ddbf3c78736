package reporting

import (
	"testing"

	"github.com/acarl005/stripansi"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreePrefix(t *testing.T) {
	tests := []struct {
		name         string
		depth        int
		isLast       bool
		parentIsLast []bool
		want         string
	}{
		{name: "top level", depth: 0, want: ""},
		{name: "first child", depth: 1, want: treeBranch},
		{name: "last child", depth: 1, isLast: true, want: treeLastBranch},
		{name: "under open parent", depth: 2, parentIsLast: []bool{false}, want: treeContinue + treeBranch},
		{name: "under last parent", depth: 2, isLast: true, parentIsLast: []bool{true}, want: treeIndent + treeLastBranch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, treePrefix(tt.depth, tt.isLast, tt.parentIsLast))
		})
	}
}

func TestSummaryTableSuitesOnly(t *testing.T) {
	out, err := NewSummaryTable("Results", false).Format(aggregate(sampleRun()))
	require.NoError(t, err)
	out = stripansi.Strip(out)

	assert.Contains(t, out, "Results")
	assert.Contains(t, out, "unit")
	assert.Contains(t, out, treeLastBranch+"Fixture")
	assert.Contains(t, out, "FAILURE")
	assert.Contains(t, out, "TOTAL")
	assert.NotContains(t, out, "TestPass")
}

func TestSummaryTableWithCases(t *testing.T) {
	out, err := NewSummaryTable("Results", true).Format(aggregate(sampleRun()))
	require.NoError(t, err)
	out = stripansi.Strip(out)

	assert.Contains(t, out, treeBranch+"TestPass")
	assert.Contains(t, out, treeLastBranch+"TestIgnored")
	assert.Contains(t, out, "IGNORED")
	assert.Contains(t, out, "5ms")
}

func TestSummaryTableAborted(t *testing.T) {
	tree := aggregate(suiteOf("unit", caseOf("TestPass", passed(1))))
	tree.Fatal = &types.Fault{Phase: types.PhaseRun, Message: "Test run aborted"}

	out, err := NewSummaryTable("Results", true).Format(tree)
	require.NoError(t, err)
	assert.Contains(t, stripansi.Strip(out), "ABORTED")
}
