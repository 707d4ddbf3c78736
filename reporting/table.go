package reporting

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Tree hierarchy symbols using box drawing characters
const (
	treeBranch     = "├── "
	treeLastBranch = "└── "
	treeContinue   = "│   "
	treeIndent     = "    "
)

// treePrefix builds the prefix of a node at depth, given whether it and each
// of its ancestors below the top level is the last of its siblings
func treePrefix(depth int, isLast bool, parentIsLast []bool) string {
	if depth == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < depth-1; i++ {
		if i < len(parentIsLast) && parentIsLast[i] {
			b.WriteString(treeIndent)
		} else {
			b.WriteString(treeContinue)
		}
	}
	if isLast {
		b.WriteString(treeLastBranch)
	} else {
		b.WriteString(treeBranch)
	}
	return b.String()
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// SummaryTable formats result trees as ASCII tables
type SummaryTable struct {
	title     string
	showCases bool
}

// NewSummaryTable creates a table formatter. Without showCases only suites
// are listed.
func NewSummaryTable(title string, showCases bool) *SummaryTable {
	return &SummaryTable{title: title, showCases: showCases}
}

// Format formats a result tree as an ASCII table
func (f *SummaryTable) Format(tree *ResultTree) (string, error) {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(f.title)
	t.AppendHeader(table.Row{"TYPE", "NAME", "DURATION", "TESTS", "PASSED", "FAILED", "ERRORS", "NOT RUN", "STATUS"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "TYPE", AutoMerge: true},
		{Name: "NAME", WidthMax: 200, WidthMaxEnforcer: text.WrapSoft},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "TESTS", Align: text.AlignRight},
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "ERRORS", Align: text.AlignRight},
		{Name: "NOT RUN", Align: text.AlignRight},
	})

	for i, root := range tree.Roots {
		f.addRows(t, root, 0, i == len(tree.Roots)-1, nil)
	}

	rollup := tree.Rollup()
	status := rollup.Status()
	switch {
	case tree.IsFatal(), status.IsFailure():
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case rollup.Run == 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	overall := strings.ToUpper(string(status))
	if tree.IsFatal() {
		overall = "ABORTED"
	}
	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(tree.End.Sub(tree.Start)),
		rollup.Total,
		rollup.Passed,
		rollup.Failed,
		rollup.Errors,
		rollup.NotRun(),
		overall,
	})

	t.Render()
	return buf.String(), nil
}

func (f *SummaryTable) addRows(t table.Writer, n *ResultNode, depth int, isLast bool, parentIsLast []bool) {
	if !n.IsSuite && !f.showCases {
		return
	}
	var r types.Rollup
	kind := "Test"
	if n.IsSuite {
		r = n.Rollup
		kind = "Suite"
	} else {
		r.Add(n.Outcome)
	}
	t.AppendRow(table.Row{
		kind,
		treePrefix(depth, isLast, parentIsLast) + n.Name,
		formatDuration(n.Duration()),
		r.Total,
		r.Passed,
		r.Failed,
		r.Errors,
		r.NotRun(),
		strings.ToUpper(string(n.Status())),
	})

	children := n.Children
	if !f.showCases {
		children = nil
		for _, c := range n.Children {
			if c.IsSuite {
				children = append(children, c)
			}
		}
	}
	var chain []bool
	if depth > 0 {
		chain = append(append([]bool(nil), parentIsLast...), isLast)
	}
	for i, c := range children {
		f.addRows(t, c, depth+1, i == len(children)-1, chain)
	}
}
