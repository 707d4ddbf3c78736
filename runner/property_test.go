package runner

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/model"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var propertyMethods = []struct {
	name         string
	takesContext bool
}{
	{"TestPass", true},
	{"TestAssert", true},
	{"TestError", false},
	{"TestIgnoreAtRuntime", true},
}

var propertyStates = []types.RunState{
	types.RunStateRunnable,
	types.RunStateRunnable,
	types.RunStateIgnored,
	types.RunStateSkipped,
	types.RunStateExplicit,
	types.RunStateNotRunnable,
}

type treeGen struct {
	fixture *reflector.TypeRef
	methods map[string]*reflector.MethodRef
}

func (g *treeGen) suite(t *rapid.T, full string, depth int) *model.Suite {
	state := types.RunStateRunnable
	if depth > 0 {
		state = rapid.SampledFrom(propertyStates).Draw(t, full+".state")
	}
	var children []model.Node
	n := rapid.IntRange(0, 4).Draw(t, full+".children")
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s.N%d", full, i)
		if depth < 3 && rapid.Bool().Draw(t, name+".isSuite") {
			children = append(children, g.suite(t, name, depth+1))
			continue
		}
		m := rapid.SampledFrom(propertyMethods).Draw(t, name+".method")
		attrs := model.Attributes{
			Name:     fmt.Sprintf("N%d", i),
			FullName: name,
			RunState: rapid.SampledFrom(propertyStates).Draw(t, name+".state"),
		}
		children = append(children, model.NewCase(attrs, g.methods[m.name], m.takesContext, nil))
	}
	attrs := model.Attributes{Name: full, FullName: full, RunState: state}
	return model.NewSuite(attrs, g.fixture, model.Hooks{}, children...)
}

func newTreeGen(t *testing.T) *treeGen {
	h := newHarness()
	for _, m := range propertyMethods {
		h.test(m.name)
	}
	g := &treeGen{fixture: h.fixture, methods: make(map[string]*reflector.MethodRef)}
	for _, m := range reflector.NewRuntime().ListMethods(h.fixture) {
		g.methods[m.Name()] = m
	}
	for _, m := range propertyMethods {
		require.Contains(t, g.methods, m.name)
	}
	return g
}

// Every case in an unfiltered run is started and finished exactly once, inside
// properly nested suites, and the final rollup counts each of them.
func TestRunReportsEveryCaseProperty(t *testing.T) {
	g := newTreeGen(t)
	r, err := New(Config{Reflector: reflector.NewRuntime(), RunID: "property"})
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		root := g.suite(t, "root", 0)
		rec := events.NewRecorder()
		res := r.Run(context.Background(), root, rec)

		if res.IsFatal() {
			t.Fatalf("unexpected fatal result: %v", res.Fatal)
		}
		cases := model.CountCases(root)
		if res.Rollup.Total != cases {
			t.Fatalf("rollup total %d, tree has %d cases", res.Rollup.Total, cases)
		}

		var stack []string
		open := make(map[string]bool)
		finished := make(map[string]types.Outcome)
		for _, m := range rec.Messages() {
			switch m.Kind {
			case events.KindSuiteStarted:
				stack = append(stack, m.Test.FullName)
			case events.KindSuiteFinished:
				if len(stack) == 0 || stack[len(stack)-1] != m.Test.FullName {
					t.Fatalf("suite %s finished out of order", m.Test.FullName)
				}
				stack = stack[:len(stack)-1]
			case events.KindTestStarted:
				if open[m.Test.FullName] {
					t.Fatalf("case %s started twice", m.Test.FullName)
				}
				if len(stack) == 0 || stack[len(stack)-1] != m.Test.Parent {
					t.Fatalf("case %s started outside its suite", m.Test.FullName)
				}
				open[m.Test.FullName] = true
			case events.KindTestFinished:
				if !open[m.Test.FullName] {
					t.Fatalf("case %s finished without starting", m.Test.FullName)
				}
				delete(open, m.Test.FullName)
				finished[m.Test.FullName] = *m.Outcome
			}
		}
		if len(stack) != 0 || len(open) != 0 {
			t.Fatalf("unfinished suites %v, cases %v", stack, open)
		}
		if len(finished) != cases {
			t.Fatalf("%d cases finished, tree has %d", len(finished), cases)
		}

		run := 0
		for _, out := range finished {
			if out.Executed() {
				run++
			}
		}
		if run != res.Rollup.Run {
			t.Fatalf("rollup run %d, executed outcomes %d", res.Rollup.Run, run)
		}

		// a case below a non-runnable ancestor reports the ancestor's state
		model.Walk(root, func(n model.Node) bool {
			s, ok := n.(*model.Suite)
			if !ok || s.RunState() == types.RunStateRunnable {
				return true
			}
			want := types.NotRun(s.RunState(), s.Reason()).Status
			for _, c := range model.Cases(s) {
				if got := finished[c.FullName()].Status; got != want {
					t.Fatalf("case %s below %s suite reported %s", c.FullName(), s.RunState(), got)
				}
			}
			return false
		})
	})
}
