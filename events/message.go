package events

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Kind names an event in its message form
type Kind string

const (
	KindRunStarted         Kind = "runStarted"
	KindSuiteStarted       Kind = "suiteStarted"
	KindTestStarted        Kind = "testStarted"
	KindTestFinished       Kind = "testFinished"
	KindSuiteFinished      Kind = "suiteFinished"
	KindRunFinished        Kind = "runFinished"
	KindUnhandledException Kind = "unhandledException"
)

// Message is one event as plain data. Only the fields relevant to Kind are set.
type Message struct {
	Kind    Kind           `json:"kind"`
	Run     *RunInfo       `json:"run,omitempty"`
	Test    *TestInfo      `json:"test,omitempty"`
	Outcome *types.Outcome `json:"outcome,omitempty"`
	Rollup  *types.Rollup  `json:"rollup,omitempty"`
	Result  *RunResult     `json:"result,omitempty"`
	Fault   *types.Fault   `json:"fault,omitempty"`
}

// Replay delivers msg to sink
func Replay(msg Message, sink Sink) error {
	switch msg.Kind {
	case KindRunStarted:
		if msg.Run == nil {
			return fmt.Errorf("%s message without run", msg.Kind)
		}
		sink.RunStarted(*msg.Run)
	case KindSuiteStarted, KindTestStarted, KindTestFinished, KindSuiteFinished:
		if msg.Test == nil {
			return fmt.Errorf("%s message without test", msg.Kind)
		}
		switch msg.Kind {
		case KindSuiteStarted:
			sink.SuiteStarted(*msg.Test)
		case KindTestStarted:
			sink.TestStarted(*msg.Test)
		case KindTestFinished:
			if msg.Outcome == nil {
				return fmt.Errorf("%s message without outcome", msg.Kind)
			}
			sink.TestFinished(*msg.Test, *msg.Outcome)
		case KindSuiteFinished:
			var r types.Rollup
			if msg.Rollup != nil {
				r = *msg.Rollup
			}
			sink.SuiteFinished(*msg.Test, r)
		}
	case KindRunFinished:
		if msg.Result == nil {
			return fmt.Errorf("%s message without result", msg.Kind)
		}
		sink.RunFinished(*msg.Result)
	case KindUnhandledException:
		if msg.Fault == nil {
			return fmt.Errorf("%s message without fault", msg.Kind)
		}
		sink.UnhandledException(*msg.Fault)
	default:
		return fmt.Errorf("unknown event kind %q", msg.Kind)
	}
	return nil
}

// messages turns sink calls into Messages. Values are copied so the receiver
// never shares memory with the sender.
type messages struct {
	emit func(Message)
}

func (m messages) RunStarted(run RunInfo) {
	m.emit(Message{Kind: KindRunStarted, Run: &run})
}

func (m messages) SuiteStarted(suite TestInfo) {
	suite = suite.clone()
	m.emit(Message{Kind: KindSuiteStarted, Test: &suite})
}

func (m messages) TestStarted(test TestInfo) {
	test = test.clone()
	m.emit(Message{Kind: KindTestStarted, Test: &test})
}

func (m messages) TestFinished(test TestInfo, outcome types.Outcome) {
	test = test.clone()
	m.emit(Message{Kind: KindTestFinished, Test: &test, Outcome: &outcome})
}

func (m messages) SuiteFinished(suite TestInfo, rollup types.Rollup) {
	suite = suite.clone()
	m.emit(Message{Kind: KindSuiteFinished, Test: &suite, Rollup: &rollup})
}

func (m messages) RunFinished(result RunResult) {
	if result.Fatal != nil {
		f := *result.Fatal
		result.Fatal = &f
	}
	m.emit(Message{Kind: KindRunFinished, Result: &result})
}

func (m messages) UnhandledException(fault types.Fault) {
	m.emit(Message{Kind: KindUnhandledException, Fault: &fault})
}

func (t TestInfo) clone() TestInfo {
	if t.Categories != nil {
		t.Categories = append([]string(nil), t.Categories...)
	}
	if t.Properties != nil {
		t.Properties = append([]Property(nil), t.Properties...)
	}
	return t
}
