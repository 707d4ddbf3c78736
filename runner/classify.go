package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/ethereum-optimism/infra/op-harness/framework"
	"github.com/ethereum-optimism/infra/op-harness/markers"
	"github.com/ethereum-optimism/infra/op-harness/model"
	"github.com/ethereum-optimism/infra/op-harness/reflector"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

// AbortMessage is the message of every outcome or fault caused by the run
// being aborted rather than by the test itself
const AbortMessage = "run aborted"

// regexTimeout bounds a single expected-message match
const regexTimeout = time.Second

// raised is what a hook or test body raised, as seen by the classifier
type raised struct {
	err     error // the error value, nil for non-error panics
	kind    reflect.Type
	message string
	stack   string
}

// describe unwraps what Invoke returned. A panic carrying an error is treated
// the same as returning that error.
func describe(err error) raised {
	var p *reflector.Panic
	if errors.As(err, &p) {
		if e, ok := p.Value.(error); ok {
			stack := framework.StackOf(e)
			if stack == "" {
				stack = p.Stack
			}
			return raised{err: e, kind: reflect.TypeOf(e), message: e.Error(), stack: stack}
		}
		return raised{kind: reflect.TypeOf(p.Value), message: fmt.Sprint(p.Value), stack: p.Stack}
	}
	return raised{err: err, kind: reflect.TypeOf(err), message: err.Error(), stack: framework.StackOf(err)}
}

// KindName returns the package-path qualified name of t, e.g. "*io/fs.PathError"
func KindName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + KindName(t.Elem())
	case reflect.Slice:
		return "[]" + KindName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func (r raised) kindName() string {
	return KindName(r.kind)
}

// matchesName accepts both the qualified name and the short form reflect uses
func (r raised) matchesName(name string) bool {
	return r.kind != nil && (name == r.kindName() || name == r.kind.String())
}

func isAbort(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// Classify turns what a test raised into an outcome. err is nil when the test
// completed normally.
func Classify(ctx context.Context, expected *model.ExpectedError, err error) types.Outcome {
	if err == nil {
		if expected != nil {
			return types.Failure(fmt.Sprintf("expected exception of kind %s was not thrown", expected.Describe()), "")
		}
		return types.Success()
	}

	r := describe(err)
	var ignoreErr *framework.IgnoreError
	var skipErr *framework.SkipError
	switch {
	case r.err != nil && errors.As(r.err, &ignoreErr):
		return types.Ignored(ignoreErr.Reason)
	case r.err != nil && errors.As(r.err, &skipErr):
		return types.Skipped(skipErr.Reason)
	case r.err != nil && isAbort(ctx, r.err):
		return types.Error(AbortMessage, "")
	}

	if expected == nil {
		return unexpected(r)
	}
	return matchExpected(expected, r)
}

// unexpected classifies a raised value when nothing was expected: assertion
// failures are Failures, anything else is an Error.
func unexpected(r raised) types.Outcome {
	if r.err != nil && framework.IsAssertionError(r.err) {
		return types.Failure(r.message, r.stack)
	}
	return types.Error(fmt.Sprintf("%s : %s", r.kindName(), r.message), r.stack)
}

func matchExpected(expected *model.ExpectedError, r raised) types.Outcome {
	kindOK := true
	switch {
	case expected.Type != nil:
		kindOK = r.kind == expected.Type
	case expected.TypeName != "":
		kindOK = r.matchesName(expected.TypeName)
	}
	if !kindOK {
		return types.Failure(fmt.Sprintf("An unexpected exception type was thrown\nExpected: %s\n but was: %s : %s",
			expected.Describe(), r.kindName(), r.message), r.stack)
	}
	if !expected.HasMessage {
		return types.Success()
	}
	ok, err := matchMessage(expected.Match, expected.Message, r.message)
	if err != nil {
		return types.Error(fmt.Sprintf("invalid expected message pattern %q: %v", expected.Message, err), "")
	}
	if !ok {
		return types.Failure(fmt.Sprintf("The exception message text was incorrect\nExpected: %s\n but was: %s",
			describeMatch(expected.Match, expected.Message), r.message), r.stack)
	}
	return types.Success()
}

func describeMatch(policy markers.MatchPolicy, want string) string {
	switch policy {
	case markers.MatchContains:
		return "message containing " + want
	case markers.MatchStartsWith:
		return "message starting with " + want
	case markers.MatchEndsWith:
		return "message ending with " + want
	case markers.MatchRegex:
		return "message matching " + want
	default:
		return want
	}
}

func matchMessage(policy markers.MatchPolicy, want, got string) (bool, error) {
	switch policy {
	case markers.MatchExact, "":
		return got == want, nil
	case markers.MatchContains:
		return strings.Contains(got, want), nil
	case markers.MatchStartsWith:
		return strings.HasPrefix(got, want), nil
	case markers.MatchEndsWith:
		return strings.HasSuffix(got, want), nil
	case markers.MatchRegex:
		re, err := regexp2.Compile(want, regexp2.None)
		if err != nil {
			return false, err
		}
		re.MatchTimeout = regexTimeout
		return re.MatchString(got)
	default:
		return false, fmt.Errorf("unknown match policy %q", policy)
	}
}
