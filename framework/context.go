package framework

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
)

// Counter counts assertions for a single run. It is owned by the engine and
// shared with every Context created during that run.
type Counter struct {
	n atomic.Int64
}

func NewCounter() *Counter {
	return &Counter{}
}

func (c *Counter) Add() {
	c.n.Add(1)
}

func (c *Counter) Value() int {
	return int(c.n.Load())
}

// Context is handed to test and lifecycle methods
type Context struct {
	ctx     context.Context
	name    string
	counter *Counter
	asserts atomic.Int64
	log     log.Logger
}

// NewContext creates the handle passed to one test or hook invocation
func NewContext(ctx context.Context, name string, counter *Counter, logger log.Logger) *Context {
	if counter == nil {
		counter = NewCounter()
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Context{
		ctx:     ctx,
		name:    name,
		counter: counter,
		log:     logger.New("test", name),
	}
}

// Context returns the run's context; it is cancelled when the run is aborted
func (c *Context) Context() context.Context {
	return c.ctx
}

// Name returns the full name of the running test
func (c *Context) Name() string {
	return c.name
}

// Log writes a structured log line tagged with the test name
func (c *Context) Log(msg string, kv ...any) {
	c.log.Info(msg, kv...)
}

// AssertCount returns the number of assertions evaluated through this context
func (c *Context) AssertCount() int {
	return int(c.asserts.Load())
}

func (c *Context) count() {
	c.asserts.Add(1)
	c.counter.Add()
}

func messagePrefix(msgAndArgs []any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok {
		return fmt.Sprintf(format, msgAndArgs[1:]...) + ": "
	}
	return fmt.Sprint(msgAndArgs...) + ": "
}

// Fail raises an assertion failure unconditionally
func (c *Context) Fail(format string, args ...any) {
	c.count()
	panic(NewAssertionError(format, args...))
}

// True asserts that cond holds
func (c *Context) True(cond bool, msgAndArgs ...any) {
	c.count()
	if !cond {
		panic(NewAssertionError("%sexpected true but was false", messagePrefix(msgAndArgs)))
	}
}

// False asserts that cond does not hold
func (c *Context) False(cond bool, msgAndArgs ...any) {
	c.count()
	if cond {
		panic(NewAssertionError("%sexpected false but was true", messagePrefix(msgAndArgs)))
	}
}

// Equal asserts that expected and actual are deeply equal
func (c *Context) Equal(expected, actual any, msgAndArgs ...any) {
	c.count()
	if !assert.ObjectsAreEqual(expected, actual) {
		panic(NewAssertionError("%sexpected %v but was %v", messagePrefix(msgAndArgs), expected, actual))
	}
}

// NotEqual asserts that expected and actual differ
func (c *Context) NotEqual(expected, actual any, msgAndArgs ...any) {
	c.count()
	if assert.ObjectsAreEqual(expected, actual) {
		panic(NewAssertionError("%sexpected not %v", messagePrefix(msgAndArgs), expected))
	}
}

// Nil asserts that v is nil
func (c *Context) Nil(v any, msgAndArgs ...any) {
	c.count()
	if !isNil(v) {
		panic(NewAssertionError("%sexpected nil but was %v", messagePrefix(msgAndArgs), v))
	}
}

// NotNil asserts that v is not nil
func (c *Context) NotNil(v any, msgAndArgs ...any) {
	c.count()
	if isNil(v) {
		panic(NewAssertionError("%sexpected a value but was nil", messagePrefix(msgAndArgs)))
	}
}

// NoError asserts that err is nil
func (c *Context) NoError(err error, msgAndArgs ...any) {
	c.count()
	if err != nil {
		panic(NewAssertionError("%sunexpected error: %v", messagePrefix(msgAndArgs), err))
	}
}

// Ignore stops the test and reports it as ignored
func (c *Context) Ignore(reason string) {
	panic(&IgnoreError{Reason: reason})
}

// Skip stops the test and reports it as skipped
func (c *Context) Skip(reason string) {
	panic(&SkipError{Reason: reason})
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
