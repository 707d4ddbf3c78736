package runner

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/ethereum-optimism/infra/op-harness/framework"
)

// callLog records lifecycle calls across fixture instances
type callLog struct {
	mu   sync.Mutex
	list []string
}

func (c *callLog) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, s)
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.list...)
}

func (c *callLog) count(s string) int {
	n := 0
	for _, v := range c.get() {
		if v == s {
			n++
		}
	}
	return n
}

type lifecycleFixture struct {
	calls               *callLog
	cancel              context.CancelFunc
	failFixtureSetUp    bool
	failFixtureTearDown bool
	failSetUp           bool
	failTearDown        bool
}

func (f *lifecycleFixture) FixtureSetUp() error {
	f.calls.add("fixture-setup")
	if f.failFixtureSetUp {
		return errors.New("database unavailable")
	}
	return nil
}

func (f *lifecycleFixture) FixtureTearDown() {
	f.calls.add("fixture-teardown")
	if f.failFixtureTearDown {
		panic("cleanup failed")
	}
}

func (f *lifecycleFixture) SetUp(ctx *framework.Context) {
	f.calls.add("setup")
	if f.failSetUp {
		panic(errors.New("setup broke"))
	}
}

func (f *lifecycleFixture) TearDown() {
	f.calls.add("teardown")
	if f.failTearDown {
		panic("teardown broke")
	}
}

func (f *lifecycleFixture) TestPass(ctx *framework.Context) {
	f.calls.add("TestPass")
	ctx.Equal(2, 1+1)
	ctx.True(true)
}

func (f *lifecycleFixture) TestAssert(ctx *framework.Context) {
	f.calls.add("TestAssert")
	ctx.Equal(1, 2)
}

func (f *lifecycleFixture) TestError() error {
	f.calls.add("TestError")
	return errors.New("boom")
}

func (f *lifecycleFixture) TestPanic() {
	f.calls.add("TestPanic")
	var m map[string]int
	m["x"] = 1
}

func (f *lifecycleFixture) TestIgnoreAtRuntime(ctx *framework.Context) {
	f.calls.add("TestIgnoreAtRuntime")
	ctx.Ignore("not today")
}

func (f *lifecycleFixture) TestCancel(ctx *framework.Context) error {
	f.calls.add("TestCancel")
	f.cancel()
	<-ctx.Context().Done()
	return ctx.Context().Err()
}

func (f *lifecycleFixture) TestPathError() error {
	return &fs.PathError{Op: "open", Path: "config.yaml", Err: fs.ErrNotExist}
}

func (f *lifecycleFixture) TestWrappedPathError() error {
	return errors.Join(&fs.PathError{Op: "open", Path: "config.yaml", Err: fs.ErrNotExist})
}

func (f *lifecycleFixture) TestNoError() error {
	return nil
}
