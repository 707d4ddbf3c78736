package boundary

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/events"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAbortGrace = 5 * time.Second
	defaultBuffer     = 64
)

var nowFunc = time.Now

// InProcessConfig holds configuration for an in-process boundary
type InProcessConfig struct {
	Engine Engine
	// AbortGrace is how long a cancelled run may keep reporting before it is
	// abandoned
	AbortGrace time.Duration
	// Buffer is the capacity of the event channel
	Buffer int
}

// InProcess runs the engine on its own goroutine. Events are copied onto a
// channel and replayed to the sink on the caller's goroutine.
type InProcess struct {
	log    log.Logger
	engine Engine
	grace  time.Duration
	buffer int
}

var _ Boundary = (*InProcess)(nil)

func NewInProcess(cfg InProcessConfig) *InProcess {
	if cfg.Engine.Log == nil {
		cfg.Engine.Log = log.New()
	}
	if cfg.AbortGrace == 0 {
		cfg.AbortGrace = defaultAbortGrace
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	return &InProcess{log: cfg.Engine.Log, engine: cfg.Engine, grace: cfg.AbortGrace, buffer: cfg.Buffer}
}

// escapedPanic is a panic that got past the engine
type escapedPanic struct {
	value any
	stack string
}

func (e *escapedPanic) Error() string {
	return fmt.Sprint(e.value)
}

func (b *InProcess) Run(ctx context.Context, req Request, sink events.Sink) error {
	ch := make(chan events.Message, b.buffer)
	// deliveries stop only once the caller stops receiving
	deliverCtx, stopDelivery := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDelivery()

	var g errgroup.Group
	g.Go(func() (err error) {
		defer close(ch)
		defer func() {
			if p := recover(); p != nil {
				err = &escapedPanic{value: p, stack: string(debug.Stack())}
			}
		}()
		_, err = b.engine.Execute(ctx, req, events.NewChannel(deliverCtx, ch))
		return err
	})

	t := &tracker{sink: sink}
	var abandon <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	done := ctx.Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return b.finish(t, g.Wait())
			}
			if err := events.Replay(msg, t); err != nil {
				b.log.Error("Failed to replay event", "kind", msg.Kind, "err", err)
			}
		case <-done:
			done = nil
			timer = time.NewTimer(b.grace)
			abandon = timer.C
		case <-abandon:
			b.log.Warn("Abandoning in-process run after cancellation", "grace", b.grace)
			stopDelivery()
			t.abandon(types.Fault{Phase: types.PhaseRun, Message: runner.AbortMessage})
			return &BoundaryFault{Boundary: "in-process", Err: ctx.Err()}
		}
	}
}

func (b *InProcess) finish(t *tracker, err error) error {
	if err == nil {
		if !t.finished && t.run != nil {
			t.abandon(types.Fault{Phase: types.PhaseBoundary, Message: "run ended without finishing"})
			return &BoundaryFault{Boundary: "in-process", Err: fmt.Errorf("run ended without finishing")}
		}
		return nil
	}
	p, ok := err.(*escapedPanic)
	if !ok {
		return err
	}
	b.log.Error("Unhandled panic escaped the engine", "err", p.Error())
	fault := types.Fault{
		Phase:      types.PhaseBoundary,
		Kind:       runner.KindName(reflect.TypeOf(p.value)),
		Message:    p.Error(),
		StackTrace: p.stack,
	}
	if t.run == nil {
		// nothing to finish; report the fault on its own
		t.sink.UnhandledException(fault)
	} else {
		t.abandon(fault)
	}
	return &BoundaryFault{Boundary: "in-process", Err: err}
}
