package events

import (
	"context"
	"sync/atomic"
)

// Channel is a Sink that passes every event as a Message over a Go channel.
// Sends block until the receiver takes the message or ctx is done; events
// sent after that are dropped and counted.
type Channel struct {
	messages
	ctx     context.Context
	ch      chan<- Message
	dropped atomic.Int64
}

var _ Sink = (*Channel)(nil)

func NewChannel(ctx context.Context, ch chan<- Message) *Channel {
	c := &Channel{ctx: ctx, ch: ch}
	c.messages = messages{emit: c.send}
	return c
}

func (c *Channel) send(msg Message) {
	if c.ctx.Err() != nil {
		c.dropped.Add(1)
		return
	}
	select {
	case c.ch <- msg:
	case <-c.ctx.Done():
		c.dropped.Add(1)
	}
}

// Dropped returns the number of events that could not be delivered
func (c *Channel) Dropped() int {
	return int(c.dropped.Load())
}
