// Package reload carries reload signals from the directory watcher to the
// view controller.
package reload

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Send after Close, and by Recv once the channel is
// closed and drained.
var ErrClosed = errors.New("reload channel closed")

// Signal tells the consumer that the view should reload. Cause and Op
// describe the change that produced it and are informational only.
type Signal struct {
	Cause string
	Op    string
	At    time.Time
}

// Channel is an unbounded, ordered conduit with one producer and one
// consumer. Send never blocks.
type Channel struct {
	mu     sync.Mutex
	queue  []Signal
	closed bool
	ready  chan struct{}
}

func NewChannel() *Channel {
	return &Channel{ready: make(chan struct{}, 1)}
}

// Send appends a signal to the queue.
func (c *Channel) Send(signal Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.queue = append(c.queue, signal)
	select {
	case c.ready <- struct{}{}:
	default:
	}
	return nil
}

// Recv blocks until a signal is queued, the channel is closed and empty, or
// ctx is done.
func (c *Channel) Recv(ctx context.Context) (Signal, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			signal := c.queue[0]
			c.queue[0] = Signal{}
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return signal, nil
		}
		if c.closed {
			c.mu.Unlock()
			return Signal{}, ErrClosed
		}
		c.mu.Unlock()

		select {
		case <-c.ready:
		case <-ctx.Done():
			return Signal{}, ctx.Err()
		}
	}
}

// Close stops further sends. Queued signals remain receivable.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.ready)
}

// Len reports the number of queued signals.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
