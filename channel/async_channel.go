// File: channel/async_channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// AsyncChannel: a non-blocking socket driven by the readiness loop.
//
// Outbound messages go through a single path. Callers append to the pending
// FIFO under the channel mutex and arm write interest; the readiness loop is
// the only writer. At most one message is in flight, and each write-ready
// callback promotes at most one queued message, so a long queue never
// monopolises the shared loop.

package channel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/control"
	"github.com/momentics/emulink/internal/netfd"
	"github.com/momentics/emulink/protocol"
	"github.com/momentics/emulink/reactor"
)

const readChunk = 512

// AsyncChannel is a channel over a non-blocking descriptor registered with
// a reactor.
type AsyncChannel struct {
	role    api.Role
	fd      int
	reactor reactor.Reactor
	disp    *Dispatcher
	log     *slog.Logger
	metrics *control.Metrics

	// Touched only from the readiness loop.
	acc  protocol.Accumulator
	rbuf [readChunk]byte

	// mu guards the outbound state and the interest set.
	mu         sync.Mutex
	inFlight   bool
	out        []byte // unsent part of the in-flight message
	outLen     int
	pending    *queue.Queue // of string
	writeArmed bool
	closed     bool

	// fdMu orders socket syscalls against Close.
	fdMu     sync.RWMutex
	fdClosed bool
}

// NewAsync switches fd to non-blocking mode and registers it with r for
// read readiness. On error fd is left open for the caller to close.
func NewAsync(fd int, r reactor.Reactor, opts Options) (*AsyncChannel, error) {
	if err := netfd.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("%s channel: set nonblock: %w", opts.Role, err)
	}
	c := &AsyncChannel{
		role:    opts.Role,
		fd:      fd,
		reactor: r,
		disp:    opts.Dispatcher,
		log:     opts.logger(),
		metrics: opts.Metrics,
		pending: queue.New(),
	}
	if err := r.Register(fd, reactor.EventRead, c.handle); err != nil {
		return nil, fmt.Errorf("%s channel: register: %w", opts.Role, err)
	}
	return c, nil
}

// Role implements Channel.
func (c *AsyncChannel) Role() api.Role { return c.role }

// SendMessage queues msg for transmission and returns without blocking.
// Queued messages are sent in call order.
func (c *AsyncChannel) SendMessage(msg string) error {
	warnUnterminated(c.log, msg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%s channel: %w", c.role, api.ErrTransportClosed)
	}
	if !c.inFlight {
		c.inFlight = true
		c.out = []byte(msg)
		c.outLen = len(msg)
	} else {
		c.pending.Add(msg)
		c.metrics.Pending(c.role.String(), c.pending.Length())
	}
	if c.writeArmed {
		return nil
	}
	if err := c.reactor.Modify(c.fd, reactor.EventRead|reactor.EventWrite); err != nil {
		return fmt.Errorf("%s channel: enable write: %w", c.role, err)
	}
	c.writeArmed = true
	return nil
}

// Pending returns the number of messages waiting behind the in-flight one.
func (c *AsyncChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Length()
}

// Close cancels the registration, drops queued messages and closes the
// socket. No callback runs for this channel afterwards.
func (c *AsyncChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.inFlight = false
	c.out = nil
	for c.pending.Length() > 0 {
		c.pending.Remove()
	}
	c.metrics.Pending(c.role.String(), 0)
	c.mu.Unlock()

	c.fdMu.Lock()
	defer c.fdMu.Unlock()
	c.fdClosed = true
	// The reactor may already be closed during teardown.
	_ = c.reactor.Unregister(c.fd)
	return netfd.Close(c.fd)
}

func (c *AsyncChannel) handle(ev reactor.EventType) error {
	if ev&(reactor.EventRead|reactor.EventError) != 0 {
		if err := c.onReadReady(); err != nil {
			return err
		}
	}
	if ev&reactor.EventWrite != 0 {
		return c.onWriteReady()
	}
	return nil
}

func (c *AsyncChannel) read(p []byte) (int, error) {
	c.fdMu.RLock()
	defer c.fdMu.RUnlock()
	if c.fdClosed {
		return 0, api.ErrTransportClosed
	}
	return netfd.Read(c.fd, p)
}

func (c *AsyncChannel) write(p []byte) (int, error) {
	c.fdMu.RLock()
	defer c.fdMu.RUnlock()
	if c.fdClosed {
		return 0, api.ErrTransportClosed
	}
	return netfd.Write(c.fd, p)
}

// onReadReady drains what the socket currently offers, dispatching every
// completed query. Nothing available is the normal outcome.
func (c *AsyncChannel) onReadReady() error {
	for {
		n, err := c.read(c.rbuf[:])
		if n > 0 {
			if ferr := c.acc.Feed(c.rbuf[:n], func(query string) error {
				return c.disp.HandleQuery(c, query)
			}); ferr != nil {
				return ferr
			}
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, netfd.ErrWouldBlock):
			return nil
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%s channel read: %w", c.role, api.ErrRemoteClosed)
		default:
			return fmt.Errorf("%s channel read: %w", c.role, err)
		}
	}
}

// onWriteReady continues the in-flight message, then promotes at most one
// queued message; with nothing left it disarms write interest.
func (c *AsyncChannel) onWriteReady() error {
	c.mu.Lock()
	inFlight, out := c.inFlight, c.out
	c.mu.Unlock()

	if len(out) > 0 {
		n, err := c.write(out)
		if err != nil && !errors.Is(err, netfd.ErrWouldBlock) {
			return fmt.Errorf("%s channel write: %w", c.role, err)
		}
		out = out[n:]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if len(out) > 0 {
		c.out = out
		return nil
	}
	if inFlight {
		c.metrics.Message(c.role.String(), control.DirectionOut, c.outLen)
	}
	if c.pending.Length() > 0 {
		msg := c.pending.Remove().(string)
		c.out = []byte(msg)
		c.outLen = len(msg)
		c.metrics.Pending(c.role.String(), c.pending.Length())
		return nil
	}
	c.inFlight = false
	c.out = nil
	c.outLen = 0
	if err := c.reactor.Modify(c.fd, reactor.EventRead); err != nil {
		return fmt.Errorf("%s channel: disable write: %w", c.role, err)
	}
	c.writeArmed = false
	return nil
}

var _ Channel = (*AsyncChannel)(nil)
