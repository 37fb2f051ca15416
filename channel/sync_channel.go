// File: channel/sync_channel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SyncChannel: one blocking reader goroutine per channel, direct writes.

package channel

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/control"
	"github.com/momentics/emulink/protocol"
)

// SyncChannel is a channel over a blocking connection.
type SyncChannel struct {
	role      api.Role
	conn      net.Conn
	disp      *Dispatcher
	onFailure FailureFunc
	log       *slog.Logger
	metrics   *control.Metrics

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewSync binds conn to a role and starts its reader goroutine. The reader
// runs until the connection fails or is closed; it is never restarted.
func NewSync(conn net.Conn, opts Options) *SyncChannel {
	c := &SyncChannel{
		role:      opts.Role,
		conn:      conn,
		disp:      opts.Dispatcher,
		onFailure: opts.OnFailure,
		log:       opts.logger(),
		metrics:   opts.Metrics,
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Role implements Channel.
func (c *SyncChannel) Role() api.Role { return c.role }

// SendMessage writes msg in full, blocking until done.
func (c *SyncChannel) SendMessage(msg string) error {
	warnUnterminated(c.log, msg)
	n, err := io.WriteString(c.conn, msg)
	if err != nil {
		return fmt.Errorf("%s channel write: %w", c.role, err)
	}
	c.metrics.Message(c.role.String(), control.DirectionOut, n)
	return nil
}

// Close closes the connection; the reader goroutine then exits.
func (c *SyncChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Done is closed when the reader goroutine has exited.
func (c *SyncChannel) Done() <-chan struct{} { return c.done }

func (c *SyncChannel) readLoop() {
	defer close(c.done)
	br := bufio.NewReader(c.conn)
	for {
		query, err := protocol.ReadMessage(br)
		if err != nil {
			c.fail(fmt.Errorf("%s channel read: %w", c.role, err))
			return
		}
		if err := c.handle(query); err != nil {
			c.fail(err)
			return
		}
	}
}

// handle dispatches one query, turning a panic in the listener into a
// channel failure.
func (c *SyncChannel) handle(query string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s channel query handler panic: %v", c.role, p)
		}
	}()
	return c.disp.HandleQuery(c, query)
}

func (c *SyncChannel) fail(err error) {
	c.log.Debug("channel reader stopped", "err", err)
	if c.onFailure != nil {
		c.onFailure(err)
	}
}

var _ Channel = (*SyncChannel)(nil)
