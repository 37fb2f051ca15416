// File: channel/channel.go
// Package channel implements the query and event channels bound to the
// emulator once the handshake is done.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Two adapters share one contract: SyncChannel drives a net.Conn from a
// dedicated reader goroutine, AsyncChannel is driven by the transport's
// readiness loop. Both hand completed messages to a Dispatcher.

package channel

import (
	"log/slog"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/control"
	"github.com/momentics/emulink/protocol"
)

// Channel is a bound, role-tagged connection to the emulator.
type Channel interface {
	// Role returns the role declared during the handshake.
	Role() api.Role
	// SendMessage transmits a zero-terminated message. Messages without the
	// terminator are sent as is, with a warning.
	SendMessage(msg string) error
	// Close releases the socket. It is safe to call more than once.
	Close() error
}

// QueryFunc answers a query with a zero-terminated "ok|ko[:data]" reply.
type QueryFunc func(name, params string) string

// FailureFunc reports a fatal channel fault.
type FailureFunc func(err error)

// Options configures either adapter.
type Options struct {
	Role       api.Role
	Dispatcher *Dispatcher
	// OnFailure is called once when the channel can no longer be used.
	OnFailure FailureFunc
	Logger    *slog.Logger
	Metrics   *control.Metrics
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o.Logger.With("role", o.Role.String())
}

// Dispatcher holds the query handling common to both adapters.
type Dispatcher struct {
	Query   QueryFunc
	Logger  *slog.Logger
	Metrics *control.Metrics
}

// HandleQuery splits a received query, obtains the reply and sends it back
// through ch. Only send failures are returned.
func (d *Dispatcher) HandleQuery(ch Channel, query string) error {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	role := ch.Role().String()
	d.Metrics.Message(role, control.DirectionIn, len(query)+1)

	name, params := protocol.SplitQuery(query)
	log.Debug("query received", "role", role, "query", name, "params", params)

	resp := protocol.ReplyDetached
	if d.Query != nil {
		resp = d.Query(name, params)
	}

	reply, violation := protocol.CheckResponse(resp)
	switch violation {
	case protocol.ViolationEmpty:
		log.Warn("no response to query, replying with ko", "query", name)
		d.Metrics.ProtocolError(violation.String())
	case protocol.ViolationUnterminated:
		log.Warn("response does not contain zero-terminator", "query", name, "response", reply)
		d.Metrics.ProtocolError(violation.String())
	}
	return ch.SendMessage(reply)
}

func warnUnterminated(log *slog.Logger, msg string) {
	if !protocol.HasTerminator(msg) {
		log.Warn("missing zero-terminator in message", "msg", msg)
	}
}
