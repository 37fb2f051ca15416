// File: transport/lifecycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lifecycle: AwaitingChannels -> Connected -> Disconnected. Disconnected is
// terminal and reachable from either earlier state; only the caller that
// performs that transition tears down.
//
// Listener notifications go through a FIFO drained by whichever goroutine
// finds it idle, outside t.mu. A callback that re-enters the transport
// (SetListener, Close) only enqueues, and the active drainer delivers the
// result after the callback returns.

package transport

import (
	"errors"
	"log/slog"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/channel"
	"github.com/momentics/emulink/internal/netfd"
)

type statusEvent struct {
	listener  api.Listener
	connected bool
}

func (e statusEvent) deliver(log *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("listener panicked", "panic", p, "connected", e.connected)
		}
	}()
	if e.connected {
		e.listener.OnConnected()
	} else {
		e.listener.OnDisconnected()
	}
}

func (t *Transport) markConnected() {
	t.mu.Lock()
	ok := t.state.CompareAndSwap(int32(api.StateAwaitingChannels), int32(api.StateConnected))
	if ok && t.listener != nil {
		t.statuses.Add(statusEvent{listener: t.listener, connected: true})
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.metrics.State(int(api.StateConnected))
	t.log.Info("emulator connected")
	t.deliverStatuses()
}

// reportFailure moves the transport to Disconnected. The first caller closes
// both channels, interrupts a pending handshake and closes the reactor; the
// I/O goroutine then exits and closes the listening socket. The listener
// hears OnDisconnected only if the transport had reached Connected.
func (t *Transport) reportFailure(cause error) {
	t.mu.Lock()
	prev := t.State()
	if prev == api.StateDisconnected {
		t.mu.Unlock()
		return
	}
	t.state.Store(int32(api.StateDisconnected))
	query, event := t.query, t.event
	if prev == api.StateConnected && t.listener != nil {
		t.statuses.Add(statusEvent{listener: t.listener, connected: false})
	}
	// accept clears handshaking under t.mu before closing the fd, so the
	// number cannot have been reused while the lock is held.
	if t.handshaking >= 0 {
		_ = netfd.Shutdown(t.handshaking)
	}
	t.mu.Unlock()

	switch {
	case cause == nil, errors.Is(cause, api.ErrTransportClosed):
		t.log.Info("transport closed", "state", prev.String())
	default:
		t.log.Warn("connection lost", "state", prev.String(), "err", cause)
	}

	for _, ch := range []channel.Channel{query, event} {
		if ch == nil {
			continue
		}
		if err := ch.Close(); err != nil {
			t.log.Debug("channel close", "role", ch.Role().String(), "err", err)
		}
	}
	if err := t.reactor.Close(); err != nil {
		t.log.Debug("reactor close", "err", err)
	}

	t.unregisterProbes()
	t.metrics.Disconnect()
	t.metrics.State(int(api.StateDisconnected))
	close(t.tornDown)

	t.deliverStatuses()
}

func (t *Transport) deliverStatuses() {
	t.mu.Lock()
	if t.delivering {
		t.mu.Unlock()
		return
	}
	t.delivering = true
	for t.statuses.Length() > 0 {
		ev := t.statuses.Remove().(statusEvent)
		t.mu.Unlock()
		ev.deliver(t.log)
		t.mu.Lock()
	}
	t.delivering = false
	t.mu.Unlock()
}
