// File: transport/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accept-side handshake. Runs on the I/O goroutine only, so it is the sole
// writer of the channel slots.

package transport

import (
	"errors"
	"fmt"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/channel"
	"github.com/momentics/emulink/internal/netfd"
	"github.com/momentics/emulink/protocol"
	"github.com/momentics/emulink/reactor"
)

// Handshake results used as metric labels.
const (
	handshakeOK          = "ok"
	handshakeDuplicate   = "duplicate"
	handshakeUnknownRole = "unknown_role"
	handshakeRejected    = "rejected"
	handshakeFailed      = "failed"
)

func (t *Transport) onAcceptReady(ev reactor.EventType) error {
	if ev.Has(reactor.EventError) {
		return errors.New("listening socket failed")
	}
	for {
		fd, err := netfd.Accept(t.lfd)
		if errors.Is(err, netfd.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := t.accept(fd); err != nil {
			return err
		}
	}
}

// accept runs the handshake on a freshly accepted blocking socket. Only
// transport faults are returned; rejected sockets are closed and logged.
func (t *Transport) accept(fd int) error {
	t.mu.Lock()
	switch {
	case t.State() == api.StateDisconnected:
		t.mu.Unlock()
		_ = netfd.Close(fd)
		return api.ErrTransportClosed
	case t.query != nil && t.event != nil:
		t.mu.Unlock()
		t.log.Warn("both channels are bound, rejecting connection")
		t.metrics.Handshake(handshakeRejected)
		_ = netfd.Close(fd)
		return nil
	}
	t.handshaking = fd
	t.mu.Unlock()

	raw, role, err := protocol.ReadHandshake(netfd.Conn(fd))

	t.mu.Lock()
	t.handshaking = -1
	t.mu.Unlock()

	if err != nil {
		_ = netfd.Close(fd)
		if errors.Is(err, api.ErrUnknownRole) {
			t.log.Error("unknown channel type", "role", raw)
			t.metrics.Handshake(handshakeUnknownRole)
			return nil
		}
		t.metrics.Handshake(handshakeFailed)
		return err
	}

	if err := t.checkSlot(role); err != nil {
		t.log.Error("duplicate channel", "role", role.String(), "err", err)
		t.metrics.Handshake(handshakeDuplicate)
		if err := protocol.WriteHandshakeReply(netfd.Conn(fd), protocol.ReplyHandshakeDuplicate); err != nil {
			t.log.Debug("duplicate reply not delivered", "err", err)
		}
		_ = netfd.Close(fd)
		return nil
	}

	if err := protocol.WriteHandshakeReply(netfd.Conn(fd), protocol.ReplyHandshakeOK); err != nil {
		_ = netfd.Close(fd)
		t.metrics.Handshake(handshakeFailed)
		return fmt.Errorf("%s channel: %w", role, err)
	}
	ch, err := t.newChannel(fd, role)
	if err != nil {
		t.metrics.Handshake(handshakeFailed)
		return err
	}

	t.mu.Lock()
	if t.State() == api.StateDisconnected {
		t.mu.Unlock()
		_ = ch.Close()
		return api.ErrTransportClosed
	}
	t.setSlot(role, ch)
	both := t.query != nil && t.event != nil
	t.mu.Unlock()

	t.metrics.Handshake(handshakeOK)
	t.log.Info("channel bound", "role", role.String())
	if both {
		t.markConnected()
	}
	return nil
}

// newChannel wraps fd in the configured adapter. fd is consumed either way.
func (t *Transport) newChannel(fd int, role api.Role) (channel.Channel, error) {
	opts := channel.Options{
		Role:       role,
		Dispatcher: t.disp,
		OnFailure:  t.reportFailure,
		Logger:     t.log,
		Metrics:    t.metrics,
	}
	if t.strategy == api.StrategySync {
		conn, err := netfd.FileConn(fd, role.String())
		if err != nil {
			return nil, fmt.Errorf("%s channel: %w", role, err)
		}
		return channel.NewSync(conn, opts), nil
	}
	ch, err := channel.NewAsync(fd, t.reactor, opts)
	if err != nil {
		_ = netfd.Close(fd)
		return nil, err
	}
	return ch, nil
}

// checkSlot reports api.ErrDuplicateRole when role is already bound.
func (t *Transport) checkSlot(role api.Role) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slot(role) != nil {
		return fmt.Errorf("%s channel: %w", role, api.ErrDuplicateRole)
	}
	return nil
}

// slot and setSlot require t.mu.
func (t *Transport) slot(role api.Role) channel.Channel {
	if role == api.RoleQuery {
		return t.query
	}
	return t.event
}

func (t *Transport) setSlot(role api.Role, ch channel.Channel) {
	if role == api.RoleQuery {
		t.query = ch
	} else {
		t.event = ch
	}
}
