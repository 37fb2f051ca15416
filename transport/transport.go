// File: transport/transport.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Transport listens on a forwarded port, waits for the emulator to open a
// query channel and an event channel, and serves them until the first
// fault. A disconnected Transport is never reused.

package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/channel"
	"github.com/momentics/emulink/control"
	"github.com/momentics/emulink/internal/netfd"
	"github.com/momentics/emulink/protocol"
	"github.com/momentics/emulink/reactor"
)

// DefaultHost is the bind address used when Config.Host is empty.
const DefaultHost = "127.0.0.1"

// Config is supplied once at construction.
type Config struct {
	// Host to bind; DefaultHost when empty.
	Host string
	// Port to bind; 0 picks an ephemeral port, see Addr.
	Port int
	// Strategy drives the channel sockets after the handshake.
	Strategy api.Strategy

	Logger  *slog.Logger
	Metrics *control.Metrics
	// Probes, when set, receives per-transport debug probes.
	Probes *control.DebugProbes
}

// Transport is one connection attempt with the emulator.
type Transport struct {
	id       string
	strategy api.Strategy
	log      *slog.Logger
	metrics  *control.Metrics
	probes   *control.DebugProbes

	lfd     int
	addr    *net.TCPAddr
	reactor reactor.Reactor
	disp    *channel.Dispatcher

	state atomic.Int32

	// mu guards the channel slots, the listener, lifecycle transitions and
	// the status queue.
	mu          sync.Mutex
	query       channel.Channel
	event       channel.Channel
	handshaking int // fd in handshake, -1 when none
	listener    api.Listener
	statuses    *queue.Queue // of statusEvent
	delivering  bool

	tornDown chan struct{}
	done     chan struct{}
}

// New binds the listening socket and starts the I/O goroutine. l may be nil
// and attached later with SetListener.
func New(cfg Config, l api.Listener) (*Transport, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("transport: invalid port %d", cfg.Port)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lfd, addr, err := netfd.Listen(cfg.Host, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	r, err := reactor.New()
	if err != nil {
		_ = netfd.Close(lfd)
		return nil, fmt.Errorf("transport: %w", err)
	}

	id := uuid.NewString()
	t := &Transport{
		id:          id,
		strategy:    cfg.Strategy,
		log:         logger.With("transport", id, "port", addr.Port),
		metrics:     cfg.Metrics,
		probes:      cfg.Probes,
		lfd:         lfd,
		addr:        addr,
		reactor:     r,
		handshaking: -1,
		listener:    l,
		statuses:    queue.New(),
		tornDown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	t.disp = &channel.Dispatcher{Query: t.onQuery, Logger: t.log, Metrics: t.metrics}
	t.state.Store(int32(api.StateAwaitingChannels))

	if err := r.Register(lfd, reactor.EventRead, t.onAcceptReady); err != nil {
		_ = r.Close()
		_ = netfd.Close(lfd)
		return nil, fmt.Errorf("transport: %w", err)
	}
	t.metrics.State(int(api.StateAwaitingChannels))
	t.registerProbes()

	t.log.Info("waiting for emulator channels", "addr", addr.String(), "strategy", t.strategy.String())
	go t.run()
	return t, nil
}

// ID returns the instance id used in logs.
func (t *Transport) ID() string { return t.id }

// Addr returns the bound listening address.
func (t *Transport) Addr() *net.TCPAddr { return t.addr }

// State returns the current lifecycle state.
func (t *Transport) State() api.State { return api.State(t.state.Load()) }

// Done is closed once the transport is torn down and its I/O goroutine has
// exited.
func (t *Transport) Done() <-chan struct{} { return t.done }

// SendNotification sends msg on the event channel. While not connected the
// call is a logged no-op returning api.ErrNotConnected. A send failure
// tears the transport down.
func (t *Transport) SendNotification(msg string) error {
	if t.State() != api.StateConnected {
		t.log.Warn("attempt to send notification while disconnected", "msg", msg)
		return api.ErrNotConnected
	}
	t.mu.Lock()
	ev := t.event
	t.mu.Unlock()
	if ev == nil {
		return api.ErrNotConnected
	}
	if err := ev.SendMessage(msg); err != nil {
		t.reportFailure(fmt.Errorf("send notification: %w", err))
		return err
	}
	return nil
}

// SetListener replaces the listener. A non-nil listener attached after the
// transport connected or disconnected is told that status immediately;
// while awaiting channels nothing is replayed. The replay is synchronous
// unless another goroutine is delivering a status at that moment, in which
// case that goroutine delivers it in order.
func (t *Transport) SetListener(l api.Listener) {
	t.mu.Lock()
	t.listener = l
	if l != nil {
		switch t.State() {
		case api.StateConnected:
			t.statuses.Add(statusEvent{listener: l, connected: true})
		case api.StateDisconnected:
			t.statuses.Add(statusEvent{listener: l, connected: false})
		}
	}
	t.mu.Unlock()
	t.deliverStatuses()
}

// Close tears the transport down. It is safe to call more than once and
// from a listener callback.
func (t *Transport) Close() error {
	t.reportFailure(api.ErrTransportClosed)
	return nil
}

func (t *Transport) onQuery(name, params string) string {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l == nil {
		return protocol.ReplyDetached
	}
	return l.OnQuery(name, params)
}

func (t *Transport) registerProbes() {
	if t.probes == nil {
		return
	}
	prefix := "transport." + t.id
	t.probes.RegisterProbe(prefix+".state", func() any { return t.State().String() })
	t.probes.RegisterProbe(prefix+".addr", func() any { return t.addr.String() })
	t.probes.RegisterProbe(prefix+".channels", func() any {
		t.mu.Lock()
		defer t.mu.Unlock()
		bound := map[string]bool{"query": t.query != nil, "event": t.event != nil}
		return bound
	})
}

func (t *Transport) unregisterProbes() {
	if t.probes == nil {
		return
	}
	prefix := "transport." + t.id
	t.probes.UnregisterProbe(prefix + ".state")
	t.probes.UnregisterProbe(prefix + ".addr")
	t.probes.UnregisterProbe(prefix + ".channels")
}
