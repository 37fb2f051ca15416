package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// notifier is the part of a transport the host drives.
type notifier interface {
	SendNotification(msg string) error
}

// host is the listener attached to every transport served by the CLI. It
// answers a few diagnostic queries and, when tick is set, sends a counter
// notification on the event channel while connected.
type host struct {
	version string
	tick    time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	target notifier
	stop   chan struct{}
}

func newHost(version string, tick time.Duration, log *slog.Logger) *host {
	return &host{version: version, tick: tick, log: log}
}

// attach points notifications at the next transport.
func (h *host) attach(n notifier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = n
}

func (h *host) OnConnected() {
	h.log.Info("emulator connected")
	if h.tick <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil || h.target == nil {
		return
	}
	h.stop = make(chan struct{})
	go h.ticker(h.target, h.stop)
}

func (h *host) OnDisconnected() {
	h.log.Info("emulator disconnected")
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}

func (h *host) OnQuery(name, params string) string {
	switch name {
	case "getVersion":
		return "ok:" + h.version + "\x00"
	case "ping":
		return "ok:pong\x00"
	case "echo":
		return "ok:" + params + "\x00"
	case "getTime":
		return "ok:" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "\x00"
	default:
		h.log.Warn("unknown query", "query", name, "params", params)
		return fmt.Sprintf("ko:Unknown query %s.\x00", name)
	}
}

func (h *host) ticker(n notifier, stop <-chan struct{}) {
	t := time.NewTicker(h.tick)
	defer t.Stop()
	var seq uint64
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			seq++
			if err := n.SendNotification("tick:" + strconv.FormatUint(seq, 10) + "\x00"); err != nil {
				h.log.Debug("tick not sent", "err", err)
				return
			}
		}
	}
}
