//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/internal/logging"
	"github.com/momentics/emulink/internal/netfd"
	"github.com/momentics/emulink/protocol"
	"github.com/momentics/emulink/reactor"
	"golang.org/x/sys/unix"
)

type asyncFixture struct {
	ch      *AsyncChannel
	fd      int
	peer    net.Conn
	reader  *bufio.Reader
	loopErr chan error
}

func newAsyncFixture(t *testing.T, query QueryFunc) *asyncFixture {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatal(err)
	}
	peer, err := netfd.FileConn(fds[1], "peer")
	if err != nil {
		t.Fatal(err)
	}

	r, err := reactor.New()
	if err != nil {
		t.Fatal(err)
	}
	ch, err := NewAsync(fds[0], r, Options{
		Role:       api.RoleEvent,
		Dispatcher: &Dispatcher{Query: query, Logger: logging.Discard()},
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	loopErr := make(chan error, 1)
	go func() {
		for {
			if _, err := r.Poll(); err != nil {
				loopErr <- err
				return
			}
		}
	}()

	t.Cleanup(func() {
		_ = r.Close()
		_ = ch.Close()
		_ = peer.Close()
	})
	return &asyncFixture{ch: ch, fd: fds[0], peer: peer, reader: bufio.NewReader(peer), loopErr: loopErr}
}

func TestAsyncChannel_QueryRoundTrip(t *testing.T) {
	f := newAsyncFixture(t, func(name, params string) string {
		return "ok:" + name + "/" + params + "\x00"
	})

	// Split the query over several writes to exercise accumulation.
	for _, part := range []string{"get", "Ver", "sion:x", "\x00"} {
		if _, err := f.peer.Write([]byte(part)); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	reply, err := protocol.ReadMessage(f.reader)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "ok:getVersion/x" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestAsyncChannel_QueuedMessagesKeepOrder(t *testing.T) {
	f := newAsyncFixture(t, nil)
	// A tiny send buffer forces incomplete writes.
	_ = unix.SetsockoptInt(f.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 2048)

	const n = 200
	padding := strings.Repeat("x", 4096)
	for i := 0; i < n; i++ {
		if err := f.ch.SendMessage(fmt.Sprintf("tick-%04d-%s\x00", i, padding)); err != nil {
			t.Fatal(err)
		}
	}
	if f.ch.Pending() == 0 {
		t.Fatal("expected messages to queue behind the in-flight write")
	}

	_ = f.peer.SetReadDeadline(time.Now().Add(10 * time.Second))
	for i := 0; i < n; i++ {
		msg, err := protocol.ReadMessage(f.reader)
		if err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		want := fmt.Sprintf("tick-%04d-%s", i, padding)
		if msg != want {
			t.Fatalf("message %d out of order: %.12q", i, msg)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.ch.Pending() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if f.ch.Pending() != 0 {
		t.Fatalf("queue not drained: %d pending", f.ch.Pending())
	}
}

func TestAsyncChannel_RemoteCloseIsFatal(t *testing.T) {
	f := newAsyncFixture(t, nil)
	_ = f.peer.Close()

	select {
	case err := <-f.loopErr:
		if !errors.Is(err, api.ErrRemoteClosed) {
			t.Fatalf("expected ErrRemoteClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote close not reported by the loop")
	}
}

func TestAsyncChannel_CloseDropsQueue(t *testing.T) {
	f := newAsyncFixture(t, nil)
	_ = f.ch.SendMessage("a\x00")
	_ = f.ch.SendMessage("b\x00")

	if err := f.ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.ch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if f.ch.Pending() != 0 {
		t.Fatal("queue not cleared on close")
	}
	if err := f.ch.SendMessage("c\x00"); !errors.Is(err, api.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
}
