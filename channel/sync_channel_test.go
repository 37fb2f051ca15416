// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/internal/logging"
	"github.com/momentics/emulink/protocol"
)

func newSyncPair(t *testing.T, query QueryFunc) (*SyncChannel, net.Conn, chan error) {
	t.Helper()
	local, remote := net.Pipe()
	failures := make(chan error, 4)
	ch := NewSync(local, Options{
		Role:       api.RoleQuery,
		Dispatcher: &Dispatcher{Query: query, Logger: logging.Discard()},
		OnFailure:  func(err error) { failures <- err },
		Logger:     logging.Discard(),
	})
	t.Cleanup(func() {
		_ = ch.Close()
		_ = remote.Close()
	})
	return ch, remote, failures
}

func TestSyncChannel_QueryRoundTrip(t *testing.T) {
	_, remote, _ := newSyncPair(t, func(name, params string) string {
		if name == "getVersion" && params == "" {
			return "ok:1.0\x00"
		}
		return "ko\x00"
	})

	go func() { _, _ = remote.Write([]byte("getVersion:\x00")) }()

	reply, err := protocol.ReadMessage(bufio.NewReader(remote))
	if err != nil {
		t.Fatal(err)
	}
	if reply != "ok:1.0" {
		t.Fatalf("reply = %q", reply)
	}
}

func TestSyncChannel_RemoteCloseReportsFailure(t *testing.T) {
	ch, remote, failures := newSyncPair(t, nil)
	_ = remote.Close()

	select {
	case err := <-failures:
		if !errors.Is(err, api.ErrRemoteClosed) {
			t.Fatalf("expected ErrRemoteClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("failure not reported")
	}
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader goroutine did not exit")
	}
}

func TestSyncChannel_SendAfterClose(t *testing.T) {
	ch, _, failures := newSyncPair(t, nil)
	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := ch.SendMessage("tick\x00"); err == nil {
		t.Fatal("expected write error after close")
	}
	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not report the closed connection")
	}
}

func TestSyncChannel_HandlerPanicReportsFailure(t *testing.T) {
	ch, remote, failures := newSyncPair(t, func(string, string) string {
		panic("listener bug")
	})
	go func() { _, _ = remote.Write([]byte("ping\x00")) }()

	select {
	case err := <-failures:
		if err == nil || !strings.Contains(err.Error(), "panic") {
			t.Fatalf("failure = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("panic not reported as a failure")
	}
	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("reader goroutine still running")
	}
}
