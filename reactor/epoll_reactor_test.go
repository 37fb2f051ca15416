//go:build linux
// +build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import (
	"errors"
	"testing"
	"time"

	"github.com/momentics/emulink/api"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestEpollReactor_ReadReady(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	a, b := socketPair(t)
	var got EventType
	if err := r.Register(a, EventRead, func(ev EventType) error {
		got = ev
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatal(err)
	}
	n, err := r.Poll()
	if err != nil || n != 1 {
		t.Fatalf("Poll = %d, %v", n, err)
	}
	if !got.Has(EventRead) {
		t.Fatalf("expected read readiness, got %b", got)
	}
}

func TestEpollReactor_ModifyWrite(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	a, _ := socketPair(t)
	writes := 0
	if err := r.Register(a, EventRead, func(ev EventType) error {
		if ev.Has(EventWrite) {
			writes++
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := r.Modify(a, EventRead|EventWrite); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Poll(); err != nil {
		t.Fatal(err)
	}
	if writes != 1 {
		t.Fatalf("expected one write readiness, got %d", writes)
	}
}

func TestEpollReactor_CallbackErrorStopsPoll(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	a, _ := socketPair(t)
	boom := errors.New("boom")
	_ = r.Register(a, EventWrite, func(EventType) error { return boom })
	if _, err := r.Poll(); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
}

func TestEpollReactor_CallbackPanicBecomesError(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	a, _ := socketPair(t)
	_ = r.Register(a, EventWrite, func(EventType) error { panic("listener bug") })
	if _, err := r.Poll(); err == nil {
		t.Fatal("expected error from panicking callback")
	}
}

func TestEpollReactor_WakeAndClose(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatal(err)
	}

	results := make(chan error, 2)
	go func() {
		for {
			_, err := r.Poll()
			results <- err
			if err != nil {
				return
			}
		}
	}()

	if err := r.Wake(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-results:
		if err != nil {
			t.Fatalf("woken Poll returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not interrupt Poll")
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-results:
		if !errors.Is(err, api.ErrReactorClosed) {
			t.Fatalf("expected ErrReactorClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not interrupt Poll")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := r.Register(0, EventRead, nil); err == nil {
		t.Fatal("Register after Close must fail")
	}
}
