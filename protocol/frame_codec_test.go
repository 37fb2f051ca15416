// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/momentics/emulink/api"
)

func TestReadMessage(t *testing.T) {
	r := bytes.NewReader([]byte("getVersion:\x00setRate:10\x00"))
	first, err := ReadMessage(r)
	if err != nil || first != "getVersion:" {
		t.Fatalf("first message = %q, %v", first, err)
	}
	second, err := ReadMessage(r)
	if err != nil || second != "setRate:10" {
		t.Fatalf("second message = %q, %v", second, err)
	}
	if _, err := ReadMessage(r); !errors.Is(err, api.ErrRemoteClosed) {
		t.Fatalf("expected ErrRemoteClosed at end of stream, got %v", err)
	}
}

func TestReadMessageUnterminated(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte("query")))
	if !errors.Is(err, api.ErrRemoteClosed) {
		t.Fatalf("expected ErrRemoteClosed, got %v", err)
	}
}

func TestByteReaderDoesNotReadAhead(t *testing.T) {
	src := strings.NewReader("event\x00rest")
	msg, err := ReadMessage(&ByteReader{R: src})
	if err != nil || msg != "event" {
		t.Fatalf("got %q, %v", msg, err)
	}
	if src.Len() != len("rest") {
		t.Fatalf("reader consumed past the terminator, %d bytes left", src.Len())
	}
}

func TestAccumulatorChunks(t *testing.T) {
	var acc Accumulator
	var got []string
	collect := func(m string) error { got = append(got, m); return nil }

	for _, chunk := range []string{"ge", "tVer", "sion\x00a", "\x00\x00b"} {
		if err := acc.Feed([]byte(chunk), collect); err != nil {
			t.Fatal(err)
		}
	}
	want := []string{"getVersion", "a", ""}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
	if acc.Pending() != 1 {
		t.Fatalf("expected 1 pending byte, got %d", acc.Pending())
	}
}

func TestAccumulatorStopsOnError(t *testing.T) {
	var acc Accumulator
	stop := errors.New("stop")
	calls := 0
	err := acc.Feed([]byte("a\x00b\x00"), func(string) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestFrameHelpers(t *testing.T) {
	if Frame("ok") != "ok\x00" {
		t.Fatal("Frame must append the terminator")
	}
	if Unframe("ok\x00") != "ok" || Unframe("ok") != "ok" {
		t.Fatal("Unframe must strip exactly one terminator")
	}
	if HasTerminator("") || HasTerminator("ok") || !HasTerminator("ok\x00") {
		t.Fatal("HasTerminator mismatch")
	}
}
