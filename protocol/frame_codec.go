// File: protocol/frame_codec.go
// Package protocol implements the zero-terminated string wire format.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Every message exchanged with the emulator (handshake, query, response,
// notification) is a sequence of bytes terminated by a single NUL byte.

package protocol

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/momentics/emulink/api"
)

// Terminator ends every message on the wire.
const Terminator byte = 0

// HasTerminator reports whether msg already carries the trailing NUL.
func HasTerminator(msg string) bool {
	return len(msg) > 0 && msg[len(msg)-1] == Terminator
}

// Frame appends the terminator to a logical message.
func Frame(text string) string {
	return text + string(rune(Terminator))
}

// Unframe strips a single trailing terminator, if present.
func Unframe(msg string) string {
	return strings.TrimSuffix(msg, string(rune(Terminator)))
}

// ReadMessage reads one message from r a byte at a time and returns its
// logical content without the terminator. Reaching end of stream before the
// terminator yields an error wrapping api.ErrRemoteClosed.
func ReadMessage(r io.ByteReader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("read message: %w", api.ErrRemoteClosed)
			}
			return "", fmt.Errorf("read message: %w", err)
		}
		if b == Terminator {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

// ByteReader adapts an io.Reader to io.ByteReader without read-ahead, so no
// byte past the terminator is consumed from the underlying stream.
type ByteReader struct {
	R   io.Reader
	buf [1]byte
}

// ReadByte implements io.ByteReader.
func (br *ByteReader) ReadByte() (byte, error) {
	for {
		n, err := br.R.Read(br.buf[:])
		if n == 1 {
			return br.buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Accumulator assembles messages from bytes delivered in arbitrary chunks.
// It is the non-blocking counterpart of ReadMessage and is not safe for
// concurrent use.
type Accumulator struct {
	sb strings.Builder
}

// Feed consumes p byte by byte. For each terminator it hands the completed
// message to fn and starts a new one. Feeding stops at the first error fn
// returns; bytes after that point are discarded.
func (a *Accumulator) Feed(p []byte, fn func(msg string) error) error {
	for _, b := range p {
		if b != Terminator {
			a.sb.WriteByte(b)
			continue
		}
		msg := a.sb.String()
		a.sb.Reset()
		if err := fn(msg); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of bytes of the message in progress.
func (a *Accumulator) Pending() int {
	return a.sb.Len()
}
