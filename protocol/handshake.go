// File: protocol/handshake.go
// Package protocol implements the channel role handshake.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A freshly accepted socket declares its role with a single message,
// "query" or "event". The acceptor answers "ok" when the role is bound,
// "ko:Duplicate," when that role already has a channel, and nothing at all
// for an unknown role.

package protocol

import (
	"fmt"
	"io"

	"github.com/momentics/emulink/api"
)

// Handshake literals.
const (
	RoleQueryName = "query"
	RoleEventName = "event"

	ReplyHandshakeOK        = "ok\x00"
	ReplyHandshakeDuplicate = "ko:Duplicate,\x00"
)

// ParseRole maps a handshake message to a channel role.
func ParseRole(msg string) (api.Role, error) {
	switch msg {
	case RoleQueryName:
		return api.RoleQuery, nil
	case RoleEventName:
		return api.RoleEvent, nil
	default:
		return 0, fmt.Errorf("%w: %q", api.ErrUnknownRole, msg)
	}
}

// ReadHandshake performs the blocking handshake read on r and returns the
// declared role string along with its parsed role.
func ReadHandshake(r io.Reader) (string, api.Role, error) {
	msg, err := ReadMessage(&ByteReader{R: r})
	if err != nil {
		return "", 0, fmt.Errorf("handshake: %w", err)
	}
	role, err := ParseRole(msg)
	return msg, role, err
}

// WriteHandshakeReply writes reply in full to w.
func WriteHandshakeReply(w io.Writer, reply string) error {
	if _, err := io.WriteString(w, reply); err != nil {
		return fmt.Errorf("handshake reply: %w", err)
	}
	return nil
}

// WriteHandshakeRequest is the peer side of the exchange: it declares role
// on w and reads the acceptor's reply from r. It returns the logical reply
// ("ok" or "ko:Duplicate,").
func WriteHandshakeRequest(rw io.ReadWriter, role api.Role) (string, error) {
	if _, err := io.WriteString(rw, Frame(role.String())); err != nil {
		return "", fmt.Errorf("handshake request: %w", err)
	}
	reply, err := ReadMessage(&ByteReader{R: rw})
	if err != nil {
		return "", fmt.Errorf("handshake response: %w", err)
	}
	return reply, nil
}
