// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fake

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/protocol"
)

// ReadTimeout bounds every Peer read.
const ReadTimeout = 5 * time.Second

// Peer plays the emulator side of one channel.
type Peer struct {
	conn net.Conn
	r    *bufio.Reader
}

// DialRaw connects to addr without performing the handshake.
func DialRaw(addr string) (*Peer, error) {
	conn, err := net.DialTimeout("tcp", addr, ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Peer{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Dial connects to addr and declares role. It fails unless the transport
// answers "ok".
func Dial(addr string, role api.Role) (*Peer, error) {
	p, err := DialRaw(addr)
	if err != nil {
		return nil, err
	}
	reply, err := p.Handshake(role.String())
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	if reply != "ok" {
		_ = p.Close()
		return nil, fmt.Errorf("handshake %s: got %q", role, reply)
	}
	return p, nil
}

// Handshake declares an arbitrary role string and returns the reply.
func (p *Peer) Handshake(role string) (string, error) {
	if err := p.Send(protocol.Frame(role)); err != nil {
		return "", err
	}
	return p.Read()
}

// Send writes msg verbatim.
func (p *Peer) Send(msg string) error {
	_, err := io.WriteString(p.conn, msg)
	return err
}

// Query sends a framed query and returns the reply without its terminator.
func (p *Peer) Query(q string) (string, error) {
	if err := p.Send(protocol.Frame(q)); err != nil {
		return "", err
	}
	return p.Read()
}

// Read returns the next message without its terminator.
func (p *Peer) Read() (string, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	return protocol.ReadMessage(p.r)
}

// Close closes the connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}
