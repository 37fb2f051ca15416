//go:build !unix
// +build !unix

// File: internal/netfd/netfd_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without POSIX sockets.

package netfd

import (
	"net"

	"github.com/momentics/emulink/api"
)

func Listen(string, int) (int, *net.TCPAddr, error) { return -1, nil, api.ErrNotSupported }
func Accept(int) (int, error)                       { return -1, api.ErrNotSupported }
func SetNonblock(int, bool) error                   { return api.ErrNotSupported }
func Read(int, []byte) (int, error)                 { return 0, api.ErrNotSupported }
func Write(int, []byte) (int, error)                { return 0, api.ErrNotSupported }
func Close(int) error                               { return api.ErrNotSupported }
func Shutdown(int) error                            { return api.ErrNotSupported }
func FileConn(int, string) (net.Conn, error)        { return nil, api.ErrNotSupported }

// Conn exposes a blocking descriptor as an io.ReadWriter for the handshake.
type Conn int

func (Conn) Read([]byte) (int, error)  { return 0, api.ErrNotSupported }
func (Conn) Write([]byte) (int, error) { return 0, api.ErrNotSupported }
