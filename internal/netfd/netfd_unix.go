//go:build unix
// +build unix

// File: internal/netfd/netfd_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netfd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Listen opens a non-blocking TCP listening socket bound to host:port.
// Port 0 selects an ephemeral port; the bound address is returned.
func Listen(host string, port int) (int, *net.TCPAddr, error) {
	ips, err := net.DefaultResolver.LookupIP(context.Background(), "ip", host)
	if err != nil {
		return -1, nil, fmt.Errorf("resolve %q: %w", host, err)
	}
	if len(ips) == 0 {
		return -1, nil, fmt.Errorf("resolve %q: no addresses", host)
	}
	ip := ips[0]

	var (
		family int
		sa     unix.Sockaddr
	)
	if ip4 := ip.To4(); ip4 != nil {
		family = unix.AF_INET
		addr := &unix.SockaddrInet4{Port: port}
		copy(addr.Addr[:], ip4)
		sa = addr
	} else {
		family = unix.AF_INET6
		addr := &unix.SockaddrInet6{Port: port}
		copy(addr.Addr[:], ip.To16())
		sa = addr
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, nil, fmt.Errorf("socket create: %w", err)
	}
	unix.CloseOnExec(fd)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("bind %s:%d: %w", host, port, err)
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("set nonblock: %w", err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return -1, nil, fmt.Errorf("getsockname: %w", err)
	}
	return fd, toTCPAddr(bound), nil
}

func toTCPAddr(sa unix.Sockaddr) *net.TCPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]).To16(), Port: a.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: net.IP(a.Addr[:]), Port: a.Port}
	default:
		return &net.TCPAddr{}
	}
}

// Accept takes one pending connection off a non-blocking listening socket.
// The returned descriptor is in blocking mode. ErrWouldBlock means the
// backlog is empty.
func Accept(lfd int) (int, error) {
	for {
		nfd, _, err := unix.Accept(lfd)
		switch {
		case err == nil:
			unix.CloseOnExec(nfd)
			// BSD-derived kernels let the accepted socket inherit O_NONBLOCK.
			if err := unix.SetNonblock(nfd, false); err != nil {
				_ = unix.Close(nfd)
				return -1, fmt.Errorf("set blocking: %w", err)
			}
			return nfd, nil
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
			continue
		case errors.Is(err, unix.EAGAIN):
			return -1, ErrWouldBlock
		default:
			return -1, fmt.Errorf("accept: %w", err)
		}
	}
}

// SetNonblock toggles O_NONBLOCK on fd.
func SetNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

// Read reads from fd. An orderly shutdown by the peer yields io.EOF and an
// empty non-blocking socket yields ErrWouldBlock.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		switch {
		case err == nil && n == 0 && len(p) > 0:
			return 0, io.EOF
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Write writes as much of p as fd accepts. A full non-blocking send buffer
// yields ErrWouldBlock with n == 0.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		default:
			return 0, err
		}
	}
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

// Shutdown disables both directions of fd. A read blocked on fd in another
// goroutine returns io.EOF; the descriptor itself stays open.
func Shutdown(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_RDWR)
}

// FileConn converts a connected socket into a net.Conn. Ownership of fd
// passes to the returned connection.
func FileConn(fd int, name string) (net.Conn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("file conn: %w", err)
	}
	return conn, nil
}

// Conn exposes a blocking descriptor as an io.ReadWriter for the handshake.
type Conn int

func (c Conn) Read(p []byte) (int, error) {
	return Read(int(c), p)
}

func (c Conn) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := Write(int(c), p[written:])
		if err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}
