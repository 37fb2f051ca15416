//go:build unix
// +build unix

package netfd

import (
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
)

func TestListenAcceptReadWrite(t *testing.T) {
	lfd, addr, err := Listen("127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer Close(lfd)
	if addr.Port == 0 {
		t.Fatal("expected an ephemeral port")
	}

	if _, err := Accept(lfd); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock on empty backlog, got %v", err)
	}

	client, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port)))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var fd int
	for {
		fd, err = Accept(lfd)
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		break
	}

	if _, err := client.Write([]byte("event\x00")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 6)
	if _, err := io.ReadFull(Conn(fd), buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "event\x00" {
		t.Fatalf("got %q", buf)
	}

	if err := SetNonblock(fd, true); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(fd, buf); !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("expected ErrWouldBlock, got %v", err)
	}

	client.Close()
	for {
		_, err = Read(fd, buf)
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		break
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after peer close, got %v", err)
	}
	_ = Close(fd)
}

func TestFileConn(t *testing.T) {
	lfd, addr, err := Listen("127.0.0.1", 0)
	if err != nil {
		t.Fatal(err)
	}
	defer Close(lfd)

	client, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var fd int
	for {
		fd, err = Accept(lfd)
		if !errors.Is(err, ErrWouldBlock) {
			break
		}
	}
	if err != nil {
		t.Fatal(err)
	}
	conn, err := FileConn(fd, "query")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("ok\x00")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 3)
	if _, err := io.ReadFull(client, buf); err != nil || string(buf) != "ok\x00" {
		t.Fatalf("got %q, %v", buf, err)
	}
}
