//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/momentics/emulink/api"
	"golang.org/x/sys/unix"
)

const maxEvents = 64

// epollReactor implements Reactor using level-triggered epoll.
type epollReactor struct {
	epfd   int
	wakefd int // eventfd registered for EPOLLIN; written by Wake and Close
	events [maxEvents]unix.EpollEvent

	callbacks sync.Map // map[int]Callback

	mu       sync.Mutex
	polling  bool
	closed   bool
	released bool
}

// New creates an epoll-backed reactor.
func New() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		_ = unix.Close(wakefd)
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add eventfd: %w", err)
	}
	return &epollReactor{epfd: epfd, wakefd: wakefd}, nil
}

func toEpoll(events EventType) uint32 {
	var ev uint32
	if events&EventRead != 0 {
		ev |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func fromEpoll(ev uint32) EventType {
	var events EventType
	if ev&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
		events |= EventRead
	}
	if ev&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if ev&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		events |= EventError
	}
	return events
}

func (r *epollReactor) ctl(op, fd int, events EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrReactorClosed
	}
	var ev *unix.EpollEvent
	if op != unix.EPOLL_CTL_DEL {
		ev = &unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	}
	return unix.EpollCtl(r.epfd, op, fd, ev)
}

// Register adds fd to the epoll watch list.
func (r *epollReactor) Register(fd int, events EventType, cb Callback) error {
	r.callbacks.Store(fd, cb)
	if err := r.ctl(unix.EPOLL_CTL_ADD, fd, events); err != nil {
		r.callbacks.Delete(fd)
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Modify changes the interest set of fd.
func (r *epollReactor) Modify(fd int, events EventType) error {
	if err := r.ctl(unix.EPOLL_CTL_MOD, fd, events); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Unregister removes fd from the epoll watch list.
func (r *epollReactor) Unregister(fd int) error {
	r.callbacks.Delete(fd)
	if err := r.ctl(unix.EPOLL_CTL_DEL, fd, 0); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Poll waits for readiness and dispatches callbacks.
func (r *epollReactor) Poll() (int, error) {
	r.mu.Lock()
	if r.closed {
		r.releaseLocked()
		r.mu.Unlock()
		return 0, api.ErrReactorClosed
	}
	r.polling = true
	r.mu.Unlock()

	n, err := unix.EpollWait(r.epfd, r.events[:], -1)

	r.mu.Lock()
	r.polling = false
	if r.closed {
		r.releaseLocked()
		r.mu.Unlock()
		return 0, api.ErrReactorClosed
	}
	r.mu.Unlock()

	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := int(ev.Fd)
		if fd == r.wakefd {
			r.drainWake()
			continue
		}
		val, ok := r.callbacks.Load(fd)
		if !ok {
			continue
		}
		if err := invoke(val.(Callback), fromEpoll(ev.Events)); err != nil {
			return dispatched, err
		}
		dispatched++
	}
	return dispatched, nil
}

// invoke runs cb, turning a panic into an error so the owner can tear down.
func invoke(cb Callback, events EventType) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reactor callback panic: %v", p)
		}
	}()
	return cb(events)
}

func (r *epollReactor) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(r.wakefd, buf[:])
}

// Wake interrupts a blocked Poll.
func (r *epollReactor) Wake() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return api.ErrReactorClosed
	}
	return r.wakeLocked()
}

func (r *epollReactor) wakeLocked() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	if _, err := unix.Write(r.wakefd, buf[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Close marks the reactor closed. If a Poll is in progress it is woken and
// releases the descriptors itself; otherwise they are released here.
func (r *epollReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.polling {
		return r.wakeLocked()
	}
	return r.releaseLocked()
}

func (r *epollReactor) releaseLocked() error {
	if r.released {
		return nil
	}
	r.released = true
	r.callbacks.Range(func(k, _ any) bool {
		r.callbacks.Delete(k)
		return true
	})
	err := unix.Close(r.epfd)
	if cerr := unix.Close(r.wakefd); err == nil {
		err = cerr
	}
	return err
}
