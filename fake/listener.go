// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake collaborators for testing and development: a recording listener and
// a scripted emulator peer.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/emulink/api"
)

// Query is one recorded OnQuery call.
type Query struct {
	Name   string
	Params string
}

// Listener is a recording implementation of api.Listener.
type Listener struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	queries      []Query
	statuses     []bool
	reply        func(name, params string) string
}

// NewListener creates a listener answering queries with reply. A nil reply
// answers every query with "ok\x00".
func NewListener(reply func(name, params string) string) *Listener {
	return &Listener{reply: reply}
}

// OnConnected implements api.Listener.
func (l *Listener) OnConnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected++
	l.statuses = append(l.statuses, true)
}

// OnDisconnected implements api.Listener.
func (l *Listener) OnDisconnected() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnected++
	l.statuses = append(l.statuses, false)
}

// OnQuery implements api.Listener.
func (l *Listener) OnQuery(name, params string) string {
	l.mu.Lock()
	l.queries = append(l.queries, Query{Name: name, Params: params})
	reply := l.reply
	l.mu.Unlock()
	if reply == nil {
		return "ok\x00"
	}
	return reply(name, params)
}

// Connected returns how many times OnConnected was called.
func (l *Listener) Connected() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Disconnected returns how many times OnDisconnected was called.
func (l *Listener) Disconnected() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnected
}

// Queries returns a copy of the recorded queries.
func (l *Listener) Queries() []Query {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Query(nil), l.queries...)
}

// Statuses returns the delivered status sequence, true for connected.
func (l *Listener) Statuses() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.statuses...)
}

// WaitConnected polls until OnConnected was called n times or timeout
// expires.
func (l *Listener) WaitConnected(n int, timeout time.Duration) bool {
	return waitFor(func() bool { return l.Connected() >= n }, timeout)
}

// WaitDisconnected polls until OnDisconnected was called n times or timeout
// expires.
func (l *Listener) WaitDisconnected(n int, timeout time.Duration) bool {
	return waitFor(func() bool { return l.Disconnected() >= n }, timeout)
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var _ api.Listener = (*Listener)(nil)
