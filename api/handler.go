// File: api/handler.go
// Package api defines the Listener contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Listener receives connection status changes and answers emulator queries.
//
// OnConnected and OnDisconnected may be invoked from the transport's I/O
// goroutine; communication with the emulator is on hold until they return.
// OnQuery must return a zero-terminated reply formatted as "ok|ko[:data]".
type Listener interface {
	OnConnected()
	OnDisconnected()
	OnQuery(name, params string) string
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// fields are ignored; a nil OnQueryFunc replies with an empty string.
type ListenerFuncs struct {
	OnConnectedFunc    func()
	OnDisconnectedFunc func()
	OnQueryFunc        func(name, params string) string
}

func (l ListenerFuncs) OnConnected() {
	if l.OnConnectedFunc != nil {
		l.OnConnectedFunc()
	}
}

func (l ListenerFuncs) OnDisconnected() {
	if l.OnDisconnectedFunc != nil {
		l.OnDisconnectedFunc()
	}
}

func (l ListenerFuncs) OnQuery(name, params string) string {
	if l.OnQueryFunc == nil {
		return ""
	}
	return l.OnQueryFunc(name, params)
}

var _ Listener = ListenerFuncs{}
