// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and constants.

package api

import (
	"fmt"
	"strings"
)

// Well-known TCP ports the emulator forwards to the device.
const (
	SensorsPort    = 1968
	MultitouchPort = 1969
)

// Role is the fixed purpose of a channel, declared by the peer during the
// handshake.
type Role int

const (
	RoleQuery Role = iota
	RoleEvent
)

func (r Role) String() string {
	switch r {
	case RoleQuery:
		return "query"
	case RoleEvent:
		return "event"
	default:
		return "unknown"
	}
}

// State enumerates the lifecycle of a transport instance.
type State int32

const (
	StateAwaitingChannels State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateAwaitingChannels:
		return "awaiting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Strategy selects how channel sockets are driven once the handshake is done.
type Strategy int

const (
	// StrategyAsync drives both channels from the shared readiness loop.
	StrategyAsync Strategy = iota
	// StrategySync gives each channel its own blocking reader goroutine.
	StrategySync
)

func (s Strategy) String() string {
	switch s {
	case StrategyAsync:
		return "async"
	case StrategySync:
		return "sync"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a textual strategy name ("async", "sync") to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "async", "nonblocking":
		return StrategyAsync, nil
	case "sync", "blocking":
		return StrategySync, nil
	default:
		return 0, fmt.Errorf("unknown channel strategy %q", s)
	}
}
