// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness reactor interface.

package reactor

// EventType is a bit set of readiness conditions.
type EventType uint32

const (
	EventRead EventType = 1 << iota
	EventWrite
	// EventError reports a hang-up or socket error; it is delivered even
	// when not requested.
	EventError
)

// Has reports whether all bits of o are set in e.
func (e EventType) Has(o EventType) bool {
	return e&o == o
}

// Callback handles readiness for a registered descriptor. A non-nil error
// stops the current Poll call and is returned from it.
type Callback func(events EventType) error

// Reactor is a readiness registry owned by a single polling goroutine.
// Register, Modify, Unregister, Wake and Close are safe to call from any
// goroutine; Poll must only be called from the owner.
type Reactor interface {
	// Register starts watching fd for the given events.
	Register(fd int, events EventType, cb Callback) error
	// Modify replaces the interest set of a registered fd.
	Modify(fd int, events EventType) error
	// Unregister stops watching fd. Pending events for fd are dropped.
	Unregister(fd int) error
	// Poll blocks until at least one registration is ready, dispatches the
	// ready callbacks and returns how many were dispatched. It returns
	// api.ErrReactorClosed once Close has been called.
	Poll() (int, error)
	// Wake interrupts a blocked Poll, which then returns 0.
	Wake() error
	// Close releases the registry. A blocked Poll returns
	// api.ErrReactorClosed. Close is idempotent.
	Close() error
}
