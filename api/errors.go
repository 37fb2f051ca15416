// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the emulink transport layers.

package api

import "errors"

// Common errors used across the library.
var (
	ErrTransportClosed = errors.New("transport is closed")
	ErrRemoteClosed    = errors.New("remote end closed the channel")
	ErrNotConnected    = errors.New("emulator is not connected")
	ErrUnknownRole     = errors.New("unknown channel role")
	ErrDuplicateRole   = errors.New("channel role is already bound")
	ErrNotSupported    = errors.New("operation not supported on this platform")
	ErrReactorClosed   = errors.New("reactor is closed")
)
