// Package netfd wraps raw socket descriptors used by the readiness loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The readiness loop needs plain descriptors it can hand to epoll, so the
// listening socket and the accepted channel sockets are managed here rather
// than through the net package. Sockets that end up driven by goroutines
// are converted to net.Conn with FileConn.

package netfd

import "errors"

// ErrWouldBlock is returned by Read, Write and Accept on a non-blocking
// descriptor that has nothing to offer right now.
var ErrWouldBlock = errors.New("netfd: operation would block")

const listenBacklog = 8
