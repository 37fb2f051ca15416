// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer: a registry of file
// descriptors with per-descriptor callbacks, driven by a single goroutine
// calling Poll. The Linux implementation is built on epoll(7) with an
// eventfd used to wake the poller from other goroutines.
package reactor
