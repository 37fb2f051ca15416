// File: transport/looper.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"errors"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/internal/netfd"
)

// run is the I/O goroutine. It owns the listening socket and the reactor's
// Poll; its exit always means the transport is lost.
func (t *Transport) run() {
	defer close(t.done)

	err := t.loop()
	if errors.Is(err, api.ErrReactorClosed) {
		// Closed by a teardown running elsewhere.
		err = nil
	}
	t.reportFailure(err)
	<-t.tornDown

	if cerr := netfd.Close(t.lfd); cerr != nil {
		t.log.Debug("listener close", "err", cerr)
	}
	t.log.Debug("I/O loop exited")
}

func (t *Transport) loop() error {
	for {
		if _, err := t.reactor.Poll(); err != nil {
			return err
		}
	}
}
