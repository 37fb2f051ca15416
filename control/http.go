// control/http.go
// Author: momentics <momentics@gmail.com>
//
// HTTP surface for metrics, liveness and debug probes.

package control

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux routes /metrics, /health and /debug/state. Either argument may be
// nil, in which case its route is not registered.
func NewMux(m *Metrics, probes *DebugProbes) *http.ServeMux {
	mux := http.NewServeMux()
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}
	if probes != nil {
		mux.Handle("/debug/state", probes)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve starts an HTTP server for NewMux on addr in the background. The
// caller shuts it down.
func Serve(addr string, m *Metrics, probes *DebugProbes) *http.Server {
	srv := &http.Server{Addr: addr, Handler: NewMux(m, probes)}
	go func() {
		slog.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return srv
}
