// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, settings and debug introspection for emulink.
//
// Provides:
//   - Prometheus metrics for channel traffic, handshakes and lifecycle
//   - Settings loaded from defaults, environment and config file via viper
//   - Debug probes exported as a JSON snapshot
//   - An HTTP mux serving /metrics, /health and /debug/state
package control
