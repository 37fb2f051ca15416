package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/emulink/control"
	"github.com/momentics/emulink/internal/logging"
	"github.com/momentics/emulink/transport"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	v := viper.New()
	var once bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept emulator channels and answer queries",
		Long: `Listen for the emulator's query and event channels.

A transport serves exactly one connection. After the emulator disconnects a
fresh transport is started on the same port, unless --once is given.

Examples:
  emulink serve                          # sensors port 1968
  emulink serve --port 1969              # multitouch port
  emulink serve --strategy sync          # goroutine per channel
  emulink serve --tick 1s                # send a tick notification every second
  emulink serve --metrics-addr :9090     # expose /metrics and /debug/state`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			s, err := control.LoadSettings(v, configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := logging.Output(s.LogFile)
			defer func() { _ = out.Close() }()
			logger := logging.Setup(s.LogLevel, s.LogFormat, out)

			metrics := control.NewMetrics()
			probes := control.NewDebugProbes()
			if s.MetricsAddr != "" {
				srv := control.Serve(s.MetricsAddr, metrics, probes)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			h := newHost(version, s.Tick, logger)
			cfg := transport.Config{
				Host:     s.Host,
				Port:     s.Port,
				Strategy: s.ChannelStrategy(),
				Logger:   logger,
				Metrics:  metrics,
				Probes:   probes,
			}
			return serve(ctx, cfg, h, once)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "config file path")
	f.String("host", "", "bind address (default 127.0.0.1)")
	f.Int("port", 0, "listening port (default 1968)")
	f.String("strategy", "", "channel strategy (async, sync)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")
	f.String("log-file", "", "rotated log file (default stderr)")
	f.String("metrics-addr", "", "metrics HTTP listen address")
	f.Duration("tick", 0, "interval of tick notifications, 0 disables")
	f.BoolVar(&once, "once", false, "exit after the first disconnect")

	_ = v.BindPFlag("host", f.Lookup("host"))
	_ = v.BindPFlag("port", f.Lookup("port"))
	_ = v.BindPFlag("strategy", f.Lookup("strategy"))
	_ = v.BindPFlag("log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("log_file", f.Lookup("log-file"))
	_ = v.BindPFlag("metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("tick", f.Lookup("tick"))

	return cmd
}

// serve runs transports back to back until ctx is cancelled or, with once,
// until the first one is torn down.
func serve(ctx context.Context, cfg transport.Config, h *host, once bool) error {
	for {
		tr, err := transport.New(cfg, h)
		if err != nil {
			return err
		}
		h.attach(tr)

		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			_ = tr.Close()
			<-tr.Done()
			return nil
		case <-tr.Done():
		}
		if once {
			return nil
		}
		slog.Info("transport finished, listening again", "port", tr.Addr().Port)
	}
}
