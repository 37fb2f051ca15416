//go:build linux
// +build linux

// Package benchmarks
// Author: momentics <momentics@gmail.com>
//
// Performance benchmarks for emulink components.

package benchmarks

import (
	"strings"
	"testing"

	"github.com/momentics/emulink/api"
	"github.com/momentics/emulink/fake"
	"github.com/momentics/emulink/internal/logging"
	"github.com/momentics/emulink/protocol"
	"github.com/momentics/emulink/transport"
)

// BenchmarkAccumulatorFeed measures framing of a stream of short queries.
func BenchmarkAccumulatorFeed(b *testing.B) {
	chunk := []byte(strings.Repeat("getVersion:param\x00", 32))
	var acc protocol.Accumulator
	noop := func(string) error { return nil }

	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := acc.Feed(chunk, noop); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQueryRoundTrip measures one query/reply over loopback for each
// channel strategy.
func BenchmarkQueryRoundTrip(b *testing.B) {
	for _, s := range []api.Strategy{api.StrategyAsync, api.StrategySync} {
		b.Run(s.String(), func(b *testing.B) {
			l := fake.NewListener(func(string, string) string { return "ok:1.0\x00" })
			tr, err := transport.New(transport.Config{Strategy: s, Logger: logging.Discard()}, l)
			if err != nil {
				b.Fatal(err)
			}
			defer func() {
				_ = tr.Close()
				<-tr.Done()
			}()

			peer, err := fake.Dial(tr.Addr().String(), api.RoleQuery)
			if err != nil {
				b.Fatal(err)
			}
			defer peer.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := peer.Query("getVersion"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkNotificationBurst measures queued notifications on a connected
// transport.
func BenchmarkNotificationBurst(b *testing.B) {
	l := fake.NewListener(nil)
	tr, err := transport.New(transport.Config{Logger: logging.Discard()}, l)
	if err != nil {
		b.Fatal(err)
	}
	defer func() {
		_ = tr.Close()
		<-tr.Done()
	}()
	query, err := fake.Dial(tr.Addr().String(), api.RoleQuery)
	if err != nil {
		b.Fatal(err)
	}
	defer query.Close()
	event, err := fake.Dial(tr.Addr().String(), api.RoleEvent)
	if err != nil {
		b.Fatal(err)
	}
	defer event.Close()
	if !l.WaitConnected(1, fake.ReadTimeout) {
		b.Fatal("not connected")
	}

	done := make(chan error, 1)
	go func() {
		for i := 0; i < b.N; i++ {
			if _, err := event.Read(); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tr.SendNotification("tick\x00"); err != nil {
			b.Fatal(err)
		}
	}
	if err := <-done; err != nil {
		b.Fatal(err)
	}
}
