package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"xeblock/internal/config"
	"xeblock/internal/driver"
	"xeblock/internal/trace"
)

// setupTracing initializes the tracer described by cfg and attaches it to the
// command context. The returned cleanup stops the heartbeat and flushes.
func setupTracing(cmd *cobra.Command, cfg config.Config) (func(), error) {
	tcfg, err := cfg.TracerConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid trace settings: %w", err)
	}
	if tcfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}

	tracer, err := trace.New(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	ctx := trace.WithTracer(cmd.Context(), tracer)
	cmd.SetContext(ctx)

	var heartbeat *trace.Heartbeat
	if tcfg.Heartbeat > 0 {
		heartbeat = trace.StartHeartbeat(tracer, tcfg.Heartbeat)
	}

	return func() {
		if heartbeat != nil {
			heartbeat.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

// dumpFailedTraces writes the ring history of every failed unit.
func dumpFailedTraces(cmd *cobra.Command, results []driver.UnitResult) {
	ring, ok := trace.Ring(trace.FromContext(cmd.Context()))
	if !ok {
		return
	}
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "trace of %s:\n", r.Name)
		if err := ring.DumpUnit(cmd.ErrOrStderr(), trace.FormatText, r.Name); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			return
		}
	}
}
