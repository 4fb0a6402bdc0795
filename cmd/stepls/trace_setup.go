package main

import (
	"fmt"
	"os"

	"stepls/internal/config"
	"stepls/internal/trace"
)

// setupTracing creates the tracer described by settings. The returned
// cleanup dumps a ring buffer to stderr and closes the tracer.
func setupTracing(settings config.Settings) (trace.Tracer, func(), error) {
	cfg, err := settings.TraceConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trace settings: %w", err)
	}
	if cfg.Level == trace.LevelOff {
		return trace.Nop, func() {}, nil
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cleanup := func() {
		if ring := ringOf(tracer); ring != nil {
			if err := ring.Dump(os.Stderr, cfg.Format); err != nil {
				fmt.Fprintf(os.Stderr, "stepls: trace dump failed: %v\n", err)
			}
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "stepls: trace close failed: %v\n", err)
		}
	}
	return tracer, cleanup, nil
}

func ringOf(t trace.Tracer) *trace.RingTracer {
	switch v := t.(type) {
	case *trace.RingTracer:
		return v
	case *trace.MultiTracer:
		return v.Ring()
	}
	return nil
}
