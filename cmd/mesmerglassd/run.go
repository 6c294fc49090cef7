package main

import (
	"time"

	"github.com/mesmerglass/engine/internal/director"
	"github.com/mesmerglass/engine/internal/runner"
	"github.com/mesmerglass/engine/internal/telemetry"
)

// tickOnce drives one runner.Tick + director.Update pair and records
// the full tick duration against the frame budget.
func tickOnce(d *director.Director, run *runner.Runner, tel *telemetry.Telemetry, width, height int, interval time.Duration) {
	start := time.Now()
	run.Tick(interval)
	d.Update(interval.Seconds(), width, height)
	if tel != nil {
		tel.ObserveRenderTick(time.Since(start))
	}
}

// headlessTickLoop drives ticks off a plain time.Ticker until the
// runner stops. Shared by both build-tag variants of runLoop, since
// the headless path has no GPU event loop of its own to piggyback on.
func headlessTickLoop(d *director.Director, run *runner.Runner, tel *telemetry.Telemetry, width, height int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if run.State() == runner.StateStopped {
			return nil
		}
		tickOnce(d, run, tel, width, height, interval)
	}
	return nil
}
