//go:build headless

package main

import (
	"time"

	"github.com/mesmerglass/engine/internal/compositor"
	"github.com/mesmerglass/engine/internal/director"
	"github.com/mesmerglass/engine/internal/runner"
	"github.com/mesmerglass/engine/internal/telemetry"
)

// newSurfaceRenderer builds the discard renderer for headless builds
// (CI, servers with no GPU), matching audio_backend_headless.go's
// stub-everything approach on the video side.
func newSurfaceRenderer() (compositor.Renderer, error) {
	return compositor.NewHeadlessRenderer()
}

// runLoop drives director/runner ticks off a plain time.Ticker since
// there is no GPU event loop to piggyback on.
func runLoop(r compositor.Renderer, d *director.Director, run *runner.Runner, tel *telemetry.Telemetry, width, height int, targetFPS float64) error {
	interval := time.Duration(float64(time.Second) / targetFPS)
	return headlessTickLoop(d, run, tel, width, height, interval)
}
