//go:build !headless

package main

import (
	"time"

	"github.com/mesmerglass/engine/internal/compositor"
	"github.com/mesmerglass/engine/internal/director"
	"github.com/mesmerglass/engine/internal/runner"
	"github.com/mesmerglass/engine/internal/telemetry"
)

// newSurfaceRenderer builds the on-screen GPU renderer for this build.
func newSurfaceRenderer() (compositor.Renderer, error) {
	return compositor.NewEbitenRenderer()
}

// runLoop drives director/runner ticks from Ebiten's own game loop
// (required on darwin/windows, where Ebiten must own the main thread).
func runLoop(r compositor.Renderer, d *director.Director, run *runner.Runner, tel *telemetry.Telemetry, width, height int, targetFPS float64) error {
	interval := time.Duration(float64(time.Second) / targetFPS)
	eb, ok := r.(*compositor.EbitenRenderer)
	if !ok {
		return headlessTickLoop(d, run, tel, width, height, interval)
	}
	win := compositor.NewWindow(eb, width, height, func() {
		tickOnce(d, run, tel, width, height, interval)
	}, func() bool { return run.State() == runner.StateStopped })
	return win.Run("mesmerglassd")
}
