package director

import (
	"context"
	"testing"

	"github.com/mesmerglass/engine/internal/compositor"
	"github.com/mesmerglass/engine/internal/events"
	"github.com/mesmerglass/engine/internal/media"
	"github.com/mesmerglass/engine/internal/session"
)

// fakeRenderer is a minimal compositor.Renderer that records what it
// was asked to draw, used to exercise the Director without a real GPU
// surface (mirrors game_headless.go's discard renderer).
type fakeRenderer struct {
	uploads int
}

func (r *fakeRenderer) Begin(int, int)                              {}
func (r *fakeRenderer) UploadBackground(compositor.BackgroundFrame) { r.uploads++ }
func (r *fakeRenderer) DrawBackground(compositor.ZoomUniforms)      {}
func (r *fakeRenderer) DrawSpiral(compositor.SpiralUniforms)        {}
func (r *fakeRenderer) DrawText(compositor.TextLayer)               {}
func (r *fakeRenderer) Present()                                    {}

func TestFramesPerCycleCalibration(t *testing.T) {
	cases := []struct {
		speed int
		want  int
	}{
		{1, 600},
		{50, 81},
		{100, 11},
	}
	for _, c := range cases {
		got := FramesPerCycle(c.speed)
		// Expected values are round(600 * 0.96^(speed-1)); allow a small
		// slack around them.
		if diff := got - c.want; diff < -2 || diff > 2 {
			t.Fatalf("FramesPerCycle(%d) = %d, want ~%d", c.speed, got, c.want)
		}
	}
}

func TestFramesPerCycleNeverBelowOne(t *testing.T) {
	if got := FramesPerCycle(100); got < 1 {
		t.Fatalf("FramesPerCycle(100) = %d, want >= 1", got)
	}
}

func noopPlayback() session.Playback {
	return session.Playback{
		Key: "pb",
		Spiral: session.SpiralConfig{
			Type: session.SpiralType1, Opacity: 1, RotationSpeedRPM: 20,
		},
		Media: session.MediaConfig{Mode: session.MediaModeNone},
	}
}

// TestCycleBoundaryAcrossPlaybackSwitch: after a switch away from a
// visual whose cycle marker was 5, the new visual's marker is compared
// against that preserved value; a marker of 0 (nothing has wrapped yet)
// must not count as a boundary crossing.
func TestCycleBoundaryAcrossPlaybackSwitch(t *testing.T) {
	comp := compositor.New(nil, nil)
	renderer := &fakeRenderer{}
	comp.AttachSurface("main", renderer)

	cache := media.NewCache(nil, 1, nil)
	dispatch := events.New()
	d := New(nil, comp, cache, dispatch, 60, 4)

	d.LoadPlayback(noopPlayback())
	// Simulate the prior visual having reached marker 5 before the switch.
	d.visual.Boundary.Reset(5)

	boundaryFired := false
	d.RegisterCycleBoundary(func() { boundaryFired = true })

	if err := d.StartPlayback(context.Background()); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	// wrapCount is 0 immediately after load (no media), so the first
	// Update observes marker 0 vs the preserved last=5: 0 < 5 and
	// 0 is NOT > 0, so this tick must NOT fire a boundary yet.
	d.Update(1.0/60, 640, 480)
	if boundaryFired {
		t.Fatal("marker 0 after a switch from 5 must not itself be a boundary (current > 0 fails)")
	}
}

func TestReloadFromDiskClearsCyclerForLazyRebuild(t *testing.T) {
	comp := compositor.New(nil, nil)
	comp.AttachSurface("main", &fakeRenderer{})
	cache := media.NewCache(nil, 1, nil)
	d := New(nil, comp, cache, events.New(), 60, 4)

	pb := noopPlayback()
	pb.Media = session.MediaConfig{Mode: session.MediaModeImages, CycleSpeed: 50, Paths: []session.MediaPath{{AbsolutePath: "/tmp/a.png"}}}
	d.LoadPlayback(pb)

	pb.Media.CycleSpeed = 10
	d.ReloadFromDisk(pb)

	c := d.GetCycler()
	if c == nil {
		t.Fatal("GetCycler must lazily rebuild after ReloadFromDisk invalidated the cache")
	}
	if c.Length() != 0 {
		t.Fatalf("media cycler is an unbounded Action, Length() should be 0, got %d", c.Length())
	}
}

func TestManualTextCyclingAdvancesLibrary(t *testing.T) {
	comp := compositor.New(nil, nil)
	comp.AttachSurface("main", &fakeRenderer{})
	cache := media.NewCache(nil, 1, nil)
	d := New(nil, comp, cache, events.New(), 60, 4)

	pb := noopPlayback()
	pb.Text = session.TextConfig{
		Enabled: true, Mode: session.TextModeStatic,
		Library: []string{"one", "two", "three"},
		Opacity: 1, ManualCycleSpeed: 100,
	}
	d.LoadPlayback(pb)
	if err := d.StartPlayback(context.Background()); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}

	period := FramesPerCycle(100)
	// The text Action's offset equals its period, so it first fires on
	// frame `period`: period+1 Updates advance the library once.
	for i := 0; i < period+1; i++ {
		d.Update(1.0/60, 640, 480)
	}
	if d.visual.Text.Content == "one" {
		t.Fatalf("text overlay never advanced past the first library entry")
	}
	if !d.visual.Text.Enabled {
		t.Fatal("text layer should be enabled")
	}
}

func TestZoomPulseProgressStaysBounded(t *testing.T) {
	comp := compositor.New(nil, nil)
	comp.AttachSurface("main", &fakeRenderer{})
	cache := media.NewCache(nil, 1, nil)
	d := New(nil, comp, cache, events.New(), 60, 4)

	pb := noopPlayback()
	pb.Zoom = session.ZoomConfig{Mode: session.ZoomModePulse, Rate: 2}
	d.LoadPlayback(pb)
	if err := d.StartPlayback(context.Background()); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}

	var moved bool
	for i := 0; i < 600; i++ {
		d.Update(1.0/60, 640, 480)
		p := d.visual.Zoom.Progress
		if p < 0 || p > 1 {
			t.Fatalf("zoom progress %v out of [0,1] at tick %d", p, i)
		}
		if p > 0 {
			moved = true
		}
	}
	if !moved {
		t.Fatal("pulse zoom never moved progress off zero")
	}
	if d.visual.Zoom.CurrentZoom() < 1 {
		t.Fatalf("pulse zoom dipped below origin scale: %v", d.visual.Zoom.CurrentZoom())
	}
}

func TestReverseSpiralAccumulatesNegativePhase(t *testing.T) {
	comp := compositor.New(nil, nil)
	comp.AttachSurface("main", &fakeRenderer{})
	cache := media.NewCache(nil, 1, nil)
	d := New(nil, comp, cache, events.New(), 60, 4)

	pb := noopPlayback()
	pb.Spiral.Reverse = true
	d.LoadPlayback(pb)
	if err := d.StartPlayback(context.Background()); err != nil {
		t.Fatalf("StartPlayback: %v", err)
	}
	for i := 0; i < 120; i++ {
		d.Update(1.0/60, 640, 480)
	}
	if d.visual.Phase.Time() >= 0 {
		t.Fatalf("reverse spiral should accumulate negative phase, got %v", d.visual.Phase.Time())
	}
}
