package runner

import (
	"context"
	"testing"
	"time"

	"github.com/mesmerglass/engine/internal/audio"
	"github.com/mesmerglass/engine/internal/compositor"
	"github.com/mesmerglass/engine/internal/config"
	"github.com/mesmerglass/engine/internal/director"
	"github.com/mesmerglass/engine/internal/events"
	"github.com/mesmerglass/engine/internal/media"
	"github.com/mesmerglass/engine/internal/session"
	"github.com/mesmerglass/engine/internal/telemetry"
)

// fakeRenderer discards every draw call, mirroring game_headless.go's
// stub so runner tests never touch a real GPU surface.
type fakeRenderer struct{}

func (fakeRenderer) Begin(int, int)                              {}
func (fakeRenderer) UploadBackground(compositor.BackgroundFrame) {}
func (fakeRenderer) DrawBackground(compositor.ZoomUniforms)      {}
func (fakeRenderer) DrawSpiral(compositor.SpiralUniforms)        {}
func (fakeRenderer) DrawText(compositor.TextLayer)               {}
func (fakeRenderer) Present()                                    {}

// instantDecoder resolves every audio request immediately with a
// one-sample buffer, so prefetch waits never block test runs.
type instantDecoder struct{}

func (instantDecoder) DecodeHeader(ctx context.Context, path string) (time.Duration, error) {
	return time.Second, nil
}
func (instantDecoder) DecodeFull(ctx context.Context, path string) (*audio.PCM, error) {
	return &audio.PCM{Samples: []float32{0}, SampleRate: 48000}, nil
}
func (instantDecoder) OpenStream(ctx context.Context, path string) (audio.StreamReader, error) {
	return nil, nil
}

func newTestRunner(t *testing.T, sess *session.Session, cuelistKey string, cfg config.Config) *Runner {
	t.Helper()
	comp := compositor.New(nil, nil)
	comp.AttachSurface("main", fakeRenderer{})
	cache := media.NewCache(nil, 1, nil)
	dispatch := events.New()
	d := director.New(nil, comp, cache, dispatch, 60, 4)
	eng := audio.NewEngine(48000, instantDecoder{}, nil)
	tel := telemetry.New()

	r := New(nil, dispatch, tel, d, eng, cfg)
	if err := r.Load(sess, cuelistKey); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return r
}

func twoCueSession(loopMode session.LoopMode) *session.Session {
	return &session.Session{
		Version: "1.0",
		Playbacks: map[string]session.Playback{
			"pb1": {Key: "pb1", Spiral: session.SpiralConfig{Type: session.SpiralType1, Opacity: 1}},
			"pb2": {Key: "pb2", Spiral: session.SpiralConfig{Type: session.SpiralType2, Opacity: 1}},
		},
		Cuelists: map[string]session.Cuelist{
			"main": {
				Key:      "main",
				LoopMode: loopMode,
				Cues: []session.Cue{
					{Name: "cue1", DurationSeconds: 5, PlaybackPool: []session.PoolEntry{{PlaybackKey: "pb1", Weight: 1}}},
					{Name: "cue2", DurationSeconds: 5, PlaybackPool: []session.PoolEntry{{PlaybackKey: "pb2", Weight: 1}}},
				},
			},
		},
	}
}

func TestStartEntersPlayingOnFirstCue(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopOnce), "main", config.Default())
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", r.State())
	}
	if r.cueIndex != 0 {
		t.Fatalf("cueIndex = %d, want 0", r.cueIndex)
	}
}

func TestPauseResumePreservesElapsed(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopOnce), "main", config.Default())
	r.Start(context.Background())
	r.Tick(2 * time.Second)
	r.Pause()
	if r.State() != StatePaused {
		t.Fatalf("state = %v, want paused", r.State())
	}
	// Ticks while paused must not advance the cue timer.
	r.Tick(10 * time.Second)
	r.mu.Lock()
	elapsed := r.cueElapsed
	r.mu.Unlock()
	if elapsed != 2*time.Second {
		t.Fatalf("cueElapsed while paused = %v, want unchanged at 2s", elapsed)
	}
	r.Resume()
	if r.State() != StatePlaying {
		t.Fatalf("state after resume = %v, want playing", r.State())
	}
}

// TestTwoPhaseTransitionWaitsForBoundary: a
// transition is requested at duration but only executes once a
// cycle-boundary callback observes pending_transition == true.
func TestTwoPhaseTransitionWaitsForBoundary(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopOnce), "main", config.Default())
	r.Start(context.Background())

	r.Tick(5 * time.Second)
	r.mu.Lock()
	pending := r.pendingTransition
	idx := r.cueIndex
	r.mu.Unlock()
	if !pending {
		t.Fatal("duration reached must set pendingTransition, not end the cue directly")
	}
	if idx != 0 {
		t.Fatalf("cueIndex = %d, want still 0 before the boundary fires", idx)
	}

	r.OnCycleBoundary()
	// startCue dispatches on a goroutine inside OnCycleBoundary's cue
	// transition path; give it a moment to land.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		idx = r.cueIndex
		r.mu.Unlock()
		if idx == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if idx != 1 {
		t.Fatalf("cueIndex after boundary = %d, want 1", idx)
	}
}

// TestPlaybackSwitchDedupAtPendingTransition: when
// pending_transition is true at a boundary, a competing playback-pool
// switch on the same boundary is skipped (the cue-transition branch is
// taken instead, consuming the boundary event).
func TestPlaybackSwitchDedupAtPendingTransition(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopOnce), "main", config.Default())
	r.Start(context.Background())
	r.Tick(5 * time.Second) // sets pendingTransition

	r.mu.Lock()
	before := r.pendingTransition
	r.mu.Unlock()
	if !before {
		t.Fatal("expected pendingTransition before the boundary fires")
	}

	r.OnCycleBoundary()

	r.mu.Lock()
	after := r.pendingTransition
	r.mu.Unlock()
	if after {
		t.Fatal("pendingTransition must be cleared by the boundary that executes the cue transition")
	}
}

func TestSkipForcesImmediateTransitionAndClearsPending(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopOnce), "main", config.Default())
	r.Start(context.Background())
	r.Tick(5 * time.Second) // pendingTransition == true, waiting on a boundary

	if err := r.SkipNext(context.Background()); err != nil {
		t.Fatalf("SkipNext: %v", err)
	}
	if r.cueIndex != 1 {
		t.Fatalf("cueIndex after skip = %d, want 1 (immediate, no boundary wait)", r.cueIndex)
	}
	r.mu.Lock()
	pending := r.pendingTransition
	r.mu.Unlock()
	if pending {
		t.Fatal("skip must clear any pending transition")
	}
}

func TestLoopOnceStopsAfterLastCue(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopOnce), "main", config.Default())
	r.Start(context.Background())
	r.SkipNext(context.Background()) // -> cue 1 (last)
	r.SkipNext(context.Background()) // past the end
	if r.State() != StateStopped {
		t.Fatalf("state = %v, want stopped after the last cue in loop_once", r.State())
	}
}

func TestLoopWrapsToFirstCue(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopLoop), "main", config.Default())
	r.Start(context.Background())
	r.SkipNext(context.Background()) // -> cue 1
	r.SkipNext(context.Background()) // wraps -> cue 0
	if r.cueIndex != 0 {
		t.Fatalf("cueIndex = %d, want wrapped to 0 under loop_mode=loop", r.cueIndex)
	}
	if r.State() != StatePlaying {
		t.Fatalf("state = %v, want still playing after wrap", r.State())
	}
}

// TestOnMediaCyclePoolSwitchRespectsCycleConstraints: a cue whose pool
// entries both carry min_cycles=max_cycles=3 promotes to
// on_media_cycle (backward-compat rule) and switches the active
// playback every 3 media-cycle boundaries.
func TestOnMediaCyclePoolSwitchRespectsCycleConstraints(t *testing.T) {
	three := uint(3)
	sess := &session.Session{
		Version: "1.0",
		Playbacks: map[string]session.Playback{
			"pb_a": {Key: "pb_a", Spiral: session.SpiralConfig{Type: session.SpiralType1, Opacity: 1}},
			"pb_b": {Key: "pb_b", Spiral: session.SpiralConfig{Type: session.SpiralType2, Opacity: 1}},
		},
		Cuelists: map[string]session.Cuelist{
			"main": {
				Key:      "main",
				LoopMode: session.LoopOnce,
				Cues: []session.Cue{
					{
						Name:            "cue1",
						DurationSeconds: 30,
						PlaybackPool: []session.PoolEntry{
							{PlaybackKey: "pb_a", Weight: 1, MinCycles: &three, MaxCycles: &three},
							{PlaybackKey: "pb_b", Weight: 1, MinCycles: &three, MaxCycles: &three},
						},
						StoredSelectMode: session.SelectionOnCueStart, // promoted by the constraint
					},
				},
			},
		},
	}
	r := newTestRunner(t, sess, "main", config.Default())
	r.Start(context.Background())

	r.mu.Lock()
	firstEntry := r.runtime[0].activeEntryIdx
	r.mu.Unlock()

	// Two boundaries short of the 3-cycle minimum: must not switch yet.
	r.OnCycleBoundary()
	r.OnCycleBoundary()
	r.mu.Lock()
	stillFirst := r.runtime[0].activeEntryIdx
	cyclesSoFar := r.runtime[0].entryCyclesSinceSelect
	r.mu.Unlock()
	if stillFirst != firstEntry {
		t.Fatalf("pool entry switched early after %d cycles, want still entry %d", cyclesSoFar, firstEntry)
	}

	// Third boundary meets min_cycles and max_cycles at once: must switch.
	r.OnCycleBoundary()
	r.mu.Lock()
	afterThird := r.runtime[0].activeEntryIdx
	resetCycles := r.runtime[0].entryCyclesSinceSelect
	r.mu.Unlock()
	if afterThird == firstEntry {
		t.Fatal("pool entry did not switch after min_cycles=max_cycles=3 were reached")
	}
	if resetCycles != 0 {
		t.Fatalf("entryCyclesSinceSelect = %d after switch, want reset to 0", resetCycles)
	}

	// pendingTransition must still be false: this was a pool switch, not
	// a cue transition (cue duration is 30s, far from reached).
	r.mu.Lock()
	pending := r.pendingTransition
	idx := r.cueIndex
	r.mu.Unlock()
	if pending {
		t.Fatal("an on_media_cycle pool switch must not set pendingTransition")
	}
	if idx != 0 {
		t.Fatalf("cueIndex = %d, want still 0 (pool switch does not change cues)", idx)
	}
}

func TestPingPongReversesAtEndpoints(t *testing.T) {
	r := newTestRunner(t, twoCueSession(session.LoopPingPong), "main", config.Default())
	r.Start(context.Background())
	r.SkipNext(context.Background()) // -> cue 1 (last)
	r.SkipNext(context.Background()) // past the end: direction flips, back to cue 0
	if r.cueIndex != 0 {
		t.Fatalf("cueIndex = %d, want back to 0 under ping_pong", r.cueIndex)
	}
}
