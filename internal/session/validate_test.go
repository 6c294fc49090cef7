package session

import "testing"

func validSession() Session {
	return Session{
		Version: "1.0",
		Playbacks: map[string]Playback{
			"pb1": {Key: "pb1", Spiral: SpiralConfig{Type: SpiralType1, Opacity: 1}},
		},
		Cuelists: map[string]Cuelist{
			"cl1": {
				Key:      "cl1",
				LoopMode: LoopOnce,
				Cues: []Cue{
					{
						Name:            "cue1",
						DurationSeconds: 5,
						PlaybackPool:    []PoolEntry{{PlaybackKey: "pb1", Weight: 1}},
					},
				},
			},
		},
	}
}

func TestValidSessionPasses(t *testing.T) {
	if err := validSession().Validate(); err != nil {
		t.Fatalf("expected valid session to pass, got %v", err)
	}
}

func TestMissingVersionFails(t *testing.T) {
	s := validSession()
	s.Version = ""
	if err := s.Validate(); err == nil {
		t.Fatal("expected missing version to fail")
	}
}

func TestCueReferencingUnknownPlaybackFails(t *testing.T) {
	s := validSession()
	cl := s.Cuelists["cl1"]
	cl.Cues[0].PlaybackPool = []PoolEntry{{PlaybackKey: "nope", Weight: 1}}
	s.Cuelists["cl1"] = cl
	if err := s.Validate(); err == nil {
		t.Fatal("expected reference to unknown playback to fail")
	}
}

func TestEmptyPlaybackPoolFails(t *testing.T) {
	s := validSession()
	cl := s.Cuelists["cl1"]
	cl.Cues[0].PlaybackPool = nil
	s.Cuelists["cl1"] = cl
	if err := s.Validate(); err == nil {
		t.Fatal("expected empty playback_pool to fail")
	}
}

func TestZeroDurationFails(t *testing.T) {
	s := validSession()
	cl := s.Cuelists["cl1"]
	cl.Cues[0].DurationSeconds = 0
	s.Cuelists["cl1"] = cl
	if err := s.Validate(); err == nil {
		t.Fatal("expected duration_seconds <= 0 to fail")
	}
}

// TestSelectionModePromotion exercises the backward-compat
// rule: any pool entry carrying a duration/cycle constraint forces
// on_media_cycle regardless of the stored selection mode.
func TestSelectionModePromotion(t *testing.T) {
	minCycles := uint(3)
	c := Cue{
		StoredSelectMode: SelectionOnCueStart,
		PlaybackPool: []PoolEntry{
			{PlaybackKey: "pb1", Weight: 1, MinCycles: &minCycles},
		},
	}
	if got := c.EffectiveSelectionMode(); got != SelectionOnMediaCycle {
		t.Fatalf("EffectiveSelectionMode() = %v, want promoted to on_media_cycle", got)
	}
}

func TestSelectionModeUnpromotedWithoutConstraints(t *testing.T) {
	c := Cue{
		StoredSelectMode: SelectionOnCueStart,
		PlaybackPool:     []PoolEntry{{PlaybackKey: "pb1", Weight: 1}},
	}
	if got := c.EffectiveSelectionMode(); got != SelectionOnCueStart {
		t.Fatalf("EffectiveSelectionMode() = %v, want stored on_cue_start unchanged", got)
	}
}

func TestPlaybackIsNoopInvariant(t *testing.T) {
	p := Playback{}
	if !p.IsNoop() {
		t.Fatal("zero-value playback (no spiral, no media, no text) must be a no-op")
	}
	p.Text.Enabled = true
	if p.IsNoop() {
		t.Fatal("enabling text must make the playback non-noop")
	}
}
