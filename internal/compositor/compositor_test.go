package compositor

import "testing"

func TestUploadTrackerDedup(t *testing.T) {
	var u UploadTracker
	if !u.ShouldUpload("a.mp4", 3, 640, 480) {
		t.Fatal("first upload must not be deduped")
	}
	if u.ShouldUpload("a.mp4", 3, 640, 480) {
		t.Fatal("identical tuple must be deduped")
	}
	if !u.ShouldUpload("a.mp4", 4, 640, 480) {
		t.Fatal("new frame_id must upload")
	}
	if !u.ShouldUpload("a.mp4", 4, 1280, 720) {
		t.Fatal("size change must upload even with same tuple")
	}
}

func TestUploadTrackerInvalidate(t *testing.T) {
	var u UploadTracker
	u.ShouldUpload("a.mp4", 1, 640, 480)
	u.Invalidate()
	if !u.ShouldUpload("a.mp4", 1, 640, 480) {
		t.Fatal("invalidate must force the next identical tuple to upload")
	}
}

func TestBoundaryTrackerForwardCross(t *testing.T) {
	var b BoundaryTracker
	b.Reset(0)
	if b.Check(0) {
		t.Fatal("no crossing on first equal value")
	}
	if !b.Check(1) {
		t.Fatal("current > last must cross")
	}
	if b.Check(1) {
		t.Fatal("repeated marker must not re-cross")
	}
}

func TestBoundaryTrackerSwitchResetEdgeCase(t *testing.T) {
	var b BoundaryTracker
	b.Reset(5)
	// Playback switch: new visual's marker starts low but > 0.
	if !b.Check(1) {
		t.Fatal("current < last AND current > 0 must still cross (switch reset case)")
	}
}

func TestBoundaryTrackerZeroIsNotASwitch(t *testing.T) {
	var b BoundaryTracker
	b.Reset(5)
	if b.Check(0) {
		t.Fatal("current == 0 with current < last must not cross")
	}
}

func TestPhaseAccumulatorSignAndWrap(t *testing.T) {
	var p PhaseAccumulator
	for i := 0; i < 60; i++ {
		p.Advance(60, 60) // 60 RPM at 60fps: 1/60 turn per tick
	}
	if p.Time() <= 0 {
		t.Fatalf("forward rotation should accumulate positive time, got %v", p.Time())
	}

	var rev PhaseAccumulator
	for i := 0; i < 60; i++ {
		rev.Advance(-60, 60)
	}
	if rev.Time() >= 0 {
		t.Fatalf("negative rpm should accumulate negative time, got %v", rev.Time())
	}
}

func TestFadeQueueEvictsOldest(t *testing.T) {
	var evicted []*Texture
	q := NewFadeQueue(2, func(tex *Texture) { evicted = append(evicted, tex) })

	t1 := &Texture{ID: 1, refs: 1}
	t2 := &Texture{ID: 2, refs: 1}
	t3 := &Texture{ID: 3, refs: 1}

	q.Push(t1)
	q.Push(t2)
	if q.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", q.Len())
	}
	q.Push(t3)
	if q.Len() != 2 {
		t.Fatalf("expected queue capped at 2, got %d", q.Len())
	}
	if len(evicted) != 1 || evicted[0].ID != 1 {
		t.Fatalf("expected t1 evicted first, got %+v", evicted)
	}
}

func TestTextureSlotsReuseOnSameSize(t *testing.T) {
	s := NewTextureSlots(4)
	a, allocated := s.EnsureFront(100, 100, FormatRGBA8)
	if !allocated {
		t.Fatal("first EnsureFront must allocate")
	}
	b, allocated := s.EnsureFront(100, 100, FormatRGBA8)
	if allocated {
		t.Fatal("same size/format must reuse, not reallocate")
	}
	if a != b {
		t.Fatal("expected the same texture reused")
	}
}

func TestSpiralTypeArmMapping(t *testing.T) {
	arms := map[int]int{1: 1, 2: 2, 3: 3, 4: 4, 5: 5, 6: 6, 7: 8}
	for typ, want := range arms {
		if got := ArmsForType(typ); got != want {
			t.Errorf("ArmsForType(%d) = %d, want %d", typ, got, want)
		}
	}
	widths := map[int]float32{1: 360, 2: 180, 3: 120, 4: 90, 5: 72, 6: 60, 8: 45}
	for arms, want := range widths {
		if got := WidthForArms(arms); got != want {
			t.Errorf("WidthForArms(%d) = %v, want %v", arms, got, want)
		}
	}
	if got := ArmsForType(0); got != 1 {
		t.Errorf("out-of-range type should fall back to 1 arm, got %d", got)
	}
}
