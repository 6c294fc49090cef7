package compositor

// UploadTuple identifies one uploaded video frame for dedup purposes.
type UploadTuple struct {
	Path    string
	FrameID int64
	Width   int
	Height  int
}

// UploadTracker implements the frame-dedup upload policy: skip the GPU
// upload if (path, frame_id) matches the last uploaded tuple AND the
// current size matches the existing texture. Without this, a 15fps
// video on a 60fps compositor re-uploads the same frame 4x per tick
// and collapses throughput.
type UploadTracker struct {
	last       UploadTuple
	hasLast    bool
	invalidate bool
}

// Invalidate forces the next ShouldUpload call to return true
// regardless of tuple match — used on playback load, resolution
// change, or an explicit director invalidation request.
func (t *UploadTracker) Invalidate() {
	t.invalidate = true
}

// ShouldUpload reports whether a GPU upload is required for this
// frame, and records it as the new baseline if so.
func (t *UploadTracker) ShouldUpload(path string, frameID int64, width, height int) bool {
	tuple := UploadTuple{Path: path, FrameID: frameID, Width: width, Height: height}

	if !t.invalidate && t.hasLast && tuple == t.last {
		return false
	}

	t.last = tuple
	t.hasLast = true
	t.invalidate = false
	return true
}

// BoundaryTracker implements cycle-boundary detection over the
// per-visual monotonic cycle marker: a boundary fires when
// current > last, and ALSO when current < last AND current > 0 (a
// playback switch reset the marker mid-stream).
type BoundaryTracker struct {
	last int64
}

// Check reports whether crossing from last to current constitutes a
// boundary, and updates the tracked value.
func (b *BoundaryTracker) Check(current int64) bool {
	crossed := current > b.last || (current < b.last && current > 0)
	b.last = current
	return crossed
}

// Reset sets the tracked marker without treating it as a boundary
// (used when a Visual first loads).
func (b *BoundaryTracker) Reset(marker int64) {
	b.last = marker
}

// Last returns the last-seen marker value.
func (b *BoundaryTracker) Last() int64 { return b.last }
