package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	gomp4 "github.com/abema/go-mp4"
)

// Frame buffer tuning for the double-buffered prefetch.
const (
	DefaultBufCap = 30 // frames held per buffer
	DefaultBufLow = 8  // low-water mark the prefetch worker refills to
)

// VideoMeta describes an opened video: source fps, frame count, and
// pixel dimensions.
type VideoMeta struct {
	FPSSrc     float64
	FrameCount int
	Width      int
	Height     int
}

// FrameDecoder decodes a single sample index of an opened video track
// to RGBA8 pixels. Container demuxing (this package, via go-mp4) finds
// *which* bytes make up a sample; actual pixel decode of those bytes
// is behind this seam so a platform decoder can be swapped in without
// touching the demux or timing code.
type FrameDecoder interface {
	DecodeFrame(ctx context.Context, sampleIndex int, sampleBytes []byte) (*DecodedImage, error)
}

// frameRing is a bounded ring buffer of decoded frames, one per video
// buffer slot (A playing / B prefetching).
type frameRing struct {
	mu     sync.Mutex
	frames map[int]*DecodedImage
	cap    int
}

func newFrameRing(cap int) *frameRing {
	if cap <= 0 {
		cap = DefaultBufCap
	}
	return &frameRing{frames: make(map[int]*DecodedImage, cap), cap: cap}
}

func (r *frameRing) get(idx int) (*DecodedImage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.frames[idx]
	return f, ok
}

func (r *frameRing) put(idx int, img *DecodedImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) >= r.cap {
		// Evict an arbitrary far frame; the prefetch worker only ever
		// looks ahead of the play cursor so whatever's oldest in
		// practice is behind it.
		for k := range r.frames {
			delete(r.frames, k)
			break
		}
	}
	r.frames[idx] = img
}

func (r *frameRing) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *frameRing) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = make(map[int]*DecodedImage, r.cap)
}

// VideoStream holds an opened video with its double-buffered prefetch
// state and ping-pong cursor: ring plays the current window while
// prefetch is warmed with the reversed window whenever the cursor
// nears an endpoint, and the two swap on reversal.
type VideoStream struct {
	Meta VideoMeta

	samples []sampleLocation
	decoder FrameDecoder
	source  io.ReaderAt
	path    string

	mu       sync.Mutex
	ring     *frameRing // A: the currently-playing buffer
	prefetch *frameRing // B: warmed with the post-reversal window

	cursor        float64 // fractional source-frame position
	direction     int     // +1 forward, -1 backward (ping-pong)
	cycleMarker   atomic.Int64
	fillRequested chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
}

type sampleLocation struct {
	offset int64
	size   int64
}

// Open demuxes path's container to get {fps_src, frame_count, width,
// height} and the per-sample byte ranges, then starts the background
// prefetch worker that keeps the playing buffer topped up past the
// low-water mark (one worker per active video).
func Open(ctx context.Context, path string, decoder FrameDecoder) (*VideoStream, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DecodeError{Kind: FileMissing, Path: path, Err: err}
		}
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path, Err: err}
	}

	info, err := gomp4.Probe(f)
	if err != nil {
		f.Close()
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path, Err: err}
	}

	track, err := findVideoTrack(info)
	if err != nil {
		f.Close()
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path, Err: err}
	}

	samples := make([]sampleLocation, 0, len(track.Samples))
	var offset int64
	var totalDuration uint64
	for _, s := range track.Samples {
		samples = append(samples, sampleLocation{offset: offset, size: int64(s.Size)})
		offset += int64(s.Size)
		totalDuration += uint64(s.TimeDelta)
	}
	if len(samples) == 0 {
		f.Close()
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path, Err: fmt.Errorf("no samples in video track")}
	}

	fps := float64(track.Timescale)
	if totalDuration > 0 {
		fps = float64(track.Timescale) * float64(len(samples)) / float64(totalDuration)
	}

	vs := &VideoStream{
		Meta: VideoMeta{
			FPSSrc:     fps,
			FrameCount: len(samples),
			Width:      int(track.AVC.Width),
			Height:     int(track.AVC.Height),
		},
		samples:       samples,
		decoder:       decoder,
		source:        f,
		path:          path,
		ring:          newFrameRing(DefaultBufCap),
		prefetch:      newFrameRing(DefaultBufCap),
		direction:     1,
		fillRequested: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	go vs.prefetchLoop(ctx)
	vs.requestFill()
	return vs, nil
}

func findVideoTrack(info *gomp4.ProbeInfo) (*gomp4.Track, error) {
	for _, t := range info.Tracks {
		if t.AVC != nil && t.AVC.Width > 0 && t.AVC.Height > 0 {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no video track found (%d tracks)", len(info.Tracks))
}

func (vs *VideoStream) requestFill() {
	select {
	case vs.fillRequested <- struct{}{}:
	default:
	}
}

// prefetchLoop is the background worker that keeps the playing buffer
// topped up ahead of the cursor and warms the back buffer near an
// endpoint.
func (vs *VideoStream) prefetchLoop(ctx context.Context) {
	for {
		select {
		case <-vs.done:
			return
		case <-ctx.Done():
			return
		case <-vs.fillRequested:
			vs.fillAhead(ctx)
		}
	}
}

func (vs *VideoStream) fillAhead(ctx context.Context) {
	vs.mu.Lock()
	cursor := int(vs.cursor)
	dir := vs.direction
	ring := vs.ring
	prefetch := vs.prefetch
	vs.mu.Unlock()

	last := len(vs.samples) - 1

	// Keep the playing buffer full ahead of the cursor.
	for offset := 0; offset < DefaultBufLow; offset++ {
		idx := cursor + offset*dir
		if idx < 0 || idx > last {
			break
		}
		if _, ok := ring.get(idx); ok {
			continue
		}
		img, err := vs.decodeSample(ctx, idx)
		if err != nil {
			return
		}
		ring.put(idx, img)
	}

	// Near an endpoint, warm the back buffer with the reversed window
	// so the swap on reversal starts with frames already resident.
	endpoint := last
	if dir < 0 {
		endpoint = 0
	}
	if absInt(endpoint-cursor) > DefaultBufLow {
		return
	}
	for offset := 0; offset < DefaultBufLow; offset++ {
		idx := endpoint - offset*dir
		if idx < 0 || idx > last {
			break
		}
		if _, ok := prefetch.get(idx); ok {
			continue
		}
		img, err := vs.decodeSample(ctx, idx)
		if err != nil {
			return
		}
		prefetch.put(idx, img)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (vs *VideoStream) decodeSample(ctx context.Context, idx int) (*DecodedImage, error) {
	loc := vs.samples[idx]
	buf := make([]byte, loc.size)
	if _, err := vs.source.ReadAt(buf, loc.offset); err != nil {
		return nil, &DecodeError{Kind: DecodeTimeout, Path: vs.path, Err: err}
	}
	return vs.decoder.DecodeFrame(ctx, idx, buf)
}

// FramesToAdvancePerTick decouples playback rate from source fps:
// frames_to_advance_per_render_tick = (120 / global_fps) / 8.
// At 60fps this is 0.25 source frames per tick (~15fps effective).
func FramesToAdvancePerTick(globalFPS float64) float64 {
	if globalFPS <= 0 {
		return 0
	}
	return (120.0 / globalFPS) / 8.0
}

// Advance moves the fractional cursor forward by one render tick at
// the given global display refresh rate, handling the ping-pong
// reversal at either endpoint. A reversal promotes the prefetched
// back buffer to the playing slot. It returns the whole-frame index
// to display this tick and whether a cycle-marker increment occurred.
func (vs *VideoStream) Advance(globalFPS float64) (frameIndex int, cycled bool) {
	vs.mu.Lock()
	step := FramesToAdvancePerTick(globalFPS) * float64(vs.direction)
	vs.cursor += step

	last := len(vs.samples) - 1
	if vs.cursor >= float64(last) {
		vs.cursor = float64(last)
		vs.direction = -1
		vs.swapBuffersLocked()
		vs.cycleMarker.Add(1)
		cycled = true
	} else if vs.cursor <= 0 {
		vs.cursor = 0
		vs.direction = 1
		vs.swapBuffersLocked()
		vs.cycleMarker.Add(1)
		cycled = true
	}
	frameIndex = int(vs.cursor)
	vs.mu.Unlock()

	vs.requestFill()
	return frameIndex, cycled
}

// swapBuffersLocked promotes the back buffer to the playing slot on a
// ping-pong reversal and recycles the old playing buffer as the next
// back buffer. Caller holds vs.mu.
func (vs *VideoStream) swapBuffersLocked() {
	if vs.ring == nil || vs.prefetch == nil {
		return
	}
	vs.ring, vs.prefetch = vs.prefetch, vs.ring
	vs.prefetch.clear()
}

// CycleMarker returns the monotonic wrap counter cycle-boundary
// detection compares.
func (vs *VideoStream) CycleMarker() int64 { return vs.cycleMarker.Load() }

// Frame returns the decoded frame at idx if it is resident, falling
// back to decoding it synchronously (best-effort, used when the
// prefetch worker has fallen behind). Callers should treat a nil
// result plus error as "skip this media item".
func (vs *VideoStream) Frame(ctx context.Context, idx int) (*DecodedImage, error) {
	vs.mu.Lock()
	ring := vs.ring
	prefetch := vs.prefetch
	vs.mu.Unlock()

	if ring != nil {
		if img, ok := ring.get(idx); ok {
			return img, nil
		}
	}
	if prefetch != nil {
		if img, ok := prefetch.get(idx); ok {
			return img, nil
		}
	}
	return vs.decodeSample(ctx, idx)
}

// Close releases the video's resources and stops its prefetch worker.
func (vs *VideoStream) Close() error {
	vs.closeOnce.Do(func() { close(vs.done) })
	if closer, ok := vs.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
