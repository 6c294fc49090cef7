// Package director owns the currently-loaded Playback and delegates
// rendering to the Compositor: playback loading, media cycling,
// text cycling, zoom animation, and cycle-boundary dispatch.
package director

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesmerglass/engine/internal/compositor"
	"github.com/mesmerglass/engine/internal/cycler"
	"github.com/mesmerglass/engine/internal/events"
	"github.com/mesmerglass/engine/internal/media"
	"github.com/mesmerglass/engine/internal/session"
	"github.com/mesmerglass/engine/internal/shuffle"
)

// FramesPerCycle maps cycle_speed in [1,100] to a frame period on an
// exponential curve: round(600 * 0.96^(cycle_speed-1)), clamped >= 1.
// This gives 600 frames at 1 (10s at 60fps), 81 frames at 50 (~1.35s)
// and 11 frames at 100 (~0.18s).
func FramesPerCycle(cycleSpeed int) int {
	frames := int(math.Round(600 * math.Pow(0.96, float64(cycleSpeed-1))))
	if frames < 1 {
		frames = 1
	}
	return frames
}

// mediaState tracks per-visual cycling progress: which index is
// showing, a shuffler if shuffle is enabled, and the currently-loaded
// content (an open video handle, or a decoded image). wrapCount is the
// monotonic "media set wrapped" counter that cycle-boundary detection
// compares against for image playlists; a video's own
// media.VideoStream.CycleMarker() serves the same role while a video
// is playing.
type mediaState struct {
	paths        []session.MediaPath
	shuffler     *shuffle.Shuffler
	index        int
	advanceCount int64
	wrapCount    int64
	video        *media.VideoStream
	image        *media.DecodedImage
	imagePath    string
	failed       map[string]bool
}

// textState tracks which library string the text overlay shows.
type textState struct {
	library []string
	index   int
}

func (t *textState) current() string {
	if len(t.library) == 0 {
		return ""
	}
	return t.library[t.index]
}

func (t *textState) advance() {
	if len(t.library) == 0 {
		return
	}
	t.index = (t.index + 1) % len(t.library)
}

// Director owns the current Visual and drives its per-frame update,
// delegating all GPU work to a compositor.Compositor.
type Director struct {
	log        *logrus.Entry
	compositor *compositor.Compositor
	cache      *media.Cache
	dispatch   *events.Dispatcher

	mu           sync.Mutex
	playback     session.Playback
	visual       *compositor.Visual
	mediaCycler  cycler.Cycler
	graph        cycler.Cycler
	media        mediaState
	text         textState
	zoomElapsed  float64
	boundaryCBs  []func()
	targetFPS    float64
	fadeQueueCap int
	loaded       bool
	started      bool
}

func New(log *logrus.Entry, comp *compositor.Compositor, cache *media.Cache, dispatch *events.Dispatcher, targetFPS float64, fadeQueueCap int) *Director {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	if targetFPS <= 0 {
		targetFPS = 60
	}
	if fadeQueueCap <= 0 {
		fadeQueueCap = 4
	}
	return &Director{
		log:          log.WithField("component", "director"),
		compositor:   comp,
		cache:        cache,
		dispatch:     dispatch,
		targetFPS:    targetFPS,
		fadeQueueCap: fadeQueueCap,
	}
}

// RegisterCycleBoundary subscribes a callback (typically the Runner)
// to cycle-boundary crossings. Invoked synchronously on the render
// thread right after rendering; callbacks must be short and
// non-blocking.
func (d *Director) RegisterCycleBoundary(cb func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.boundaryCBs = append(d.boundaryCBs, cb)
}

// LoadPlayback builds a Visual from pb, including its cycler graph and
// shuffler, but does not start playback — two-phase so the runner can
// schedule it. Cycle counting restarts here, but the last observed
// cycle marker is preserved across the reset so a cross-playback
// switch still registers as a boundary crossing.
func (d *Director) LoadPlayback(pb session.Playback) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var preserved int64
	if d.visual != nil {
		preserved = d.visual.Boundary.Last()
	}
	if pb.IsNoop() {
		d.log.WithField("playback", pb.Key).Warn("playback renders nothing: spiral invisible, no media, no text")
	}

	v := compositor.NewVisual(d.fadeQueueCap)
	v.Boundary.Reset(preserved)
	v.Spiral = spiralUniforms(pb.Spiral)
	v.Zoom = zoomUniforms(pb.Zoom)
	v.InvalidateUpload() // first frame after load must always upload

	d.playback = pb
	d.visual = v
	d.media = mediaState{paths: pb.Media.Paths, failed: make(map[string]bool)}
	if pb.Media.Shuffle && len(pb.Media.Paths) > 0 {
		d.media.shuffler = shuffle.New(len(pb.Media.Paths), 1, shuffle.DefaultCapacity)
	}
	d.text = textState{library: pb.Text.Library}
	d.zoomElapsed = 0
	d.rebuildCyclers()
	d.loaded = true
	d.started = false

	if imgs := imagePaths(pb.Media); len(imgs) > 0 {
		go d.cache.PrewarmImages(context.Background(), imgs)
	}
}

// imagePaths returns the playlist entries _loadCurrentMedia would
// decode as images, for ahead-of-time prewarming.
func imagePaths(cfg session.MediaConfig) []string {
	if cfg.Mode == session.MediaModeNone || cfg.Mode == session.MediaModeVideos {
		return nil
	}
	var out []string
	for _, p := range cfg.Paths {
		if !isVideoPath(cfg.Mode, p.AbsolutePath) {
			out = append(out, p.AbsolutePath)
		}
	}
	return out
}

// rebuildCyclers constructs the media cycler and, when the text overlay
// runs its own clock, a text cycler advancing in parallel with it.
// Caller must hold d.mu.
func (d *Director) rebuildCyclers() {
	d.mediaCycler = buildMediaCycler(d.playback.Media, d.advanceMedia)
	children := []cycler.Cycler{d.mediaCycler}
	if tc := buildTextCycler(d.playback.Text, d.text.advance); tc != nil {
		children = append(children, tc)
	}
	d.graph = cycler.NewParallel(children...)
}

// buildMediaCycler constructs the Action that advances the media index
// every frames_per_cycle frames. The offset equals the period so the
// first item loaded by StartPlayback holds for a full cycle before the
// first advance. A playback with no media still gets a valid, inert
// cycler.
func buildMediaCycler(cfg session.MediaConfig, onFire func()) cycler.Cycler {
	if cfg.Mode == session.MediaModeNone || len(cfg.Paths) == 0 {
		return cycler.NewAction(math.MaxInt32, 0, func() {})
	}
	period := uint(FramesPerCycle(cfg.CycleSpeed))
	return cycler.NewAction(period, period, onFire)
}

// buildTextCycler returns a cycler advancing the text library on its
// own manual clock, or nil when the overlay is off, static, or synced
// to media cycles (in which case advanceMedia drives it instead).
func buildTextCycler(cfg session.TextConfig, onFire func()) cycler.Cycler {
	if !cfg.Enabled || cfg.SyncWithMedia || len(cfg.Library) < 2 {
		return nil
	}
	speed := cfg.ManualCycleSpeed
	if speed < 1 {
		speed = 1
	}
	period := uint(FramesPerCycle(speed))
	return cycler.NewAction(period, period, onFire)
}

func (d *Director) advanceMedia() {
	n := len(d.media.paths)
	if n == 0 {
		return
	}
	// Walk forward until an item loads, skipping at most one full pass
	// so a playlist of all-broken files degrades to a black background
	// instead of spinning.
	for attempt := 0; attempt < n; attempt++ {
		if d.media.shuffler != nil {
			d.media.index = d.media.shuffler.Next()
			d.media.advanceCount++
			if d.media.advanceCount%int64(n) == 0 {
				d.media.wrapCount++
			}
		} else {
			d.media.index = (d.media.index + 1) % n
			if d.media.index == 0 {
				d.media.wrapCount++
			}
		}
		if err := d._loadCurrentMedia(context.Background()); err != nil {
			continue
		}
		break
	}
	if d.playback.Text.SyncWithMedia {
		d.text.advance()
	}
}

// videoExtensions are the container extensions _loadCurrentMedia treats
// as video when a playback's media mode is "both" (mixed playlist);
// anything else is decoded as an image.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true,
}

func isVideoPath(mode session.MediaMode, path string) bool {
	switch mode {
	case session.MediaModeVideos:
		return true
	case session.MediaModeBoth:
		return videoExtensions[strings.ToLower(filepath.Ext(path))]
	default:
		return false
	}
}

// _loadCurrentMedia opens or decodes the item at the current media
// index and marks the upload tracker for invalidation so the switch
// always shows on the next frame. Images are pushed to the compositor
// immediately since they have no per-tick frame advance of their own;
// video frames are pushed every tick from advanceBackgroundFrame
// instead. On failure the caller skips to the next item; a decode
// error is reported once per path, not once per wrap.
func (d *Director) _loadCurrentMedia(ctx context.Context) error {
	if len(d.media.paths) == 0 {
		return nil
	}
	path := d.media.paths[d.media.index].AbsolutePath
	d.media.video = nil
	d.media.image = nil

	if isVideoPath(d.playback.Media.Mode, path) {
		vs, err := d.cache.OpenVideo(ctx, path)
		if err != nil {
			d.reportMediaFailure(path, err)
			return err
		}
		d.media.video = vs
		if d.visual != nil {
			d.visual.InvalidateUpload()
		}
		return nil
	}

	img, err := d.cache.LoadImage(ctx, path)
	if err != nil {
		d.reportMediaFailure(path, err)
		return err
	}
	d.media.image = img
	d.media.imagePath = path
	if d.visual != nil {
		d.visual.InvalidateUpload()
		d.compositor.SetBackgroundVideoFrame(d.visual, compositor.BackgroundFrame{
			Path:    path,
			FrameID: 0,
			Pixels:  img.Pixels,
			Width:   img.Width,
			Height:  img.Height,
		})
	}
	return nil
}

func (d *Director) reportMediaFailure(path string, err error) {
	if d.media.failed[path] {
		return
	}
	d.media.failed[path] = true
	d.log.WithError(err).WithField("path", path).Warn("media load failed")
	if d.dispatch != nil {
		d.dispatch.EmitError(events.ErrorMediaDecodeFailed, err.Error())
	}
}

// advanceBackgroundFrame pushes the current tick's background content
// to the compositor. Videos decode a new frame on their own
// rate-decoupled cursor; images were already pushed once by
// _loadCurrentMedia and rely entirely on the frame-dedup tuple compare
// to avoid re-uploading every tick.
func (d *Director) advanceBackgroundFrame() {
	vs := d.media.video
	if vs == nil {
		return
	}
	frameIndex, _ := vs.Advance(d.targetFPS)
	img, err := vs.Frame(context.Background(), frameIndex)
	if err != nil || img == nil {
		if err != nil {
			d.reportMediaFailure(d.media.paths[d.media.index].AbsolutePath, err)
		}
		return
	}
	d.compositor.SetBackgroundVideoFrame(d.visual, compositor.BackgroundFrame{
		Path:    d.media.paths[d.media.index].AbsolutePath,
		FrameID: int64(frameIndex),
		Pixels:  img.Pixels,
		Width:   img.Width,
		Height:  img.Height,
	})
}

// advanceZoom moves the background zoom animation forward by dt
// seconds. "in" and "out" ramp progress once at Rate per second and
// hold at the end; "pulse" bounces progress between 0 and 1 on a
// triangle wave at the same rate.
func (d *Director) advanceZoom(dt float64) {
	z := &d.visual.Zoom
	rate := d.playback.Zoom.Rate
	if rate <= 0 {
		rate = 0.1
	}
	switch z.Anim {
	case compositor.ZoomAnimIn, compositor.ZoomAnimOut:
		d.zoomElapsed += dt * rate
		if d.zoomElapsed > 1 {
			d.zoomElapsed = 1
		}
		z.Progress = float32(d.zoomElapsed)
	case compositor.ZoomAnimPulse:
		d.zoomElapsed += dt * rate
		phase := math.Mod(d.zoomElapsed, 2)
		if phase > 1 {
			phase = 2 - phase
		}
		z.Progress = float32(phase)
	}
}

// StartPlayback loads the first media item and enables the cycler
// graph. Mandatory before any frame shows content. If the first item
// fails to load, the remaining items are tried in order before giving
// up on the initial frame; cycling proceeds regardless.
func (d *Director) StartPlayback(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil
	}
	var err error
	for attempt := 0; attempt < max(len(d.media.paths), 1); attempt++ {
		err = d._loadCurrentMedia(ctx)
		if err == nil {
			break
		}
		d.media.index = (d.media.index + 1) % len(d.media.paths)
	}
	d.started = true
	return err
}

// Update advances the cycler graph, applies parameter drift (spiral
// phase, zoom progress, text selection), renders one frame per
// attached surface, then runs boundary detection and fires registered
// callbacks.
func (d *Director) Update(dt float64, surfaceWidth, surfaceHeight int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.visual == nil {
		return
	}

	if d.graph != nil {
		d.graph.Advance()
	}
	d.advanceBackgroundFrame()
	d.advanceZoom(dt)

	d.visual.Phase.Advance(d.effectiveRPM(), d.targetFPS)
	d.visual.Spiral.Time = d.visual.Phase.Time()
	d.visual.Text = compositor.ResolveTextLayer(d.playback.Text, d.text.current())

	cycleMarker := d.currentCycleMarker()

	result := d.compositor.Render(d.visual, surfaceWidth, surfaceHeight, cycleMarker)
	if result.BoundaryCrossed {
		for _, cb := range d.boundaryCBs {
			cb()
		}
	}
}

// effectiveRPM folds the spiral's reverse flag into the signed
// rotation rate the phase accumulator consumes.
func (d *Director) effectiveRPM() float64 {
	rpm := d.playback.Spiral.RotationSpeedRPM
	if d.playback.Spiral.Reverse {
		rpm = -rpm
	}
	return rpm
}

// currentCycleMarker reflects the active media's cycle marker: the
// video's own ping-pong reversal count while a video is playing, or the
// playlist's wrap count for image sequences. Using the raw playlist
// index here would never satisfy the boundary-crossing test on wrap
// (the index resets to 0, which is neither "> last" nor "> 0"), so a
// dedicated monotonic counter is kept instead.
func (d *Director) currentCycleMarker() int {
	if d.media.video != nil {
		return int(d.media.video.CycleMarker())
	}
	return int(d.media.wrapCount)
}

// ReloadFromDisk re-reads pb (the current playback's latest config)
// and reapplies initial settings. The media cycler must be rebuilt
// whenever cycle_speed changes, so the cached cycler graph is cleared
// here and lazily rebuilt by GetCycler().
func (d *Director) ReloadFromDisk(pb session.Playback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playback = pb
	d.visual.Spiral = spiralUniforms(pb.Spiral)
	d.visual.Zoom = zoomUniforms(pb.Zoom)
	d.text.library = pb.Text.Library
	if d.text.index >= len(pb.Text.Library) {
		d.text.index = 0
	}
	d.mediaCycler = nil // cleared; GetCycler rebuilds lazily below
	d.graph = nil
}

// GetCycler lazily rebuilds the media cycler (and the surrounding
// graph) with the current playback's cycle period if it was
// invalidated by ReloadFromDisk.
func (d *Director) GetCycler() cycler.Cycler {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mediaCycler == nil {
		d.rebuildCyclers()
	}
	return d.mediaCycler
}

func spiralUniforms(cfg session.SpiralConfig) compositor.SpiralUniforms {
	arms := compositor.ArmsForType(int(cfg.Type))
	u := compositor.SpiralUniforms{
		SpiralType:    int(cfg.Type),
		WidthDegrees:  compositor.WidthForArms(arms),
		ArmColorA:     rgba(cfg.ArmColor),
		ArmColorB:     rgba(cfg.GapColor),
		RotationSpeed: float32(cfg.RotationSpeedRPM),
		Opacity:       float32(cfg.Opacity),
		Intensity:     1,
		Contrast:      1,
		BlendMode:     compositor.BlendNormal,
	}
	return u
}

// zoomUniforms fixes the origin/target scale pair for each animation
// mode; the progress value between them is owned by advanceZoom.
func zoomUniforms(cfg session.ZoomConfig) compositor.ZoomUniforms {
	switch cfg.Mode {
	case session.ZoomModeIn:
		return compositor.ZoomUniforms{Origin: 1, Target: 2, Anim: compositor.ZoomAnimIn}
	case session.ZoomModeOut:
		return compositor.ZoomUniforms{Origin: 2, Target: 1, Anim: compositor.ZoomAnimOut}
	case session.ZoomModePulse:
		return compositor.ZoomUniforms{Origin: 1, Target: 1.5, Anim: compositor.ZoomAnimPulse}
	default:
		return compositor.ZoomUniforms{Origin: 1, Target: 1, Anim: compositor.ZoomAnimNone}
	}
}

func rgba(c session.RGBA) [4]float32 {
	return [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
}
