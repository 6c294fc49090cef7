// Package compositor renders the spiral layer plus a layered
// background (image or video) plus text on the GPU, with a frame-dedup
// upload policy that keeps a 60Hz compositor from re-uploading the
// same decoded video frame on every tick.
package compositor

import (
	"github.com/sirupsen/logrus"

	"github.com/mesmerglass/engine/internal/events"
)

// BackgroundFrame is one decoded frame ready to composite, tagged with
// the identity the dedup policy compares.
type BackgroundFrame struct {
	Path    string
	FrameID int64
	Pixels  []byte
	Width   int
	Height  int
}

// Renderer is the backend seam: game_ebiten.go implements it against a
// live GPU surface, game_headless.go discards everything. Compositor
// itself only ever talks to this interface.
type Renderer interface {
	Begin(width, height int)
	UploadBackground(frame BackgroundFrame) // called only when the dedup policy says to
	DrawBackground(zoom ZoomUniforms)
	DrawSpiral(u SpiralUniforms)
	DrawText(t TextLayer)
	Present()
}

// Visual is the renderable state of one loaded Playback: the spiral
// uniforms, zoom uniforms, phase accumulator, text layer, and the
// texture/dedup/boundary bookkeeping tied to its background media.
type Visual struct {
	Spiral   SpiralUniforms
	Zoom     ZoomUniforms
	Phase    PhaseAccumulator
	Text     TextLayer
	Slots    *TextureSlots
	Upload   UploadTracker
	Boundary BoundaryTracker

	// backgroundFailed marks that the background layer's last upload
	// failed even after a retry; the layer renders black until the next
	// successful upload or playback reload clears it.
	backgroundFailed bool
}

// NewVisual builds a Visual ready for loading. Callers that are
// switching playbacks within the same surface should carry the prior
// Boundary value forward instead of using a fresh zero value, so the
// switch itself can still register as a cycle boundary.
func NewVisual(fadeQueueCap int) *Visual {
	return &Visual{Slots: NewTextureSlots(fadeQueueCap)}
}

// Compositor drives one or more attached surfaces, rendering each at
// the display refresh rate.
type Compositor struct {
	log      *logrus.Entry
	guard    *RenderContextGuard
	surfaces map[string]Renderer
	dispatch *events.Dispatcher
}

func New(log *logrus.Entry, dispatch *events.Dispatcher) *Compositor {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Compositor{
		log:      log.WithField("component", "compositor"),
		guard:    &RenderContextGuard{},
		surfaces: make(map[string]Renderer),
		dispatch: dispatch,
	}
}

// AttachSurface registers a renderer under surfaceID.
func (c *Compositor) AttachSurface(surfaceID string, r Renderer) {
	c.surfaces[surfaceID] = r
}

func (c *Compositor) DetachSurface(surfaceID string) {
	delete(c.surfaces, surfaceID)
}

// SetBackgroundVideoFrame hands a decoded frame to every attached
// surface. The frame-dedup upload policy is applied once, here, rather
// than per surface, since all attached surfaces show the same Visual
// content simultaneously. A failing upload is retried exactly once per
// surface; persistent failure marks the Visual's background layer as
// failed so Render draws black for it instead.
func (c *Compositor) SetBackgroundVideoFrame(v *Visual, frame BackgroundFrame) bool {
	if !v.Upload.ShouldUpload(frame.Path, frame.FrameID, frame.Width, frame.Height) {
		return false
	}
	anyFailed := false
	for id, r := range c.surfaces {
		upload := func() error {
			return c.guard.Enter(id, func() error {
				r.UploadBackground(frame)
				return nil
			})
		}
		err := upload()
		if err != nil {
			err = upload() // retry once
		}
		if err != nil {
			anyFailed = true
			c.log.WithError(err).WithField("surface", id).Warn("background upload failed after retry")
		}
	}
	if anyFailed {
		v.backgroundFailed = true
		if c.dispatch != nil {
			c.dispatch.EmitError(events.ErrorGpuUploadFailed, frame.Path)
		}
	} else {
		v.backgroundFailed = false
	}
	return true
}

// InvalidateUpload forces the next SetBackgroundVideoFrame call to
// upload regardless of tuple match (playback load, resolution change,
// or an explicit director invalidation request). Also clears a prior
// persistent upload failure, giving the new playback a fresh attempt.
func (v *Visual) InvalidateUpload() {
	v.Upload.Invalidate()
	v.backgroundFailed = false
}

// RenderResult reports what happened on one render() pass.
type RenderResult struct {
	BoundaryCrossed bool
}

// Render draws one frame of v to every attached surface, then runs
// cycle-boundary detection against the caller's current marker.
func (c *Compositor) Render(v *Visual, width, height, cycleMarker int) RenderResult {
	for id, r := range c.surfaces {
		err := c.guard.Enter(id, func() error {
			r.Begin(width, height)
			if !v.backgroundFailed {
				r.DrawBackground(v.Zoom)
			}
			r.DrawSpiral(v.Spiral)
			if v.Text.Enabled {
				r.DrawText(v.Text)
			}
			r.Present()
			return nil
		})
		if err != nil {
			c.log.WithError(err).WithField("surface", id).Warn("render failed")
		}
	}

	crossed := v.Boundary.Check(int64(cycleMarker))
	return RenderResult{BoundaryCrossed: crossed}
}
