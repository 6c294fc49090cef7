//go:build headless

package compositor

// HeadlessRenderer discards every draw call. Used for headless builds
// and tests, the video-side counterpart of audio's NullSink.
type HeadlessRenderer struct {
	width, height  int
	lastBackground BackgroundFrame
}

func NewHeadlessRenderer() (*HeadlessRenderer, error) {
	return &HeadlessRenderer{}, nil
}

func (r *HeadlessRenderer) Begin(width, height int) { r.width, r.height = width, height }

func (r *HeadlessRenderer) UploadBackground(frame BackgroundFrame) { r.lastBackground = frame }

func (r *HeadlessRenderer) DrawBackground(ZoomUniforms) {}

func (r *HeadlessRenderer) DrawSpiral(SpiralUniforms) {}

func (r *HeadlessRenderer) DrawText(TextLayer) {}

func (r *HeadlessRenderer) Present() {}
