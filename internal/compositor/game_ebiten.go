//go:build !headless

package compositor

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// EbitenRenderer draws one surface's layers with Ebiten: background,
// spiral shader, text, back to front onto an offscreen image the
// window blits each frame.
type EbitenRenderer struct {
	screen *ebiten.Image

	background     *ebiten.Image
	backgroundPath string

	spiralShader *ebiten.Shader
	spiralImage  *ebiten.Image

	width, height int
}

func NewEbitenRenderer() (*EbitenRenderer, error) {
	shader, err := ebiten.NewShader([]byte(spiralShaderSrc))
	if err != nil {
		return nil, fmt.Errorf("compositor: compile spiral shader: %w", err)
	}
	return &EbitenRenderer{spiralShader: shader}, nil
}

func (r *EbitenRenderer) Begin(width, height int) {
	if r.width != width || r.height != height || r.screen == nil {
		r.screen = ebiten.NewImage(width, height)
		r.spiralImage = ebiten.NewImage(width, height)
		r.width, r.height = width, height
	}
	r.screen.Fill(color.Black)
}

func (r *EbitenRenderer) UploadBackground(frame BackgroundFrame) {
	if r.background == nil || r.background.Bounds().Dx() != frame.Width || r.background.Bounds().Dy() != frame.Height {
		r.background = ebiten.NewImage(frame.Width, frame.Height)
	}
	r.background.WritePixels(frame.Pixels)
	r.backgroundPath = frame.Path
}

func (r *EbitenRenderer) DrawBackground(zoom ZoomUniforms) {
	if r.background == nil {
		return
	}
	op := &ebiten.DrawImageOptions{}
	cz := zoom.CurrentZoom()
	if cz <= 0 {
		cz = 1
	}
	bw, bh := r.background.Bounds().Dx(), r.background.Bounds().Dy()
	sx := float64(r.width) / float64(bw) * float64(cz)
	sy := float64(r.height) / float64(bh) * float64(cz)
	op.GeoM.Scale(sx, sy)
	// Recenter after zoom scaling, matching uv = center + (uv-center)/zoom.
	op.GeoM.Translate(float64(r.width)/2-float64(bw)*sx/2, float64(r.height)/2-float64(bh)*sy/2)
	r.screen.DrawImage(r.background, op)
}

func (r *EbitenRenderer) DrawSpiral(u SpiralUniforms) {
	r.spiralImage.Clear()
	op := &ebiten.DrawRectShaderOptions{}
	op.Uniforms = map[string]any{
		"AspectRatio":    u.AspectRatio,
		"SpiralType":     int32(u.SpiralType),
		"WidthDegrees":   u.WidthDegrees,
		"ArmColorA":      u.ArmColorA,
		"ArmColorB":      u.ArmColorB,
		"Time":           float32(u.Time),
		"FlipState":      int32(u.FlipState),
		"FlipWaveRadius": u.FlipWaveRadius,
		"FlipWaveWidth":  u.FlipWaveWidth,
		"Intensity":      u.Intensity,
		"Contrast":       u.Contrast,
		"Vignette":       u.Vignette,
		"ChromaticShift": u.ChromaticShift,
		"Opacity":        u.Opacity,
	}
	r.spiralImage.DrawRectShader(r.width, r.height, r.spiralShader, op)

	drawOp := &ebiten.DrawImageOptions{}
	drawOp.Blend = blendModeFor(u.BlendMode)
	r.screen.DrawImage(r.spiralImage, drawOp)
}

func (r *EbitenRenderer) DrawText(t TextLayer) {
	// Glyph rasterization belongs to the editor UI layer; this seam
	// only needs to exist so the director's text-cycling logic has
	// somewhere real to hand its resolved string.
	_ = t
}

func (r *EbitenRenderer) Present() {}

func blendModeFor(m BlendMode) ebiten.Blend {
	switch m {
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendScreen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	default:
		return ebiten.BlendSourceOver
	}
}
