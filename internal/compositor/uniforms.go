package compositor

// BlendMode selects how the spiral layer combines with the background.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendAdd
	BlendScreen
)

// SpiralUniforms is the shader contract for the spiral layer. Most
// fields map onto Kage uniforms of the same name in spiralShaderSrc;
// NearPlane, FarPlane, EyeOffset and RotationSpeed are not passed to
// the shader, and BlendMode selects the draw blend instead.
type SpiralUniforms struct {
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32
	EyeOffset   float32

	SpiralType    int
	WidthDegrees  float32
	ArmColorA     [4]float32
	ArmColorB     [4]float32
	Time          float64 // accumulated phase; the shader must not re-scale this
	RotationSpeed float32 // passthrough hint only, not used for timing math

	FlipState      int
	FlipWaveRadius float32
	FlipWaveWidth  float32
	Intensity      float32
	Contrast       float32
	Vignette       float32
	ChromaticShift float32
	Opacity        float32
	BlendMode      BlendMode
}

// spiralArmCounts maps spiral types 1..7 to arm counts; the stripe
// width in degrees is 360/arms.
var spiralArmCounts = [7]int{1, 2, 3, 4, 5, 6, 8}

// ArmsForType returns the arm count for a spiral type in [1,7].
// Out-of-range types fall back to a single arm.
func ArmsForType(spiralType int) int {
	if spiralType < 1 || spiralType > len(spiralArmCounts) {
		return 1
	}
	return spiralArmCounts[spiralType-1]
}

// WidthForArms converts an arm count to the width_degrees uniform:
// width = 360/arms.
func WidthForArms(arms int) float32 {
	if arms <= 0 {
		return 360
	}
	return 360.0 / float32(arms)
}

// ZoomAnimation is the background zoom animation pattern.
type ZoomAnimation int

const (
	ZoomAnimNone ZoomAnimation = iota
	ZoomAnimIn
	ZoomAnimOut
	ZoomAnimPulse
)

// ZoomUniforms drives the background UV transform.
type ZoomUniforms struct {
	Origin   float32
	Target   float32
	Progress float32 // mix(origin, target, progress)
	Anim     ZoomAnimation
}

// CurrentZoom implements "current_zoom = mix(zoom_origin, zoom, zoom_progress)".
func (z ZoomUniforms) CurrentZoom() float32 {
	return z.Origin + (z.Target-z.Origin)*z.Progress
}

// PhaseAccumulator is the spiral's high-precision time base:
// incremented by (rotation_speed_rpm/60)/target_fps each render tick,
// signed so negative rpm reverses direction. Whole cycles are tracked
// separately so float64 precision doesn't erode over long sessions.
type PhaseAccumulator struct {
	frac  float64 // value in [0, 1)
	turns int64   // completed whole turns, signed
}

// Advance moves the accumulator forward for one render tick.
func (p *PhaseAccumulator) Advance(rotationSpeedRPM, targetFPS float64) {
	if targetFPS <= 0 {
		return
	}
	delta := (rotationSpeedRPM / 60) / targetFPS
	p.frac += delta
	for p.frac >= 1 {
		p.frac -= 1
		p.turns++
	}
	for p.frac < 0 {
		p.frac += 1
		p.turns--
	}
}

// Time is the shader's `time` uniform value: total accumulated phase
// as a float64, turns plus fractional part.
func (p *PhaseAccumulator) Time() float64 {
	return float64(p.turns) + p.frac
}

// Reset zeroes the accumulator (used on playback reload).
func (p *PhaseAccumulator) Reset() {
	p.frac = 0
	p.turns = 0
}
