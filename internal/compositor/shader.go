package compositor

// spiralShaderSrc is the Kage (Ebiten's shader language) fragment
// program for the spiral layer. Uniforms mirror the SpiralUniforms
// fields of the same name (not NearPlane, FarPlane, EyeOffset,
// RotationSpeed or BlendMode). Time is consumed as-is: re-multiplying it by
// RotationSpeed (a passthrough hint) would double-scale the rotation.
const spiralShaderSrc = `
package main

var AspectRatio float
var SpiralType int
var WidthDegrees float
var ArmColorA vec4
var ArmColorB vec4
var Time float
var FlipState int
var FlipWaveRadius float
var FlipWaveWidth float
var Intensity float
var Contrast float
var Vignette float
var ChromaticShift float
var Opacity float

func armIndex(angle float, widthDeg float) float {
	return floor(angle / radians(widthDeg))
}

func Fragment(position vec4, texCoord vec2, color vec4) vec4 {
	uv := texCoord*2.0 - 1.0
	uv.x *= AspectRatio

	r := length(uv)
	angle := atan2(uv.y, uv.x) + Time*6.28318530718

	// Arms curve outward with radius; higher spiral types wind tighter.
	angle += r * float(SpiralType) * 1.5

	flip := 0.0
	if FlipState == 1 {
		d := abs(r - FlipWaveRadius)
		if FlipWaveWidth > 0.0 {
			flip = 1.0 - smoothstep(0.0, FlipWaveWidth, d)
		}
	}
	angle += flip * 3.14159265359

	idx := armIndex(angle, WidthDegrees)
	stripe := mod(idx, 2.0)

	col := mix(ArmColorA, ArmColorB, stripe)

	// Chromatic shift: sample-independent channel offset approximation,
	// cheap since this is a procedural pattern rather than a texture read.
	if ChromaticShift != 0.0 {
		col.r = mix(col.r, ArmColorB.r, clamp(ChromaticShift, 0.0, 1.0)*0.5)
		col.b = mix(col.b, ArmColorA.b, clamp(ChromaticShift, 0.0, 1.0)*0.5)
	}

	col.rgb = (col.rgb-0.5)*Contrast + 0.5
	col.rgb *= Intensity

	if Vignette > 0.0 {
		vig := 1.0 - smoothstep(0.6, 1.4, r*Vignette)
		col.rgb *= vig
	}

	col.a *= Opacity
	return col
}
`
