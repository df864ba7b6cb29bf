package render

import "math"

// The draw pipeline is a fixed vertex/fragment pair compiled once by the
// presentation layer. Attribute and uniform layouts match the Vertex and
// Uniforms structs field for field.

const VertexShaderSource = `#version 330 core
layout(location = 0) in vec2 inPosition;
layout(location = 1) in vec4 inColor;
layout(location = 2) in float inSize;
layout(location = 3) in uint inID;
layout(location = 4) in uint inKind;

uniform mat4 uView;
uniform mat4 uProj;
uniform float uTime;
uniform float uZoom;
uniform vec2 uViewport;
uniform float uNodeScale;

out vec4 vColor;
flat out uint vKind;

const float worldExtent = 1000.0;
const float pulseAmplitude = 0.1;
const float pulseFrequency = 2.0;

void main() {
    vec2 world = inPosition / worldExtent;
    gl_Position = uProj * uView * vec4(world, 0.0, 1.0);
    float phase = float(inID % 100u) * 0.1;
    float pulse = 1.0 + pulseAmplitude * sin(uTime * pulseFrequency + phase);
    gl_PointSize = inSize * uNodeScale * pulse;
    vColor = inColor;
    vKind = inKind;
}
`

const FragmentShaderSource = `#version 330 core
in vec4 vColor;
flat in uint vKind;

out vec4 fragColor;

void main() {
    float r = length(gl_PointCoord - vec2(0.5));
    float circle = 1.0 - smoothstep(0.3, 0.5, r);
    float alpha = circle;
    if (vKind == 1u) {
        float glow = (1.0 - smoothstep(0.1, 0.8, r)) * 0.3;
        alpha = max(circle, glow);
    }
    alpha *= vColor.a;
    if (alpha < 0.01) {
        discard;
    }
    fragColor = vec4(vColor.rgb, alpha);
}
`

// Fixed pulse constants of the vertex stage.
const (
	PulseAmplitude = 0.1
	PulseFrequency = 2.0
	PulsePhaseStep = 0.1
	// DiscardThreshold is the alpha below which the fragment stage
	// discards a pixel instead of blending it.
	DiscardThreshold = 0.01
	// GlowMaxAlpha caps the directory glow.
	GlowMaxAlpha = 0.3
)

// Smoothstep is the Hermite interpolation of the shading language: 0 below
// lo, 1 above hi, 3t²-2t³ in between.
func Smoothstep(lo, hi, x float64) float64 {
	if lo == hi {
		if x < lo {
			return 0
		}
		return 1
	}
	t := math.Max(0, math.Min(1, (x-lo)/(hi-lo)))
	return t * t * (3 - 2*t)
}

// PointSize is the CPU reference of the vertex stage's size computation:
// the node's base size scaled by the global factor and a time-based pulse
// whose phase is derived from the node ID, so neighbors breathe out of sync.
func PointSize(size, nodeScale, time float64, id uint32) float64 {
	phase := float64(id%100) * PulsePhaseStep
	return size * nodeScale * (1 + PulseAmplitude*math.Sin(time*PulseFrequency+phase))
}

// FragmentAlpha is the CPU reference of the fragment stage. r is the
// distance from the point center in point-local coordinates (0 at the
// center, 0.5 at the point edge). Directories receive a wider, dimmer glow
// on top of the soft circle; overlapping contributions combine via max.
// The second return value reports whether the pixel is discarded.
func FragmentAlpha(kind uint32, r, baseAlpha float64) (float64, bool) {
	circle := 1 - Smoothstep(0.3, 0.5, r)
	alpha := circle
	if kind == 1 {
		glow := (1 - Smoothstep(0.1, 0.8, r)) * GlowMaxAlpha
		alpha = math.Max(circle, glow)
	}
	alpha *= baseAlpha
	if alpha < DiscardThreshold {
		return 0, true
	}
	return alpha, false
}
