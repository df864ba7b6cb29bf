// Package render turns the current layout state into GPU-ready data: a
// tightly packed vertex buffer, per-frame uniforms, and the shader pair that
// consumes both. A CPU reference implementation of the shader stages backs
// the tests and the debug PNG renderer.
package render

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/quartercastle/vector"

	"github.com/suxatcode/fsgraph/layout"
)

// WorldExtent is the fixed divisor normalizing world coordinates before the
// view transform. Must match the vertex shader.
const WorldExtent = 1000.0

// Camera describes the visible region: world-space center (pan), zoom level
// and viewport size in pixels. At zoom 1 one world unit maps to one pixel.
type Camera struct {
	Center vector.Vector
	Zoom   float64
	Width  float64
	Height float64
}

func NewCamera(width, height float64) Camera {
	return Camera{Center: vector.Vector{0, 0}, Zoom: 1.0, Width: width, Height: height}
}

// Project maps a world position to screen pixels (origin top-left, y down).
func (c Camera) Project(world vector.Vector) (x, y float64) {
	x = c.Width/2 + (world.X()-c.Center.X())*c.Zoom
	y = c.Height/2 - (world.Y()-c.Center.Y())*c.Zoom
	return x, y
}

// Unproject is the inverse of Project.
func (c Camera) Unproject(x, y float64) vector.Vector {
	return vector.Vector{
		c.Center.X() + (x-c.Width/2)/c.Zoom,
		c.Center.Y() - (y-c.Height/2)/c.Zoom,
	}
}

// VisibleWorldRect returns the world-space region covered by the viewport,
// expanded by margin on all sides (in world units).
func (c Camera) VisibleWorldRect(margin float64) layout.Rect {
	halfW := c.Width / 2 / c.Zoom
	halfH := c.Height / 2 / c.Zoom
	return layout.Rect{
		X:      c.Center.X() - halfW - margin,
		Y:      c.Center.Y() - halfH - margin,
		Width:  2 * (halfW + margin),
		Height: 2 * (halfH + margin),
	}
}

// ViewMatrix translates the world so the camera center sits at the origin
// and applies zoom, in WorldExtent-normalized units.
func (c Camera) ViewMatrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(
		float32(-c.Center.X()/WorldExtent),
		float32(-c.Center.Y()/WorldExtent),
		0,
	)
	scale := mgl32.Scale3D(float32(c.Zoom), float32(c.Zoom), 1)
	return scale.Mul4(translate)
}

// ProjectionMatrix maps the normalized view space to clip space with the
// viewport's aspect ratio.
func (c Camera) ProjectionMatrix() mgl32.Mat4 {
	aspect := float32(1.0)
	if c.Height != 0 {
		aspect = float32(c.Width / c.Height)
	}
	return mgl32.Ortho(-aspect, aspect, -1, 1, -1, 1)
}

// Uniforms is the per-frame constant block of the draw pipeline. Field order
// and types are part of the pipeline contract and must match the shader's
// uniform block bit-exactly.
type Uniforms struct {
	View      mgl32.Mat4
	Proj      mgl32.Mat4
	Time      float32
	Zoom      float32
	Viewport  [2]float32
	NodeScale float32
}

// BuildUniforms derives the per-frame constants from camera state and
// simulation time. Pure: identical inputs produce identical uniforms.
func BuildUniforms(c Camera, time float64, nodeScale float64) Uniforms {
	return Uniforms{
		View:      c.ViewMatrix(),
		Proj:      c.ProjectionMatrix(),
		Time:      float32(time),
		Zoom:      float32(c.Zoom),
		Viewport:  [2]float32{float32(c.Width), float32(c.Height)},
		NodeScale: float32(nodeScale),
	}
}
