package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/quartercastle/vector"
)

func vec2(x, y float32) vector.Vector {
	return vector.Vector{float64(x), float64(y)}
}

// DrawImage rasterizes a vertex buffer with the CPU reference of the shader
// pair, for debugging and for the CLI's PNG output. The result approximates
// what the GPU pipeline draws, minus blending order effects.
func DrawImage(buf *VertexBuffer, cam Camera, uniforms Uniforms) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(cam.Width), int(cam.Height)))
	for y := 0; y < img.Bounds().Dy(); y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			img.Set(x, y, color.Black)
		}
	}
	for _, v := range buf.Vertices {
		pointSize := PointSize(float64(v.Size), float64(uniforms.NodeScale), float64(uniforms.Time), v.ID) * cam.Zoom
		if pointSize <= 0 {
			continue
		}
		cx, cy := cam.Project(vec2(v.X, v.Y))
		half := int(math.Ceil(pointSize / 2))
		for py := int(cy) - half; py <= int(cy)+half; py++ {
			for px := int(cx) - half; px <= int(cx)+half; px++ {
				if px < 0 || py < 0 || px >= img.Bounds().Dx() || py >= img.Bounds().Dy() {
					continue
				}
				dx := (float64(px) + 0.5 - cx) / pointSize
				dy := (float64(py) + 0.5 - cy) / pointSize
				r := math.Sqrt(dx*dx + dy*dy)
				alpha, discarded := FragmentAlpha(v.Kind, r, float64(v.A))
				if discarded {
					continue
				}
				blend(img, px, py, v, alpha)
			}
		}
	}
	return img
}

// WritePNG encodes the rasterized frame to w.
func WritePNG(w io.Writer, buf *VertexBuffer, cam Camera, uniforms Uniforms) error {
	return png.Encode(w, DrawImage(buf, cam, uniforms))
}

func blend(img *image.RGBA, x, y int, v Vertex, alpha float64) {
	old := img.RGBAAt(x, y)
	mix := func(src float32, dst uint8) uint8 {
		out := float64(src)*255*alpha + float64(dst)*(1-alpha)
		return uint8(clampF(out, 0, 255))
	}
	img.SetRGBA(x, y, color.RGBA{
		R: mix(v.R, old.R),
		G: mix(v.G, old.G),
		B: mix(v.B, old.B),
		A: 255,
	})
}

func clampF(in, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, in))
}
