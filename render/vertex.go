package render

import (
	"encoding/binary"
	"math"

	"github.com/suxatcode/fsgraph/layout"
)

// Vertex is one entry of the per-frame vertex buffer. Layout (36 bytes,
// little-endian, field order fixed):
//
//	offset 0   position  2 x float32
//	offset 8   color     4 x float32 (straight RGBA, non-premultiplied)
//	offset 24  size      float32
//	offset 28  id        uint32
//	offset 32  kind      uint32 (0 file, 1 directory)
type Vertex struct {
	X, Y       float32
	R, G, B, A float32
	Size       float32
	ID         uint32
	Kind       uint32
}

// VertexStride is the byte size of one Vertex in the packed buffer.
const VertexStride = 36

// VertexBuffer is the draw-ready projection of the current node state. It is
// rebuilt every frame and never authoritative; node positions live in the
// layout arena.
type VertexBuffer struct {
	Vertices []Vertex
	// Truncated is the number of visible nodes dropped because the buffer
	// would have exceeded the device vertex limit.
	Truncated int

	idToIndex map[uint32]int
}

// IndexOf returns the buffer index of the vertex with the given node ID.
func (b *VertexBuffer) IndexOf(id uint32) (int, bool) {
	i, ok := b.idToIndex[id]
	return i, ok
}

func (b *VertexBuffer) Len() int { return len(b.Vertices) }

// Bytes packs the buffer into the documented little-endian layout. The
// output is byte-identical for identical vertex content.
func (b *VertexBuffer) Bytes() []byte {
	out := make([]byte, len(b.Vertices)*VertexStride)
	for i, v := range b.Vertices {
		o := i * VertexStride
		binary.LittleEndian.PutUint32(out[o+0:], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(out[o+4:], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(out[o+8:], math.Float32bits(v.R))
		binary.LittleEndian.PutUint32(out[o+12:], math.Float32bits(v.G))
		binary.LittleEndian.PutUint32(out[o+16:], math.Float32bits(v.B))
		binary.LittleEndian.PutUint32(out[o+20:], math.Float32bits(v.A))
		binary.LittleEndian.PutUint32(out[o+24:], math.Float32bits(v.Size))
		binary.LittleEndian.PutUint32(out[o+28:], v.ID)
		binary.LittleEndian.PutUint32(out[o+32:], v.Kind)
	}
	return out
}

// Builder converts layout state into vertex buffers. Build is a pure
// function of its inputs; the builder itself only carries configuration.
type Builder struct {
	// MaxVertices caps the buffer size to the device limit. Zero means
	// unlimited.
	MaxVertices int
	// CullMargin expands the visible region by this many world units so
	// nodes whose circle overlaps the viewport edge are kept.
	CullMargin float64
}

// Build produces one vertex per node inside the camera's visible region, in
// arena order. Node ID and kind are preserved verbatim for picking and the
// fragment stage's per-kind effects. The buf argument is reused when
// non-nil, so a frame loop can double-buffer without reallocating.
func (bld *Builder) Build(nodes []layout.Node, cam Camera, buf *VertexBuffer) *VertexBuffer {
	if buf == nil {
		buf = &VertexBuffer{}
	}
	buf.Vertices = buf.Vertices[:0]
	buf.Truncated = 0
	if buf.idToIndex == nil {
		buf.idToIndex = make(map[uint32]int, len(nodes))
	} else {
		clear(buf.idToIndex)
	}
	margin := bld.CullMargin
	if margin == 0 {
		margin = 64
	}
	visible := cam.VisibleWorldRect(margin)
	for i := range nodes {
		node := &nodes[i]
		if !visible.Contains(node.Pos) {
			continue
		}
		if bld.MaxVertices > 0 && len(buf.Vertices) >= bld.MaxVertices {
			buf.Truncated++
			continue
		}
		kind := uint32(0)
		if node.Kind == layout.KindDirectory {
			kind = 1
		}
		buf.idToIndex[node.ID] = len(buf.Vertices)
		buf.Vertices = append(buf.Vertices, Vertex{
			X:    float32(node.Pos.X()),
			Y:    float32(node.Pos.Y()),
			R:    node.Color[0],
			G:    node.Color[1],
			B:    node.Color[2],
			A:    node.Color[3],
			Size: float32(node.Radius),
			ID:   node.ID,
			Kind: kind,
		})
	}
	return buf
}
