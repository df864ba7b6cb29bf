package render

import (
	"testing"

	"github.com/quartercastle/vector"
	"github.com/stretchr/testify/assert"

	"github.com/suxatcode/fsgraph/layout"
)

func someNodes() []layout.Node {
	return []layout.Node{
		{ID: 1, Kind: layout.KindDirectory, Parent: -1, Radius: 4, Mass: 2, Color: [4]float32{1, 0.7, 0.3, 1}, Pos: vector.Vector{0, 0}},
		{ID: 2, Kind: layout.KindFile, Parent: 0, Radius: 2, Mass: 1, Color: [4]float32{0.3, 0.7, 1, 1}, Pos: vector.Vector{50, -20}},
		{ID: 3, Kind: layout.KindFile, Parent: 0, Radius: 2, Mass: 1, Color: [4]float32{0.3, 0.7, 1, 1}, Pos: vector.Vector{-9000, 0}},
	}
}

func TestBuilder_Build(t *testing.T) {
	assert := assert.New(t)
	bld := &Builder{}
	cam := NewCamera(800, 600)
	buf := bld.Build(someNodes(), cam, nil)
	assert.Equal(2, buf.Len(), "node 3 lies outside the viewport and is culled")
	assert.Zero(buf.Truncated)

	i, ok := buf.IndexOf(1)
	assert.True(ok)
	assert.Equal(uint32(1), buf.Vertices[i].Kind, "directory kind must survive verbatim")
	i, ok = buf.IndexOf(2)
	assert.True(ok)
	assert.Equal(uint32(0), buf.Vertices[i].Kind)
	assert.Equal(uint32(2), buf.Vertices[i].ID)
	_, ok = buf.IndexOf(3)
	assert.False(ok, "culled nodes have no vertex")
}

func TestBuilder_BuildIsDeterministic(t *testing.T) {
	bld := &Builder{}
	cam := NewCamera(800, 600)
	nodes := someNodes()
	a := bld.Build(nodes, cam, nil)
	b := bld.Build(nodes, cam, nil)
	assert.Equal(t, a.Bytes(), b.Bytes(), "identical input must produce byte-identical buffers")
}

func TestBuilder_BuildReusesBuffer(t *testing.T) {
	assert := assert.New(t)
	bld := &Builder{}
	cam := NewCamera(800, 600)
	buf := bld.Build(someNodes(), cam, nil)
	first := buf.Bytes()
	// rebuilding into the same buffer with fewer nodes must drop stale data
	buf = bld.Build(someNodes()[:1], cam, buf)
	assert.Equal(1, buf.Len())
	_, ok := buf.IndexOf(2)
	assert.False(ok)
	buf = bld.Build(someNodes(), cam, buf)
	assert.Equal(first, buf.Bytes())
}

func TestBuilder_BuildTruncatesAtDeviceLimit(t *testing.T) {
	assert := assert.New(t)
	bld := &Builder{MaxVertices: 1}
	cam := NewCamera(800, 600)
	buf := bld.Build(someNodes(), cam, nil)
	assert.Equal(1, buf.Len())
	assert.Equal(1, buf.Truncated, "visible nodes beyond the limit are counted, not an error")
}

func TestVertexBuffer_Bytes(t *testing.T) {
	assert := assert.New(t)
	buf := &VertexBuffer{Vertices: []Vertex{{X: 1, Y: 2, R: 3, G: 4, B: 5, A: 6, Size: 7, ID: 8, Kind: 1}}}
	raw := buf.Bytes()
	assert.Len(raw, VertexStride)
	// float32(1.0) little-endian
	assert.Equal([]byte{0x00, 0x00, 0x80, 0x3f}, raw[0:4])
	// id at offset 28
	assert.Equal([]byte{0x08, 0x00, 0x00, 0x00}, raw[28:32])
	// kind at offset 32
	assert.Equal([]byte{0x01, 0x00, 0x00, 0x00}, raw[32:36])
}

func TestCamera_ProjectUnprojectRoundtrip(t *testing.T) {
	assert := assert.New(t)
	cam := NewCamera(800, 600)
	cam.Center = vector.Vector{13, -7}
	cam.Zoom = 2.5
	for _, world := range []vector.Vector{{0, 0}, {10, 10}, {-300, 42.5}} {
		x, y := cam.Project(world)
		back := cam.Unproject(x, y)
		assert.InDelta(world.X(), back.X(), 1e-9)
		assert.InDelta(world.Y(), back.Y(), 1e-9)
	}
}

func TestCamera_ProjectKnownPixel(t *testing.T) {
	assert := assert.New(t)
	cam := NewCamera(800, 600)
	x, y := cam.Project(vector.Vector{10, 10})
	assert.Equal(410.0, x)
	assert.Equal(290.0, y)
}

func TestCamera_VisibleWorldRect(t *testing.T) {
	assert := assert.New(t)
	cam := NewCamera(800, 600)
	cam.Zoom = 2.0
	r := cam.VisibleWorldRect(0)
	assert.Equal(layout.Rect{X: -200, Y: -150, Width: 400, Height: 300}, r)
}

func TestBuildUniforms(t *testing.T) {
	assert := assert.New(t)
	cam := NewCamera(800, 600)
	u := BuildUniforms(cam, 1.5, 3.0)
	assert.Equal(float32(1.5), u.Time)
	assert.Equal(float32(1.0), u.Zoom)
	assert.Equal([2]float32{800, 600}, u.Viewport)
	assert.Equal(float32(3.0), u.NodeScale)
	assert.Equal(u, BuildUniforms(cam, 1.5, 3.0), "uniform building must be pure")
}
