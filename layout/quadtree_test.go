package layout

import (
	"math/rand"
	"testing"

	"github.com/quartercastle/vector"
	"github.com/stretchr/testify/assert"
)

func nodesAt(positions ...vector.Vector) []Node {
	nodes := make([]Node, len(positions))
	for i, pos := range positions {
		nodes[i] = Node{ID: uint32(i), Parent: -1, Mass: 1.0, Radius: 1.0, Pos: pos}
	}
	return nodes
}

func TestQuadTree_Rebuild(t *testing.T) {
	assert := assert.New(t)
	s := NewSimulation(testConfig())
	qt := NewQuadTree(&QuadTreeConfig{CapacityOfEachBlock: 2}, s)
	nodes := nodesAt(vector.Vector{1, 1}, vector.Vector{2, 2})
	qt.Rebuild(nodes)
	assert.Equal([]int32{0, 1}, qt.root.Items)
	for i := 0; i < 4; i++ {
		assert.Nil(qt.root.Children[i], "no subdivision below CapacityOfEachBlock")
	}
	nodes = nodesAt(vector.Vector{1, 1}, vector.Vector{2, 2}, vector.Vector{9, 9})
	qt.Rebuild(nodes)
	assert.Empty(qt.root.Items, "items move down on subdivision")
	assert.NotNil(qt.root.Children[0])
	assert.Equal([]int32{0, 1}, qt.root.Children[0].Items)
	assert.Equal([]int32{2}, qt.root.Children[3].Items)
}

func TestQuadTree_RebuildManyCoincidingNodes(t *testing.T) {
	positions := make([]vector.Vector, 100)
	for i := range positions {
		positions[i] = vector.Vector{5, 5}
	}
	s := NewSimulation(testConfig())
	qt := NewQuadTree(&QuadTreeConfig{CapacityOfEachBlock: 2, MaxDepth: 8}, s)
	qt.Rebuild(nodesAt(positions...)) // must terminate via MaxDepth
	assert.Len(t, qt.Query(vector.Vector{5, 5}, 0.1), 100)
}

func TestQuadTree_CalculateMasses(t *testing.T) {
	assert := assert.New(t)
	s := NewSimulation(testConfig())
	qt := NewQuadTree(&QuadTreeConfig{CapacityOfEachBlock: 1}, s)
	nodes := nodesAt(vector.Vector{0, 0}, vector.Vector{10, 10})
	nodes[0].Mass = 3.0
	nodes[1].Mass = 1.0
	qt.Rebuild(nodes)
	assert.Equal(4.0, qt.root.TotalMass)
	// center of mass is weighted towards the heavier node
	assert.InDelta(2.5, qt.root.Center.X(), 1e-9)
	assert.InDelta(2.5, qt.root.Center.Y(), 1e-9)
}

func TestQuadTree_ForceOnMatchesNaiveSummation(t *testing.T) {
	assert := assert.New(t)
	s := NewSimulation(testConfig())
	rng := rand.New(rand.NewSource(3))
	positions := make([]vector.Vector, 50)
	for i := range positions {
		positions[i] = vector.Vector{rng.Float64() * 100, rng.Float64() * 100}
	}
	nodes := nodesAt(positions...)
	qt := NewQuadTree(nil, s)
	qt.Rebuild(nodes)
	for i := range nodes {
		force := vector.Vector{0, 0}
		qt.ForceOn(&force, i, 0.0) // theta=0 disables approximation
		naive := vector.Vector{0, 0}
		for j := range nodes {
			if i == j {
				continue
			}
			s.calculateRepulsionForce(&naive, i, nodes[i].Pos, nodes[i].Mass, nodes[j].Pos, nodes[j].Mass)
		}
		assert.InDelta(naive.X(), force.X(), 1e-9)
		assert.InDelta(naive.Y(), force.Y(), 1e-9)
	}
}

// Query must return exactly the nodes within the radius, matching a brute
// force scan over all pairs.
func TestQuadTree_QueryMatchesBruteForce(t *testing.T) {
	s := NewSimulation(testConfig())
	rng := rand.New(rand.NewSource(11))
	positions := make([]vector.Vector, 300)
	for i := range positions {
		positions[i] = vector.Vector{rng.Float64()*200 - 100, rng.Float64()*200 - 100}
	}
	nodes := nodesAt(positions...)
	qt := NewQuadTree(nil, s)
	qt.Rebuild(nodes)
	for q := 0; q < 50; q++ {
		pos := vector.Vector{rng.Float64()*220 - 110, rng.Float64()*220 - 110}
		radius := rng.Float64() * 50
		got := qt.Query(pos, radius)
		want := []int{}
		for i := range nodes {
			if nodes[i].Pos.Sub(pos).Magnitude() <= radius {
				want = append(want, i)
			}
		}
		assert.Equal(t, want, got, "query %d at %v r=%v", q, pos, radius)
	}
}

func TestQuadTree_QueryEmpty(t *testing.T) {
	s := NewSimulation(testConfig())
	qt := NewQuadTree(nil, s)
	qt.Rebuild(nil)
	assert.Empty(t, qt.Query(vector.Vector{0, 0}, 10))
}
