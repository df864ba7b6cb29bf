// adapted from https://github.com/jwhandley/graphyz/blob/main/quadtree.go
package layout

import (
	"sort"

	"github.com/quartercastle/vector"
)

type QuadTreeConfig struct {
	CapacityOfEachBlock int
	// MaxDepth stops subdivision for degenerate inputs, e.g. when more
	// than CapacityOfEachBlock nodes share nearly the same position.
	MaxDepth int
}

var DefaultQuadTreeConfig = QuadTreeConfig{CapacityOfEachBlock: 10, MaxDepth: 32}

// QuadTree is the spatial index of the simulation. It doubles as the
// Barnes-Hut approximation tree for the repulsion pass and as the radius
// query structure used for picking. Between Rebuild calls the tree is
// read-only, so concurrent ForceOn calls from the repulsion goroutines are
// safe.
type QuadTree struct {
	conf       QuadTreeConfig
	simulation *Simulation
	root       *quadTreeCell
	nodes      []Node
}

type quadTreeCell struct {
	Region    Rect
	Center    vector.Vector
	TotalMass float64
	Items     []int32
	Children  [4]*quadTreeCell
}

func NewQuadTree(conf *QuadTreeConfig, simulation *Simulation) *QuadTree {
	qt := &QuadTree{simulation: simulation}
	if conf == nil {
		qt.conf = DefaultQuadTreeConfig
	} else {
		qt.conf = *conf
	}
	if qt.conf.CapacityOfEachBlock == 0 {
		qt.conf.CapacityOfEachBlock = DefaultQuadTreeConfig.CapacityOfEachBlock
	}
	if qt.conf.MaxDepth == 0 {
		qt.conf.MaxDepth = DefaultQuadTreeConfig.MaxDepth
	}
	return qt
}

// Rebuild indexes the given arena. The bounding region is computed from the
// node positions, so every node is contained regardless of how far the
// simulation area was left.
func (qt *QuadTree) Rebuild(nodes []Node) {
	qt.nodes = nodes
	qt.root = nil
	if len(nodes) == 0 {
		return
	}
	qt.root = &quadTreeCell{Region: boundingRect(nodes)}
	for i := range nodes {
		qt.insert(qt.root, int32(i), 0)
	}
	qt.calculateMasses(qt.root)
}

func boundingRect(nodes []Node) Rect {
	minX, minY := nodes[0].Pos.X(), nodes[0].Pos.Y()
	maxX, maxY := minX, minY
	for i := range nodes {
		x, y := nodes[i].Pos.X(), nodes[i].Pos.Y()
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	// padding keeps boundary nodes strictly inside
	const pad = 1.0
	return Rect{X: minX - pad, Y: minY - pad, Width: maxX - minX + 2*pad, Height: maxY - minY + 2*pad}
}

func (qt *QuadTree) insert(cell *quadTreeCell, idx int32, depth int) bool {
	if !cell.Region.Contains(qt.nodes[idx].Pos) {
		return false
	}
	if cell.Children[0] == nil {
		if len(cell.Items) < qt.conf.CapacityOfEachBlock || depth >= qt.conf.MaxDepth {
			cell.Items = append(cell.Items, idx)
			return true
		}
		qt.subdivide(cell, depth)
	}
	for _, child := range cell.Children {
		if qt.insert(child, idx, depth+1) {
			return true
		}
	}
	// float edge cases may leave a position on no child boundary
	cell.Items = append(cell.Items, idx)
	return true
}

func (qt *QuadTree) subdivide(cell *quadTreeCell, depth int) {
	midX := cell.Region.X + cell.Region.Width/2
	midY := cell.Region.Y + cell.Region.Height/2
	halfWidth := cell.Region.Width / 2
	halfHeight := cell.Region.Height / 2
	cell.Children[0] = &quadTreeCell{Region: Rect{X: cell.Region.X, Y: cell.Region.Y, Width: halfWidth, Height: halfHeight}} // Top Left
	cell.Children[1] = &quadTreeCell{Region: Rect{X: midX, Y: cell.Region.Y, Width: halfWidth, Height: halfHeight}}          // Top Right
	cell.Children[2] = &quadTreeCell{Region: Rect{X: cell.Region.X, Y: midY, Width: halfWidth, Height: halfHeight}}          // Bottom Left
	cell.Children[3] = &quadTreeCell{Region: Rect{X: midX, Y: midY, Width: halfWidth, Height: halfHeight}}                   // Bottom Right

	items := cell.Items
	cell.Items = nil
	for _, idx := range items {
		inserted := false
		for _, child := range cell.Children {
			if qt.insert(child, idx, depth+1) {
				inserted = true
				break
			}
		}
		if !inserted {
			cell.Items = append(cell.Items, idx)
		}
	}
}

func (qt *QuadTree) calculateMasses(cell *quadTreeCell) {
	cell.Center = vector.Vector{0, 0}
	cell.TotalMass = 0
	for _, idx := range cell.Items {
		node := &qt.nodes[idx]
		cell.TotalMass += node.Mass
		cell.Center = cell.Center.Add(node.Pos.Scale(node.Mass))
	}
	for _, child := range cell.Children {
		if child == nil {
			continue
		}
		qt.calculateMasses(child)
		cell.TotalMass += child.TotalMass
		cell.Center = cell.Center.Add(child.Center.Scale(child.TotalMass))
	}
	if cell.TotalMass > 0 {
		cell.Center = cell.Center.Scale(1 / cell.TotalMass)
	}
}

// ForceOn accumulates the Barnes-Hut approximated repulsion force acting on
// the node at arena index i into totalForce. theta defines the accuracy of
// the approximation, see
// https://en.wikipedia.org/wiki/Barnes%E2%80%93Hut_simulation#Calculating_the_force_acting_on_a_body
func (qt *QuadTree) ForceOn(totalForce *vector.Vector, i int, theta float64) {
	qt.forceOn(qt.root, totalForce, i, theta)
}

func (qt *QuadTree) forceOn(cell *quadTreeCell, totalForce *vector.Vector, i int, theta float64) {
	if cell == nil || cell.TotalMass == 0 {
		return
	}
	node := &qt.nodes[i]
	if cell.Children[0] != nil {
		d := node.Pos.Sub(cell.Center).Magnitude()
		if d > 0 && cell.Region.Width/d < theta {
			qt.simulation.calculateRepulsionForce(totalForce, i, node.Pos, node.Mass, cell.Center, cell.TotalMass)
			return
		}
	}
	for _, idx := range cell.Items {
		if int(idx) == i {
			continue
		}
		other := &qt.nodes[idx]
		qt.simulation.calculateRepulsionForce(totalForce, i, node.Pos, node.Mass, other.Pos, other.Mass)
	}
	for _, child := range cell.Children {
		qt.forceOn(child, totalForce, i, theta)
	}
}

// Query returns the arena indices of exactly those nodes within radius of
// pos, in ascending index order.
func (qt *QuadTree) Query(pos vector.Vector, radius float64) []int {
	out := []int{}
	qt.query(qt.root, pos, radius, &out)
	sort.Ints(out)
	return out
}

func (qt *QuadTree) query(cell *quadTreeCell, pos vector.Vector, radius float64, out *[]int) {
	if cell == nil || !cell.Region.IntersectsCircle(pos, radius) {
		return
	}
	for _, idx := range cell.Items {
		if qt.nodes[idx].Pos.Sub(pos).Magnitude() <= radius {
			*out = append(*out, int(idx))
		}
	}
	for _, child := range cell.Children {
		qt.query(child, pos, radius, out)
	}
}
