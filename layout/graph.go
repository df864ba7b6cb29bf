// adapted from https://github.com/jwhandley/graphyz/blob/main/g.go
package layout

import (
	"math"

	"github.com/quartercastle/vector"
	"golang.org/x/exp/constraints"
)

type NodeKind uint8

const (
	KindFile NodeKind = iota
	KindDirectory
)

// Node is one arena entry of the simulation. Parent is the arena index of
// the containing directory (-1 for the root), which is also the only edge
// relation of the graph: springs act along parent links, so edges are never
// stored separately.
//
// Pos, vel and acc are mutated exclusively by Simulation.Step; everything
// else is set at insertion time or through Simulation.UpdateNode.
type Node struct {
	ID     uint32
	Kind   NodeKind
	Parent int
	Radius float64
	Mass   float64
	Color  [4]float32
	Pos    vector.Vector
	vel    vector.Vector
	acc    vector.Vector
}

// Velocity returns a copy of the node's current velocity.
func (n *Node) Velocity() vector.Vector {
	return vector.Vector{n.vel.X(), n.vel.Y()}
}

type Rect struct {
	X, Y, Width, Height float64
}

func (r *Rect) Contains(pos vector.Vector) bool {
	return pos.X() >= r.X && pos.X() <= r.X+r.Width && pos.Y() >= r.Y && pos.Y() <= r.Y+r.Height
}

func (r *Rect) Center() vector.Vector {
	return vector.Vector{r.X + r.Width/2, r.Y + r.Height/2}
}

// IntersectsCircle reports whether any point of the rectangle lies within
// radius of pos.
func (r *Rect) IntersectsCircle(pos vector.Vector, radius float64) bool {
	dx := pos.X() - clamp(pos.X(), r.X, r.X+r.Width)
	dy := pos.Y() - clamp(pos.Y(), r.Y, r.Y+r.Height)
	return dx*dx+dy*dy <= radius*radius
}

func clamp[T constraints.Ordered](in, lo, hi T) T {
	if in > hi {
		return hi
	} else if in < lo {
		return lo
	}
	return in
}

// clampFinite additionally passes NaN through unchanged, so that NaN
// positions are caught by the recovery pass instead of being silently
// clamped to a bound.
func clampFinite(in, lo, hi float64) float64 {
	if math.IsNaN(in) {
		return in
	}
	return clamp(in, lo, hi)
}

func isFinite(v vector.Vector) bool {
	x, y := v.X(), v.Y()
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

func vectorClampValue(v vector.Vector, min, max float64) vector.Vector {
	return vector.Vector{
		clampFinite(v.X(), min, max),
		clampFinite(v.Y(), min, max),
	}
}

func vectorClampRect(v vector.Vector, r Rect) vector.Vector {
	return vector.Vector{
		clampFinite(v.X(), r.X, r.X+r.Width),
		clampFinite(v.Y(), r.Y, r.Y+r.Height),
	}
}
