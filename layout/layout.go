// adapted from https://github.com/jwhandley/graphyz/blob/main/main.go
package layout

import (
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/quartercastle/vector"
)

type Config struct {
	// Rect is the preferred simulation area; positions may leave it up to
	// ScreenMultiplierToClampPosition times its extent.
	Rect                    Rect
	DefaultNodeRadius       float64
	MinDistanceBetweenNodes float64
	RepulsionMultiplier     float64
	SpringStiffness         float64
	// RestLengthFactor scales the spring rest length, which is
	// proportional to the combined radii of the two nodes of an edge.
	RestLengthFactor float64
	GravityStrength  float64
	VelocityDecay    float64
	MaxVelocity      float64
	// initial temperature of simulation
	AlphaInit float64
	// decay of temperature per step
	AlphaDecay float64
	// target temperature of simulation
	AlphaTarget float64
	// Theta is the Barnes-Hut accuracy parameter.
	Theta float64
	// JitterRadius bounds the random offset applied to newly inserted
	// nodes, so two nodes never start at the exact same position.
	JitterRadius float64
	// KineticEnergyThreshold and ConvergenceSteps declare the simulation
	// converged once total kinetic energy stays below the threshold for
	// that many consecutive steps.
	KineticEnergyThreshold float64
	ConvergenceSteps       int
	// Seed makes insertion jitter deterministic. Ignored when RandomFloat
	// is set.
	Seed                            int64
	RandomFloat                     func() float64
	ScreenMultiplierToClampPosition float64
	// Parallelization is the number of goroutines used for the repulsion
	// pass. Zero or one computes serially.
	Parallelization int
}

var DefaultConfig = Config{
	Rect:                            Rect{-1000, -1000, 2000, 2000},
	DefaultNodeRadius:               2.0,
	MinDistanceBetweenNodes:         1e-2,
	RepulsionMultiplier:             10.0,
	SpringStiffness:                 1.0,
	RestLengthFactor:                4.0,
	GravityStrength:                 0.1,
	VelocityDecay:                   0.1,
	MaxVelocity:                     100.0,
	AlphaInit:                       1.0,
	AlphaDecay:                      0.01,
	AlphaTarget:                     0.0,
	Theta:                           0.75,
	JitterRadius:                    5.0,
	KineticEnergyThreshold:          1e-3,
	ConvergenceSteps:                10,
	Seed:                            1,
	ScreenMultiplierToClampPosition: 10.0,
	Parallelization:                 runtime.NumCPU(),
}

// Simulation holds all information needed for a force based embedding of a
// file tree. The node set is fixed for the duration of one Step; insertion
// and removal must happen between steps.
type Simulation struct {
	conf  Config
	nodes []Node
	byID  map[uint32]int
	index *QuadTree
	rng   *rand.Rand

	temperature float64
	kinetic     float64
	iterations  int
	calmSteps   int
	// nodes reset from a non-finite position during the last step
	recovered int
}

func NewSimulation(conf Config) *Simulation {
	s := &Simulation{byID: map[uint32]int{}}
	s.ApplyConfig(conf)
	s.index = NewQuadTree(&DefaultQuadTreeConfig, s)
	return s
}

func (s *Simulation) ApplyConfig(conf Config) {
	if conf.Rect.Width == 0.0 || conf.Rect.Height == 0.0 {
		conf.Rect = DefaultConfig.Rect
	}
	if conf.DefaultNodeRadius == 0.0 {
		conf.DefaultNodeRadius = DefaultConfig.DefaultNodeRadius
	}
	if conf.MinDistanceBetweenNodes == 0.0 {
		conf.MinDistanceBetweenNodes = DefaultConfig.MinDistanceBetweenNodes
	}
	if conf.RepulsionMultiplier == 0.0 {
		conf.RepulsionMultiplier = DefaultConfig.RepulsionMultiplier
	}
	if conf.SpringStiffness == 0.0 {
		conf.SpringStiffness = DefaultConfig.SpringStiffness
	}
	if conf.RestLengthFactor == 0.0 {
		conf.RestLengthFactor = DefaultConfig.RestLengthFactor
	}
	if conf.GravityStrength == 0.0 {
		conf.GravityStrength = DefaultConfig.GravityStrength
	}
	if conf.VelocityDecay == 0.0 {
		conf.VelocityDecay = DefaultConfig.VelocityDecay
	}
	if conf.MaxVelocity == 0.0 {
		conf.MaxVelocity = DefaultConfig.MaxVelocity
	}
	if conf.AlphaInit == 0.0 {
		conf.AlphaInit = DefaultConfig.AlphaInit
	}
	if conf.AlphaDecay == 0.0 {
		conf.AlphaDecay = DefaultConfig.AlphaDecay
	}
	if conf.Theta == 0.0 {
		conf.Theta = DefaultConfig.Theta
	}
	if conf.JitterRadius == 0.0 {
		conf.JitterRadius = DefaultConfig.JitterRadius
	}
	if conf.KineticEnergyThreshold == 0.0 {
		conf.KineticEnergyThreshold = DefaultConfig.KineticEnergyThreshold
	}
	if conf.ConvergenceSteps == 0 {
		conf.ConvergenceSteps = DefaultConfig.ConvergenceSteps
	}
	if conf.ScreenMultiplierToClampPosition == 0.0 {
		conf.ScreenMultiplierToClampPosition = DefaultConfig.ScreenMultiplierToClampPosition
	}
	if conf.Seed == 0 {
		conf.Seed = DefaultConfig.Seed
	}
	s.conf = conf
	if conf.RandomFloat == nil {
		s.rng = rand.New(rand.NewSource(conf.Seed))
		s.conf.RandomFloat = s.rng.Float64
	}
	s.temperature = s.conf.AlphaInit
}

func (s *Simulation) Config() Config { return s.conf }

// Nodes returns the live arena. Callers must treat it as read-only and must
// not hold it across Insert/Remove calls.
func (s *Simulation) Nodes() []Node { return s.nodes }

func (s *Simulation) Len() int { return len(s.nodes) }

func (s *Simulation) IndexOf(id uint32) (int, bool) {
	i, ok := s.byID[id]
	return i, ok
}

// Insert adds a node to the arena and returns its index. A node without a
// position starts at its parent (or the area center for the root) plus a
// small deterministic jitter, so no two nodes ever coincide exactly.
// Insertion re-heats the simulation.
func (s *Simulation) Insert(n Node) int {
	if n.Radius == 0.0 {
		n.Radius = s.conf.DefaultNodeRadius
	}
	if n.Mass == 0.0 {
		n.Mass = 1.0
	}
	if n.Parent < -1 || n.Parent >= len(s.nodes) {
		n.Parent = -1
	}
	if len(n.Pos) == 0 {
		origin := s.conf.Rect.Center()
		if n.Parent >= 0 {
			origin = s.nodes[n.Parent].Pos
		}
		n.Pos = origin.Add(s.jitter())
	}
	n.vel = vector.Vector{0, 0}
	n.acc = vector.Vector{0, 0}
	i := len(s.nodes)
	s.nodes = append(s.nodes, n)
	s.byID[n.ID] = i
	s.Reheat()
	return i
}

// Remove drops the given IDs from the arena and compacts it. Children of a
// removed node that are not themselves removed become roots.
func (s *Simulation) Remove(ids ...uint32) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[int]bool, len(ids))
	for _, id := range ids {
		if i, ok := s.byID[id]; ok {
			drop[i] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	remap := make([]int, len(s.nodes))
	kept := make([]Node, 0, len(s.nodes)-len(drop))
	for i := range s.nodes {
		if drop[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, s.nodes[i])
	}
	for i := range kept {
		if p := kept[i].Parent; p >= 0 {
			kept[i].Parent = remap[p]
		}
	}
	s.nodes = kept
	s.byID = make(map[uint32]int, len(kept))
	for i := range kept {
		s.byID[kept[i].ID] = i
	}
	s.Reheat()
}

// UpdateNode applies fn to the node with the given ID. Changes to Pos are
// discarded, position stays owned by Step.
func (s *Simulation) UpdateNode(id uint32, fn func(*Node)) bool {
	i, ok := s.byID[id]
	if !ok {
		return false
	}
	pos := s.nodes[i].Pos
	fn(&s.nodes[i])
	s.nodes[i].Pos = pos
	s.Reheat()
	return true
}

// Reheat raises the simulation temperature back to its initial value and
// clears the convergence state, e.g. after a re-layout request.
func (s *Simulation) Reheat() {
	s.temperature = s.conf.AlphaInit
	s.calmSteps = 0
}

func (s *Simulation) KineticEnergy() float64 { return s.kinetic }
func (s *Simulation) Iterations() int        { return s.iterations }
func (s *Simulation) Temperature() float64   { return s.temperature }

// RecoveredNodes reports how many nodes were reset from a non-finite
// position during the last step.
func (s *Simulation) RecoveredNodes() int { return s.recovered }

// Converged reports whether total kinetic energy stayed below the threshold
// for the configured number of consecutive steps. A converged simulation may
// be stepped at a reduced rate until the next insertion, removal or Reheat.
func (s *Simulation) Converged() bool {
	return s.calmSteps >= s.conf.ConvergenceSteps
}

// Step advances the simulation by dt. Forces are accumulated read-only over
// the positions of the previous step and integrated afterwards, so the
// result does not depend on node order. A dt of zero leaves all positions
// unchanged.
func (s *Simulation) Step(dt float64) {
	if dt == 0.0 || len(s.nodes) == 0 {
		return
	}
	for i := range s.nodes {
		s.nodes[i].acc = vector.Vector{0, 0}
	}
	s.gravityToCenterForce()
	s.attractionByEdgesForce()
	s.index.Rebuild(s.nodes)
	s.repulsionBarnesHut()
	s.integrate(dt)
	s.iterations++
	s.temperature += (s.conf.AlphaTarget - s.temperature) * s.conf.AlphaDecay
	if s.kinetic < s.conf.KineticEnergyThreshold {
		s.calmSteps++
	} else {
		s.calmSteps = 0
	}
}

// Query returns the arena indices of all nodes within radius of pos.
func (s *Simulation) Query(pos vector.Vector, radius float64) []int {
	s.index.Rebuild(s.nodes)
	return s.index.Query(pos, radius)
}

// Nearest returns the ID of the closest node within radius of pos.
func (s *Simulation) Nearest(pos vector.Vector, radius float64) (uint32, bool) {
	best, bestDist := -1, math.Inf(+1)
	for _, i := range s.Query(pos, radius) {
		d := s.nodes[i].Pos.Sub(pos).Magnitude()
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best == -1 {
		return 0, false
	}
	return s.nodes[best].ID, true
}

func (s *Simulation) jitter() vector.Vector {
	r := s.conf.JitterRadius
	return vector.Vector{
		(s.conf.RandomFloat()*2 - 1) * r,
		(s.conf.RandomFloat()*2 - 1) * r,
	}
}

func (s *Simulation) gravityToCenterForce() {
	center := s.conf.Rect.Center()
	for i := range s.nodes {
		delta := center.Sub(s.nodes[i].Pos)
		force := delta.Scale(s.conf.GravityStrength * s.temperature)
		vector.In(s.nodes[i].acc).Add(force)
	}
}

// attractionByEdgesForce applies a spring along every parent link, with a
// rest length proportional to the combined radii of both nodes.
func (s *Simulation) attractionByEdgesForce() {
	for i := range s.nodes {
		p := s.nodes[i].Parent
		if p < 0 {
			continue
		}
		child, parent := &s.nodes[i], &s.nodes[p]
		delta := child.Pos.Sub(parent.Pos)
		dist := clamp(delta.Magnitude(), s.conf.MinDistanceBetweenNodes, math.Inf(+1))
		rest := (child.Radius + parent.Radius) * s.conf.RestLengthFactor
		scale := s.conf.SpringStiffness * (dist - rest) * s.temperature
		force := delta.Unit().Scale(scale)
		vector.In(child.acc).Sub(force.Scale(1 / child.Mass))
		vector.In(parent.acc).Add(force.Scale(1 / parent.Mass))
	}
}

// goldenAngle spreads tie-break directions evenly over the circle when
// indexed sequentially.
const goldenAngle = 2.399963229728653

// calculateRepulsionForce adds the Coulomb-like force exerted on the body at
// arena index i (mass m1 at p1) by a body of mass m2 at p2 to totalForce.
// Distance is clamped below to avoid the singularity of two coinciding nodes.
func (s *Simulation) calculateRepulsionForce(totalForce *vector.Vector, i int, p1 vector.Vector, m1 float64, p2 vector.Vector, m2 float64) {
	delta := p1.Sub(p2)
	dist := delta.Magnitude()
	if dist < s.conf.MinDistanceBetweenNodes {
		dist = s.conf.MinDistanceBetweenNodes
		if delta.Magnitude() == 0.0 {
			// coinciding bodies have no direction; derive one from the
			// index so an overlapping pair pushes apart instead of
			// translating together
			angle := float64(i) * goldenAngle
			delta = vector.Vector{math.Cos(angle), math.Sin(angle)}
		}
	}
	scale := s.conf.RepulsionMultiplier * m1 * m2 / (dist * dist) * s.temperature
	vector.In(*totalForce).Add(delta.Unit().Scale(scale))
}

func (s *Simulation) repulsionBarnesHut() {
	calculate := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			force := vector.Vector{0, 0}
			s.index.ForceOn(&force, i, s.conf.Theta)
			vector.In(s.nodes[i].acc).Add(force.Scale(1 / s.nodes[i].Mass))
		}
	}
	p := s.conf.Parallelization
	if p <= 1 || len(s.nodes) < p*4 {
		calculate(0, len(s.nodes))
		return
	}
	total := len(s.nodes)
	wg := sync.WaitGroup{}
	wg.Add(p)
	for i := 0; i < p; i++ {
		go func(i int) {
			defer wg.Done()
			calculate(i*total/p, (i+1)*total/p)
		}(i)
	}
	wg.Wait()
}

func (s *Simulation) integrate(dt float64) {
	factor := s.conf.ScreenMultiplierToClampPosition
	bounds := Rect{
		X:      s.conf.Rect.X - (factor-1)*s.conf.Rect.Width/2,
		Y:      s.conf.Rect.Y - (factor-1)*s.conf.Rect.Height/2,
		Width:  factor * s.conf.Rect.Width,
		Height: factor * s.conf.Rect.Height,
	}
	kinetic := 0.0
	recovered := 0
	for i := range s.nodes {
		node := &s.nodes[i]
		vector.In(node.vel).Add(node.acc.Scale(dt))
		vector.In(node.vel).Scale(1 - s.conf.VelocityDecay)
		node.vel = vectorClampValue(node.vel, -s.conf.MaxVelocity, s.conf.MaxVelocity)
		vector.In(node.Pos).Add(node.vel.Scale(dt))
		node.Pos = vectorClampRect(node.Pos, bounds)
		if !isFinite(node.Pos) || !isFinite(node.vel) {
			origin := s.conf.Rect.Center()
			if node.Parent >= 0 && isFinite(s.nodes[node.Parent].Pos) {
				origin = s.nodes[node.Parent].Pos
			}
			node.Pos = origin.Add(s.jitter())
			node.vel = vector.Vector{0, 0}
			recovered++
		}
		kinetic += 0.5 * node.Mass * (node.vel.X()*node.vel.X() + node.vel.Y()*node.vel.Y())
	}
	s.kinetic = kinetic
	s.recovered = recovered
}
