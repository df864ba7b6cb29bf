package controller

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quartercastle/vector"
	"github.com/rs/zerolog/log"

	"github.com/suxatcode/fsgraph/fstree"
	"github.com/suxatcode/fsgraph/internal/metrics"
	"github.com/suxatcode/fsgraph/layout"
	"github.com/suxatcode/fsgraph/render"
)

// Engine drives the step/build/draw pipeline for one render target: it owns
// the simulation, the camera, and the double-buffered vertex output.
// Snapshot updates and camera input may arrive from any goroutine; they are
// queued and applied at the next step boundary, never mid-step.
//
//go:generate mockgen -destination engine_mock.go -package controller . Engine
type Engine interface {
	// ApplySnapshot replaces the whole tree. A malformed snapshot is
	// rejected and the previous state kept.
	ApplySnapshot(s *fstree.Snapshot) error
	// ApplyDiff applies an incremental update. Rejected as a whole if any
	// referenced node is unknown or any added parent missing.
	ApplyDiff(d fstree.Diff) error
	// Pan moves the camera by a screen-space pixel delta.
	Pan(dx, dy float64)
	// ZoomBy scales the zoom level by the given factor.
	ZoomBy(factor float64)
	// Resize sets the viewport size in pixels.
	Resize(width, height float64)
	// Relayout re-heats the simulation on request.
	Relayout()
	// Step advances the simulation by dt, applying all queued updates at
	// the step boundary first.
	Step(dt float64)
	// Frame builds the vertex buffer and uniforms for the current state.
	// The returned buffer stays valid while the next frame is built and is
	// overwritten by the frame after that. For the render loop only; any
	// other consumer uses CopyFrame.
	Frame() (*render.VertexBuffer, render.Uniforms)
	// CopyFrame builds the current state into buf (allocated when nil) and
	// returns it. The result is owned by the caller and never touched by
	// later Frame calls.
	CopyFrame(buf *render.VertexBuffer) (*render.VertexBuffer, render.Uniforms)
	// Pick maps a screen coordinate to the ID of the node rendered there.
	Pick(screenX, screenY float64) (string, bool)
	// Camera returns the current camera state.
	Camera() render.Camera
	Stats() Stats
}

type Stats struct {
	Iterations    int     `json:"iterations"`
	Nodes         int     `json:"nodes"`
	KineticEnergy float64 `json:"kineticEnergy"`
	Converged     bool    `json:"converged"`
	Truncated     int     `json:"truncated"`
	Clock         float64 `json:"clock"`
}

type Config struct {
	Simulation layout.Config
	// Viewport size in pixels at startup.
	Width, Height float64
	NodeScale     float64
	// MaxVertices caps the vertex buffer at the device limit, zero means
	// unlimited.
	MaxVertices int
	// PickRadiusPx is the hit-test radius around the cursor in pixels.
	PickRadiusPx float64
}

const (
	minZoom = 0.05
	maxZoom = 50.0
)

// GraphEngine implements Engine on top of the force simulation.
type GraphEngine struct {
	mu      sync.Mutex
	conf    Config
	sim     *layout.Simulation
	builder render.Builder
	cam     render.Camera
	clock   float64

	// accepted tree state, updated synchronously on ingestion; the arena
	// is reconciled with it at the next step boundary
	tree     map[string]fstree.Node
	idByPath map[string]uint32
	pathByID map[uint32]string
	nextID   uint32

	pending []func()

	buffers   [2]*render.VertexBuffer
	front     int
	truncated int
}

var _ Engine = (*GraphEngine)(nil)

func NewGraphEngine(conf Config) *GraphEngine {
	if conf.Width == 0 || conf.Height == 0 {
		conf.Width, conf.Height = 1200, 800
	}
	if conf.NodeScale == 0 {
		conf.NodeScale = 1.0
	}
	if conf.PickRadiusPx == 0 {
		conf.PickRadiusPx = 16.0
	}
	return &GraphEngine{
		conf:     conf,
		sim:      layout.NewSimulation(conf.Simulation),
		builder:  render.Builder{MaxVertices: conf.MaxVertices},
		cam:      render.NewCamera(conf.Width, conf.Height),
		tree:     map[string]fstree.Node{},
		idByPath: map[string]uint32{},
		pathByID: map[uint32]string{},
	}
}

func (e *GraphEngine) ApplySnapshot(s *fstree.Snapshot) error {
	if s == nil {
		metrics.SnapshotsRejected.Inc()
		return errors.Wrap(fstree.ErrEmptySnapshot, "nil snapshot")
	}
	if err := s.Validate(); err != nil {
		metrics.SnapshotsRejected.Inc()
		return errors.Wrap(err, "rejecting snapshot")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tree = make(map[string]fstree.Node, len(s.Nodes))
	for _, n := range s.Nodes {
		e.tree[n.ID] = n
	}
	e.queueSync()
	metrics.SnapshotsApplied.WithLabelValues("full").Inc()
	log.Debug().Str("revision", s.Revision.String()).Int("nodes", len(s.Nodes)).Msg("snapshot accepted")
	return nil
}

func (e *GraphEngine) ApplyDiff(d fstree.Diff) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	// reject the diff as a whole before touching any state
	known := make(map[string]bool, len(d.Added))
	for _, n := range d.Added {
		if _, exists := e.tree[n.ID]; exists || known[n.ID] {
			metrics.SnapshotsRejected.Inc()
			return errors.Wrapf(fstree.ErrDuplicateID, "diff adds %q twice", n.ID)
		}
		if _, ok := e.tree[n.ParentID]; n.ParentID != "" && !ok && !known[n.ParentID] {
			metrics.SnapshotsRejected.Inc()
			return errors.Wrapf(fstree.ErrDanglingParent, "diff adds %q below unknown %q", n.ID, n.ParentID)
		}
		known[n.ID] = true
	}
	for _, n := range d.Changed {
		if _, exists := e.tree[n.ID]; !exists {
			metrics.SnapshotsRejected.Inc()
			return errors.Errorf("diff changes unknown node %q", n.ID)
		}
	}
	for _, n := range d.Added {
		e.tree[n.ID] = n
	}
	for _, n := range d.Changed {
		e.tree[n.ID] = n
	}
	for _, id := range d.Removed {
		e.removeSubtree(id)
	}
	e.queueSync()
	metrics.SnapshotsApplied.WithLabelValues("diff").Inc()
	return nil
}

// removeSubtree drops a node and all of its descendants from the accepted
// tree, so a diff may name just the removed directory.
func (e *GraphEngine) removeSubtree(id string) {
	delete(e.tree, id)
	for childID, n := range e.tree {
		if n.ParentID == id {
			e.removeSubtree(childID)
		}
	}
}

func (e *GraphEngine) Pan(dx, dy float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, func() {
		e.cam.Center = e.cam.Center.Add(vector.Vector{dx / e.cam.Zoom, -dy / e.cam.Zoom})
	})
}

func (e *GraphEngine) ZoomBy(factor float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, func() {
		zoom := e.cam.Zoom * factor
		if zoom < minZoom {
			zoom = minZoom
		} else if zoom > maxZoom {
			zoom = maxZoom
		}
		e.cam.Zoom = zoom
	})
}

func (e *GraphEngine) Resize(width, height float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, func() {
		e.cam.Width, e.cam.Height = width, height
	})
}

func (e *GraphEngine) Relayout() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, e.sim.Reheat)
}

// Step applies all queued updates, then advances the simulation. The node
// set and camera stay fixed for the duration of the step.
func (e *GraphEngine) Step(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, fn := range e.pending {
		fn()
	}
	e.pending = e.pending[:0]
	start := time.Now()
	e.sim.Step(dt)
	e.clock += dt
	metrics.LayoutSteps.Inc()
	metrics.StepDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.KineticEnergy.Set(e.sim.KineticEnergy())
	metrics.NodesSimulated.Set(float64(e.sim.Len()))
	if recovered := e.sim.RecoveredNodes(); recovered > 0 {
		metrics.NodesRecovered.Add(float64(recovered))
		log.Warn().Int("nodes", recovered).Msg("reset nodes from non-finite positions")
	}
}

func (e *GraphEngine) Frame() (*render.VertexBuffer, render.Uniforms) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// write the buffer that is not in flight, then swap
	back := 1 - e.front
	e.buffers[back] = e.builder.Build(e.sim.Nodes(), e.cam, e.buffers[back])
	e.front = back
	e.truncated = e.buffers[back].Truncated
	metrics.FramesBuilt.Inc()
	if e.truncated > 0 {
		metrics.VerticesTruncated.Add(float64(e.truncated))
	}
	return e.buffers[back], render.BuildUniforms(e.cam, e.clock, e.conf.NodeScale)
}

// CopyFrame builds into a buffer the double-buffer pair never sees, so the
// caller may keep reading it while the render loop keeps calling Frame.
func (e *GraphEngine) CopyFrame(buf *render.VertexBuffer) (*render.VertexBuffer, render.Uniforms) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf = e.builder.Build(e.sim.Nodes(), e.cam, buf)
	return buf, render.BuildUniforms(e.cam, e.clock, e.conf.NodeScale)
}

func (e *GraphEngine) Pick(screenX, screenY float64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	world := e.cam.Unproject(screenX, screenY)
	id, ok := e.sim.Nearest(world, e.conf.PickRadiusPx/e.cam.Zoom)
	if !ok {
		metrics.PickQueries.WithLabelValues("miss").Inc()
		return "", false
	}
	metrics.PickQueries.WithLabelValues("hit").Inc()
	return e.pathByID[id], true
}

func (e *GraphEngine) Camera() render.Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cam
}

// Positions returns the current world position of every node, keyed by path.
// Used by the offline layout command and debug tooling.
func (e *GraphEngine) Positions() map[string][2]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string][2]float64, len(e.idByPath))
	for path, id := range e.idByPath {
		if idx, ok := e.sim.IndexOf(id); ok {
			n := e.sim.Nodes()[idx]
			out[path] = [2]float64{n.Pos.X(), n.Pos.Y()}
		}
	}
	return out
}

func (e *GraphEngine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Iterations:    e.sim.Iterations(),
		Nodes:         e.sim.Len(),
		KineticEnergy: e.sim.KineticEnergy(),
		Converged:     e.sim.Converged(),
		Truncated:     e.truncated,
		Clock:         e.clock,
	}
}

func (e *GraphEngine) queueSync() {
	e.pending = append(e.pending, e.syncArena)
}

// syncArena reconciles the simulation arena with the accepted tree. Runs at
// a step boundary: removed nodes leave the arena, new nodes enter near their
// parent, changed nodes keep their position but update size, mass and color.
func (e *GraphEngine) syncArena() {
	removed := []uint32{}
	for path, id := range e.idByPath {
		if _, exists := e.tree[path]; !exists {
			removed = append(removed, id)
			delete(e.idByPath, path)
			delete(e.pathByID, id)
		}
	}
	e.sim.Remove(removed...)

	children := map[string]int{}
	for _, n := range e.tree {
		if n.ParentID != "" {
			children[n.ParentID]++
		}
	}
	for _, n := range e.sortedByDepth() {
		radius, mass, color := nodeStyle(n, children[n.ID])
		kind := layout.KindFile
		if n.Type == fstree.Directory {
			kind = layout.KindDirectory
		}
		if id, exists := e.idByPath[n.ID]; exists {
			e.sim.UpdateNode(id, func(ln *layout.Node) {
				ln.Kind = kind
				ln.Radius = radius
				ln.Mass = mass
				ln.Color = color
				ln.Parent = e.parentIndex(n)
			})
			continue
		}
		id := e.nextID
		e.nextID++
		e.idByPath[n.ID] = id
		e.pathByID[id] = n.ID
		e.sim.Insert(layout.Node{
			ID:     id,
			Kind:   kind,
			Parent: e.parentIndex(n),
			Radius: radius,
			Mass:   mass,
			Color:  color,
		})
	}
}

func (e *GraphEngine) parentIndex(n fstree.Node) int {
	if n.ParentID == "" {
		return -1
	}
	pid, ok := e.idByPath[n.ParentID]
	if !ok {
		return -1
	}
	if idx, ok := e.sim.IndexOf(pid); ok {
		return idx
	}
	return -1
}

// sortedByDepth orders the accepted tree parents-first, so parent arena
// indices exist by the time a child is inserted.
func (e *GraphEngine) sortedByDepth() []fstree.Node {
	depth := func(n fstree.Node) int {
		d := 0
		for n.ParentID != "" {
			parent, ok := e.tree[n.ParentID]
			if !ok {
				break
			}
			d++
			n = parent
		}
		return d
	}
	byDepth := map[int][]fstree.Node{}
	maxDepth := 0
	for _, n := range e.tree {
		d := depth(n)
		byDepth[d] = append(byDepth[d], n)
		maxDepth = max(maxDepth, d)
	}
	out := make([]fstree.Node, 0, len(e.tree))
	for d := 0; d <= maxDepth; d++ {
		level := byDepth[d]
		// map iteration order is random; sort for deterministic arenas
		sortNodesByID(level)
		out = append(out, level...)
	}
	return out
}

func sortNodesByID(nodes []fstree.Node) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
}

// nodeStyle derives render attributes from file metadata: directory radius
// grows with child count, file radius with size.
func nodeStyle(n fstree.Node, childCount int) (radius, mass float64, color [4]float32) {
	if n.Type == fstree.Directory {
		radius = 3.0 + 1.5*math.Log2(float64(childCount)+1)
		color = [4]float32{1.0, 0.72, 0.30, 1.0}
	} else {
		radius = 2.0 + math.Log10(float64(n.Size)+1)
		color = [4]float32{0.36, 0.68, 1.0, 1.0}
	}
	mass = radius * radius / 4.0
	return radius, mass, color
}
