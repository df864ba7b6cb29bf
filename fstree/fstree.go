// Package fstree holds the snapshot model delivered by the filesystem data
// source: a flat list of file/directory records forming a tree via parent
// references. Snapshots are validated on construction; the layout engine only
// ever sees snapshots that passed validation.
package fstree

import (
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type NodeType uint8

const (
	File NodeType = iota
	Directory
)

func (t NodeType) String() string {
	if t == Directory {
		return "directory"
	}
	return "file"
}

// Node is a single filesystem entry. ID must be stable across snapshots of
// the same tree (the scanner uses slash-separated paths relative to the scan
// root). The root node has an empty ParentID.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Size     int64    `json:"size"`
	ParentID string   `json:"parentId,omitempty"`
}

// Snapshot is one validated state of the tree. Revision is assigned on
// construction and identifies the snapshot in logs and diffs.
type Snapshot struct {
	Revision uuid.UUID `json:"revision"`
	Nodes    []Node    `json:"nodes"`

	byID map[string]int
}

var (
	ErrEmptySnapshot  = errors.New("snapshot contains no nodes")
	ErrDuplicateID    = errors.New("duplicate node ID")
	ErrDanglingParent = errors.New("parent ID does not exist in snapshot")
	ErrNoRoot         = errors.New("no root node (empty parent ID) found")
	ErrMultipleRoots  = errors.New("more than one root node found")
	ErrNotATree       = errors.New("node not reachable from root (cycle or disconnected)")
	ErrParentNotDir   = errors.New("parent node is not a directory")
)

// NewSnapshot validates nodes and returns a snapshot, or the first validation
// error encountered. On error the caller keeps whatever state it had before.
func NewSnapshot(nodes []Node) (*Snapshot, error) {
	s := &Snapshot{Revision: uuid.New(), Nodes: nodes}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate re-checks the snapshot invariants, for snapshots not built via
// NewSnapshot (e.g. decoded from JSON).
func (s *Snapshot) Validate() error {
	return s.validate()
}

func (s *Snapshot) validate() error {
	if len(s.Nodes) == 0 {
		return ErrEmptySnapshot
	}
	s.byID = make(map[string]int, len(s.Nodes))
	root := -1
	for i, n := range s.Nodes {
		if _, exists := s.byID[n.ID]; exists {
			return errors.Wrapf(ErrDuplicateID, "id=%q", n.ID)
		}
		s.byID[n.ID] = i
		if n.ParentID == "" {
			if root != -1 {
				return errors.Wrapf(ErrMultipleRoots, "ids=%q,%q", s.Nodes[root].ID, n.ID)
			}
			root = i
		}
	}
	if root == -1 {
		return ErrNoRoot
	}
	children := make(map[int][]int, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.ParentID == "" {
			continue
		}
		p, exists := s.byID[n.ParentID]
		if !exists {
			return errors.Wrapf(ErrDanglingParent, "id=%q, parent=%q", n.ID, n.ParentID)
		}
		if s.Nodes[p].Type != Directory {
			return errors.Wrapf(ErrParentNotDir, "id=%q, parent=%q", n.ID, n.ParentID)
		}
		children[p] = append(children[p], i)
	}
	// parent references alone cannot prove tree shape: a cycle among
	// non-root nodes passes the checks above, so walk from the root
	seen := 0
	stack := []int{root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		seen++
		stack = append(stack, children[i]...)
	}
	if seen != len(s.Nodes) {
		return errors.Wrapf(ErrNotATree, "reachable=%d, total=%d", seen, len(s.Nodes))
	}
	return nil
}

// Lookup returns the node with the given ID.
func (s *Snapshot) Lookup(id string) (Node, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Node{}, false
	}
	return s.Nodes[i], true
}

// Root returns the snapshot's root node.
func (s *Snapshot) Root() Node {
	for _, n := range s.Nodes {
		if n.ParentID == "" {
			return n
		}
	}
	return Node{}
}

// ChildCount returns the number of direct children of the given node.
func (s *Snapshot) ChildCount(id string) int {
	count := 0
	for _, n := range s.Nodes {
		if n.ParentID == id {
			count++
		}
	}
	return count
}

// SortedByDepth returns the snapshot's nodes ordered such that every parent
// appears before all of its children. Needed by consumers that build
// index-based arenas in one pass.
func (s *Snapshot) SortedByDepth() []Node {
	nodes := make([]Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	sort.SliceStable(nodes, func(i, j int) bool {
		return s.Depth(nodes[i].ID) < s.Depth(nodes[j].ID)
	})
	return nodes
}

// Depth returns the number of parent hops from the given node to the root.
func (s *Snapshot) Depth(id string) int {
	depth := 0
	n, ok := s.Lookup(id)
	for ok && n.ParentID != "" {
		depth++
		n, ok = s.Lookup(n.ParentID)
	}
	return depth
}

// Diff describes an incremental snapshot update: nodes to insert, IDs to
// drop, and nodes whose size or type changed in place.
type Diff struct {
	Added   []Node   `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []Node   `json:"changed,omitempty"`
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffSnapshots computes the incremental update that turns prev into next.
// Added nodes are ordered parents-first so they can be applied in one pass.
func DiffSnapshots(prev, next *Snapshot) Diff {
	d := Diff{}
	for _, n := range next.Nodes {
		old, exists := prev.Lookup(n.ID)
		if !exists {
			d.Added = append(d.Added, n)
		} else if old.Size != n.Size || old.Type != n.Type || old.ParentID != n.ParentID {
			d.Changed = append(d.Changed, n)
		}
	}
	for _, n := range prev.Nodes {
		if _, exists := next.Lookup(n.ID); !exists {
			d.Removed = append(d.Removed, n.ID)
		}
	}
	sort.SliceStable(d.Added, func(i, j int) bool {
		return next.Depth(d.Added[i].ID) < next.Depth(d.Added[j].ID)
	})
	return d
}
