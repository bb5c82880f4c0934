// Package scene holds loaded assets as an arena of nodes.
//
// Nodes are addressed by NodeID (their index in the arena) instead of by
// pointer, so two scenes built from the same source enumerate their nodes
// identically and can be correlated by index alone.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
)

// NodeID addresses a node inside its Scene.
type NodeID int

// NoNode is the parent of the root.
const NoNode NodeID = -1

// Kind is the role of a node.
type Kind uint8

const (
	// KindGroup only carries a transform.
	KindGroup Kind = iota
	// KindMesh draws Geometry with the node's world transform.
	KindMesh
	// KindInstanced draws shared Geometry once per entry of Instances, each
	// instance matrix applied under the node's own transform.
	KindInstanced
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindInstanced:
		return "instanced"
	default:
		return "unknown"
	}
}

// Node is one entry of the scene arena.
type Node struct {
	Name      string
	Kind      Kind
	Local     mgl32.Mat4
	Geometry  *Geometry
	Instances []mgl32.Mat4

	parent   NodeID
	children []NodeID
	removed  bool
}

// Parent returns the parent node id (NoNode for the root).
func (n *Node) Parent() NodeID {
	return n.parent
}

// Scene is a tree of nodes stored in an arena. Node 0 is the root group.
type Scene struct {
	Name  string
	nodes []Node
}

// New creates a scene containing only a root group.
func New(name string) *Scene {
	return &Scene{
		Name: name,
		nodes: []Node{{
			Name:   name,
			Kind:   KindGroup,
			Local:  mgl32.Ident4(),
			parent: NoNode,
		}},
	}
}

// Root returns the id of the root group.
func (s *Scene) Root() NodeID {
	return 0
}

// Add appends n under parent and returns its id. A removed or unknown parent
// returns NoNode and leaves the scene unchanged.
func (s *Scene) Add(parent NodeID, n Node) NodeID {
	if s.Node(parent) == nil {
		return NoNode
	}
	if n.Local == (mgl32.Mat4{}) {
		n.Local = mgl32.Ident4()
	}
	id := NodeID(len(s.nodes))
	n.parent = parent
	n.children = nil
	n.removed = false
	s.nodes = append(s.nodes, n)
	s.nodes[parent].children = append(s.nodes[parent].children, id)
	return id
}

// AddGroup adds a transform-only node.
func (s *Scene) AddGroup(parent NodeID, name string, local mgl32.Mat4) NodeID {
	return s.Add(parent, Node{Name: name, Kind: KindGroup, Local: local})
}

// AddMesh adds a mesh node.
func (s *Scene) AddMesh(parent NodeID, name string, geo *Geometry, local mgl32.Mat4) NodeID {
	return s.Add(parent, Node{Name: name, Kind: KindMesh, Geometry: geo, Local: local})
}

// AddInstanced adds a node drawing geo once per instance matrix.
func (s *Scene) AddInstanced(parent NodeID, name string, geo *Geometry, local mgl32.Mat4, instances []mgl32.Mat4) NodeID {
	return s.Add(parent, Node{Name: name, Kind: KindInstanced, Geometry: geo, Local: local, Instances: instances})
}

// Node returns the live node with the given id, or nil.
func (s *Scene) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(s.nodes) || s.nodes[id].removed {
		return nil
	}
	return &s.nodes[id]
}

// Children returns a copy of the child ids of id.
func (s *Scene) Children(id NodeID) []NodeID {
	n := s.Node(id)
	if n == nil {
		return nil
	}
	return append([]NodeID(nil), n.children...)
}

// Remove detaches id (and its subtree) from its parent. The root cannot be
// removed. Ids of other nodes stay valid.
func (s *Scene) Remove(id NodeID) bool {
	n := s.Node(id)
	if n == nil || id == s.Root() {
		return false
	}

	parent := &s.nodes[n.parent]
	for i, c := range parent.children {
		if c == id {
			parent.children = append(parent.children[:i:i], parent.children[i+1:]...)
			break
		}
	}

	s.markRemoved(id)
	return true
}

func (s *Scene) markRemoved(id NodeID) {
	s.nodes[id].removed = true
	for _, c := range s.nodes[id].children {
		s.markRemoved(c)
	}
}

// World returns the product of the local transforms from the root down to id.
func (s *Scene) World(id NodeID) mgl32.Mat4 {
	n := s.Node(id)
	if n == nil {
		return mgl32.Ident4()
	}
	if n.parent == NoNode {
		return n.Local
	}
	return s.World(n.parent).Mul4(n.Local)
}

// Walk visits live nodes depth-first, parents before children, children in
// insertion order.
func (s *Scene) Walk(fn func(id NodeID, n *Node)) {
	var visit func(id NodeID)
	visit = func(id NodeID) {
		fn(id, &s.nodes[id])
		for _, c := range s.nodes[id].children {
			visit(c)
		}
	}
	visit(s.Root())
}

// Find returns the ids of all live nodes of the given kind in Walk order.
func (s *Scene) Find(kind Kind) []NodeID {
	var ids []NodeID
	s.Walk(func(id NodeID, n *Node) {
		if n.Kind == kind {
			ids = append(ids, id)
		}
	})
	return ids
}

// Len returns the number of live nodes, root included.
func (s *Scene) Len() int {
	count := 0
	s.Walk(func(NodeID, *Node) { count++ })
	return count
}

// Clone returns a deep copy. Geometry buffers and instance arrays are copied,
// so mutating the clone never affects s.
func (s *Scene) Clone() *Scene {
	out := &Scene{Name: s.Name, nodes: make([]Node, len(s.nodes))}
	for i := range s.nodes {
		n := s.nodes[i]
		n.children = append([]NodeID(nil), n.children...)
		n.Instances = append([]mgl32.Mat4(nil), n.Instances...)
		if n.Geometry != nil {
			n.Geometry = n.Geometry.Clone()
		}
		out.nodes[i] = n
	}
	return out
}
