package scene

import (
	"fmt"
	"iter"
	"math"
)

// NodeID identifies a node of a Graph. Root is the implicit root node.
type NodeID uint32

// Root is the root node of every graph. It is also the "no node" value in
// sibling and child links, since the root is never a child.
const Root NodeID = 0

// CommandKind is the type of a render graph command.
type CommandKind uint8

// Command kinds.
const (
	// CommandRoot is the root node. It draws nothing.
	CommandRoot CommandKind = iota
	// CommandDrawImmediate draws a triangle list from the graph's Vertices.
	CommandDrawImmediate
	// CommandDrawRect draws rounded rectangles from the graph's RectVertices.
	CommandDrawRect
)

func (k CommandKind) String() string {
	switch k {
	case CommandRoot:
		return "Root"
	case CommandDrawImmediate:
		return "DrawImmediate"
	case CommandDrawRect:
		return "DrawRect"
	default:
		return fmt.Sprintf("CommandKind(%d)", k)
	}
}

// Command is the payload of a node: a range of the graph's shared index
// stream. Root commands have an empty range.
type Command struct {
	Kind       CommandKind
	FirstIndex uint32
	NumIndices uint32
}

type node struct {
	next       NodeID
	firstChild NodeID
	lastChild  NodeID
	command    Command
}

// Graph is a per-frame tree of draw commands.
//
// Nodes are appended to a flat array and linked to their parent's child
// list. Vertex and index data is appended to flat buffers owned by the
// graph; index values are rebased against the vertex array they address
// (Vertices for immediate draws, RectVertices for rectangles), so both
// index ranges can be issued directly against their uploaded buffers.
//
// A Graph is append-only. Call Reset to reuse its storage for the next
// frame.
type Graph struct {
	Vertices     []Vertex
	RectVertices []RectVertex
	Indices      []uint16

	nodes []node
}

// New returns a graph holding only the root node.
func New() *Graph {
	g := &Graph{}
	g.Reset()
	return g
}

// Reset drops every node and payload, keeping allocated capacity.
func (g *Graph) Reset() {
	g.Vertices = g.Vertices[:0]
	g.RectVertices = g.RectVertices[:0]
	g.Indices = g.Indices[:0]
	g.nodes = append(g.nodes[:0], node{command: Command{Kind: CommandRoot}})
}

// Len returns the number of nodes, including the root.
func (g *Graph) Len() int { return len(g.nodes) }

// Empty reports whether the graph has no draw commands.
func (g *Graph) Empty() bool { return len(g.nodes) <= 1 }

// DrawImmediate appends a triangle list under parent. indices address
// vertices and are rebased onto the graph's vertex buffer.
func (g *Graph) DrawImmediate(parent NodeID, vertices []Vertex, indices []uint16) NodeID {
	base := len(g.Vertices)
	if base+len(vertices) > math.MaxUint16+1 {
		panic(fmt.Sprintf("scene: %d immediate vertices exceed the 16-bit index range", base+len(vertices)))
	}
	g.Vertices = append(g.Vertices, vertices...)

	first := len(g.Indices)
	for _, i := range indices {
		g.Indices = append(g.Indices, i+uint16(base)) //nolint:gosec // G115: checked above
	}
	return g.push(parent, Command{
		Kind:       CommandDrawImmediate,
		FirstIndex: uint32(first),        //nolint:gosec // G115: slice length
		NumIndices: uint32(len(indices)), //nolint:gosec // G115: slice length
	})
}

// DrawRect appends a rectangle under parent.
func (g *Graph) DrawRect(parent NodeID, r *DrawRect) NodeID {
	vertices, indices := r.vertices()

	base := len(g.RectVertices)
	if base+len(vertices) > math.MaxUint16+1 {
		panic(fmt.Sprintf("scene: %d rectangle vertices exceed the 16-bit index range", base+len(vertices)))
	}
	g.RectVertices = append(g.RectVertices, vertices[:]...)

	first := len(g.Indices)
	for _, i := range indices {
		g.Indices = append(g.Indices, i+uint16(base)) //nolint:gosec // G115: checked above
	}
	return g.push(parent, Command{
		Kind:       CommandDrawRect,
		FirstIndex: uint32(first), //nolint:gosec // G115: slice length
		NumIndices: uint32(len(indices)),
	})
}

func (g *Graph) push(parent NodeID, cmd Command) NodeID {
	if int(parent) >= len(g.nodes) {
		panic(fmt.Sprintf("scene: parent node %d does not exist", parent))
	}
	id := NodeID(len(g.nodes)) //nolint:gosec // G115: node count is bounded by memory
	g.nodes = append(g.nodes, node{command: cmd})

	p := &g.nodes[parent]
	if p.firstChild == Root {
		p.firstChild = id
	} else {
		g.nodes[p.lastChild].next = id
	}
	p.lastChild = id
	return id
}

// Get returns the command of n.
func (g *Graph) Get(n NodeID) Command {
	return g.nodes[n].command
}

// Children iterates over the children of n in insertion order.
func (g *Graph) Children(n NodeID) iter.Seq[NodeID] {
	return func(yield func(NodeID) bool) {
		for c := g.nodes[n].firstChild; c != Root; c = g.nodes[c].next {
			if !yield(c) {
				return
			}
		}
	}
}

// Walk visits every node below the root depth-first, parents before their
// children and siblings in insertion order. Returning false from fn skips
// the node's children.
func (g *Graph) Walk(fn func(id NodeID, cmd Command) bool) {
	g.walk(Root, fn)
}

func (g *Graph) walk(n NodeID, fn func(NodeID, Command) bool) {
	for c := range g.Children(n) {
		if fn(c, g.nodes[c].command) {
			g.walk(c, fn)
		}
	}
}
