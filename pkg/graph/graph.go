package graph

import (
	"errors"
	"slices"

	"github.com/matzehuels/deciduous/pkg/document"
)

var (
	// ErrInvalidNodeID is returned by [New] when a node ID is empty.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [New] when two nodes share an ID.
	// Node IDs must be unique across the whole graph.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [New] when an edge's From node
	// does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [New] when an edge's To node
	// does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")
)

// Node is a vertex of the attack graph.
type Node struct {
	ID       string
	Category document.Category
	Label    string
	// Builtin marks the implicit reality root, which the document references
	// but never declares.
	Builtin bool
}

// Edge is a resolved "enables" relationship. From is always the
// prerequisite and To the node it enables, regardless of Backwards.
type Edge struct {
	From string
	To   string
	Tag  string // free-form annotation, empty when absent
	// Backwards reverses the rendered arrow only. Graph algorithms always
	// follow From -> To.
	Backwards bool
	// Implemented is false for controls that are planned but not built.
	Implemented bool
}

// Graph is an immutable attack graph. Nodes and edges keep their creation
// order, which downstream emitters rely on for byte-stable output.
//
// The zero value is an empty graph. All accessors return copies, so a Graph
// can be shared freely between goroutines once built.
type Graph struct {
	title    string
	filter   []string
	nodes    []Node
	index    map[string]int
	edges    []Edge
	outgoing map[string][]string // nodeID -> dependent IDs
	incoming map[string][]string // nodeID -> prerequisite IDs
}

// New creates a graph from explicit nodes and edges.
// Returns ErrInvalidNodeID or ErrDuplicateNodeID for bad node IDs, and
// ErrUnknownSourceNode or ErrUnknownTargetNode for dangling edges.
// Multiple edges between the same pair of nodes are allowed.
func New(title string, filter []string, nodes []Node, edges []Edge) (*Graph, error) {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, ErrInvalidNodeID
		}
		if seen[n.ID] {
			return nil, ErrDuplicateNodeID
		}
		seen[n.ID] = true
	}
	for _, e := range edges {
		if !seen[e.From] {
			return nil, ErrUnknownSourceNode
		}
		if !seen[e.To] {
			return nil, ErrUnknownTargetNode
		}
	}
	return newGraph(title, slices.Clone(filter), slices.Clone(nodes), slices.Clone(edges)), nil
}

// newGraph indexes already-validated slices. It takes ownership of them.
func newGraph(title string, filter []string, nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		title:    title,
		filter:   filter,
		nodes:    nodes,
		index:    make(map[string]int, len(nodes)),
		edges:    edges,
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
	for i, n := range nodes {
		g.index[n.ID] = i
	}
	for _, e := range edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], e.To)
		g.incoming[e.To] = append(g.incoming[e.To], e.From)
	}
	return g
}

// Title returns the document title, or "" when absent.
func (g *Graph) Title() string { return g.title }

// FilterSet returns the focus node IDs named by the document's filter
// section, in authored order.
func (g *Graph) FilterSet() []string { return slices.Clone(g.filter) }

// Nodes returns all nodes in creation order.
func (g *Graph) Nodes() []Node { return slices.Clone(g.nodes) }

// Edges returns all edges in creation order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given ID and true, or the zero Node and
// false if not found.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Children returns the IDs of nodes this node enables, one entry per edge.
// Returns nil if the node has no children or doesn't exist.
func (g *Graph) Children(id string) []string { return slices.Clone(g.outgoing[id]) }

// Parents returns the IDs of this node's prerequisites, one entry per edge.
// Returns nil if the node has no parents or doesn't exist.
func (g *Graph) Parents(id string) []string { return slices.Clone(g.incoming[id]) }

// Categories returns the categories present among the nodes, in canonical
// section order. An empty graph has no categories.
func (g *Graph) Categories() []document.Category {
	present := make(map[document.Category]bool, len(document.Categories))
	for _, n := range g.nodes {
		present[n.Category] = true
	}
	var out []document.Category
	for _, c := range document.Categories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// HasCycle reports whether following edges From -> To can return to a
// node. Cycles are legal in attack graphs (an attack may defeat the
// mitigation that blocks its own prerequisite); this is a diagnostic only.
//
// Detection runs in O(N+E) time using depth-first search.
func (g *Graph) HasCycle() bool {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var hasCycle bool

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, child := range g.outgoing[id] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
			}
			if hasCycle {
				return
			}
		}
		color[id] = black
	}

	for _, n := range g.nodes {
		if color[n.ID] == white {
			dfs(n.ID)
			if hasCycle {
				return true
			}
		}
	}
	return false
}

// NodeIDs extracts the ID from each node in a slice.
// Returns a new slice containing the IDs in the same order as the input.
func NodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
