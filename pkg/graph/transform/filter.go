package transform

import "github.com/matzehuels/deciduous/pkg/graph"

// FilterThrough returns the subgraph of g made of every node that is an
// ancestor or a descendant of some focus node, plus the edges between them.
//
// Title, filter set and creation order are inherited from g. Focus IDs that
// do not name a node of g contribute nothing. When focus is empty, g itself
// is returned.
func FilterThrough(g *graph.Graph, focus []string) *graph.Graph {
	if len(focus) == 0 {
		return g
	}

	keep := make(map[string]bool)
	for _, f := range focus {
		if _, ok := g.Node(f); !ok {
			continue
		}
		closure(f, g.Parents, keep)
		closure(f, g.Children, keep)
	}

	var nodes []graph.Node
	for _, n := range g.Nodes() {
		if keep[n.ID] {
			nodes = append(nodes, n)
		}
	}
	var edges []graph.Edge
	for _, e := range g.Edges() {
		if keep[e.From] && keep[e.To] {
			edges = append(edges, e)
		}
	}

	out, err := graph.New(g.Title(), g.FilterSet(), nodes, edges)
	if err != nil {
		// Every retained edge has retained endpoints, so New cannot fail.
		panic("transform: filtered graph is inconsistent: " + err.Error())
	}
	return out
}

// Ancestors returns id and every node that reaches it, in breadth-first
// order starting at id. Returns nil if id is not in g.
func Ancestors(g *graph.Graph, id string) []string {
	if _, ok := g.Node(id); !ok {
		return nil
	}
	return closure(id, g.Parents, make(map[string]bool))
}

// Descendants returns id and every node reachable from it, in breadth-first
// order starting at id. Returns nil if id is not in g.
func Descendants(g *graph.Graph, id string) []string {
	if _, ok := g.Node(id); !ok {
		return nil
	}
	return closure(id, g.Children, make(map[string]bool))
}

// closure walks next breadth-first from start and returns the visited
// nodes in visit order. Every visited node is also marked in keep.
// Visits are tracked per walk: a node kept by an earlier cone must still be
// expanded when this walk reaches it.
func closure(start string, next func(string) []string, keep map[string]bool) []string {
	visited := map[string]bool{start: true}
	order := []string{start}
	keep[start] = true
	for i := 0; i < len(order); i++ {
		for _, n := range next(order[i]) {
			if visited[n] {
				continue
			}
			visited[n] = true
			keep[n] = true
			order = append(order, n)
		}
	}
	return order
}
