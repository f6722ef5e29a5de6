package graph

import "github.com/matzehuels/deciduous/pkg/document"

// Build converts a validated document into a graph.
//
// Sections are walked once in the order facts, attacks, mitigations, goals;
// within a section entries keep their authored order. Every from entry
// becomes exactly one edge from the referenced node to the owning node, so
// two entries naming the same prerequisite produce two edges.
//
// When the document references the implicit reality root without declaring
// it, a builtin fact node is created ahead of every authored node.
func Build(doc *document.Document) *Graph {
	nodes := make([]Node, 0, doc.NodeCount()+1)
	var edges []Edge

	if doc.UsesReality() {
		nodes = append(nodes, Node{
			ID:       document.RealityID,
			Category: document.Fact,
			Label:    document.RealityLabel,
			Builtin:  true,
		})
	}

	for _, c := range document.Categories {
		for _, def := range doc.Section(c) {
			nodes = append(nodes, Node{ID: def.ID, Category: c, Label: def.Label})
			for _, ref := range def.From {
				edges = append(edges, edgeFor(def.ID, ref))
			}
		}
	}

	filter := make([]string, len(doc.Filter))
	copy(filter, doc.Filter)
	return newGraph(doc.Title, filter, nodes, edges)
}

// edgeFor normalizes the from-entry variant into a uniform edge.
func edgeFor(owner string, ref document.EdgeRef) Edge {
	e := Edge{From: ref.Target(), To: owner, Implemented: true}
	switch r := ref.(type) {
	case document.TaggedRef:
		e.Tag = r.Tag
	case document.FlaggedRef:
		e.Tag = r.Tag
		e.Implemented = r.Implemented
		e.Backwards = r.Backwards
	}
	return e
}
