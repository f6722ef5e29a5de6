// Package graph builds the immutable attack graph compiled from a document.
//
// # Overview
//
// [Build] walks a validated [document.Document] once and produces a [Graph]
// of typed nodes and "enables" edges:
//
//	doc, _ := document.Parse(src)
//	g := graph.Build(doc)
//	fmt.Println(g.NodeCount(), g.EdgeCount())
//
// # Direction
//
// An edge always points from the prerequisite (the node named in a from
// list) to the node that lists it. The Backwards flag only affects how the
// arrow is drawn; [Graph.Parents], [Graph.Children] and every traversal in
// the transform subpackage follow the semantic direction.
//
// # Ordering
//
// Nodes are created in section order (facts, attacks, mitigations, goals)
// and edges in the order their from entries were authored. This order is
// preserved by every derived graph so that emitted DOT is byte-stable.
//
// # Immutability
//
// A Graph is never modified after construction; derived graphs (for example
// the result of a path filter) are new values created with [New]. Accessors
// return copies.
package graph
