// Package nodelink writes attack graphs as Graphviz node-link diagrams.
//
// # Usage
//
// Emit the DOT description of a (possibly filtered) graph, then lay it out:
//
//	res := nodelink.Emit(g)
//	if res.Worth() {
//	    svg, err := nodelink.Layout(ctx, res.DOT, "svg")
//	}
//
// # DOT Format
//
// [Emit] writes one node statement per node and one edge statement per
// edge, in the graph's creation order. Styling comes from the
// [github.com/matzehuels/deciduous/pkg/render/styles] table: node fill and
// border by category, edge colour by target category, and a dashed line for
// controls that are not implemented yet.
//
// # Dependencies
//
// [Layout] uses [github.com/goccy/go-graphviz], a WebAssembly build of
// Graphviz, so no system installation is required.
package nodelink
