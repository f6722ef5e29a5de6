package nodelink

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/graph"
	"github.com/matzehuels/deciduous/pkg/render/styles"
)

// Result is the output of [Emit].
type Result struct {
	// DOT is the Graphviz description of the graph.
	DOT string
	// Categories lists the node categories present, in section order.
	Categories []document.Category
	// HasTitle reports whether the graph carries a title.
	HasTitle bool
}

// Worth reports whether the result contains anything to lay out. A graph
// with a title but no nodes is not worth rendering.
func (r Result) Worth() bool { return len(r.Categories) > 0 }

// Emit converts a graph to Graphviz DOT.
//
// Output is deterministic: nodes and edges are written in the graph's
// creation order and attributes in table order, so emitting the same graph
// twice yields identical text. Every identifier, label and tag is quoted
// and escaped, so authored text can never break the description.
//
// Edges flagged Backwards are written with swapped endpoints and
// dir="back": the arrow still points at the dependent node, but Graphviz
// ranks the dependent above its prerequisite. Tags become edge xlabels.
func Emit(g *graph.Graph) Result {
	var buf bytes.Buffer
	buf.WriteString("digraph {\n")
	for _, a := range styles.Graph(g.Title()) {
		fmt.Fprintf(&buf, "  %s=%s;\n", a.Key, quote(a.Value))
	}
	fmt.Fprintf(&buf, "  node [%s];\n", fmtAttrs(styles.NodeDefaults()))
	fmt.Fprintf(&buf, "  edge [%s];\n", fmtAttrs(styles.EdgeDefaults()))

	nodes := g.Nodes()
	if len(nodes) > 0 {
		buf.WriteString("\n")
	}
	for _, n := range nodes {
		attrs := styles.Attrs{{Key: "label", Value: n.Label}}
		if n.Builtin {
			attrs = append(attrs, styles.Reality()...)
		} else {
			attrs = append(attrs, styles.Node(n.Category)...)
		}
		fmt.Fprintf(&buf, "  %s [%s];\n", quoteID(n.ID), fmtAttrs(attrs))
	}

	edges := g.Edges()
	if len(edges) > 0 {
		buf.WriteString("\n")
	}
	for _, e := range edges {
		from, _ := g.Node(e.From)
		to, _ := g.Node(e.To)
		attrs := styles.Edge(from.Category, to.Category, e.Implemented)
		if e.Tag != "" {
			attrs = attrs.With("xlabel", e.Tag)
		}
		src, dst := e.From, e.To
		if e.Backwards {
			src, dst = dst, src
			attrs = attrs.With("dir", "back")
		}
		fmt.Fprintf(&buf, "  %s -> %s [%s];\n", quoteID(src), quoteID(dst), fmtAttrs(attrs))
	}

	buf.WriteString("}\n")
	return Result{
		DOT:        buf.String(),
		Categories: g.Categories(),
		HasTitle:   g.Title() != "",
	}
}

func fmtAttrs(attrs styles.Attrs) string {
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = a.Key + "=" + quote(a.Value)
	}
	return strings.Join(parts, " ")
}

var dotEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// idEscaper keeps every line ending distinct, so two ids that differ only
// in line endings stay two nodes.
var idEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)

// quote renders s as a DOT double-quoted string. Line endings of any kind
// become centered line breaks.
func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// quoteID renders a node id as a DOT double-quoted string. Unlike [quote]
// it is injective.
func quoteID(s string) string {
	return `"` + idEscaper.Replace(s) + `"`
}
