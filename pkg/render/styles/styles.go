// Package styles maps attack-graph nodes and edges to Graphviz attributes.
//
// Styles are a fixed lookup table: nodes are keyed by category, edges by
// the triple (source category, target category, implemented). The table
// covers every combination the graph builder can produce; asking for an
// unmapped one is a programming error and panics.
package styles

import (
	"fmt"
	"slices"

	"github.com/matzehuels/deciduous/pkg/document"
)

// Attr is a single DOT attribute.
type Attr struct {
	Key   string
	Value string
}

// Attrs is an ordered attribute list. Order is preserved on emission so that
// repeated emissions are byte-identical.
type Attrs []Attr

// With returns a copy of a with key set to value appended.
func (a Attrs) With(key, value string) Attrs {
	out := make(Attrs, len(a), len(a)+1)
	copy(out, a)
	return append(out, Attr{Key: key, Value: value})
}

// Get returns the value for key and whether it is present.
func (a Attrs) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Palette.
const (
	colorDark       = "#2B303A"
	colorFact       = "#DDDDDD"
	colorFactLine   = "#888888"
	colorAttack     = "#ED96AC"
	colorAttackLine = "#DB2955"
	colorMitigation = "#ABD2FA"
	colorMitLine    = "#7692FF"
	colorGoal       = "#5F00C2"
	colorWhite      = "#FFFFFF"
	fontName        = "Arial"
)

type edgeKey struct {
	from, to    document.Category
	implemented bool
}

var nodeStyles = map[document.Category]Attrs{
	document.Fact: {
		{"fillcolor", colorFact},
		{"color", colorFactLine},
	},
	document.Attack: {
		{"fillcolor", colorAttack},
		{"color", colorAttackLine},
	},
	document.Mitigation: {
		{"fillcolor", colorMitigation},
		{"color", colorMitLine},
	},
	document.Goal: {
		{"fillcolor", colorGoal},
		{"color", colorGoal},
		{"fontcolor", colorWhite},
	},
}

// lineColor is the edge colour for an edge into a node of the given
// category: edges leading into a mitigation are blue, into an attack red,
// everything else dark.
var lineColor = map[document.Category]string{
	document.Fact:       colorDark,
	document.Attack:     colorAttackLine,
	document.Mitigation: colorMitLine,
	document.Goal:       colorDark,
}

var edgeStyles = buildEdgeStyles()

func buildEdgeStyles() map[edgeKey]Attrs {
	table := make(map[edgeKey]Attrs, len(document.Categories)*len(document.Categories)*2)
	for _, from := range document.Categories {
		for _, to := range document.Categories {
			solid := Attrs{{"color", lineColor[to]}}
			table[edgeKey{from, to, true}] = solid
			table[edgeKey{from, to, false}] = solid.With("style", "dashed")
		}
	}
	return table
}

// Graph returns the graph-level statements: the digraph defaults and, when
// title is non-empty, the graph label.
func Graph(title string) Attrs {
	attrs := Attrs{
		{"rankdir", "TB"},
		{"splines", "true"},
		{"overlap", "false"},
		{"nodesep", "0.2"},
		{"ranksep", "0.4"},
		{"fontname", fontName},
	}
	if title != "" {
		attrs = append(attrs, Attr{"label", title}, Attr{"labelloc", "t"}, Attr{"fontsize", "20"})
	}
	return attrs
}

// NodeDefaults returns the default attributes applied to every node.
func NodeDefaults() Attrs {
	return Attrs{
		{"shape", "box"},
		{"style", "filled,rounded"},
		{"fontname", fontName},
		{"margin", "0.2"},
	}
}

// EdgeDefaults returns the default attributes applied to every edge.
func EdgeDefaults() Attrs {
	return Attrs{
		{"fontname", fontName},
		{"color", colorDark},
	}
}

// Node returns the style for a node of category c.
// It panics if c is not a known category.
func Node(c document.Category) Attrs {
	attrs, ok := nodeStyles[c]
	if !ok {
		panic(fmt.Sprintf("styles: no node style for category %q", c))
	}
	return slices.Clone(attrs)
}

// Reality returns the style of the implicit reality root.
func Reality() Attrs {
	return Attrs{
		{"fillcolor", colorDark},
		{"color", colorDark},
		{"fontcolor", colorWhite},
	}
}

// Edge returns the style for an edge from a node of category from to a
// node of category to. Edges that are not implemented are dashed.
// It panics if either category is unknown.
func Edge(from, to document.Category, implemented bool) Attrs {
	attrs, ok := edgeStyles[edgeKey{from, to, implemented}]
	if !ok {
		panic(fmt.Sprintf("styles: no edge style for %s -> %s (implemented=%t)", from, to, implemented))
	}
	return slices.Clone(attrs)
}
