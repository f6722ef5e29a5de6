package pipeline

import (
	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/graph"
	"github.com/matzehuels/deciduous/pkg/graph/transform"
	"github.com/matzehuels/deciduous/pkg/render/nodelink"
)

// CompileOptions controls which part of the graph is emitted.
type CompileOptions struct {
	// Focus overrides the document's filter section when non-empty. Every
	// entry must name a node of the document.
	Focus []string `json:"focus,omitempty"`
	// NoFilter ignores the document's filter section.
	NoFilter bool `json:"no_filter,omitempty"`
}

// Compiled is the outcome of compiling one document.
type Compiled struct {
	// DOT is the Graphviz description of the (filtered) graph.
	DOT string
	// Categories lists the node categories present after filtering.
	Categories []document.Category
	// Title is the document title, or "".
	Title string
	// Graph is the filtered graph that DOT describes.
	Graph *graph.Graph
}

// Worth reports whether there is anything to lay out.
func (c *Compiled) Worth() bool { return len(c.Categories) > 0 }

// Compile turns document text into a DOT description.
//
// The document is decoded, validated and built into a graph; the focus set
// (the document filter, or opts.Focus) selects the paths to keep. Any
// decode or validation failure rejects the whole document: no partial
// graph is ever returned.
func Compile(src []byte, opts CompileOptions) (*Compiled, error) {
	doc, err := document.Parse(src)
	if err != nil {
		return nil, err
	}
	g := graph.Build(doc)

	focus := g.FilterSet()
	switch {
	case len(opts.Focus) > 0:
		for _, id := range opts.Focus {
			if _, ok := g.Node(id); !ok {
				return nil, &errors.FilterError{NodeID: id}
			}
		}
		focus = opts.Focus
	case opts.NoFilter:
		focus = nil
	}
	g = transform.FilterThrough(g, focus)

	res := nodelink.Emit(g)
	return &Compiled{
		DOT:        res.DOT,
		Categories: res.Categories,
		Title:      g.Title(),
		Graph:      g,
	}, nil
}
