// Package pkg provides the core libraries of the deciduous attack-tree
// compiler.
//
// # Overview
//
// Deciduous turns an attack tree written as YAML into a Graphviz diagram.
// Facts, attacks, mitigations and goals are declared in one document; each
// entry lists the nodes that enable it. The rendered diagram carries the
// document it came from, so a shared SVG or PNG can always be turned back
// into editable source.
//
// # Architecture
//
// The data flow through deciduous:
//
//	YAML document
//	      ↓
//	 [document] package (decode + validate the whole document)
//	      ↓
//	 [graph] package (immutable attack graph, implicit reality root)
//	      ↓
//	 [graph/transform] package (keep paths through the focus nodes)
//	      ↓
//	 [render/nodelink] package (emit DOT, lay out with Graphviz)
//	      ↓
//	 [provenance] package (embed the document in DOT, SVG or PNG)
//
// [pipeline] runs these stages behind a layout cache and is shared by the
// CLI, the watch loop and the HTTP host in [server].
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/deciduous/pkg/pipeline"
//	)
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(context.Background(), src, pipeline.Options{
//	    Formats: []string{"svg"},
//	    Embed:   true,
//	})
//	if err != nil {
//	    // errors.IsValidation(err) reports a rejected document.
//	}
//	svg := res.Artifacts["svg"]
//
// # Main Packages
//
// [document] - Document model and strict decoding. Validation is
// all-or-nothing: one unknown reference rejects the document.
//
// [graph] - The compiled graph with forward and backward adjacency.
//
// [render/styles] - The fixed category-to-attribute table.
//
// [render/nodelink] - DOT emission and Graphviz layout.
//
// [provenance] - Embedding and extracting the source document.
//
// [cache] - Layout cache backends: file (CLI), Redis (shared), null.
//
// [pipeline] - Compile, render and snapshot orchestration.
//
// [server] - HTTP host with Prometheus metrics.
//
// [config] - TOML configuration.
//
// [errors] - Structured error codes shared by every entry point.
//
// [io] - JSON export of the compiled graph.
//
// [observability] - Hooks for pipeline and cache events.
//
// # Testing
//
//	go test ./pkg/...          # All tests
//	go test -run Example ./... # Examples only
package pkg
