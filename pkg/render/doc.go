// Package render groups the output stages of the attack-graph compiler.
//
// The [styles] subpackage holds the fixed category-to-attribute table and
// the [nodelink] subpackage turns a graph into Graphviz DOT and lays it out
// as SVG or PNG.
package render
