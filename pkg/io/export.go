package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/deciduous/pkg/graph"
)

type jsonGraph struct {
	Title      string     `json:"title,omitempty"`
	Filter     []string   `json:"filter,omitempty"`
	Categories []string   `json:"categories"`
	Nodes      []jsonNode `json:"nodes"`
	Edges      []jsonEdge `json:"edges"`
}

type jsonNode struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Label    string `json:"label"`
	Builtin  bool   `json:"builtin,omitempty"`
}

type jsonEdge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Tag         string `json:"tag,omitempty"`
	Backwards   bool   `json:"backwards,omitempty"`
	Implemented bool   `json:"implemented"`
}

// WriteJSON encodes a graph as JSON and writes it to w.
// Nodes and edges keep their creation order, so the output is stable for a
// given document.
func WriteJSON(g *graph.Graph, w io.Writer) error {
	out := jsonGraph{
		Title:      g.Title(),
		Filter:     g.FilterSet(),
		Categories: []string{},
		Nodes:      make([]jsonNode, 0, g.NodeCount()),
		Edges:      make([]jsonEdge, 0, g.EdgeCount()),
	}
	for _, c := range g.Categories() {
		out.Categories = append(out.Categories, string(c))
	}
	for _, n := range g.Nodes() {
		out.Nodes = append(out.Nodes, jsonNode{
			ID:       n.ID,
			Category: string(n.Category),
			Label:    n.Label,
			Builtin:  n.Builtin,
		})
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, jsonEdge{
			From:        e.From,
			To:          e.To,
			Tag:         e.Tag,
			Backwards:   e.Backwards,
			Implemented: e.Implemented,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a graph to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(g, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
