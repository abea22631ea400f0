// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/relgraph/services/relgraph/model"
)

// Renderer writes trees, graphs and heat maps as text.
//
// With Plain set no styling is applied, which keeps output stable for
// pipes and tests.
type Renderer struct {
	Plain bool
}

func (r Renderer) style(s lipgloss.Style, text string) string {
	if r.Plain {
		return text
	}
	return s.Render(text)
}

func (r Renderer) icon(i Icon) string {
	if r.Plain {
		return string(i)
	}
	return i.Render()
}

// Tree writes tree as an indented outline:
//
//	serve  server.go:12
//	└── main  cmd/app/main.go:10  (line 22)
func (r Renderer) Tree(w io.Writer, tree *model.TreeNode) error {
	if tree.NotFound {
		_, err := fmt.Fprintf(w, "%s %s: symbol not found\n", r.icon(IconNotFound), tree.Symbol)
		return err
	}

	var b strings.Builder
	b.WriteString(r.style(Styles.Title, tree.Symbol))
	b.WriteString(r.location(tree))
	b.WriteString("\n")
	r.children(&b, tree.Children, "")
	if tree.Truncated {
		fmt.Fprintf(&b, "%s %s\n", r.icon(IconCut), r.style(Styles.Warning, "truncated: node limit reached"))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r Renderer) children(b *strings.Builder, nodes []*model.TreeNode, prefix string) {
	for i, n := range nodes {
		branch, next := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, next = "└── ", "    "
		}
		b.WriteString(r.style(Styles.Guide, prefix+branch))
		b.WriteString(r.line(n))
		b.WriteString("\n")
		r.children(b, n.Children, prefix+next)
	}
}

func (r Renderer) line(n *model.TreeNode) string {
	var parts []string
	switch {
	case n.NotFound:
		parts = append(parts, r.icon(IconNotFound)+" "+r.style(Styles.Error, fmt.Sprintf("%s#%d", n.Symbol, n.ID)))
	default:
		parts = append(parts, r.style(Styles.Symbol, n.Symbol)+r.location(n))
	}
	if n.CallLine > 0 {
		parts = append(parts, r.style(Styles.Muted, fmt.Sprintf("(line %d)", n.CallLine)))
	}
	if n.Loop {
		parts = append(parts, r.icon(IconLoop)+" "+r.style(Styles.Warning, "loop"))
	}
	return strings.Join(parts, "  ")
}

func (r Renderer) location(n *model.TreeNode) string {
	if n.Filename == "" {
		return ""
	}
	return "  " + r.style(Styles.Muted, fmt.Sprintf("%s:%d", n.Filename, n.StartLine))
}

// Graph writes a node table followed by an edge list.
func (r Renderer) Graph(w io.Writer, g *model.GraphResult) error {
	if g.Root == nil {
		_, err := fmt.Fprintf(w, "%s symbol not found\n", r.icon(IconNotFound))
		return err
	}

	var b strings.Builder
	names := make(map[int64]string, len(g.Nodes))
	fmt.Fprintf(&b, "%s\n", r.style(Styles.Title, fmt.Sprintf("nodes (%d)", len(g.Nodes))))
	for _, n := range g.Nodes {
		names[n.ID] = n.Symbol
		fmt.Fprintf(&b, "  %s\n", r.graphNode(n))
	}
	fmt.Fprintf(&b, "%s\n", r.style(Styles.Title, fmt.Sprintf("edges (%d)", len(g.Edges))))
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "  %s %s %s  %s\n",
			r.style(Styles.Symbol, names[e.From]),
			r.icon(IconArrow),
			r.style(Styles.Symbol, names[e.To]),
			r.style(Styles.Muted, edgeInfo(e)),
		)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r Renderer) graphNode(n model.GraphNode) string {
	label := fmt.Sprintf("%-4d %s", n.ID, n.Symbol)
	switch {
	case n.IsRoot:
		return r.style(Styles.Title, label+" (root)")
	case n.NotFound:
		return r.icon(IconNotFound) + " " + r.style(Styles.Error, label)
	default:
		return r.style(Styles.Symbol, label) + "  " + r.style(Styles.Muted, n.Filename)
	}
}

func edgeInfo(e model.GraphEdge) string {
	parts := []string{fmt.Sprintf("line %d", e.Line)}
	if e.CalleeDepth != nil {
		parts = append(parts, fmt.Sprintf("callee depth %d", *e.CalleeDepth))
	}
	if e.CallerDepth != nil {
		parts = append(parts, fmt.Sprintf("caller depth %d", *e.CallerDepth))
	}
	return strings.Join(parts, ", ")
}

// Heatmap writes one heat bar per node in result order.
func (r Renderer) Heatmap(w io.Writer, h *model.HeatmapResult) error {
	if h.Root == nil {
		_, err := fmt.Fprintf(w, "%s symbol not found\n", r.icon(IconNotFound))
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.style(Styles.Title, fmt.Sprintf("heat (%s, %d nodes)", h.Strategy, len(h.Nodes))))
	for _, n := range h.Nodes {
		bar := HeatBar(n.Heat, 20)
		style := Styles.Symbol
		if n.Heat >= 0.75 {
			style = Styles.Warning
		}
		fmt.Fprintf(&b, "  %s %4.2f  %s\n", r.style(style, bar), n.Heat, n.Symbol)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
