// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "encoding/json"

// TreeNode is one node of a single-direction call tree.
//
// Children holds callees for a callee tree and callers for a caller tree;
// Direction decides which JSON key they are emitted under. Expanded holds
// whether the node's neighbours were materialized: an expanded node always
// emits its list (possibly empty), while leaves cut by a loop, a missing
// entity or the depth bound emit none.
type TreeNode struct {
	ID         int64
	Symbol     string
	Kind       string
	Filename   string
	StartLine  int
	EndLine    int
	Parameters string
	ReturnType string
	DocComment string

	// CallLine is the line of the edge that produced this node (0 at the root).
	CallLine int

	// Loop marks a node already present on the current descent path.
	Loop bool

	// NotFound marks an unresolved root or a dangling edge target.
	NotFound bool

	// Truncated is set on the root when the node budget cut the tree short.
	Truncated bool

	Direction Direction
	Expanded  bool
	Children  []*TreeNode
}

// NewTreeNode builds an unexpanded tree node from an entity row.
func NewTreeNode(e Entity, dir Direction) *TreeNode {
	return &TreeNode{
		ID:         e.ID,
		Symbol:     e.Symbol,
		Kind:       e.Kind,
		Filename:   e.Filename,
		StartLine:  e.StartLine,
		EndLine:    e.EndLine,
		Parameters: e.Parameters,
		ReturnType: e.ReturnType,
		DocComment: e.DocComment,
		Direction:  dir,
	}
}

// NotFoundTree is the sentinel returned when the root symbol does not resolve.
func NotFoundTree(symbol string, dir Direction) *TreeNode {
	return &TreeNode{Symbol: symbol, NotFound: true, Direction: dir}
}

// Walk visits n and every descendant depth-first, parents before children.
func (n *TreeNode) Walk(fn func(node *TreeNode, depth int)) {
	n.walk(fn, 0)
}

func (n *TreeNode) walk(fn func(node *TreeNode, depth int), depth int) {
	fn(n, depth)
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// Size returns the number of nodes in the tree.
func (n *TreeNode) Size() int {
	count := 0
	n.Walk(func(*TreeNode, int) { count++ })
	return count
}

type treeNodeJSON struct {
	ID         int64        `json:"id,omitempty"`
	Symbol     string       `json:"symbol"`
	Kind       string       `json:"kind,omitempty"`
	Filename   string       `json:"filename,omitempty"`
	StartLine  int          `json:"start_line,omitempty"`
	EndLine    int          `json:"end_line,omitempty"`
	Parameters string       `json:"parameters,omitempty"`
	ReturnType string       `json:"return_type,omitempty"`
	DocComment string       `json:"doc_comment,omitempty"`
	CallLine   int          `json:"call_line,omitempty"`
	Loop       bool         `json:"loop,omitempty"`
	NotFound   bool         `json:"not_found,omitempty"`
	Truncated  bool         `json:"truncated,omitempty"`
	Children   *[]*TreeNode `json:"children,omitempty"`
	Callers    *[]*TreeNode `json:"callers,omitempty"`
}

// MarshalJSON emits the child list as "children" or "callers".
func (n *TreeNode) MarshalJSON() ([]byte, error) {
	out := treeNodeJSON{
		ID:         n.ID,
		Symbol:     n.Symbol,
		Kind:       n.Kind,
		Filename:   n.Filename,
		StartLine:  n.StartLine,
		EndLine:    n.EndLine,
		Parameters: n.Parameters,
		ReturnType: n.ReturnType,
		DocComment: n.DocComment,
		CallLine:   n.CallLine,
		Loop:       n.Loop,
		NotFound:   n.NotFound,
		Truncated:  n.Truncated,
	}
	if n.Expanded {
		children := n.Children
		if children == nil {
			children = []*TreeNode{}
		}
		if n.Direction == Callers {
			out.Callers = &children
		} else {
			out.Children = &children
		}
	}
	return json.Marshal(out)
}
