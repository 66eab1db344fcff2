// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

package loctree

import (
	"fmt"
	"io"
	"strings"

	"github.com/voxa/loctree/internal/store"
)

// nodeType classifies a node for dump output: whether it owns straddling
// records of its own, has children, both, or neither.
type nodeType byte

const (
	nullNode         nodeType = iota // leaf, empty
	fullNode                         // straddling records and children
	leafWithRecords                  // leaf, non-empty
	intermediateNode                 // children only, own list empty
)

// DumpString renders the whole tree structure, useful during development
// and debugging (§10.1 — this is a developer aid, never called on the
// per-call hot path).
func (o *Octree) DumpString() string {
	w := new(strings.Builder)
	o.Dump(w)
	return w.String()
}

// Dump writes the tree structure and every node's own-list contents to w.
func (o *Octree) Dump(w io.Writer) {
	if o == nil {
		return
	}
	fmt.Fprintf(w, "### octree: root %v, maxDepth=%d, maxObjects=%d\n",
		o.cfg.RootBox, o.cfg.MaxDepth, o.cfg.MaxObjects)
	o.root.dumpRec(w, o.store)
}

func (n *Node) dumpRec(w io.Writer, st *store.Store) {
	n.dumpSelf(w, st)
	if n.IsLeaf() {
		return
	}
	for i, c := range n.children {
		fmt.Fprintf(w, "%sdescending into child %d\n", strings.Repeat(".", n.level+1), i)
		c.dumpRec(w, st)
	}
}

func (n *Node) dumpSelf(w io.Writer, st *store.Store) {
	indent := strings.Repeat(".", n.level)
	count := st.Length(n.head)

	fmt.Fprintf(w, "%s[%s] depth: %d box: %s records: %d\n",
		indent, n.hasType(count), n.level, boxString(n.box), count)

	if count == 0 {
		return
	}

	fmt.Fprintf(w, "%sids:", indent)
	st.Traverse(n.head, true, func(_ [6]float32, id int32) bool {
		fmt.Fprintf(w, " %d", id)
		return true
	})
	fmt.Fprintln(w)
}

func boxString(a AABB) string {
	return fmt.Sprintf("[%.2f,%.2f,%.2f]-[%.2f,%.2f,%.2f]",
		a.Min.X, a.Min.Y, a.Min.Z, a.Max.X, a.Max.Y, a.Max.Z)
}

// String implements Stringer for nodeType.
func (nt nodeType) String() string {
	switch nt {
	case nullNode:
		return "NULL"
	case fullNode:
		return "FULL"
	case leafWithRecords:
		return "LEAF"
	case intermediateNode:
		return "IMED"
	default:
		return "unreachable"
	}
}

func (n *Node) hasType(ownCount int) nodeType {
	switch {
	case ownCount == 0 && n.IsLeaf():
		return nullNode
	case ownCount != 0 && !n.IsLeaf():
		return fullNode
	case ownCount != 0:
		return leafWithRecords
	default:
		return intermediateNode
	}
}
