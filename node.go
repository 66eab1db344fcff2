// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

package loctree

import (
	"slices"

	"github.com/voxa/loctree/internal/store"
)

// nodeConfig is the immutable split/depth policy shared by every node in
// one tree, threaded through recursive calls instead of stored per-node.
type nodeConfig struct {
	maxDepth   int
	maxObjects int
}

// Node is a recursive spatial partition with eight children. Each node
// holds the index-store head of the objects that straddle its own split
// (the "loose" objects, Invariant P) — see §3, §4.2.
type Node struct {
	box      AABB
	level    int
	head     int32
	children *[8]*Node // nil: leaf
}

func newNode(box AABB, level int) *Node {
	return &Node{box: box, level: level, head: store.NoNext}
}

// Box returns the AABB this node covers.
func (n *Node) Box() AABB { return n.box }

// Level returns the node's depth from the root (root is 0).
func (n *Node) Level() int { return n.level }

// IsLeaf reports whether the node has not yet been split.
func (n *Node) IsLeaf() bool { return n.children == nil }

func aabbFromBounds(b [6]float32) AABB {
	return AABB{
		Min: Vec3{b[0], b[1], b[2]},
		Max: Vec3{b[3], b[4], b[5]},
	}
}

func boundsFromAABB(a AABB) [6]float32 {
	return [6]float32{a.Min.X, a.Min.Y, a.Min.Z, a.Max.X, a.Max.Y, a.Max.Z}
}

// childBox returns the axis-aligned sub-box for octant i (0..7) of
// parent, per the canonical order in §4.2: bit 0 selects x, bit 1
// selects y, bit 2 selects z; a 0 bit means [min,center], a 1 bit
// [center,max].
func childBox(parent AABB, i int) AABB {
	c := parent.Center()
	box := parent

	if i&1 == 0 {
		box.Max.X = c.X
	} else {
		box.Min.X = c.X
	}
	if i&2 == 0 {
		box.Max.Y = c.Y
	} else {
		box.Min.Y = c.Y
	}
	if i&4 == 0 {
		box.Max.Z = c.Z
	} else {
		box.Min.Z = c.Z
	}

	return box
}

// classify returns the octant index 0..7 that box fits into strictly
// (tested against parent's midplanes), or -1 if box straddles any
// midplane and must stay at parent (§4.2).
func classify(parent AABB, box AABB) int {
	c := parent.Center()
	idx := 0

	switch {
	case box.Max.X <= c.X:
		// bit 0 stays 0
	case box.Min.X >= c.X:
		idx |= 1
	default:
		return -1
	}

	switch {
	case box.Max.Y <= c.Y:
	case box.Min.Y >= c.Y:
		idx |= 2
	default:
		return -1
	}

	switch {
	case box.Max.Z <= c.Z:
	case box.Min.Z >= c.Z:
		idx |= 4
	default:
		return -1
	}

	return idx
}

// attachFunc pushes a record (however it is sourced — freshly allocated
// or relocated from an existing index) to the front of the list rooted
// at head, returning the new head. insert and split share this so the
// placement logic (the tree walk) doesn't care whether the record is new.
type attachFunc func(head int32) int32

// insert walks down from n to the node that should own box, per §4.2:
// self-filter on non-intersection, delegate into a classified child,
// otherwise prepend here and split if this pushes a leaf over capacity.
func (n *Node) insert(st *store.Store, box AABB, cfg nodeConfig, attach attachFunc) {
	if !n.box.Intersects(box) {
		return
	}

	if !n.IsLeaf() {
		if ci := classify(n.box, box); ci >= 0 {
			n.children[ci].insert(st, box, cfg, attach)
			return
		}
	}

	n.head = attach(n.head)

	if n.IsLeaf() && n.level < cfg.maxDepth && st.Length(n.head) >= cfg.maxObjects {
		n.split(st, cfg)
	}
}

// split creates eight children per the canonical octant order, then
// redistributes this node's own list: records that now classify into a
// single child are relocated there (reusing the insert walk, which may
// recursively split that child); records that still straddle a midplane
// stay on this node's own list (Invariant P). Existing store indices are
// relinked in place via Store.Prepend — nothing is freed or reallocated,
// so no index is ever orphaned. Splitting is one-shot; nodes never merge.
func (n *Node) split(st *store.Store, cfg nodeConfig) {
	var children [8]*Node
	for i := range children {
		children[i] = newNode(childBox(n.box, i), n.level+1)
	}
	n.children = &children

	oldHead := n.head
	n.head = store.NoNext

	for cur := oldHead; cur != store.NoNext; {
		rec := st.ReadBoxed(cur)
		next := rec.Next
		box := aabbFromBounds(rec.Bounds)

		idx := cur
		relocate := func(head int32) int32 { return st.Prepend(idx, head) }

		if ci := classify(n.box, box); ci >= 0 {
			n.children[ci].insert(st, box, cfg, relocate)
		} else {
			n.head = relocate(n.head)
		}

		cur = next
	}
}

// remove walks down from n looking for id, pruned by box unless prune is
// false (the caller has no bounds to prune with — §9, §12). Returns
// whether a record was actually removed anywhere in the subtree.
func (n *Node) remove(st *store.Store, box AABB, id int32, prune bool) bool {
	if prune && !n.box.Intersects(box) {
		return false
	}

	newHead, removed := st.Free(n.head, id)
	n.head = newHead
	if removed {
		return true
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			if c.remove(st, box, id, prune) {
				return true
			}
		}
	}

	return false
}

// aabbQuery recurses into children, then emits this node's own list,
// filtered to records whose bounds intersect box. Returns false if the
// visitor asked to stop, so callers up the stack can also stop.
func (n *Node) aabbQuery(st *store.Store, box AABB, visit func(id int32) bool) bool {
	if !n.box.Intersects(box) {
		return true
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			if !c.aabbQuery(st, box, visit) {
				return false
			}
		}
	}

	cont := true
	st.Traverse(n.head, true, func(bounds [6]float32, id int32) bool {
		if aabbFromBounds(bounds).Intersects(box) {
			cont = visit(id)
		}
		return cont
	})

	return cont
}

// frustumQuery mirrors aabbQuery, substituting frustum overlap tests for
// the box ones.
func (n *Node) frustumQuery(st *store.Store, fr Frustum, visit func(id int32) bool) bool {
	if !fr.Overlaps(n.box) {
		return true
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			if !c.frustumQuery(st, fr, visit) {
				return false
			}
		}
	}

	cont := true
	st.Traverse(n.head, true, func(bounds [6]float32, id int32) bool {
		if fr.Overlaps(aabbFromBounds(bounds)) {
			cont = visit(id)
		}
		return cont
	})

	return cont
}

// RayHit is one ray-object intersection: id plus the reported distance.
type RayHit struct {
	ID       int32
	Distance float32
}

// maxRaycastStack bounds the explicit stack used by raycast and
// frustumRaycast: depth is bounded by the configured max depth (≤ 8 by
// default), so 64 frames is generous headroom (§5, §9).
const maxRaycastStack = 64

// raycast walks the tree iteratively with an explicit stack, visiting the
// near-most unexplored child first. Every visited node (leaf or interior)
// is slab-tested against its own object list; all hits anywhere on the
// ray are appended, there is no global far-pruning (§4.2).
func (n *Node) raycast(st *store.Store, ray Ray, out *[]RayHit) {
	*out = (*out)[:0]
	invDir := ray.Dir.invDir()

	var stack [maxRaycastStack]*Node
	sp := 0
	stack[sp] = n
	sp++

	type childDist struct {
		node *Node
		t    float32
	}
	var survivors [8]childDist

	for sp > 0 {
		sp--
		cur := stack[sp]

		st.Traverse(cur.head, true, func(bounds [6]float32, id int32) bool {
			box := aabbFromBounds(bounds)
			if t, hit := rayIntersect(ray.Origin, invDir, box); hit {
				*out = append(*out, RayHit{ID: id, Distance: t})
			}
			return true
		})

		if cur.IsLeaf() {
			continue
		}

		m := 0
		for _, c := range cur.children {
			if t, ok := entryDistance(ray.Origin, invDir, c.box); ok {
				survivors[m] = childDist{c, t}
				m++
			}
		}

		// ascending by t, nearest child first.
		slices.SortFunc(survivors[:m], func(a, b childDist) int {
			switch {
			case a.t < b.t:
				return -1
			case a.t > b.t:
				return 1
			default:
				return 0
			}
		})

		// push in reverse order so the nearest child is popped first.
		for i := m - 1; i >= 0; i-- {
			if sp >= len(stack) {
				break
			}
			stack[sp] = survivors[i].node
			sp++
		}
	}
}

// VisibleNode is the envelope delivered to a frustumRaycast visitor: the
// node itself, its distance from the ray origin, and (at most) the
// closest ray hit found in its own list so far, if any.
type VisibleNode struct {
	Node     *Node
	Distance float32
	MouseHit *RayHit
}

// frustumRaycast performs the combined "draw visible + pick nearest" walk
// described in §4.2: a single depth-first pass that prunes on frustum
// overlap, tracks a monotonically-shrinking closest_hit_distance shared
// across the whole walk, and (by design, not a bug — §9) does not sort
// children near-to-far, since the visitor also needs breadth for LOD.
func (n *Node) frustumRaycast(st *store.Store, fr Frustum, ray Ray, visit func(VisibleNode) bool) {
	invDir := ray.Dir.invDir()
	closest := inf

	var stack [maxRaycastStack]*Node
	sp := 0
	stack[sp] = n
	sp++

	for sp > 0 {
		sp--
		cur := stack[sp]

		if !fr.Overlaps(cur.box) {
			continue
		}
		if cur.head == store.NoNext && cur.IsLeaf() {
			continue
		}

		env := VisibleNode{
			Node:     cur,
			Distance: vecDistance(cur.box.Center(), ray.Origin),
		}

		if tEnter, ok := entryDistance(ray.Origin, invDir, cur.box); ok && tEnter < closest && cur.head != store.NoNext {
			st.Traverse(cur.head, true, func(bounds [6]float32, id int32) bool {
				box := aabbFromBounds(bounds)
				if t, hit := rayIntersect(ray.Origin, invDir, box); hit && t < closest {
					closest = t
					env.MouseHit = &RayHit{ID: id, Distance: t}
				}
				return true
			})
		}

		if !visit(env) {
			return
		}

		if !cur.IsLeaf() {
			for _, c := range cur.children {
				if sp >= len(stack) {
					break
				}
				stack[sp] = c
				sp++
			}
		}
	}
}

func vecDistance(a, b Vec3) float32 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return sqrtf32(dx*dx + dy*dy + dz*dz)
}

// clear wipes this node back to an empty leaf. Children, if any, are
// simply dropped (the store itself is cleared separately by the façade).
func (n *Node) clear() {
	n.children = nil
	n.head = store.NoNext
}
