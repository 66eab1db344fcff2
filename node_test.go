// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

package loctree

import (
	"testing"

	"github.com/voxa/loctree/internal/store"
)

func TestClassifyStrictOctants(t *testing.T) {
	t.Parallel()
	parent := CubeAABB(Vec3{}, 10) // [-5,5]^3, center at origin

	cases := []struct {
		name string
		box  AABB
		want int
	}{
		{"all-low", AABB{Min: Vec3{-4, -4, -4}, Max: Vec3{-1, -1, -1}}, 0},
		{"x-high", AABB{Min: Vec3{1, -4, -4}, Max: Vec3{4, -1, -1}}, 1},
		{"y-high", AABB{Min: Vec3{-4, 1, -4}, Max: Vec3{-1, 4, -1}}, 2},
		{"xy-high", AABB{Min: Vec3{1, 1, -4}, Max: Vec3{4, 4, -1}}, 3},
		{"z-high", AABB{Min: Vec3{-4, -4, 1}, Max: Vec3{-1, -1, 4}}, 4},
		{"all-high", AABB{Min: Vec3{1, 1, 1}, Max: Vec3{4, 4, 4}}, 7},
		{"straddles-x", AABB{Min: Vec3{-1, -4, -4}, Max: Vec3{1, -1, -1}}, -1},
		{"straddles-all", AABB{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}, -1},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(parent, c.box); got != c.want {
				t.Fatalf("classify(%v) = %d, want %d", c.box, got, c.want)
			}
		})
	}
}

func TestChildBoxPartitionsParentExactly(t *testing.T) {
	t.Parallel()
	parent := CubeAABB(Vec3{}, 10)
	c := parent.Center()

	for i := 0; i < 8; i++ {
		b := childBox(parent, i)

		wantMinX, wantMaxX := parent.Min.X, c.X
		if i&1 != 0 {
			wantMinX, wantMaxX = c.X, parent.Max.X
		}
		if b.Min.X != wantMinX || b.Max.X != wantMaxX {
			t.Fatalf("childBox(%d) x-range = [%v,%v], want [%v,%v]", i, b.Min.X, b.Max.X, wantMinX, wantMaxX)
		}

		wantMinY, wantMaxY := parent.Min.Y, c.Y
		if i&2 != 0 {
			wantMinY, wantMaxY = c.Y, parent.Max.Y
		}
		if b.Min.Y != wantMinY || b.Max.Y != wantMaxY {
			t.Fatalf("childBox(%d) y-range = [%v,%v], want [%v,%v]", i, b.Min.Y, b.Max.Y, wantMinY, wantMaxY)
		}

		wantMinZ, wantMaxZ := parent.Min.Z, c.Z
		if i&4 != 0 {
			wantMinZ, wantMaxZ = c.Z, parent.Max.Z
		}
		if b.Min.Z != wantMinZ || b.Max.Z != wantMaxZ {
			t.Fatalf("childBox(%d) z-range = [%v,%v], want [%v,%v]", i, b.Min.Z, b.Max.Z, wantMinZ, wantMaxZ)
		}
	}
}

func TestNodeInsertSelfFiltersNonIntersecting(t *testing.T) {
	t.Parallel()
	st := store.New()
	n := newNode(CubeAABB(Vec3{}, 10), 0)
	cfg := nodeConfig{maxDepth: 4, maxObjects: 8}

	outside := AABB{Min: Vec3{100, 100, 100}, Max: Vec3{101, 101, 101}}
	n.insert(st, outside, cfg, func(head int32) int32 {
		return st.Allocate(head, boundsFromAABB(outside), 1)
	})

	if n.head != store.NoNext {
		t.Fatalf("expected nothing attached for an out-of-bounds insert")
	}
}

func TestNodeSplitRedistributesAndPreservesStraddlers(t *testing.T) {
	t.Parallel()
	st := store.New()
	n := newNode(CubeAABB(Vec3{}, 10), 0)
	cfg := nodeConfig{maxDepth: 4, maxObjects: 2}

	insert := func(box AABB, id int32) {
		n.insert(st, box, cfg, func(head int32) int32 {
			return st.Allocate(head, boundsFromAABB(box), id)
		})
	}

	straddle := AABB{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	insert(straddle, 1)
	insert(AABB{Min: Vec3{2, 2, 2}, Max: Vec3{3, 3, 3}}, 2)
	insert(AABB{Min: Vec3{2.2, 2.2, 2.2}, Max: Vec3{3.2, 3.2, 3.2}}, 3)

	if n.IsLeaf() {
		t.Fatalf("expected a split once the own list reached maxObjects")
	}

	foundStraddler := false
	st.Traverse(n.head, true, func(_ [6]float32, id int32) bool {
		if id == 1 {
			foundStraddler = true
		}
		return true
	})
	if !foundStraddler {
		t.Fatalf("expected the straddling object to remain on the node's own list after split")
	}

	ci := classify(n.box, AABB{Min: Vec3{2, 2, 2}, Max: Vec3{3, 3, 3}})
	if ci < 0 {
		t.Fatalf("expected the clustered objects to classify into a single octant")
	}
	found2, found3 := false, false
	st.Traverse(n.children[ci].head, true, func(_ [6]float32, id int32) bool {
		switch id {
		case 2:
			found2 = true
		case 3:
			found3 = true
		}
		return true
	})
	if !found2 || !found3 {
		t.Fatalf("expected both clustered objects relocated into child %d", ci)
	}
}

func TestNodeRemoveDescendsIntoChildren(t *testing.T) {
	t.Parallel()
	st := store.New()
	n := newNode(CubeAABB(Vec3{}, 10), 0)
	cfg := nodeConfig{maxDepth: 4, maxObjects: 1}

	box := AABB{Min: Vec3{2, 2, 2}, Max: Vec3{3, 3, 3}}
	n.insert(st, box, cfg, func(head int32) int32 {
		return st.Allocate(head, boundsFromAABB(box), 1)
	})
	box2 := AABB{Min: Vec3{2.1, 2.1, 2.1}, Max: Vec3{3.1, 3.1, 3.1}}
	n.insert(st, box2, cfg, func(head int32) int32 {
		return st.Allocate(head, boundsFromAABB(box2), 2)
	})

	if n.IsLeaf() {
		t.Fatalf("expected split")
	}

	if !n.remove(st, box, 1, true) {
		t.Fatalf("expected remove to find id 1 in a child")
	}

	var remaining []int32
	n.aabbQuery(st, n.box, func(id int32) bool {
		remaining = append(remaining, id)
		return true
	})
	if len(remaining) != 1 || remaining[0] != 2 {
		t.Fatalf("got %v, want [2]", remaining)
	}
}

func TestNodeClearDropsChildrenAndHead(t *testing.T) {
	t.Parallel()
	st := store.New()
	n := newNode(CubeAABB(Vec3{}, 10), 0)
	cfg := nodeConfig{maxDepth: 4, maxObjects: 1}
	box1 := AABB{Min: Vec3{1, 1, 1}, Max: Vec3{2, 2, 2}}
	n.insert(st, box1, cfg, func(head int32) int32 {
		return st.Allocate(head, boundsFromAABB(box1), 1)
	})
	box2 := AABB{Min: Vec3{1.1, 1.1, 1.1}, Max: Vec3{2.1, 2.1, 2.1}}
	n.insert(st, box2, cfg, func(head int32) int32 {
		return st.Allocate(head, boundsFromAABB(box2), 2)
	})
	if n.IsLeaf() {
		t.Fatalf("expected split before clear")
	}

	n.clear()
	if !n.IsLeaf() || n.head != store.NoNext {
		t.Fatalf("expected clear to reset node to an empty leaf")
	}
}
