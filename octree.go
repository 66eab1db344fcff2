// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

// Package loctree implements a dynamic loose octree: a three-dimensional
// spatial index over axis-aligned bounding volumes, with AABB overlap,
// frustum culling, ray intersection and a combined frustum+ray
// visitation, backed by a pooled, array-based record store.
//
// The engine is single-threaded and synchronous (§5): every exported
// method on Octree runs to completion in the calling goroutine and does
// not retain any lock or background state between calls.
package loctree

import (
	"errors"

	"github.com/voxa/loctree/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultMaxDepth is the default maximum node depth (root is 0).
	DefaultMaxDepth = 8
	// DefaultMaxObjects is the default per-node object count that
	// triggers a split.
	DefaultMaxObjects = 16
	// DefaultRootSide is the side length of the default cubic root box,
	// centered at the origin.
	DefaultRootSide = 1000
)

// Config is the façade's configuration triple (§3): root volume, maximum
// depth, and the per-node object count that triggers a split.
type Config struct {
	RootBox    AABB
	MaxDepth   int
	MaxObjects int
}

// DefaultConfig returns the spec's default configuration: max depth 8,
// max objects 16, a cube of side 1000 centered at the origin.
func DefaultConfig() Config {
	return Config{
		RootBox:    CubeAABB(Vec3{}, DefaultRootSide),
		MaxDepth:   DefaultMaxDepth,
		MaxObjects: DefaultMaxObjects,
	}
}

// Option configures an Octree at construction time.
type Option func(*Octree)

// WithRootBox overrides the default root volume.
func WithRootBox(box AABB) Option {
	return func(o *Octree) { o.cfg.RootBox = box }
}

// WithMaxDepth overrides the default maximum node depth.
func WithMaxDepth(d int) Option {
	return func(o *Octree) { o.cfg.MaxDepth = d }
}

// WithMaxObjects overrides the default per-node split threshold.
func WithMaxObjects(n int) Option {
	return func(o *Octree) { o.cfg.MaxObjects = n }
}

// WithLogger installs a logger used only for one rare, structurally
// significant event: record-store growth. Node splits are not logged.
// The engine's per-call hot path never logs (§7: errors are local and
// silent, not observable events). A nil logger (the default) installs
// zap.NewNop(), matching the pack's objectstore.NewObjectStore guard.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *Octree) {
		if log == nil {
			log = zap.NewNop().Sugar()
		}
		o.log = log
	}
}

// Object is the insert/remove/update payload: bounds plus a caller-owned
// id. Uniqueness of id across the tree is the caller's responsibility
// (§3). The zero value of ID is 0, which is also the façade's default
// when a caller omits it (§4.3) — nothing special is needed in Go to
// implement that default, it falls out of the zero value.
type Object struct {
	Bounds AABB
	ID     int32
}

// Octree is the public façade: it owns one record Store and one root
// Node, holds the configuration triple, and implements every operation
// in terms of the root (§4.3 — pure delegation).
type Octree struct {
	cfg   Config
	store *store.Store
	root  *Node
	log   *zap.SugaredLogger
}

// New constructs an Octree. Construction-time misconfiguration (a
// negative MaxDepth, a non-positive MaxObjects, or a degenerate root box where some
// axis has Min > Max) is the one place this package returns an error —
// everything afterwards is silent per §7.
func New(opts ...Option) (*Octree, error) {
	o := &Octree{cfg: DefaultConfig(), log: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(o)
	}

	if o.cfg.MaxDepth < 0 {
		return nil, errors.New("loctree: MaxDepth must be >= 0")
	}
	if o.cfg.MaxObjects <= 0 {
		return nil, errors.New("loctree: MaxObjects must be > 0")
	}
	box := o.cfg.RootBox
	if box.Min.X > box.Max.X || box.Min.Y > box.Max.Y || box.Min.Z > box.Max.Z {
		return nil, errors.New("loctree: RootBox has Min greater than Max on some axis")
	}

	o.store = store.New()
	o.store.SetGrowHook(func(oldCap, newCap int) {
		o.log.Debugw("record store grew", "old_capacity", oldCap, "new_capacity", newCap)
	})
	o.root = newNode(box, 0)

	return o, nil
}

func (o *Octree) cfgForWalk() nodeConfig {
	return nodeConfig{maxDepth: o.cfg.MaxDepth, maxObjects: o.cfg.MaxObjects}
}

// Insert places obj in the tree (§4.2). An object whose bounds do not
// intersect the root box is silently dropped (§7 — out-of-bounds insert).
func (o *Octree) Insert(obj Object) {
	bounds := boundsFromAABB(obj.Bounds)
	id := obj.ID
	attach := func(head int32) int32 {
		return o.store.Allocate(head, bounds, id)
	}
	o.root.insert(o.store, obj.Bounds, o.cfgForWalk(), attach)
}

// Remove deletes the first record matching obj.ID from the tree. If
// obj.Bounds is the zero value, pruning is disabled for this walk — the
// worker transport's remove command carries no bounds, so every node is
// visited regardless of intersection (§9, §12). Removal of an unknown or
// already-removed id is a silent no-op (§7).
func (o *Octree) Remove(obj Object) {
	prune := !obj.Bounds.IsZero()
	o.root.remove(o.store, obj.Bounds, obj.ID, prune)
}

// Update is remove-then-insert. The remove half uses only obj.ID, not
// obj's bounds, which is the one way the spec's single-bounds update
// message can be honored: the remove walk runs with pruning disabled, so it finds the
// id regardless of where its old bounds happened to live, and the
// insert walk then places it by its new bounds. If the new bounds miss
// the root box, the insert half is silently dropped and the object is
// simply gone (§9 — this is documented, not a bug: callers streaming
// past the configured root must expand it first).
func (o *Octree) Update(obj Object) {
	o.root.remove(o.store, zeroAABB, obj.ID, false)
	o.Insert(obj)
}

// AabbQuery visits the id of every live record whose bounds intersect
// box. Duplicate emission is impossible: each record lives at exactly
// one node (§4.2). Returning false from visit stops the walk early.
func (o *Octree) AabbQuery(box AABB, visit func(id int32) bool) {
	o.root.aabbQuery(o.store, box, visit)
}

// FrustumQuery visits the id of every live record whose bounds overlap
// the frustum.
func (o *Octree) FrustumQuery(fr Frustum, visit func(id int32) bool) {
	o.root.frustumQuery(o.store, fr, visit)
}

// Raycast resets out's length (keeping its storage, §4.3) and appends
// every {id, distance} hit found anywhere along ray, near-to-far within
// each branch but with no global far-pruning (§4.2).
func (o *Octree) Raycast(ray Ray, out *[]RayHit) {
	o.root.raycast(o.store, ray, out)
}

// FrustumRaycast runs the combined per-frame "draw visible + pick
// nearest" walk (§4.2): visit is invoked once per frustum-visible node
// that holds records of its own or has children (empty leaves are
// skipped), with the best ray hit found in that node (if it beat
// every closer hit seen so far in the walk) attached as MouseHit.
func (o *Octree) FrustumRaycast(fr Frustum, ray Ray, visit func(VisibleNode) bool) {
	o.root.frustumRaycast(o.store, fr, ray, visit)
}

// Clear wipes the whole tree: the store first, then the root (§4.3).
func (o *Octree) Clear() {
	o.store.Clear()
	o.root.clear()
}

// Config returns the façade's active configuration.
func (o *Octree) Config() Config { return o.cfg }
