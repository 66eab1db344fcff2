// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

package loctree

import "math"

// Vec3 is a three-component coordinate or direction.
type Vec3 struct {
	X, Y, Z float32
}

// Add returns the componentwise sum.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Scale returns v scaled by s.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// invDir returns the componentwise reciprocal of v, permitting signed
// infinities when a component is zero. Callers precompute this once per
// ray and reuse it across every slab test in the walk (§4.4, §5 scratch).
func (v Vec3) invDir() Vec3 {
	return Vec3{1 / v.X, 1 / v.Y, 1 / v.Z}
}

// AABB is an axis-aligned bounding box with Min.c <= Max.c on every axis.
type AABB struct {
	Min, Max Vec3
}

// zeroAABB is the AABB zero value, used as the "no bounds supplied" sentinel
// accepted by Remove when the caller (e.g. the worker transport) does not
// carry the object's bounds.
var zeroAABB AABB

// IsZero reports whether a is the zero-value box. The worker transport's
// remove command has no bounds field; the dispatcher passes this sentinel
// through so the node walk disables AABB pruning (§9, §12).
func (a AABB) IsZero() bool {
	return a == zeroAABB
}

// Intersects reports whether a and b overlap, inclusive of shared faces:
// on every axis a.Min <= b.Max && b.Min <= a.Max.
func (a AABB) Intersects(b AABB) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// Center returns the box's centroid.
func (a AABB) Center() Vec3 {
	return Vec3{
		(a.Min.X + a.Max.X) / 2,
		(a.Min.Y + a.Max.Y) / 2,
		(a.Min.Z + a.Max.Z) / 2,
	}
}

// CubeAABB returns an axis-aligned cube of the given side length centered at c.
func CubeAABB(c Vec3, side float32) AABB {
	h := side / 2
	return AABB{
		Min: Vec3{c.X - h, c.Y - h, c.Z - h},
		Max: Vec3{c.X + h, c.Y + h, c.Z + h},
	}
}

// inf is the "miss" sentinel distance returned by the slab test.
var inf = float32(math.Inf(1))

func sqrtf32(f float32) float32 {
	return float32(math.Sqrt(float64(f)))
}

// Ray is an origin and a (not necessarily normalized) direction.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// slab runs the three-axis ray-AABB slab test (§4.4) against a
// precomputed invDir and returns the raw [tMin,tMax] interval plus
// ok=false on a genuine miss (tMin > tMax on some axis). It is the
// shared core for both Ray.Intersect (distance reporting) and the
// octree's near-to-far child ordering, which needs the raw, possibly
// negative, tMin rather than the tMin/tMax-resolved distance.
//
// The formula is taken verbatim from §4.4: t1, t2 are derived only from
// invDir and origin, so a ray parallel to a slab (dir.a == 0) produces
// the correct ±Inf intermediates and the comparisons still resolve to
// the right hit/miss without ever evaluating Inf-Inf.
func slab(origin, invDir Vec3, box AABB) (tMin, tMax float32, ok bool) {
	tMin = float32(math.Inf(-1))
	tMax = float32(math.Inf(1))

	axes := [3][4]float32{
		{origin.X, invDir.X, box.Min.X, box.Max.X},
		{origin.Y, invDir.Y, box.Min.Y, box.Max.Y},
		{origin.Z, invDir.Z, box.Min.Z, box.Max.Z},
	}

	for _, a := range axes {
		o, invd, lo, hi := a[0], a[1], a[2], a[3]

		t1 := (lo - o) * invd
		t2 := (hi - o) * invd
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tMin {
			tMin = t1
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return inf, inf, false
		}
	}

	return tMin, tMax, true
}

// entryDistance returns the raw slab tMin (which may be negative when the
// origin lies inside box) used by the octree raycast to rank children
// near-to-far, and ok=false only when the ray truly misses the box.
func entryDistance(origin, invDir Vec3, box AABB) (tMin float32, ok bool) {
	tMin, _, ok = slab(origin, invDir, box)
	if !ok {
		return inf, false
	}
	return tMin, true
}

// Intersect runs the full ray-AABB slab test (§4.4) and returns the
// reported hit distance: tMin if non-negative, else tMax if non-negative,
// else a miss. A ray originating inside box therefore reports tMax (the
// exit distance), per the §8 testable property.
func (r Ray) Intersect(box AABB) (t float32, hit bool) {
	return rayIntersect(r.Origin, r.Dir.invDir(), box)
}

func rayIntersect(origin, invDir Vec3, box AABB) (t float32, hit bool) {
	tMin, tMax, ok := slab(origin, invDir, box)
	if !ok {
		return inf, false
	}
	if tMin >= 0 {
		return tMin, true
	}
	if tMax >= 0 {
		return tMax, true
	}
	return inf, false
}

// Plane is an oriented plane normal·p + constant = 0, with the convention
// that normal points to the plane's positive (inside-the-frustum) side.
type Plane struct {
	Normal   Vec3
	Constant float32
}

func (p Plane) signedDistance(v Vec3) float32 {
	return p.Normal.X*v.X + p.Normal.Y*v.Y + p.Normal.Z*v.Z + p.Constant
}

// Frustum is a convex viewing volume bounded by six oriented planes.
type Frustum struct {
	Planes [6]Plane
}

// NewFrustumFromFloats builds a Frustum from the wire format used by the
// worker transport's frustumQuery (§6): planes[4k..4k+3] = (nx, ny, nz, c).
func NewFrustumFromFloats(planes [24]float32) Frustum {
	var f Frustum
	for k := 0; k < 6; k++ {
		f.Planes[k] = Plane{
			Normal:   Vec3{planes[4*k], planes[4*k+1], planes[4*k+2]},
			Constant: planes[4*k+3],
		}
	}
	return f
}

// Overlaps is the conservative frustum-AABB test: the box is outside iff,
// for some plane, its positive vertex (the corner furthest along the
// plane's normal) lies on the negative side.
func (f Frustum) Overlaps(box AABB) bool {
	for _, p := range f.Planes {
		pv := Vec3{box.Min.X, box.Min.Y, box.Min.Z}
		if p.Normal.X >= 0 {
			pv.X = box.Max.X
		}
		if p.Normal.Y >= 0 {
			pv.Y = box.Max.Y
		}
		if p.Normal.Z >= 0 {
			pv.Z = box.Max.Z
		}
		if p.signedDistance(pv) < 0 {
			return false
		}
	}
	return true
}
