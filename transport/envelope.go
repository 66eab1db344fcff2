// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

// Package transport implements the wire envelope described in §6 of the
// spec: a command-oriented, per-batch protocol a worker-boundary adapter
// can speak against the loctree engine. §1 scopes the worker transport
// layer itself (the actual message channel / postMessage plumbing) out
// of this module — this package only supplies the envelope types and a
// synchronous Dispatcher that decodes them and calls the façade.
package transport

import (
	"github.com/google/uuid"
	"github.com/voxa/loctree"
	"golang.org/x/sync/errgroup"
)

// Command is one fire-and-forget batch entry (§6): insert, remove, or
// update. A batch is an ordered sequence of these delivered in one
// message; Dispatcher.RunBatch applies them strictly in order (§5).
type Command struct {
	Cmd string  `json:"cmd"`
	ID  int32   `json:"id"`
	Min [3]float32 `json:"min,omitempty"`
	Max [3]float32 `json:"max,omitempty"`
}

// QueryRequest is a request/response query command (§6), correlated by
// ID — a monotonic 32-bit id distinct from any object id.
type QueryRequest struct {
	Type      string     `json:"type"`
	ID        uint32     `json:"id"`
	Origin    [3]float32 `json:"origin,omitempty"`
	Direction [3]float32 `json:"direction,omitempty"`
	Min       [3]float32 `json:"min,omitempty"`
	Max       [3]float32 `json:"max,omitempty"`
	Planes    [24]float32 `json:"planes,omitempty"`
}

// RaycastHit is one entry of a raycast query's reply payload.
type RaycastHit struct {
	ID       int32   `json:"id"`
	Distance float32 `json:"distance"`
}

// Reply is the envelope returned for a query, echoing its correlation id.
type Reply struct {
	ID      uint32 `json:"id"`
	Payload any    `json:"payload"`
}

// Envelope wraps one message's worth of commands or queries with an
// opaque trace tag — a debugging aid not present in spec.md's wire
// format (§11), minted fresh per message so a host log can correlate a
// batch across the worker boundary without depending on any engine id.
type Envelope struct {
	Trace    string        `json:"trace"`
	Commands []Command     `json:"commands,omitempty"`
	Queries  []QueryRequest `json:"queries,omitempty"`
}

// NewEnvelope returns an Envelope with a freshly minted Trace tag.
func NewEnvelope() Envelope {
	return Envelope{Trace: uuid.NewString()}
}

// Dispatcher decodes envelopes and drives a loctree.Octree. It is itself
// stateless beyond the readiness flag (§6): callers own envelope
// delivery order.
type Dispatcher struct {
	engine *loctree.Octree
	ready  bool
}

// NewDispatcher wraps engine. Per §6, the backend's first message after
// construction signals readiness; MarkReady records that a Dispatcher
// has sent (or would send) that first message, so a proxy can check
// Ready before forwarding further requests.
func NewDispatcher(engine *loctree.Octree) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// MarkReady flips the readiness flag. Call once, after the Dispatcher's
// first outbound message.
func (d *Dispatcher) MarkReady() { d.ready = true }

// Ready reports whether MarkReady has been called.
func (d *Dispatcher) Ready() bool { return d.ready }

func vec3(a [3]float32) loctree.Vec3 {
	return loctree.Vec3{X: a[0], Y: a[1], Z: a[2]}
}

func boxFromMinMax(min, max [3]float32) loctree.AABB {
	return loctree.AABB{Min: vec3(min), Max: vec3(max)}
}

// RunBatch applies commands strictly in the order given (§5 ordering
// guarantee: a batch delivered in one message is applied in order).
func (d *Dispatcher) RunBatch(commands []Command) {
	for _, c := range commands {
		switch c.Cmd {
		case "insert":
			d.engine.Insert(loctree.Object{Bounds: boxFromMinMax(c.Min, c.Max), ID: c.ID})
		case "remove":
			// the remove command carries no bounds (§9, §12): the
			// façade disables pruning automatically for a zero box.
			d.engine.Remove(loctree.Object{ID: c.ID})
		case "update":
			d.engine.Update(loctree.Object{Bounds: boxFromMinMax(c.Min, c.Max), ID: c.ID})
		}
	}
}

// RunQueries answers a batch of query commands. Per §5, "reads posted
// after a write are answered against the post-write state" — so every
// query here actually runs against the engine strictly sequentially,
// one at a time, in the order given. Only the second phase — building
// each reply's payload from the already-collected result — runs
// concurrently via errgroup, since those payloads are independent of
// one another and this is pure marshaling, not a second engine call.
func (d *Dispatcher) RunQueries(queries []QueryRequest) ([]Reply, error) {
	type collected struct {
		req  QueryRequest
		ids  []int32
		hits []loctree.RayHit
	}

	results := make([]collected, len(queries))
	for i, q := range queries {
		switch q.Type {
		case "raycast":
			ray := loctree.Ray{Origin: vec3(q.Origin), Dir: vec3(q.Direction)}
			var hits []loctree.RayHit
			d.engine.Raycast(ray, &hits)
			results[i] = collected{req: q, hits: hits}

		case "aabbQuery":
			box := boxFromMinMax(q.Min, q.Max)
			var ids []int32
			d.engine.AabbQuery(box, func(id int32) bool {
				ids = append(ids, id)
				return true
			})
			results[i] = collected{req: q, ids: ids}

		case "frustumQuery":
			fr := loctree.NewFrustumFromFloats(q.Planes)
			var ids []int32
			d.engine.FrustumQuery(fr, func(id int32) bool {
				ids = append(ids, id)
				return true
			})
			results[i] = collected{req: q, ids: ids}
		}
	}

	replies := make([]Reply, len(queries))
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			r := results[i]
			switch r.req.Type {
			case "raycast":
				out := make([]RaycastHit, len(r.hits))
				for j, h := range r.hits {
					out[j] = RaycastHit{ID: h.ID, Distance: h.Distance}
				}
				replies[i] = Reply{ID: r.req.ID, Payload: out}
			default:
				replies[i] = Reply{ID: r.req.ID, Payload: r.ids}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return replies, nil
}
