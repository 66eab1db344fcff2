// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

package transport

import (
	"testing"

	"github.com/voxa/loctree"
)

func newTestEngine(t *testing.T) *loctree.Octree {
	t.Helper()
	o, err := loctree.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestRunBatchInsertRemoveUpdate(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newTestEngine(t))

	d.RunBatch([]Command{
		{Cmd: "insert", ID: 1, Min: [3]float32{-3, -3, -3}, Max: [3]float32{-1, -1, -1}},
		{Cmd: "insert", ID: 2, Min: [3]float32{2, 2, 2}, Max: [3]float32{4, 4, 4}},
	})

	replies, err := d.RunQueries([]QueryRequest{
		{Type: "aabbQuery", ID: 100, Min: [3]float32{-10, -10, -10}, Max: [3]float32{10, 10, 10}},
	})
	if err != nil {
		t.Fatalf("RunQueries: %v", err)
	}
	ids, ok := replies[0].Payload.([]int32)
	if !ok || len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", replies[0].Payload)
	}

	d.RunBatch([]Command{{Cmd: "remove", ID: 1}})

	replies, err = d.RunQueries([]QueryRequest{
		{Type: "aabbQuery", ID: 101, Min: [3]float32{-10, -10, -10}, Max: [3]float32{10, 10, 10}},
	})
	if err != nil {
		t.Fatalf("RunQueries: %v", err)
	}
	ids, _ = replies[0].Payload.([]int32)
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected [2] after remove, got %v", ids)
	}

	d.RunBatch([]Command{{Cmd: "update", ID: 2, Min: [3]float32{20, 20, 20}, Max: [3]float32{21, 21, 21}}})

	replies, err = d.RunQueries([]QueryRequest{
		{Type: "aabbQuery", ID: 102, Min: [3]float32{-10, -10, -10}, Max: [3]float32{10, 10, 10}},
		{Type: "aabbQuery", ID: 103, Min: [3]float32{15, 15, 15}, Max: [3]float32{25, 25, 25}},
	})
	if err != nil {
		t.Fatalf("RunQueries: %v", err)
	}
	if ids, _ := replies[0].Payload.([]int32); len(ids) != 0 {
		t.Fatalf("expected id 2 gone from its old location after update, got %v", ids)
	}
	if ids, _ := replies[1].Payload.([]int32); len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected [2] at its new location after update, got %v", ids)
	}
}

func TestRunQueriesRaycastPayload(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newTestEngine(t))
	d.RunBatch([]Command{
		{Cmd: "insert", ID: 1, Min: [3]float32{1.5, 1.5, 1.5}, Max: [3]float32{2.5, 2.5, 2.5}},
	})

	replies, err := d.RunQueries([]QueryRequest{
		{Type: "raycast", ID: 1, Origin: [3]float32{0, 0, 0}, Direction: [3]float32{1, 1, 1}},
	})
	if err != nil {
		t.Fatalf("RunQueries: %v", err)
	}
	hits, ok := replies[0].Payload.([]RaycastHit)
	if !ok || len(hits) != 1 || hits[0].ID != 1 {
		t.Fatalf("expected one raycast hit for id 1, got %v", replies[0].Payload)
	}
}

func TestDispatcherReadiness(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(newTestEngine(t))
	if d.Ready() {
		t.Fatalf("new dispatcher should not be ready")
	}
	d.MarkReady()
	if !d.Ready() {
		t.Fatalf("dispatcher should be ready after MarkReady")
	}
}

func TestEnvelopeTraceIsUnique(t *testing.T) {
	t.Parallel()
	a := NewEnvelope()
	b := NewEnvelope()
	if a.Trace == "" || b.Trace == "" || a.Trace == b.Trace {
		t.Fatalf("expected distinct non-empty trace tags, got %q and %q", a.Trace, b.Trace)
	}
}
