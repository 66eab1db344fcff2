// Copyright (c) 2024 The Loctree Authors
// SPDX-License-Identifier: MIT

// Package store implements the pointer-free, index-addressed record pool
// backing the octree: a single growable byte buffer holding fixed-size
// 32-byte records, threaded into singly linked lists by index instead of
// by pointer. It replaces per-object allocation with index arithmetic,
// the way internal/sparse replaces a map with a popcount-compressed
// slice in the teacher package.
package store

import (
	"encoding/binary"
	"math"
)

func f32bits(f float32) uint32     { return math.Float32bits(f) }
func f32frombits(b uint32) float32 { return math.Float32frombits(b) }

// RecordSize is the fixed byte width of one stored record: six float32
// bounds, a caller id, and a next-index link.
const RecordSize = 32

const initialCapacity = 1024

// NoNext is the "end of list" / "empty head" sentinel, mirrored from the
// spec's -1 convention.
const NoNext int32 = -1

// Record is the boxed, value-copy view returned by ReadBoxed.
type Record struct {
	Bounds [6]float32 // minX, minY, minZ, maxX, maxY, maxZ
	ID     int32
	Next   int32
}

// Store is the growable, contiguous pool of fixed-size object records
// described in §4.1. It is not safe for concurrent use — per §5 the
// engine is single-threaded, and the store is its most mutated part.
type Store struct {
	buf      []byte
	capacity int
	nextSlot int
	freeList []int32

	// onGrow, if set, is invoked after a successful grow with the old and
	// new capacity. It exists so the octree façade can log this
	// structurally significant event without the store importing a
	// logging package itself (§10.1).
	onGrow func(oldCapacity, newCapacity int)
}

// New constructs an empty store with the default initial capacity (1024
// records, per §3).
func New() *Store {
	return &Store{
		buf:      make([]byte, initialCapacity*RecordSize),
		capacity: initialCapacity,
	}
}

// SetGrowHook installs the callback invoked on buffer growth.
func (s *Store) SetGrowHook(fn func(oldCapacity, newCapacity int)) {
	s.onGrow = fn
}

// grow doubles the backing buffer. The old bytes are copied verbatim;
// previously returned raw views become invalid (§4.1) but every index
// remains valid since indices are logical slot numbers, not pointers.
func (s *Store) grow() {
	oldCap := s.capacity
	newCap := oldCap * 2

	newBuf := make([]byte, newCap*RecordSize)
	copy(newBuf, s.buf)

	s.buf = newBuf
	s.capacity = newCap

	if s.onGrow != nil {
		s.onGrow(oldCap, newCap)
	}
}

// nextFreeIndex pops a slot to write into: a recycled index if the free
// list is non-empty, else the next never-allocated slot (growing the
// buffer first if the pool is exhausted).
func (s *Store) nextFreeIndex() int32 {
	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		return idx
	}

	if s.nextSlot == s.capacity {
		s.grow()
	}

	idx := int32(s.nextSlot)
	s.nextSlot++
	return idx
}

func (s *Store) offset(idx int32) int {
	return int(idx) * RecordSize
}

// writeRecord encodes a record at idx, little-endian, per the fixed
// 32-byte layout (§3).
func (s *Store) writeRecord(idx int32, bounds [6]float32, id, next int32) {
	off := s.offset(idx)
	buf := s.buf[off : off+RecordSize]

	for i, f := range bounds {
		binary.LittleEndian.PutUint32(buf[i*4:], f32bits(f))
	}
	binary.LittleEndian.PutUint32(buf[24:], uint32(id))
	binary.LittleEndian.PutUint32(buf[28:], uint32(next))
}

// Allocate pushes a new record to the front of the list rooted at head
// (head may be NoNext for an empty list) and returns the new head — the
// index of the just-allocated record (§4.1).
func (s *Store) Allocate(head int32, bounds [6]float32, id int32) int32 {
	idx := s.nextFreeIndex()
	s.writeRecord(idx, bounds, id, head)
	return idx
}

// Free scans the list front-to-back and removes the first record whose id
// matches, returning the (possibly unchanged) new head and whether a
// record was actually removed. Removing the head returns its Next;
// removing an interior record splices around it. If id is not present,
// head is returned unchanged with removed=false.
func (s *Store) Free(head int32, id int32) (newHead int32, removed bool) {
	if head == NoNext {
		return NoNext, false
	}

	if s.readID(head) == id {
		next := s.readNext(head)
		s.freeList = append(s.freeList, head)
		return next, true
	}

	prev := head
	cur := s.readNext(prev)
	for cur != NoNext {
		if s.readID(cur) == id {
			next := s.readNext(cur)
			s.setNext(prev, next)
			s.freeList = append(s.freeList, cur)
			return head, true
		}
		prev = cur
		cur = s.readNext(cur)
	}

	return head, false
}

// Prepend relinks an already-allocated record at idx to the front of the
// list rooted at head, without touching the free list or next_slot. The
// octree's split rebuild uses this to relocate existing records between
// lists (self vs. a new child) without any new allocation, which would
// otherwise orphan the original index (§4.1 invariant: every live index
// is either on some list or on the free list).
func (s *Store) Prepend(idx int32, head int32) int32 {
	s.setNext(idx, head)
	return idx
}

// Length walks the list rooted at head and returns its length.
func (s *Store) Length(head int32) int {
	n := 0
	for cur := head; cur != NoNext; cur = s.readNext(cur) {
		n++
	}
	return n
}

// ReadBoxed returns a value-copy logical view of the record at idx.
func (s *Store) ReadBoxed(idx int32) Record {
	off := s.offset(idx)
	buf := s.buf[off : off+RecordSize]

	var rec Record
	for i := range rec.Bounds {
		rec.Bounds[i] = f32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	rec.ID = int32(binary.LittleEndian.Uint32(buf[24:]))
	rec.Next = int32(binary.LittleEndian.Uint32(buf[28:]))
	return rec
}

// RawRecord is a zero-copy view into the store's backing buffer. It is
// only valid until the next write that triggers a grow (§4.1); callers
// must not retain it across one.
type RawRecord struct {
	bytes []byte
}

// Bounds decodes the six bounds floats from the raw view.
func (r RawRecord) Bounds() [6]float32 {
	var b [6]float32
	for i := range b {
		b[i] = f32frombits(binary.LittleEndian.Uint32(r.bytes[i*4:]))
	}
	return b
}

// ID decodes the record id from the raw view.
func (r RawRecord) ID() int32 {
	return int32(binary.LittleEndian.Uint32(r.bytes[24:]))
}

// Next decodes the list link from the raw view.
func (r RawRecord) Next() int32 {
	return int32(binary.LittleEndian.Uint32(r.bytes[28:]))
}

// ReadRaw returns a zero-copy view into the underlying buffer at idx.
func (s *Store) ReadRaw(idx int32) RawRecord {
	off := s.offset(idx)
	return RawRecord{bytes: s.buf[off : off+RecordSize]}
}

func (s *Store) readID(idx int32) int32 {
	off := s.offset(idx)
	return int32(binary.LittleEndian.Uint32(s.buf[off+24:]))
}

func (s *Store) readNext(idx int32) int32 {
	off := s.offset(idx)
	return int32(binary.LittleEndian.Uint32(s.buf[off+28:]))
}

func (s *Store) setNext(idx int32, next int32) {
	off := s.offset(idx)
	binary.LittleEndian.PutUint32(s.buf[off+28:], uint32(next))
}

// Visitor is the callback passed to Traverse. Returning false stops the
// walk early.
type Visitor func(bounds [6]float32, id int32) bool

// Traverse walks the list rooted at head front-to-back, invoking visit on
// each record. When raw is true the bounds are decoded lazily straight
// from the buffer for each record (no intermediate Record allocation);
// when false each record is first materialized via ReadBoxed. Both
// chooser paths call visit with the same (bounds, id) shape — the
// raw/boxed distinction only affects whether the store or the caller
// pays the copy (§4.1).
func (s *Store) Traverse(head int32, raw bool, visit Visitor) {
	for cur := head; cur != NoNext; {
		next := s.readNext(cur)

		var cont bool
		if raw {
			rv := s.ReadRaw(cur)
			cont = visit(rv.Bounds(), rv.ID())
		} else {
			rec := s.ReadBoxed(cur)
			cont = visit(rec.Bounds, rec.ID)
		}

		if !cont {
			return
		}
		cur = next
	}
}

// Clear empties the pool: next_slot resets to 0 and the free list is
// emptied. The backing buffer is retained (§4.1).
func (s *Store) Clear() {
	s.nextSlot = 0
	s.freeList = s.freeList[:0]
}

// Capacity returns the current record capacity of the backing buffer,
// exposed for tests that verify the doubling growth law.
func (s *Store) Capacity() int {
	return s.capacity
}
