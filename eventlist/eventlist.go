//
// Copyright 2019 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS-IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
//
// Package eventlist holds EventList, the append-only per-thread log of
// event records written by the collector's hot path, plus the
// interned-key cache and string arena an EventList owns.
package eventlist

import (
	"github.com/traceforge/traceforge/arena"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// recordChunkSize is the number of records held per chunk. Chunks are
// preallocated at this capacity so an append within a chunk never
// reallocates the chunk's backing array, keeping earlier records' storage
// untouched by later growth.
const recordChunkSize = 512

// EventList is an append-only, ordered sequence of event records plus the
// interned-key cache (and its backing arena) owned by this list. A list
// is written by exactly one thread (the collector's hot path) until it is
// handed off in a snapshot; after that it is read-only.
type EventList struct {
	chunks [][]tevent.Record

	arena    *arena.Buffer
	keyCache map[string]*statickey.InternedKey
}

// New returns an empty EventList.
func New() *EventList {
	return &EventList{
		arena:    arena.New(),
		keyCache: make(map[string]*statickey.InternedKey),
	}
}

// Len returns the number of records appended to the list.
func (l *EventList) Len() int {
	n := 0
	for _, c := range l.chunks {
		n += len(c)
	}
	return n
}

// IsEmpty reports whether the list has no records.
func (l *EventList) IsEmpty() bool {
	for _, c := range l.chunks {
		if len(c) > 0 {
			return false
		}
	}
	return true
}

// Append adds r to the tail of the list and returns a pointer to the
// stored copy, stable for the remaining lifetime of the list.
func (l *EventList) Append(r tevent.Record) *tevent.Record {
	tail := l.tailChunk()
	*tail = append(*tail, r)
	return &(*tail)[len(*tail)-1]
}

func (l *EventList) tailChunk() *[]tevent.Record {
	if n := len(l.chunks); n > 0 && len(l.chunks[n-1]) < cap(l.chunks[n-1]) {
		return &l.chunks[n-1]
	}
	l.chunks = append(l.chunks, make([]tevent.Record, 0, recordChunkSize))
	return &l.chunks[len(l.chunks)-1]
}

// CacheKey returns a pointer-stable InternedKey for name, owned by this
// list's arena. Repeated calls with the same name return the same
// pointer, so subsequent appends can compare keys by pointer before
// falling back to string comparison.
func (l *EventList) CacheKey(name string) *statickey.InternedKey {
	if k, ok := l.keyCache[name]; ok {
		return k
	}
	stable := l.arena.Store(name)
	k := statickey.NewInterned(stable)
	l.keyCache[stable] = k
	return k
}

// StoreString interns s (e.g. a String payload's text) in this list's
// arena, returning stable storage for it.
func (l *EventList) StoreString(s string) string {
	return l.arena.Store(s)
}

// Splice absorbs other's records, arena, and key cache into l, leaving
// other empty. Because the arena's chunks are moved rather than copied,
// every InternedKey and String payload minted by other stays valid and
// keeps its address.
func (l *EventList) Splice(other *EventList) {
	if other == nil {
		return
	}
	l.chunks = append(l.chunks, other.chunks...)
	other.chunks = nil

	l.arena.Splice(other.arena)

	for name, k := range other.keyCache {
		if _, ok := l.keyCache[name]; !ok {
			l.keyCache[name] = k
		}
	}
	other.keyCache = make(map[string]*statickey.InternedKey)
}

// Visit calls fn for every record in append order, stopping early if fn
// returns false.
func (l *EventList) Visit(fn func(*tevent.Record) bool) {
	for _, c := range l.chunks {
		for i := range c {
			if !fn(&c[i]) {
				return
			}
		}
	}
}

// VisitReverse calls fn for every record in reverse append order,
// stopping early if fn returns false.
func (l *EventList) VisitReverse(fn func(*tevent.Record) bool) {
	for ci := len(l.chunks) - 1; ci >= 0; ci-- {
		c := l.chunks[ci]
		for i := len(c) - 1; i >= 0; i-- {
			if !fn(&c[i]) {
				return
			}
		}
	}
}
