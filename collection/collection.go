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
// Package collection holds Collection, the immutable, thread-id-keyed
// bundle of EventLists a Collector snapshot produces.
package collection

import (
	"github.com/golang/groupcache/lru"

	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// ThreadID identifies the thread (in Go, the logical writer handle) an
// EventList was recorded from.
type ThreadID uint64

// Collection is an immutable mapping from ThreadID to EventList, built by
// a single Collector.CreateCollection call. It owns its EventLists for as
// long as any Event or Aggregate tree built from it is alive.
type Collection struct {
	lists map[ThreadID]*eventlist.EventList
	order []ThreadID

	displayCache *lru.Cache
}

// displayCacheSize bounds the displayable-key cache; it is sized well
// above the distinct-key count any realistic collection accumulates, so
// evictions are rare and only cost a re-materialized string, never
// correctness.
const displayCacheSize = 4096

// New returns an empty Collection.
func New() *Collection {
	return &Collection{
		lists:        make(map[ThreadID]*eventlist.EventList),
		displayCache: lru.New(displayCacheSize),
	}
}

// Add incorporates el, recorded on thread id, into the collection. Empty
// or nil lists are dropped, matching the collector snapshot's "non-empty
// lists only" rule.
func (c *Collection) Add(id ThreadID, el *eventlist.EventList) {
	if el == nil || el.IsEmpty() {
		return
	}
	if _, ok := c.lists[id]; !ok {
		c.order = append(c.order, id)
	}
	c.lists[id] = el
}

// Get returns the EventList recorded for id, if any.
func (c *Collection) Get(id ThreadID) (*eventlist.EventList, bool) {
	el, ok := c.lists[id]
	return el, ok
}

// ThreadIDs returns the collection's thread ids in the order they were
// first added.
func (c *Collection) ThreadIDs() []ThreadID {
	out := make([]ThreadID, len(c.order))
	copy(out, c.order)
	return out
}

// IsEmpty reports whether the collection holds no threads.
func (c *Collection) IsEmpty() bool {
	return len(c.order) == 0
}

// displayKey returns a cached, amortized string for key: the first call
// for a given key materializes and caches it, later calls with the same
// key (compared by identity, since keys are pointer-comparable) reuse it.
func (c *Collection) displayKey(key statickey.Key) string {
	if v, ok := c.displayCache.Get(key); ok {
		return v.(string)
	}
	s := key.Name()
	c.displayCache.Add(key, s)
	return s
}

// Visitor receives the callbacks Collection.Visit and Collection.VisitReverse
// drive while walking a collection's threads and events.
type Visitor interface {
	// OnBeginCollection is called once before any thread is visited.
	OnBeginCollection()
	// OnBeginThread is called before a thread's events are visited.
	OnBeginThread(id ThreadID)
	// AcceptsCategory reports whether events in category should be
	// visited at all; returning false skips the event without calling
	// OnEvent.
	AcceptsCategory(id statickey.CategoryId) bool
	// OnEvent is called for each accepted event of a thread, in visit
	// order. displayKey is the event's interned key rendered once and
	// cached across the collection's lifetime.
	OnEvent(threadID ThreadID, displayKey string, rec *tevent.Record)
	// OnEndThread is called after a thread's events have all been
	// visited.
	OnEndThread(id ThreadID)
	// OnEndCollection is called once after every thread has been
	// visited.
	OnEndCollection()
}

// Visit walks the collection from each thread's first to its last event,
// serially, on the calling goroutine.
func (c *Collection) Visit(v Visitor) {
	v.OnBeginCollection()
	for _, id := range c.order {
		el := c.lists[id]
		v.OnBeginThread(id)
		el.Visit(func(r *tevent.Record) bool {
			if v.AcceptsCategory(r.Category) {
				v.OnEvent(id, c.displayKey(r.Key), r)
			}
			return true
		})
		v.OnEndThread(id)
	}
	v.OnEndCollection()
}

// VisitReverse walks the collection from each thread's last to its first
// event, serially, on the calling goroutine. Threads themselves are still
// visited in forward (first-added) order.
func (c *Collection) VisitReverse(v Visitor) {
	v.OnBeginCollection()
	for _, id := range c.order {
		el := c.lists[id]
		v.OnBeginThread(id)
		el.VisitReverse(func(r *tevent.Record) bool {
			if v.AcceptsCategory(r.Category) {
				v.OnEvent(id, c.displayKey(r.Key), r)
			}
			return true
		})
		v.OnEndThread(id)
	}
	v.OnEndCollection()
}
