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
// Package eventtree reconstructs a nested call tree, per thread, from the
// flat begin/end/timespan/marker/counter stream an EventList holds, and
// assembles the counter and marker timelines that span every thread.
package eventtree

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// EventNode is one node of the reconstructed call tree: a named scope
// with a begin and end time and the children opened within it.
type EventNode struct {
	Key      statickey.Key
	Category statickey.CategoryId

	Begin tevent.Timestamp
	End   tevent.Timestamp

	// Complete is false when End was synthesized at end-of-stream for a
	// scope that was never closed.
	Complete bool

	Children []*EventNode

	// Data holds every Data/ScopeData payload attached while this node
	// was the open stack top, in arrival order.
	Data []DataAttachment
}

// DataAttachment is one Data or ScopeData payload attached to the scope
// that was open on its emitting thread at the time it was recorded.
type DataAttachment struct {
	Key       statickey.Key
	Category  statickey.CategoryId
	TimeStamp tevent.Timestamp
	Payload   tevent.Payload
	// ScopeLocal is true for a ScopeData record and false for a plain
	// Data record; both attach to the current stack top (§4.4), but the
	// distinction is preserved for round-tripping.
	ScopeLocal bool
}

// Duration returns the node's wall-clock span.
func (n *EventNode) Duration() tevent.Duration {
	return tevent.DurationBetween(n.Begin, n.End)
}

// CounterSample is one (time, cumulative value) point on a counter's
// timeline.
type CounterSample struct {
	Time  tevent.Timestamp
	Value float64
}

// MarkerSample is one occurrence of a named marker.
type MarkerSample struct {
	Time   tevent.Timestamp
	Thread collection.ThreadID
}

// CounterEventKind distinguishes a CounterValue assignment from a
// CounterDelta addition in a CounterRawEvent.
type CounterEventKind int

const (
	// CounterAssign replaces a counter's running value outright
	// (CounterValue).
	CounterAssign CounterEventKind = iota
	// CounterAdd adds to a counter's running value (CounterDelta).
	CounterAdd
)

// CounterRawEvent is one CounterValue or CounterDelta record exactly as
// recorded on a single thread, with Value holding the record's own
// payload -- the assigned value for CounterAssign, the delta itself
// (not a cumulative running total) for CounterAdd. aggregate.Build
// replays these per thread, scoped to each call's own time span, to
// compute per-node counter contributions; Tree.Counters answers a
// different question -- the merged cumulative trajectory across every
// thread -- and no longer says which thread produced a given sample
// once merged, so it cannot drive per-scope attribution.
type CounterRawEvent struct {
	Name  string
	Time  tevent.Timestamp
	Kind  CounterEventKind
	Value float64
}

// Tree is the full reconstruction of a Collection: one root EventNode per
// thread, plus the counter and marker timelines spanning all threads in
// global event order.
type Tree struct {
	// Roots maps each thread id to the root of that thread's call tree.
	// A thread root's own Key is a StaticKey named by the decimal thread
	// id; its Children are the thread's top-level scopes.
	Roots map[collection.ThreadID]*EventNode

	// Counters maps each counter name to its ordered sample timeline.
	Counters map[string][]CounterSample
	// Markers maps each marker name to its ordered occurrences.
	Markers map[string][]MarkerSample
	// ThreadCounters maps each thread id to its raw CounterValue/
	// CounterDelta records, in stream (hence time) order, keyed by the
	// thread that recorded them.
	ThreadCounters map[collection.ThreadID][]CounterRawEvent
}

// FinalCounterValues returns the last sampled value of every counter.
func (t *Tree) FinalCounterValues() map[string]float64 {
	out := make(map[string]float64, len(t.Counters))
	for name, samples := range t.Counters {
		if len(samples) > 0 {
			out[name] = samples[len(samples)-1].Value
		}
	}
	return out
}

// options configures Build.
type options struct {
	concurrent bool
}

// Option configures a Build call.
type Option func(*options)

// Concurrent builds each thread's call tree on its own goroutine via an
// errgroup.Group. This is safe because cross-thread ordering at equal
// timestamps is unspecified; each thread's own stream is handled
// independently and merged only for the global counter/marker pass.
func Concurrent() Option {
	return func(o *options) { o.concurrent = true }
}

// Build reconstructs a Tree from coll.
func Build(coll *collection.Collection, opts ...Option) (*Tree, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ids := coll.ThreadIDs()
	roots := make(map[collection.ThreadID]*EventNode, len(ids))
	threadCounters := make(map[collection.ThreadID][]CounterRawEvent, len(ids))

	if o.concurrent {
		var mu sync.Mutex
		eg := errgroup.Group{}
		for _, id := range ids {
			id := id
			eg.Go(func() error {
				el, ok := coll.Get(id)
				if !ok {
					return status.Errorf(codes.Internal, "thread %d listed but missing from collection", id)
				}
				root, events := buildThreadTree(el)
				root.Key = statickey.NewStatic(fmt.Sprintf("%d", id))
				mu.Lock()
				roots[id] = root
				threadCounters[id] = events
				mu.Unlock()
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, fmt.Errorf("building event tree: %w", err)
		}
	} else {
		for _, id := range ids {
			el, ok := coll.Get(id)
			if !ok {
				return nil, status.Errorf(codes.Internal, "thread %d listed but missing from collection", id)
			}
			root, events := buildThreadTree(el)
			root.Key = statickey.NewStatic(fmt.Sprintf("%d", id))
			roots[id] = root
			threadCounters[id] = events
		}
	}

	counters, markers := buildTimelines(coll)

	return &Tree{Roots: roots, Counters: counters, Markers: markers, ThreadCounters: threadCounters}, nil
}

// buildThreadTree runs the stack-based reconstruction described for the
// event-tree builder: Begin pushes a new open node, End closes whatever
// node is currently on top of the stack (a stray End with no open node
// is dropped), Timespan appends a complete leaf directly. At end of
// stream any still-open nodes are closed at the last observed time stamp
// and marked incomplete.
func buildThreadTree(el *eventlist.EventList) (*EventNode, []CounterRawEvent) {
	root := &EventNode{Complete: true}
	stack := []*EventNode{root}
	var lastTime tevent.Timestamp
	var events []CounterRawEvent

	el.Visit(func(r *tevent.Record) bool {
		lastTime = r.TimeStamp
		top := stack[len(stack)-1]
		switch r.Type {
		case tevent.Begin:
			n := &EventNode{Key: r.Key, Category: r.Category, Begin: r.TimeStamp}
			top.Children = append(top.Children, n)
			stack = append(stack, n)
		case tevent.End:
			if len(stack) <= 1 {
				// Stray End with nothing open; drop it.
				return true
			}
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n.End = r.TimeStamp
			n.Complete = true
		case tevent.Timespan:
			n := &EventNode{
				Key: r.Key, Category: r.Category,
				Begin: r.TimeStamp, End: r.EndTimeStamp, Complete: true,
			}
			top.Children = append(top.Children, n)
		case tevent.Data, tevent.ScopeData:
			top.Data = append(top.Data, DataAttachment{
				Key: r.Key, Category: r.Category, TimeStamp: r.TimeStamp,
				Payload: r.Payload, ScopeLocal: r.Type == tevent.ScopeData,
			})
		case tevent.CounterDelta:
			events = append(events, CounterRawEvent{Name: r.Key.Name(), Time: r.TimeStamp, Kind: CounterAdd, Value: r.Value})
		case tevent.CounterValue:
			events = append(events, CounterRawEvent{Name: r.Key.Name(), Time: r.TimeStamp, Kind: CounterAssign, Value: r.Value})
		default:
			// Marker does not affect the call tree shape or counter
			// rollup; it is handled by the global timeline pass only.
		}
		return true
	})

	for len(stack) > 1 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.End = lastTime
		n.Complete = false
	}
	root.End = lastTime

	return root, events
}

// mergeItem is one entry in the global k-way merge over every thread's
// event stream, ordered by time stamp, then by thread id and original
// position to give a stable (if otherwise unspecified) tie-break.
type mergeItem struct {
	rec    *tevent.Record
	thread collection.ThreadID
	seq    int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].rec.TimeStamp != h[j].rec.TimeStamp {
		return h[i].rec.TimeStamp < h[j].rec.TimeStamp
	}
	if h[i].thread != h[j].thread {
		return h[i].thread < h[j].thread
	}
	return h[i].seq < h[j].seq
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// buildTimelines merges every thread's stream in global time order and
// replays CounterDelta/CounterValue/Marker events into per-name
// timelines, so that for any counter name the produced sequence equals
// the cumulative trajectory across all threads combined.
func buildTimelines(coll *collection.Collection) (map[string][]CounterSample, map[string][]MarkerSample) {
	type cursor struct {
		records []*tevent.Record
		pos     int
	}
	var cursors []*cursor
	ids := coll.ThreadIDs()
	for _, id := range ids {
		el, _ := coll.Get(id)
		var recs []*tevent.Record
		el.Visit(func(r *tevent.Record) bool {
			recs = append(recs, r)
			return true
		})
		cursors = append(cursors, &cursor{records: recs})
	}

	h := &mergeHeap{}
	heap.Init(h)
	for i, id := range ids {
		c := cursors[i]
		if len(c.records) > 0 {
			heap.Push(h, mergeItem{rec: c.records[0], thread: id, seq: 0})
		}
	}

	counterRunning := make(map[string]float64)
	counters := make(map[string][]CounterSample)
	markers := make(map[string][]MarkerSample)

	posByThread := make(map[collection.ThreadID]int)
	indexByThread := make(map[collection.ThreadID]int)
	for i, id := range ids {
		indexByThread[id] = i
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		r := item.rec

		switch r.Type {
		case tevent.CounterValue:
			name := r.Key.Name()
			counterRunning[name] = r.Value
			counters[name] = append(counters[name], CounterSample{Time: r.TimeStamp, Value: r.Value})
		case tevent.CounterDelta:
			name := r.Key.Name()
			counterRunning[name] += r.Value
			counters[name] = append(counters[name], CounterSample{Time: r.TimeStamp, Value: counterRunning[name]})
		case tevent.Marker:
			name := r.Key.Name()
			markers[name] = append(markers[name], MarkerSample{Time: r.TimeStamp, Thread: item.thread})
		}

		ci := indexByThread[item.thread]
		pos := posByThread[item.thread] + 1
		posByThread[item.thread] = pos
		if pos < len(cursors[ci].records) {
			heap.Push(h, mergeItem{rec: cursors[ci].records[pos], thread: item.thread, seq: pos})
		}
	}

	for name := range counters {
		sort.SliceStable(counters[name], func(i, j int) bool {
			return counters[name][i].Time < counters[name][j].Time
		})
	}
	for name := range markers {
		sort.SliceStable(markers[name], func(i, j int) bool {
			return markers[name][i].Time < markers[name][j].Time
		})
	}

	return counters, markers
}
