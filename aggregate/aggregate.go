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
// Package aggregate builds a name-keyed aggregate call tree from an
// eventtree.Tree: nodes that share a name and a parent are merged into a
// single aggregate node accumulating call count, duration, and counter
// contributions.
package aggregate

import (
	"fmt"
	"sort"

	"github.com/Workiva/go-datastructures/augmentedtree"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventtree"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// Node is one entry in the aggregate tree: the merged contribution of
// every call to a given name under a given parent.
type Node struct {
	Key    statickey.Key
	Parent *Node

	Children   map[string]*Node
	ChildOrder []string

	// Count is the number of event-tree occurrences merged into this
	// node.
	Count int

	// ExclusiveCount is Count minus the occurrences that were folded
	// into an outer occurrence of the same key by FoldRecursive; on a
	// tree built by Build it always equals Count.
	ExclusiveCount int

	ExclusiveDuration tevent.Duration
	InclusiveDuration tevent.Duration

	ExclusiveCounters map[string]float64
	InclusiveCounters map[string]float64
}

func newNode(key statickey.Key, parent *Node) *Node {
	return &Node{
		Key:               key,
		Parent:            parent,
		Children:          make(map[string]*Node),
		ExclusiveCounters: make(map[string]float64),
		InclusiveCounters: make(map[string]float64),
	}
}

// append returns the child of n named by key's Name, creating and
// merging it with earlier occurrences of the same name under n if
// necessary.
func (n *Node) append(key statickey.Key) *Node {
	name := key.Name()
	child, ok := n.Children[name]
	if !ok {
		child = newNode(key, n)
		n.Children[name] = child
		n.ChildOrder = append(n.ChildOrder, name)
	}
	child.Count++
	child.ExclusiveCount++
	return child
}

// Child returns n's merged child named name, if any.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.Children[name]
	return c, ok
}

// SortedChildren returns n's children in first-seen order.
func (n *Node) SortedChildren() []*Node {
	out := make([]*Node, 0, len(n.ChildOrder))
	for _, name := range n.ChildOrder {
		out = append(out, n.Children[name])
	}
	return out
}

// Tree is the root of a fully built aggregate tree plus its total
// (non-hierarchical) counter values, assigned stable small-integer
// indices in first-sighting order.
type Tree struct {
	Root *Node

	// Totals holds the cumulative value (CounterValue assigns,
	// CounterDelta adds) of every counter seen while building the tree.
	Totals map[string]float64

	// counterIndex assigns a stable index to each counter name the
	// first time it is seen, mirroring the source tree's incrementing
	// _CounterIndexMap.
	counterIndex map[string]int
	nextIndex    int
}

// CounterIndex returns the stable index assigned to name, or -1 if name
// was never seen.
func (t *Tree) CounterIndex(name string) int {
	if idx, ok := t.counterIndex[name]; ok {
		return idx
	}
	return -1
}

func (t *Tree) indexFor(name string) int {
	if idx, ok := t.counterIndex[name]; ok {
		return idx
	}
	idx := t.nextIndex
	t.counterIndex[name] = idx
	t.nextIndex++
	return idx
}

// RegisterCounter manually assigns index to the counter named name,
// for callers that need a stable index known ahead of time rather than
// one assigned by first-sighting order during Build. It refuses and
// leaves t unmodified if name already has an index, or if index is
// already held by a different counter.
func (t *Tree) RegisterCounter(name string, index int) error {
	if existing, ok := t.counterIndex[name]; ok {
		return status.Errorf(codes.AlreadyExists, "counter %q already registered at index %d", name, existing)
	}
	for other, idx := range t.counterIndex {
		if idx == index {
			return status.Errorf(codes.AlreadyExists, "counter index %d already held by %q", index, other)
		}
	}
	t.counterIndex[name] = index
	if index >= t.nextIndex {
		t.nextIndex = index + 1
	}
	return nil
}

// Build walks et depth-first, merging same-named siblings into aggregate
// nodes, then replays et's counter timelines to attach delta
// contributions to the deepest enclosing aggregate node at each delta's
// time stamp.
func Build(et *eventtree.Tree) *Tree {
	t := &Tree{
		Root:         newNode(nil, nil),
		Totals:       make(map[string]float64),
		counterIndex: make(map[string]int),
	}

	ids := make([]collection.ThreadID, 0, len(et.Roots))
	for id := range et.Roots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		threadRoot := et.Roots[id]
		aggThreadNode := t.Root.append(threadRoot.Key)
		walk(threadRoot, aggThreadNode, et.ThreadCounters[id])
	}

	t.attachCounters(et)
	calculateInclusive(t.Root)

	return t
}

// FoldRecursive walks et the same way Build does, except that when a
// descendant shares a key with one of its own ancestors on the same
// event-tree path, its contribution is folded into the outermost
// occurrence instead of creating a new nested aggregate node: the
// descendant's exclusive duration is added to the outer node and its
// call does not count toward ExclusiveCount, matching the "fold
// recursive calls" option in §4.5.
func FoldRecursive(et *eventtree.Tree) *Tree {
	t := &Tree{
		Root:         newNode(nil, nil),
		Totals:       make(map[string]float64),
		counterIndex: make(map[string]int),
	}

	ids := make([]collection.ThreadID, 0, len(et.Roots))
	for id := range et.Roots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		threadRoot := et.Roots[id]
		aggThreadNode := t.Root.append(threadRoot.Key)
		foldWalk(threadRoot, aggThreadNode, map[string]*Node{threadRoot.Key.Name(): aggThreadNode}, et.ThreadCounters[id])
	}

	t.attachCounters(et)
	calculateInclusive(t.Root)

	return t
}

// foldWalk mirrors walk but tracks, per event-tree path, the nearest
// ancestor aggregate node for each key already open on that path
// (ancestors). A child whose key is already open folds its own
// exclusive duration into that ancestor node rather than creating (or
// reusing) a nested child keyed by the same name.
func foldWalk(eventNode *eventtree.EventNode, aggNode *Node, ancestors map[string]*Node, counters []eventtree.CounterRawEvent) {
	childSpan := tevent.Duration(0)
	for _, c := range eventNode.Children {
		childSpan += c.Duration()
	}
	own := eventNode.Duration() - childSpan
	if own < 0 {
		own = 0
	}
	aggNode.ExclusiveDuration += own
	addInclusiveCounters(aggNode, replayCounters(counters, eventNode.Begin, eventNode.End))

	for _, c := range eventNode.Children {
		name := c.Key.Name()
		if outer, recursive := ancestors[name]; recursive {
			// Fold: this call's own exclusive time belongs to the
			// outermost occurrence. It still happened (Count reflects
			// every call), but it contributes zero toward
			// ExclusiveCount since its exclusive time was folded into
			// an enclosing occurrence rather than counted on its own.
			outer.Count++
			foldWalk(c, outer, ancestors, counters)
			continue
		}
		childAgg := aggNode.append(c.Key)
		nextAncestors := make(map[string]*Node, len(ancestors)+1)
		for k, v := range ancestors {
			nextAncestors[k] = v
		}
		nextAncestors[name] = childAgg
		foldWalk(c, childAgg, nextAncestors, counters)
	}
}

// walk mirrors aggregateTreeBuilder.cpp's _CreateAggregateNodes: every
// event-tree node's own exclusive duration (its span minus its direct
// children's spans) is added to its merged aggregate node.
func walk(eventNode *eventtree.EventNode, aggNode *Node, counters []eventtree.CounterRawEvent) {
	childSpan := tevent.Duration(0)
	for _, c := range eventNode.Children {
		childSpan += c.Duration()
	}
	own := eventNode.Duration() - childSpan
	if own < 0 {
		own = 0
	}
	aggNode.ExclusiveDuration += own
	addInclusiveCounters(aggNode, replayCounters(counters, eventNode.Begin, eventNode.End))

	for _, c := range eventNode.Children {
		childAgg := aggNode.append(c.Key)
		walk(c, childAgg, counters)
	}
}

// replayCounters replays counters (a thread's full raw CounterValue/
// CounterDelta stream, sorted by Time) restricted to the inclusive range
// [begin, end], applying CounterAssign as an outright replacement of the
// running value and CounterAdd as an addition to it, starting from zero.
// The result is each counter's final value as observed strictly within
// one call's own span -- the counter-rollup analogue of a span's
// wall-clock duration.
func replayCounters(counters []eventtree.CounterRawEvent, begin, end tevent.Timestamp) map[string]float64 {
	lo := sort.Search(len(counters), func(i int) bool { return counters[i].Time >= begin })
	hi := sort.Search(len(counters), func(i int) bool { return counters[i].Time > end })
	if lo >= hi {
		return nil
	}
	running := make(map[string]float64, hi-lo)
	for _, e := range counters[lo:hi] {
		switch e.Kind {
		case eventtree.CounterAssign:
			running[e.Name] = e.Value
		case eventtree.CounterAdd:
			running[e.Name] += e.Value
		}
	}
	return running
}

// addInclusiveCounters merges one call occurrence's replayed final
// counter values into its merged aggregate node, additively across
// repeated occurrences of the same name -- mirroring how ExclusiveCounters
// and ExclusiveDuration already accumulate across merged siblings.
func addInclusiveCounters(aggNode *Node, values map[string]float64) {
	for name, v := range values {
		aggNode.InclusiveCounters[name] += v
	}
}

// calculateInclusive computes InclusiveDuration = ExclusiveDuration +
// sum(children's InclusiveDuration), bottom-up. InclusiveCounters is not
// derived this way: it is accumulated directly in walk/foldWalk from each
// call's own replayed counter span, since a CounterValue assignment
// resets a counter's value outright rather than adding to it, which the
// exclusive-plus-children formula cannot express.
func calculateInclusive(n *Node) {
	n.InclusiveDuration = n.ExclusiveDuration
	for _, c := range n.Children {
		calculateInclusive(c)
		n.InclusiveDuration += c.InclusiveDuration
	}
}

// attachCounters updates t's running totals from et's merged cross-thread
// counter timelines (Tree.Counters), then separately attaches each
// CounterDelta's own raw value to the deepest aggregate node enclosing
// its time stamp on the thread that recorded it; a delta that falls
// outside every scope of its thread counts toward Totals only and is
// attached to no node. InclusiveCounters is populated separately, during
// walk/foldWalk (see addInclusiveCounters).
//
// These are deliberately different passes over different data sources.
// Totals (and the first-sighting index assigned to each name) reflect
// the merged cumulative trajectory across every thread, which is what
// Tree.Counters holds and what invariant 6 requires. ExclusiveCounters
// must reflect only true CounterDelta contributions -- a CounterValue
// assignment touches the running total but never a node's exclusive
// counter vector -- and that can only be computed from each thread's own
// raw CounterDelta records (Tree.ThreadCounters, filtered to CounterAdd),
// since Tree.Counters has already merged CounterValue and CounterDelta
// into one cumulative number and lost which thread produced which
// sample.
func (t *Tree) attachCounters(et *eventtree.Tree) {
	names := make([]string, 0, len(et.Counters))
	for name := range et.Counters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		si, sj := et.Counters[names[i]], et.Counters[names[j]]
		switch {
		case len(si) == 0 || len(sj) == 0:
			return names[i] < names[j]
		case si[0].Time != sj[0].Time:
			return si[0].Time < sj[0].Time
		default:
			return names[i] < names[j]
		}
	})
	for _, name := range names {
		samples := et.Counters[name]
		if len(samples) == 0 {
			continue
		}
		t.Totals[name] = samples[len(samples)-1].Value
		t.indexFor(name)
	}

	ids := make([]collection.ThreadID, 0, len(et.Roots))
	for id := range et.Roots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		threadAgg, ok := t.Root.Child(fmt.Sprintf("%d", id))
		if !ok {
			continue
		}
		threadRoot := et.Roots[id]
		for _, e := range et.ThreadCounters[id] {
			if e.Kind != eventtree.CounterAdd {
				continue
			}
			node := descend(threadRoot, threadAgg, e.Time)
			if node == threadAgg {
				// Outside every scope on this thread: skip the attach.
				continue
			}
			node.ExclusiveCounters[e.Name] += e.Value
		}
	}
}

func descend(eventNode *eventtree.EventNode, aggNode *Node, ts tevent.Timestamp) *Node {
	if len(eventNode.Children) == 0 {
		return aggNode
	}
	tree := augmentedtree.New(1)
	intervals := make([]childInterval, len(eventNode.Children))
	for i, c := range eventNode.Children {
		intervals[i] = childInterval{idx: uint64(i), node: c}
		tree.Add(&intervals[i])
	}
	q := &pointInterval{t: int64(ts)}
	results := tree.Query(q)
	if len(results) == 0 {
		return aggNode
	}
	match := results[0].(*childInterval)
	childAgg, ok := aggNode.Child(match.node.Key.Name())
	if !ok {
		return aggNode
	}
	return descend(match.node, childAgg, ts)
}

type childInterval struct {
	idx  uint64
	node *eventtree.EventNode
}

func (c *childInterval) ID() uint64                 { return c.idx }
func (c *childInterval) LowAtDimension(uint64) int64  { return int64(c.node.Begin) }
func (c *childInterval) HighAtDimension(uint64) int64 { return int64(c.node.End) }
func (c *childInterval) OverlapsAtDimension(other augmentedtree.Interval, d uint64) bool {
	return c.HighAtDimension(d) >= other.LowAtDimension(d) && other.HighAtDimension(d) >= c.LowAtDimension(d)
}

type pointInterval struct{ t int64 }

func (p *pointInterval) ID() uint64                                         { return 0 }
func (p *pointInterval) LowAtDimension(uint64) int64                        { return p.t }
func (p *pointInterval) HighAtDimension(uint64) int64                       { return p.t }
func (p *pointInterval) OverlapsAtDimension(other augmentedtree.Interval, d uint64) bool {
	return p.HighAtDimension(d) >= other.LowAtDimension(d) && other.HighAtDimension(d) >= p.LowAtDimension(d)
}
