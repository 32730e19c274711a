package eventtree

import (
	"testing"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/tevent"
)

func rec(typ tevent.Type, el *eventlist.EventList, key string, ts tevent.Timestamp) tevent.Record {
	return tevent.Record{Type: typ, Key: el.CacheKey(key), TimeStamp: ts}
}

func TestBuildSimpleNesting(t *testing.T) {
	el := eventlist.New()
	el.Append(rec(tevent.Begin, el, "outer", 0))
	el.Append(rec(tevent.Begin, el, "inner", 1))
	el.Append(rec(tevent.End, el, "inner", 2))
	el.Append(rec(tevent.End, el, "outer", 3))

	coll := collection.New()
	coll.Add(1, el)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	root, ok := tree.Roots[1]
	if !ok {
		t.Fatal("missing root for thread 1")
	}
	if len(root.Children) != 1 {
		t.Fatalf("root has %d children, want 1", len(root.Children))
	}
	outer := root.Children[0]
	if outer.Key.Name() != "outer" || !outer.Complete {
		t.Fatalf("outer node = %+v", outer)
	}
	if len(outer.Children) != 1 || outer.Children[0].Key.Name() != "inner" {
		t.Fatalf("outer's children = %+v", outer.Children)
	}
	if outer.Begin != 0 || outer.End != 3 {
		t.Fatalf("outer span = [%d,%d), want [0,3)", outer.Begin, outer.End)
	}
}

func TestBuildDropsStrayEnd(t *testing.T) {
	el := eventlist.New()
	el.Append(rec(tevent.End, el, "nothingopen", 0))
	el.Append(rec(tevent.Begin, el, "a", 1))
	el.Append(rec(tevent.End, el, "a", 2))

	coll := collection.New()
	coll.Add(1, el)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	root := tree.Roots[1]
	if len(root.Children) != 1 {
		t.Fatalf("expected the stray End to be dropped, got %d children", len(root.Children))
	}
}

func TestBuildSynthesizesIncompleteClosureAtEndOfStream(t *testing.T) {
	el := eventlist.New()
	el.Append(rec(tevent.Begin, el, "unclosed", 0))
	el.Append(rec(tevent.Marker, el, "m", 5))

	coll := collection.New()
	coll.Add(1, el)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	n := tree.Roots[1].Children[0]
	if n.Complete {
		t.Fatal("expected unclosed scope to be marked incomplete")
	}
	if n.End != 5 {
		t.Fatalf("synthesized End = %d, want 5 (last observed time stamp)", n.End)
	}
}

func TestBuildTimespanIsImmediatelyComplete(t *testing.T) {
	el := eventlist.New()
	el.Append(tevent.Record{Type: tevent.Timespan, Key: el.CacheKey("span"), TimeStamp: 10, EndTimeStamp: 20})

	coll := collection.New()
	coll.Add(1, el)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	n := tree.Roots[1].Children[0]
	if !n.Complete || n.Begin != 10 || n.End != 20 {
		t.Fatalf("timespan node = %+v", n)
	}
}

func TestCounterValueAndDeltaTrajectory(t *testing.T) {
	el := eventlist.New()
	el.Append(tevent.Record{Type: tevent.CounterValue, Key: el.CacheKey("c"), TimeStamp: 0, Value: 10})
	el.Append(tevent.Record{Type: tevent.CounterDelta, Key: el.CacheKey("c"), TimeStamp: 1, Value: 5})
	el.Append(tevent.Record{Type: tevent.CounterDelta, Key: el.CacheKey("c"), TimeStamp: 2, Value: -3})

	coll := collection.New()
	coll.Add(1, el)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	samples := tree.Counters["c"]
	want := []float64{10, 15, 12}
	if len(samples) != len(want) {
		t.Fatalf("got %d counter samples, want %d", len(samples), len(want))
	}
	for i, w := range want {
		if samples[i].Value != w {
			t.Fatalf("sample %d = %v, want %v", i, samples[i].Value, w)
		}
	}
	if got := tree.FinalCounterValues()["c"]; got != 12 {
		t.Fatalf("FinalCounterValues()[c] = %v, want 12", got)
	}
}

func TestCounterMergedAcrossThreadsInTimeOrder(t *testing.T) {
	a := eventlist.New()
	a.Append(tevent.Record{Type: tevent.CounterDelta, Key: a.CacheKey("c"), TimeStamp: 0, Value: 1})
	a.Append(tevent.Record{Type: tevent.CounterDelta, Key: a.CacheKey("c"), TimeStamp: 4, Value: 1})

	b := eventlist.New()
	b.Append(tevent.Record{Type: tevent.CounterDelta, Key: b.CacheKey("c"), TimeStamp: 2, Value: 10})

	coll := collection.New()
	coll.Add(1, a)
	coll.Add(2, b)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	samples := tree.Counters["c"]
	want := []float64{1, 11, 12}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples, want %d: %+v", len(samples), len(want), samples)
	}
	for i, w := range want {
		if samples[i].Value != w {
			t.Fatalf("sample %d = %v, want %v (full: %+v)", i, samples[i].Value, w, samples)
		}
	}
}

func TestMarkerTimeline(t *testing.T) {
	el := eventlist.New()
	el.Append(rec(tevent.Marker, el, "m", 3))
	el.Append(rec(tevent.Marker, el, "m", 1))

	coll := collection.New()
	coll.Add(7, el)

	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	marks := tree.Markers["m"]
	if len(marks) != 2 || marks[0].Time != 1 || marks[1].Time != 3 {
		t.Fatalf("markers = %+v, want sorted by time", marks)
	}
	if marks[0].Thread != 7 {
		t.Fatalf("marker thread = %d, want 7", marks[0].Thread)
	}
}

func TestBuildConcurrentMatchesSequential(t *testing.T) {
	coll := collection.New()
	for tid := collection.ThreadID(1); tid <= 5; tid++ {
		el := eventlist.New()
		el.Append(rec(tevent.Begin, el, "s", tevent.Timestamp(tid)))
		el.Append(rec(tevent.End, el, "s", tevent.Timestamp(tid)+10))
		coll.Add(tid, el)
	}
	seq, err := Build(coll)
	if err != nil {
		t.Fatalf("sequential Build: %v", err)
	}
	conc, err := Build(coll, Concurrent())
	if err != nil {
		t.Fatalf("concurrent Build: %v", err)
	}
	if len(seq.Roots) != len(conc.Roots) {
		t.Fatalf("root count mismatch: %d vs %d", len(seq.Roots), len(conc.Roots))
	}
	for id, r := range seq.Roots {
		cr, ok := conc.Roots[id]
		if !ok || cr.Begin != r.Begin || cr.End != r.End {
			t.Fatalf("thread %d mismatch between sequential and concurrent build", id)
		}
	}
}

func TestEmptyCollectionBuildsEmptyTree(t *testing.T) {
	coll := collection.New()
	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(tree.Roots) != 0 {
		t.Fatalf("expected no roots, got %d", len(tree.Roots))
	}
}

func TestScopeDataAttachesToCurrentStackTop(t *testing.T) {
	el := eventlist.New()
	el.Append(rec(tevent.Begin, el, "outer", 0))
	el.Append(tevent.Record{Type: tevent.ScopeData, Key: el.CacheKey("tag"), TimeStamp: 1, Payload: tevent.StringPayload("v1")})
	el.Append(rec(tevent.Begin, el, "inner", 2))
	el.Append(tevent.Record{Type: tevent.Data, Key: el.CacheKey("note"), TimeStamp: 3, Payload: tevent.Int64Payload(7)})
	el.Append(rec(tevent.End, el, "inner", 4))
	el.Append(rec(tevent.End, el, "outer", 5))

	coll := collection.New()
	coll.Add(1, el)
	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	outer := tree.Roots[1].Children[0]
	if len(outer.Data) != 1 || outer.Data[0].Key.Name() != "tag" || !outer.Data[0].ScopeLocal {
		t.Fatalf("outer.Data = %+v", outer.Data)
	}
	inner := outer.Children[0]
	if len(inner.Data) != 1 || inner.Data[0].Key.Name() != "note" || inner.Data[0].ScopeLocal {
		t.Fatalf("inner.Data = %+v", inner.Data)
	}
	if v, ok := inner.Data[0].Payload.Int64(); !ok || v != 7 {
		t.Fatalf("inner.Data[0].Payload = %+v", inner.Data[0].Payload)
	}
}

func TestDataAtRootAttachesToThreadRoot(t *testing.T) {
	el := eventlist.New()
	el.Append(tevent.Record{Type: tevent.Data, Key: el.CacheKey("note"), TimeStamp: 0, Payload: tevent.BoolPayload(true)})

	coll := collection.New()
	coll.Add(1, el)
	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	root := tree.Roots[1]
	if len(root.Data) != 1 || root.Data[0].Key.Name() != "note" {
		t.Fatalf("root.Data = %+v", root.Data)
	}
}

func TestRootKeyIsThreadID(t *testing.T) {
	el := eventlist.New()
	el.Append(rec(tevent.Marker, el, "m", 0))
	coll := collection.New()
	coll.Add(42, el)
	tree, err := Build(coll)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got, want := tree.Roots[42].Key.Name(), "42"; got != want {
		t.Fatalf("root key = %q, want %q", got, want)
	}
}
