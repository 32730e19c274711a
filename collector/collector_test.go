package collector

import (
	"sync"
	"testing"

	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

func TestDisabledByDefaultAfterNew(t *testing.T) {
	c := New()
	if c.IsEnabled() {
		t.Fatal("new collector should be disabled")
	}
}

func TestDisabledWriterIsNoop(t *testing.T) {
	c := New()
	w := c.NewWriter()
	key := statickey.NewStatic("scope")
	if ts := w.BeginEvent(key, statickey.DefaultCategory); ts != 0 {
		t.Fatalf("BeginEvent on disabled collector returned %d, want 0", ts)
	}
	coll := c.CreateCollection()
	if !coll.IsEmpty() {
		t.Fatal("disabled collector should not have recorded any events")
	}
}

func TestEnabledWriterRecordsEvents(t *testing.T) {
	c := New()
	c.SetEnabled(true)
	w := c.NewWriter()
	key := statickey.NewStatic("scope")
	w.BeginEvent(key, statickey.DefaultCategory)
	w.EndEvent(key, statickey.DefaultCategory)

	coll := c.CreateCollection()
	if coll.IsEmpty() {
		t.Fatal("expected a non-empty collection")
	}
	el, ok := coll.Get(w.ID())
	if !ok {
		t.Fatal("collection missing writer's thread id")
	}
	if got := el.Len(); got != 2 {
		t.Fatalf("recorded %d events, want 2", got)
	}
}

func TestTimestampsAreMonotonicWithinAWriter(t *testing.T) {
	c := New()
	c.SetEnabled(true)
	w := c.NewWriter()
	key := statickey.NewStatic("scope")
	var last tevent.Timestamp
	for i := 0; i < 50; i++ {
		ts := w.BeginEvent(key, statickey.DefaultCategory)
		if ts < last {
			t.Fatalf("timestamp went backward: %d then %d", last, ts)
		}
		last = ts
		w.EndEvent(key, statickey.DefaultCategory)
	}
}

func TestCreateCollectionResetsWriterEvents(t *testing.T) {
	c := New()
	c.SetEnabled(true)
	w := c.NewWriter()
	key := statickey.NewStatic("scope")
	w.MarkerEvent(key, statickey.DefaultCategory)
	_ = c.CreateCollection()

	second := c.CreateCollection()
	if !second.IsEmpty() {
		t.Fatal("second snapshot should be empty; writer's list should have been reset")
	}
}

func TestClearDropsUncollectedEvents(t *testing.T) {
	c := New()
	c.SetEnabled(true)
	w := c.NewWriter()
	key := statickey.NewStatic("scope")
	w.MarkerEvent(key, statickey.DefaultCategory)
	c.Clear()

	coll := c.CreateCollection()
	if !coll.IsEmpty() {
		t.Fatal("Clear should have dropped the uncollected marker event")
	}
}

func TestConcurrentWritersGetDistinctThreadIDs(t *testing.T) {
	c := New()
	c.SetEnabled(true)
	const n = 32
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := c.NewWriter()
			key := statickey.NewStatic("scope")
			w.MarkerEvent(key, statickey.DefaultCategory)
			ids <- uint64(w.ID())
		}()
	}
	wg.Wait()
	close(ids)
	seen := make(map[uint64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate thread id %d handed to two writers", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("saw %d distinct thread ids, want %d", len(seen), n)
	}
	coll := c.CreateCollection()
	if got := len(coll.ThreadIDs()); got != n {
		t.Fatalf("collection has %d threads, want %d", got, n)
	}
}

func TestStringPayloadSurvivesAfterCallerBufferReused(t *testing.T) {
	c := New()
	c.SetEnabled(true)
	w := c.NewWriter()
	key := statickey.NewStatic("event")
	buf := []byte("original")
	w.Data(key, tevent.StringPayload(string(buf)), statickey.DefaultCategory)
	for i := range buf {
		buf[i] = 'x'
	}
	coll := c.CreateCollection()
	el, _ := coll.Get(w.ID())
	var got string
	el.Visit(func(r *tevent.Record) bool {
		got, _ = r.Payload.String()
		return true
	})
	if got != "original" {
		t.Fatalf("payload = %q, want %q", got, "original")
	}
}

func TestScopeOverheadIsMeasured(t *testing.T) {
	c := New()
	if c.ScopeOverhead() < 0 {
		t.Fatalf("ScopeOverhead() = %d, want >= 0", c.ScopeOverhead())
	}
}
