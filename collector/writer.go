package collector

import (
	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// Writer is a handle to one writer's slot on a Collector. Every method is
// safe to call only from the goroutine (or externally synchronized set
// of goroutines) that owns the handle; distinct Writers never contend
// with one another or with CreateCollection.
type Writer struct {
	c    *Collector
	slot *slot
}

// NewWriter allocates a new slot on c and returns a handle to it. The
// slot is never removed for the life of the Collector.
func (c *Collector) NewWriter() *Writer {
	id := collection.ThreadID(c.nextThreadID.Add(1))
	s := c.slots.Insert(slot{id: id})
	s.events.Store(eventlist.New())
	return &Writer{c: c, slot: s}
}

// ID returns the thread id this writer's events will be recorded under.
func (w *Writer) ID() collection.ThreadID {
	return w.slot.id
}

func (w *Writer) withEvents(fn func(*eventlist.EventList)) {
	w.slot.writing.Store(true)
	defer w.slot.writing.Store(false)
	fn(w.slot.events.Load())
}

// BeginEvent opens a named scope at the current time. It is a no-op (and
// returns 0) when the collector is disabled.
func (w *Writer) BeginEvent(key statickey.Key, cat statickey.CategoryId) tevent.Timestamp {
	if !w.c.IsEnabled() {
		return 0
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.Begin, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts})
	})
	return ts
}

// EndEvent closes the most recently opened matching scope. It is a no-op
// (and returns 0) when the collector is disabled.
func (w *Writer) EndEvent(key statickey.Key, cat statickey.CategoryId) tevent.Timestamp {
	if !w.c.IsEnabled() {
		return 0
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.End, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts})
	})
	return ts
}

// MarkerEvent records a zero-duration named instant at the current time.
func (w *Writer) MarkerEvent(key statickey.Key, cat statickey.CategoryId) tevent.Timestamp {
	if !w.c.IsEnabled() {
		return 0
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.Marker, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts})
	})
	return ts
}

// Scope records a Timespan event with an already-known begin and end
// time, the batch form scope-guard helpers use to emit a completed scope
// in a single call.
func (w *Writer) Scope(key statickey.Key, cat statickey.CategoryId, begin, end tevent.Timestamp) {
	if !w.c.IsEnabled() {
		return
	}
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.Timespan, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: begin, EndTimeStamp: end})
	})
}

// BeginEventAtTime is the explicit-timestamp form of BeginEvent, used
// when the caller has its own clock (e.g. replaying externally-timed
// events). ms is milliseconds since the Collector's epoch.
func (w *Writer) BeginEventAtTime(key statickey.Key, ms float64, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := tevent.FromMillis(ms)
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.Begin, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts})
	})
}

// EndEventAtTime is the explicit-timestamp form of EndEvent.
func (w *Writer) EndEventAtTime(key statickey.Key, ms float64, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := tevent.FromMillis(ms)
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.End, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts})
	})
}

// MarkerEventAtTime is the explicit-timestamp form of MarkerEvent.
func (w *Writer) MarkerEventAtTime(key statickey.Key, ms float64, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := tevent.FromMillis(ms)
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.Marker, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts})
	})
}

// CounterDelta adds value to the named running counter at the current
// time.
func (w *Writer) CounterDelta(key statickey.Key, value float64, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.CounterDelta, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts, Value: value})
	})
}

// CounterValue assigns value to the named running counter at the current
// time.
func (w *Writer) CounterValue(key statickey.Key, value float64, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.CounterValue, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts, Value: value})
	})
}

// Data attaches a typed payload to the event stream at the current time,
// independent of any enclosing scope.
func (w *Writer) Data(key statickey.Key, payload tevent.Payload, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.Data, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts, Payload: stabilize(el, payload)})
	})
}

// ScopeData attaches a typed payload to the scope currently open on this
// writer, at the current time.
func (w *Writer) ScopeData(key statickey.Key, payload tevent.Payload, cat statickey.CategoryId) {
	if !w.c.IsEnabled() {
		return
	}
	ts := w.c.Now()
	w.withEvents(func(el *eventlist.EventList) {
		el.Append(tevent.Record{Type: tevent.ScopeData, Category: cat, Key: el.CacheKey(key.Name()), TimeStamp: ts, Payload: stabilize(el, payload)})
	})
}

// stabilize copies a String payload's text into el's arena so it
// outlives the caller's buffer; other payload kinds are returned as-is.
func stabilize(el *eventlist.EventList, p tevent.Payload) tevent.Payload {
	if s, ok := p.String(); ok {
		return tevent.StringPayload(el.StoreString(s))
	}
	return p
}
