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
// Package tracetest provides chainable helpers for programmatically
// assembling collection.Collections in tests, the way
// eventsetbuilder.Builder assembles EventSet protobufs: accumulate
// events against a Builder, then call TestCollection to get the result,
// failing the test immediately if anything went wrong along the way.
package tracetest

import (
	"fmt"
	"testing"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// Builder accumulates events, grouped by thread, for later assembly into
// a collection.Collection. Construct one with NewBuilder, chain
// WithBegin/WithEnd/WithMarker/etc. calls (each returns the receiver),
// then call TestCollection.
type Builder struct {
	lists           map[collection.ThreadID]*eventlist.EventList
	order           []collection.ThreadID
	pendingCategory map[collection.ThreadID]statickey.CategoryId
	errs            []error
}

// NewBuilder constructs an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		lists:           make(map[collection.ThreadID]*eventlist.EventList),
		pendingCategory: make(map[collection.ThreadID]statickey.CategoryId),
	}
}

func (b *Builder) listFor(thread collection.ThreadID) *eventlist.EventList {
	el, ok := b.lists[thread]
	if !ok {
		el = eventlist.New()
		b.lists[thread] = el
		b.order = append(b.order, thread)
	}
	return el
}

func (b *Builder) append(thread collection.ThreadID, r tevent.Record) {
	r.Category = b.pendingCategory[thread]
	b.listFor(thread).Append(r)
}

// WithBegin appends a Begin record named name on thread at ts.
func (b *Builder) WithBegin(thread collection.ThreadID, name string, ts tevent.Timestamp) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.Begin, Key: el.CacheKey(name), TimeStamp: ts})
	return b
}

// WithEnd appends an End record named name on thread at ts.
func (b *Builder) WithEnd(thread collection.ThreadID, name string, ts tevent.Timestamp) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.End, Key: el.CacheKey(name), TimeStamp: ts})
	return b
}

// WithTimespan appends a single Timespan record named name on thread
// spanning [begin, end).
func (b *Builder) WithTimespan(thread collection.ThreadID, name string, begin, end tevent.Timestamp) *Builder {
	el := b.listFor(thread)
	if end < begin {
		b.errs = append(b.errs, fmt.Errorf("timespan %q has end %d before begin %d", name, end, begin))
		return b
	}
	b.append(thread, tevent.Record{Type: tevent.Timespan, Key: el.CacheKey(name), TimeStamp: begin, EndTimeStamp: end})
	return b
}

// WithMarker appends a Marker record named name on thread at ts.
func (b *Builder) WithMarker(thread collection.ThreadID, name string, ts tevent.Timestamp) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.Marker, Key: el.CacheKey(name), TimeStamp: ts})
	return b
}

// WithCounterDelta appends a CounterDelta record for counter on thread at
// ts, adding delta to the counter's running value.
func (b *Builder) WithCounterDelta(thread collection.ThreadID, counter string, ts tevent.Timestamp, delta float64) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.CounterDelta, Key: el.CacheKey(counter), TimeStamp: ts, Value: delta})
	return b
}

// WithCounterValue appends a CounterValue record for counter on thread at
// ts, assigning value as the counter's running value.
func (b *Builder) WithCounterValue(thread collection.ThreadID, counter string, ts tevent.Timestamp, value float64) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.CounterValue, Key: el.CacheKey(counter), TimeStamp: ts, Value: value})
	return b
}

// WithData appends a Data record attaching payload to the stream at ts,
// independent of any enclosing scope.
func (b *Builder) WithData(thread collection.ThreadID, name string, ts tevent.Timestamp, payload tevent.Payload) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.Data, Key: el.CacheKey(name), TimeStamp: ts, Payload: payload})
	return b
}

// WithScopeData appends a ScopeData record attaching payload to whatever
// scope is open on thread at ts.
func (b *Builder) WithScopeData(thread collection.ThreadID, name string, ts tevent.Timestamp, payload tevent.Payload) *Builder {
	el := b.listFor(thread)
	b.append(thread, tevent.Record{Type: tevent.ScopeData, Key: el.CacheKey(name), TimeStamp: ts, Payload: payload})
	return b
}

// WithCategory sets category as the category every subsequently-appended
// record on thread carries, until changed again. Unlike the other With*
// methods this does not itself append a record.
func (b *Builder) WithCategory(thread collection.ThreadID, category statickey.CategoryId) *Builder {
	b.listFor(thread) // ensure the thread exists even if nothing else is appended yet.
	b.pendingCategory[thread] = category
	return b
}

// TestCollection returns the Builder's assembled collection.Collection.
// If any With* call recorded an error, the test is failed immediately.
func (b *Builder) TestCollection(t *testing.T) *collection.Collection {
	t.Helper()
	if len(b.errs) > 0 {
		for _, err := range b.errs {
			t.Errorf("building test collection: %v", err)
		}
		t.Fatalf("bailing out of TestCollection due to the above errors")
	}
	coll := collection.New()
	for _, id := range b.order {
		coll.Add(id, b.lists[id])
	}
	return coll
}
