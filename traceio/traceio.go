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
// Package traceio reads and writes Collections as JSON in an extension
// of the Chrome Trace Event Format.
package traceio

import (
	"encoding/json"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// phase is the Chrome Trace Event Format "ph" field.
type phase string

const (
	phaseBegin        phase = "B"
	phaseEnd          phase = "E"
	phaseComplete     phase = "X"
	phaseInstant      phase = "i"
	phaseCounter      phase = "C"
	phaseAsyncData    phase = "D" // extension: Data/ScopeData payload events
)

// event is one entry in a "traceEvents" array.
type event struct {
	Name     string                 `json:"name"`
	Category string                 `json:"cat,omitempty"`
	// CategoryID is the numeric statickey.CategoryId the event was
	// recorded under. It, not Category, is authoritative on read:
	// Category is a human-readable label and is not guaranteed to hash
	// back to the id it was derived from (most visibly for the reserved
	// default category, whose name "Default" does not hash to 0).
	CategoryID uint32                 `json:"cid"`
	Phase      phase                  `json:"ph"`
	Time       float64                `json:"ts"`
	Duration   float64                `json:"dur,omitempty"`
	PID        uint64                 `json:"pid"`
	TID        uint64                 `json:"tid"`
	Args       map[string]interface{} `json:"args,omitempty"`
}

// document is the top-level JSON object for a single Collection.
type document struct {
	TraceEvents []event `json:"traceEvents"`
}

const payloadArgName = "payload"
const counterValueArgName = "value"
const counterDeltaArgName = "delta"
const scopeDataArgName = "scopeLocal"

// Write serializes collections as a JSON array of documents, one per
// Collection, each holding a "traceEvents" array in Chrome Trace Event
// Format.
func Write(w io.Writer, collections []*collection.Collection) error {
	docs := make([]document, len(collections))
	for i, c := range collections {
		docs[i] = toDocument(c)
	}
	enc := json.NewEncoder(w)
	return enc.Encode(docs)
}

// WriteOne serializes a single Collection as one JSON document (not
// wrapped in an array).
func WriteOne(w io.Writer, c *collection.Collection) error {
	enc := json.NewEncoder(w)
	return enc.Encode(toDocument(c))
}

func toDocument(c *collection.Collection) document {
	var doc document
	for _, id := range c.ThreadIDs() {
		el, _ := c.Get(id)
		el.Visit(func(r *tevent.Record) bool {
			doc.TraceEvents = append(doc.TraceEvents, toEvent(id, r))
			return true
		})
	}
	return doc
}

func toEvent(id collection.ThreadID, r *tevent.Record) event {
	e := event{
		Name: r.Key.Name(),
		Time: r.TimeStamp.Microseconds(),
		PID:  0,
		TID:  uint64(id),
	}
	e.CategoryID = uint32(r.Category)
	if cats := statickey.GetCategories(r.Category); len(cats) > 0 {
		e.Category = joinCategories(cats)
	}
	switch r.Type {
	case tevent.Begin:
		e.Phase = phaseBegin
	case tevent.End:
		e.Phase = phaseEnd
	case tevent.Timespan:
		e.Phase = phaseComplete
		e.Duration = r.Duration().Seconds() * 1e6
	case tevent.Marker:
		e.Phase = phaseInstant
	case tevent.CounterDelta, tevent.CounterValue:
		e.Phase = phaseCounter
		e.Args = map[string]interface{}{
			counterValueArgName: r.Value,
			counterDeltaArgName: r.Type == tevent.CounterDelta,
		}
	case tevent.Data, tevent.ScopeData:
		e.Phase = phaseAsyncData
		e.Args = map[string]interface{}{
			payloadArgName:     r.Payload.Any(),
			scopeDataArgName: r.Type == tevent.ScopeData,
		}
	}
	return e
}

func joinCategories(cats []string) string {
	out := cats[0]
	for _, c := range cats[1:] {
		out += "," + c
	}
	return out
}

// Read parses a JSON array of documents written by Write, returning one
// Collection per document.
func Read(r io.Reader) ([]*collection.Collection, error) {
	dec := json.NewDecoder(r)
	var docs []document
	if err := dec.Decode(&docs); err != nil {
		return nil, parseError(dec, err)
	}
	out := make([]*collection.Collection, len(docs))
	for i, d := range docs {
		out[i] = fromDocument(d)
	}
	return out, nil
}

// ReadOne parses a single JSON document written by WriteOne.
func ReadOne(r io.Reader) (*collection.Collection, error) {
	dec := json.NewDecoder(r)
	var d document
	if err := dec.Decode(&d); err != nil {
		return nil, parseError(dec, err)
	}
	return fromDocument(d), nil
}

func parseError(dec *json.Decoder, err error) error {
	return status.Errorf(codes.InvalidArgument, "parsing trace JSON at offset %d: %s", dec.InputOffset(), err)
}

func fromDocument(d document) *collection.Collection {
	c := collection.New()
	lists := make(map[collection.ThreadID]*eventlist.EventList)
	var order []collection.ThreadID
	for _, e := range d.TraceEvents {
		id := collection.ThreadID(e.TID)
		el, ok := lists[id]
		if !ok {
			el = eventlist.New()
			lists[id] = el
			order = append(order, id)
		}
		el.Append(fromEvent(el, e))
	}
	for _, id := range order {
		c.Add(id, lists[id])
	}
	return c
}

func fromEvent(el *eventlist.EventList, e event) tevent.Record {
	r := tevent.Record{
		Key:       el.CacheKey(e.Name),
		TimeStamp: tevent.FromMicroseconds(e.Time),
	}
	r.Category = statickey.CategoryId(e.CategoryID)
	switch e.Phase {
	case phaseBegin:
		r.Type = tevent.Begin
	case phaseEnd:
		r.Type = tevent.End
	case phaseComplete:
		r.Type = tevent.Timespan
		r.EndTimeStamp = r.TimeStamp + tevent.FromMicroseconds(e.Duration)
	case phaseInstant:
		r.Type = tevent.Marker
	case phaseCounter:
		r.Type = tevent.CounterValue
		if d, ok := e.Args[counterDeltaArgName]; ok {
			if b, ok := d.(bool); ok && b {
				r.Type = tevent.CounterDelta
			}
		}
		if v, ok := e.Args[counterValueArgName]; ok {
			if f, ok := v.(float64); ok {
				r.Value = f
			}
		}
	case phaseAsyncData:
		r.Type = tevent.Data
		if e.Args != nil {
			if s, ok := e.Args[scopeDataArgName]; ok {
				if b, ok := s.(bool); ok && b {
					r.Type = tevent.ScopeData
				}
			}
			r.Payload = payloadFromAny(el, e.Args[payloadArgName])
		}
	}
	return r
}

func payloadFromAny(el *eventlist.EventList, v interface{}) tevent.Payload {
	switch x := v.(type) {
	case bool:
		return tevent.BoolPayload(x)
	case float64:
		return tevent.Float64Payload(x)
	case string:
		return tevent.StringPayload(el.StoreString(x))
	default:
		return tevent.Payload{}
	}
}
