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
package query

import (
	"fmt"
	"sort"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/statickey"
	"github.com/traceforge/traceforge/tevent"
)

// Entry is one timeline position in a Stream: a record plus the thread it
// was recorded on.
type Entry struct {
	Thread collection.ThreadID
	Record tevent.Record
}

// Stream is a Collection flattened into a single, globally time-ordered
// sequence of entries, addressable by index -- the ordering a query
// walks its input tokens over. Unlike Collection.Visit, which walks one
// thread fully before the next, Stream interleaves every thread's
// records by time stamp, so a query can match sequences of events that
// span threads.
type Stream struct {
	entries []Entry
}

// NewStream flattens coll into a single time-ordered Stream.
func NewStream(coll *collection.Collection) *Stream {
	s := &Stream{}
	collector := &streamCollector{stream: s}
	coll.Visit(collector)
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].Record.TimeStamp < s.entries[j].Record.TimeStamp
	})
	return s
}

// streamCollector is a collection.Visitor that appends every accepted
// event into a Stream, unsorted; NewStream sorts the result by time
// stamp once the full walk is complete.
type streamCollector struct {
	stream *Stream
}

func (c *streamCollector) OnBeginCollection()                          {}
func (c *streamCollector) OnBeginThread(id collection.ThreadID)        {}
func (c *streamCollector) AcceptsCategory(id statickey.CategoryId) bool { return true }
func (c *streamCollector) OnEvent(threadID collection.ThreadID, displayKey string, rec *tevent.Record) {
	c.stream.entries = append(c.stream.entries, Entry{Thread: threadID, Record: *rec})
}
func (c *streamCollector) OnEndThread(id collection.ThreadID) {}
func (c *streamCollector) OnEndCollection()                   {}

// Len returns the number of entries in the stream.
func (s *Stream) Len() int { return len(s.entries) }

// EntryByIndex returns the entry at idx, mirroring
// trace.Collection.EventByIndex.
func (s *Stream) EntryByIndex(idx int) (*Entry, error) {
	if idx < 0 || idx >= len(s.entries) {
		return nil, fmt.Errorf("entry index %d out of range [0, %d)", idx, len(s.entries))
	}
	return &s.entries[idx], nil
}

// Tokens returns every entry in the stream as an ordered slice of
// RecordTokens, ready to drive against an ltl.Operator built by
// Generator(s).
func (s *Stream) Tokens() []RecordToken {
	out := make([]RecordToken, len(s.entries))
	for i := range s.entries {
		out[i] = RecordToken(i)
	}
	return out
}
