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
// Package arena provides a bump-allocated byte arena used to store
// interned key text and String-typed event payloads without per-call
// heap allocation churn. Chunks grow geometrically, the way
// pxr/trace/dataBuffer.cpp's Allocator grows blocks, and an arena's
// chunks can be transferred wholesale into another arena (Splice)
// without copying already-stored bytes, so pointers into those bytes
// stay valid.
package arena

// defaultChunkSize is the size, in bytes, of the first chunk. Each later
// chunk is twice the size of the chunk before it, or exactly as large as
// the requested string when that is larger still.
const defaultChunkSize = 4096

// chunk is one block of the arena. used is the bump offset; bytes before
// it are live and immutable, bytes from used onward are unused capacity.
type chunk struct {
	data []byte
	used int
}

// Buffer is a bump allocator for strings. The zero value is ready to use.
// A Buffer is not safe for concurrent use; callers (EventList) serialize
// access the same way they serialize appends.
type Buffer struct {
	chunks []*chunk
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{}
}

// Store copies s into the arena and returns a string backed by that
// stable storage. The returned string's address never changes for the
// lifetime of the Buffer (or of any Buffer it is later Spliced into),
// satisfying the interned-key and String-payload stability invariant.
func (b *Buffer) Store(s string) string {
	if len(s) == 0 {
		return ""
	}
	c := b.chunkFor(len(s))
	start := c.used
	n := copy(c.data[start:], s)
	c.used += n
	return string(c.data[start : start+n : start+n])
}

// chunkFor returns a chunk with at least n bytes of free capacity,
// allocating a new one if the current tail chunk cannot fit n more
// bytes.
func (b *Buffer) chunkFor(n int) *chunk {
	if len(b.chunks) > 0 {
		tail := b.chunks[len(b.chunks)-1]
		if len(tail.data)-tail.used >= n {
			return tail
		}
	}
	size := defaultChunkSize
	if len(b.chunks) > 0 {
		size = 2 * len(b.chunks[len(b.chunks)-1].data)
	}
	if n > size {
		size = n
	}
	c := &chunk{data: make([]byte, size)}
	b.chunks = append(b.chunks, c)
	return c
}

// Splice moves all of other's chunks into b and empties other. Strings
// previously returned by other.Store remain valid: their backing arrays
// are only re-parented, never copied or moved.
func (b *Buffer) Splice(other *Buffer) {
	if other == nil || len(other.chunks) == 0 {
		return
	}
	b.chunks = append(b.chunks, other.chunks...)
	other.chunks = nil
}

// Len returns the number of chunks currently held, for tests.
func (b *Buffer) Len() int {
	return len(b.chunks)
}
