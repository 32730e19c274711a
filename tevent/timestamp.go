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
// Package tevent holds the tagged-union event record written by every
// instrumentation call, and the timestamp/payload types it carries.
package tevent

// Timestamp is a monotonic tick count. On this platform a tick is one
// nanosecond of process-relative wall time (see collector.Now), but
// callers should treat Timestamp as an opaque tick count and convert
// with Seconds/Microseconds rather than assuming the unit.
type Timestamp int64

// TicksPerSecond is the platform constant used to convert Timestamp
// ticks to real time.
const TicksPerSecond int64 = 1e9

// Seconds converts t to seconds.
func (t Timestamp) Seconds() float64 {
	return float64(t) / float64(TicksPerSecond)
}

// Microseconds converts t to microseconds, the unit the Chrome Trace
// Event Format uses for its "ts" field.
func (t Timestamp) Microseconds() float64 {
	return float64(t) * 1e6 / float64(TicksPerSecond)
}

// FromMicroseconds converts microseconds (as read from a serialized
// trace) back to a Timestamp.
func FromMicroseconds(us float64) Timestamp {
	return Timestamp(us * float64(TicksPerSecond) / 1e6)
}

// FromMillis converts a caller-supplied millisecond offset (the *_at_time
// emission APIs) to a Timestamp.
func FromMillis(ms float64) Timestamp {
	return Timestamp(ms * float64(TicksPerSecond) / 1e3)
}

// Duration is a non-negative difference of two Timestamps.
type Duration int64

// DurationBetween returns end-begin, clamped to zero if the stream
// produced an inverted interval (should not happen under the
// monotonicity invariant, but defends downstream exclusive-time math).
func DurationBetween(begin, end Timestamp) Duration {
	d := Duration(end - begin)
	if d < 0 {
		return 0
	}
	return d
}

// Seconds converts d to seconds.
func (d Duration) Seconds() float64 {
	return float64(d) / float64(TicksPerSecond)
}
