package tevent

import "github.com/traceforge/traceforge/statickey"

// Type discriminates the variant an event Record holds.
type Type uint8

const (
	// Begin opens a named scope.
	Begin Type = iota
	// End closes the most recently opened matching scope.
	End
	// Timespan records a scope whose begin and end are both already
	// known, emitted in a single step by scope-guard helpers.
	Timespan
	// Marker is a zero-duration named instant.
	Marker
	// CounterDelta adds value to a named running counter.
	CounterDelta
	// CounterValue assigns value to a named running counter.
	CounterValue
	// Data attaches a typed payload to the event stream at a point in
	// time, independent of any enclosing scope.
	Data
	// ScopeData attaches a typed payload to the scope open on the
	// emitting thread at the time of the call.
	ScopeData
)

func (t Type) String() string {
	switch t {
	case Begin:
		return "Begin"
	case End:
		return "End"
	case Timespan:
		return "Timespan"
	case Marker:
		return "Marker"
	case CounterDelta:
		return "CounterDelta"
	case CounterValue:
		return "CounterValue"
	case Data:
		return "Data"
	case ScopeData:
		return "ScopeData"
	default:
		return "Unknown"
	}
}

// Record is one entry in an EventList: a tagged union describing a single
// instrumentation event. Not every field is meaningful for every Type;
// see the accessor comments below.
type Record struct {
	Type     Type
	Category statickey.CategoryId
	Key      statickey.Key

	// TimeStamp is the event's time for Begin, End, Marker, CounterDelta,
	// CounterValue, Data, and ScopeData. For Timespan it is the begin
	// time; EndTimeStamp holds the end time.
	TimeStamp Timestamp
	// EndTimeStamp is only meaningful for Timespan records.
	EndTimeStamp Timestamp

	// Value carries the counter value for CounterDelta/CounterValue
	// records.
	Value float64

	// Payload carries the attached value for Data/ScopeData records.
	Payload Payload
}

// Duration returns the record's duration; only meaningful for Timespan.
func (r Record) Duration() Duration {
	return DurationBetween(r.TimeStamp, r.EndTimeStamp)
}
