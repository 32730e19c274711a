package tevent

import (
	"testing"

	"github.com/traceforge/traceforge/statickey"
)

func TestRecordDuration(t *testing.T) {
	r := Record{
		Type:         Timespan,
		TimeStamp:    Timestamp(100),
		EndTimeStamp: Timestamp(150),
	}
	if got, want := r.Duration(), Duration(50); got != want {
		t.Fatalf("Duration() = %d, want %d", got, want)
	}
}

func TestRecordDurationClampsInverted(t *testing.T) {
	r := Record{TimeStamp: Timestamp(150), EndTimeStamp: Timestamp(100)}
	if got := r.Duration(); got != 0 {
		t.Fatalf("Duration() = %d, want 0 for an inverted interval", got)
	}
}

func TestTypeStringCoversAllVariants(t *testing.T) {
	for _, typ := range []Type{Begin, End, Timespan, Marker, CounterDelta, CounterValue, Data, ScopeData} {
		if typ.String() == "Unknown" {
			t.Errorf("Type %d stringified as Unknown", typ)
		}
	}
}

func TestRecordCarriesKeyAndCategory(t *testing.T) {
	k := statickey.NewStatic("scope")
	r := Record{Type: Begin, Category: statickey.CategoryFromName("test"), Key: k}
	if r.Key.Name() != "scope" {
		t.Fatalf("Key.Name() = %q, want %q", r.Key.Name(), "scope")
	}
}
