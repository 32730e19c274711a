package query

import (
	"testing"

	"github.com/ilhamster/ltl/pkg/ltl"
	ops "github.com/ilhamster/ltl/pkg/operators"

	"github.com/traceforge/traceforge/collection"
	"github.com/traceforge/traceforge/eventlist"
	"github.com/traceforge/traceforge/tevent"
)

func rec(typ tevent.Type, el *eventlist.EventList, key string, ts tevent.Timestamp) tevent.Record {
	return tevent.Record{Type: typ, Key: el.CacheKey(key), TimeStamp: ts}
}

func testStream(t *testing.T) *Stream {
	t.Helper()
	el := eventlist.New()
	el.Append(rec(tevent.Begin, el, "sysenter", 0))
	el.Append(rec(tevent.Marker, el, "tick", 1))
	el.Append(rec(tevent.End, el, "sysenter", 2))
	el.Append(rec(tevent.Begin, el, "sysenter", 3))
	el.Append(rec(tevent.End, el, "sysenter", 4))

	coll := collection.New()
	coll.Add(1, el)
	return NewStream(coll)
}

func mustGenerate(t *testing.T, stream *Stream, s string) ltl.Operator {
	t.Helper()
	op, err := Generator(stream)(s)
	if err != nil {
		t.Fatalf("Generator(%q): %v", s, err)
	}
	return op
}

func TestAttributeMatcherMatchesByName(t *testing.T) {
	stream := testStream(t)
	op := mustGenerate(t, stream, "event.name=tick")

	matched, env := Drive(op, []ltl.Token{RecordToken(0)})
	if matched {
		t.Fatal("index 0 (sysenter) should not match event.name=tick")
	}
	if env.Err() != nil {
		t.Fatalf("unexpected error: %v", env.Err())
	}

	matched, env = Drive(op, []ltl.Token{RecordToken(1)})
	if !matched {
		t.Fatal("index 1 (tick) should match event.name=tick")
	}
}

func TestAttributeMatcherMatchesByType(t *testing.T) {
	stream := testStream(t)
	op := mustGenerate(t, stream, "event.type=Marker")

	matched, _ := Drive(op, []ltl.Token{RecordToken(1)})
	if !matched {
		t.Fatal("index 1 is a Marker record and should match event.type=Marker")
	}
	matched, _ = Drive(op, []ltl.Token{RecordToken(0)})
	if matched {
		t.Fatal("index 0 is a Begin record and should not match event.type=Marker")
	}
}

func TestSequenceOperatorMatchesConsecutiveBeginEnd(t *testing.T) {
	stream := testStream(t)
	begin := mustGenerate(t, stream, "event.name=sysenter")
	end := mustGenerate(t, stream, "event.type=End")
	seq := ops.Then(begin, end)

	matched, _ := Drive(seq, []ltl.Token{RecordToken(3), RecordToken(4)})
	if !matched {
		t.Fatal("expected sysenter begin followed by an end to match the sequence")
	}
}

func TestFindAllLocatesEveryMatch(t *testing.T) {
	stream := testStream(t)
	op := mustGenerate(t, stream, "event.name=sysenter")

	results, err := FindAll(op, stream)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one match for event.name=sysenter")
	}
}

func TestInvalidAttributeIsRejected(t *testing.T) {
	stream := testStream(t)
	if _, err := Generator(stream)("event.bogus=1"); err == nil {
		t.Fatal("expected an error for an unknown attribute")
	}
}

func TestBindingAndReferenceRoundTrip(t *testing.T) {
	stream := testStream(t)
	bind := mustGenerate(t, stream, "$n<-event.name")
	ref := mustGenerate(t, stream, "event.name=$n")
	seq := ops.Then(bind, ref)

	matched, _ := Drive(seq, []ltl.Token{RecordToken(3), RecordToken(3)})
	if !matched {
		t.Fatal("binding then referencing the same name at the same record should match")
	}
}
