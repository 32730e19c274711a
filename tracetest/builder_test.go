package tracetest

import (
	"testing"

	"github.com/traceforge/traceforge/eventtree"
	"github.com/traceforge/traceforge/tevent"
)

func TestBuilderAssemblesUsableCollection(t *testing.T) {
	coll := NewBuilder().
		WithBegin(1, "outer", 0).
		WithBegin(1, "inner", 1).
		WithCounterDelta(1, "items", 2, 3).
		WithEnd(1, "inner", 3).
		WithEnd(1, "outer", 5).
		TestCollection(t)

	if coll.IsEmpty() {
		t.Fatal("expected a non-empty collection")
	}

	tree, err := eventtree.Build(coll)
	if err != nil {
		t.Fatalf("eventtree.Build: %v", err)
	}
	root, ok := tree.Roots[1]
	if !ok {
		t.Fatal("missing thread 1 root")
	}
	if len(root.Children) != 1 || root.Children[0].Key.Name() != "outer" {
		t.Fatalf("thread root's children = %+v, want a single outer scope", root.Children)
	}
	outer := root.Children[0]
	if len(outer.Children) != 1 || outer.Children[0].Key.Name() != "inner" {
		t.Fatal("expected outer to have a single inner child")
	}
}

func TestBuilderFailsTestOnMalformedTimespan(t *testing.T) {
	inner := &testing.T{}
	NewBuilder().WithTimespan(1, "backwards", 10, 5).TestCollection(inner)
	if !inner.Failed() {
		t.Fatal("expected TestCollection to fail when a timespan's end precedes its begin")
	}
}

func TestWithDataAttachesPayload(t *testing.T) {
	coll := NewBuilder().
		WithBegin(1, "outer", 0).
		WithScopeData(1, "tag", 1, tevent.StringPayload("v1")).
		WithEnd(1, "outer", 2).
		TestCollection(t)

	tree, err := eventtree.Build(coll)
	if err != nil {
		t.Fatalf("eventtree.Build: %v", err)
	}
	root := tree.Roots[1]
	if len(root.Children) != 1 {
		t.Fatalf("thread root has %d children, want 1 (outer)", len(root.Children))
	}
	outer := root.Children[0]
	if len(outer.Data) != 1 || outer.Data[0].Key.Name() != "tag" {
		t.Fatal("expected outer to carry one ScopeData attachment named tag")
	}
	if !outer.Data[0].ScopeLocal {
		t.Fatal("expected the attachment to be marked ScopeLocal")
	}
}
