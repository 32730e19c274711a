package concurrentlist

import (
	"sort"
	"sync"
	"testing"
)

func TestInsertAndRange(t *testing.T) {
	var l List[int]
	for i := 0; i < 5; i++ {
		l.Insert(i)
	}
	var got []int
	l.Range(func(v *int) bool {
		got = append(got, *v)
		return true
	})
	if len(got) != 5 {
		t.Fatalf("Range saw %d values, want 5", len(got))
	}
	sort.Ints(got)
	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want [0..4]", got)
		}
	}
}

func TestInsertReturnsStablePointer(t *testing.T) {
	var l List[string]
	p := l.Insert("first")
	for i := 0; i < 100; i++ {
		l.Insert("filler")
	}
	if *p != "first" {
		t.Fatalf("value at stored pointer changed to %q", *p)
	}
}

func TestRangeStopsEarly(t *testing.T) {
	var l List[int]
	for i := 0; i < 10; i++ {
		l.Insert(i)
	}
	seen := 0
	l.Range(func(v *int) bool {
		seen++
		return seen < 3
	})
	if seen != 3 {
		t.Fatalf("Range visited %d nodes, want 3", seen)
	}
}

func TestIterator(t *testing.T) {
	var l List[int]
	l.Insert(1)
	l.Insert(2)
	it := l.Iterator()
	count := 0
	for v := it.Next(); v != nil; v = it.Next() {
		count++
	}
	if count != 2 {
		t.Fatalf("Iterator visited %d values, want 2", count)
	}
	if v := it.Next(); v != nil {
		t.Fatalf("exhausted iterator returned %v, want nil", *v)
	}
}

func TestConcurrentInsert(t *testing.T) {
	var l List[int]
	var wg sync.WaitGroup
	const n = 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Insert(i)
		}(i)
	}
	wg.Wait()
	count := 0
	l.Range(func(*int) bool {
		count++
		return true
	})
	if count != n {
		t.Fatalf("list has %d nodes after %d concurrent inserts, want %d", count, n, n)
	}
}
