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
// Package concurrentlist implements a lock-free, append-only singly
// linked list: concurrent writers may each Insert a new node without
// blocking one another or any concurrent reader, and nodes are never
// removed for the life of the list.
package concurrentlist

import "sync/atomic"

// List is a lock-free singly linked list of *T nodes. Insert may be
// called concurrently from any number of goroutines; Range (or an
// Iterator) may be called concurrently with Insert and always observes
// a consistent, if possibly stale, prefix of the list.
//
// The zero value is an empty, ready to use List.
type List[T any] struct {
	head atomic.Pointer[node[T]]
}

type node[T any] struct {
	value T
	next  *node[T]
}

// Insert prepends a new node holding value to the list and returns a
// pointer to the stored value, stable for the remaining lifetime of the
// list.
func (l *List[T]) Insert(value T) *T {
	n := &node[T]{value: value}
	for {
		head := l.head.Load()
		n.next = head
		if l.head.CompareAndSwap(head, n) {
			return &n.value
		}
	}
}

// Range calls fn for every value currently in the list, in most-recently-
// inserted-first order, stopping early if fn returns false. A node
// inserted concurrently with a Range call may or may not be observed by
// that call, but the list from any one point onward never changes.
func (l *List[T]) Range(fn func(*T) bool) {
	for n := l.head.Load(); n != nil; n = n.next {
		if !fn(&n.value) {
			return
		}
	}
}

// Iterator returns a forward iterator starting at the list's current
// head.
func (l *List[T]) Iterator() *Iterator[T] {
	return &Iterator[T]{node: l.head.Load()}
}

// Iterator walks a List snapshot-free: it simply follows next pointers,
// which are never mutated once set, so it is safe to hold across
// concurrent Inserts.
type Iterator[T any] struct {
	node *node[T]
}

// Next advances the iterator and returns the next value, or nil if the
// iterator is exhausted.
func (it *Iterator[T]) Next() *T {
	if it.node == nil {
		return nil
	}
	v := &it.node.value
	it.node = it.node.next
	return v
}
