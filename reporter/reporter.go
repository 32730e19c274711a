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
// Package reporter implements the subscription contract a Collector
// snapshot is delivered through: an arbitrary number of subscribers each
// receive a reference to the same immutable Collection, and a bounded
// cache lets later callers retrieve a previously delivered Collection by
// id without holding it forever.
package reporter

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/simplelru"

	"github.com/traceforge/traceforge/collection"
)

// Entry is a Collection and its delivery state as held in a Registry's
// cache. A zero Entry is not usable; construct one with newEntry.
type Entry struct {
	ID uuid.UUID

	// ready is closed once the entry is fully populated and must not be
	// modified further.
	ready chan struct{}
	coll  *collection.Collection
	err   error
}

func newEntry(id uuid.UUID) *Entry {
	return &Entry{ID: id, ready: make(chan struct{})}
}

// Wait blocks until Deliver or Fail has been called on the entry, or ctx
// is done, whichever comes first.
func (e *Entry) Wait(ctx context.Context) (*collection.Collection, error) {
	select {
	case <-e.ready:
		return e.coll, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver populates the entry with c and unblocks any outstanding or
// future Wait calls. It must be called at most once.
func (e *Entry) Deliver(c *collection.Collection) {
	e.coll = c
	close(e.ready)
}

// Fail populates the entry with an error and unblocks any outstanding or
// future Wait calls. It must be called at most once, instead of Deliver.
func (e *Entry) Fail(err error) {
	e.err = err
	close(e.ready)
}

// Subscriber receives a reference to every Collection a Registry
// publishes. Subscribers must not mutate the Collection and must be safe
// to call from the publishing goroutine.
type Subscriber func(*collection.Collection)

// Registry is the subscription and bounded-cache registry a Collector
// snapshot is delivered through.
type Registry struct {
	cache       *lru.LRU
	subscribers []Subscriber
}

// New returns a Registry whose cache holds up to cacheSize Collections,
// evicting the least recently used entry once full.
func New(cacheSize int) (*Registry, error) {
	c, err := lru.NewLRU(cacheSize, nil)
	if err != nil {
		return nil, err
	}
	return &Registry{cache: c}, nil
}

// Subscribe registers sub to be called with every Collection Publish
// delivers, in registration order, on the publishing goroutine.
func (r *Registry) Subscribe(sub Subscriber) {
	r.subscribers = append(r.subscribers, sub)
}

// Reserve allocates a new cache entry for an in-flight Collection and
// returns it; the entry's ID field holds its id. Callers that will eventually populate the
// Collection should Reserve before starting the work, so concurrent
// Get calls can Wait on the same entry instead of missing the cache.
func (r *Registry) Reserve() *Entry {
	e := newEntry(uuid.New())
	r.cache.Add(e.ID, e)
	return e
}

// Publish delivers c through e, notifies every subscriber, and leaves c
// available in the cache under e.ID.
func (r *Registry) Publish(e *Entry, c *collection.Collection) {
	e.Deliver(c)
	for _, sub := range r.subscribers {
		sub(c)
	}
}

// Get returns the cache entry for id, if it has not been evicted.
func (r *Registry) Get(id uuid.UUID) (*Entry, bool) {
	v, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}
