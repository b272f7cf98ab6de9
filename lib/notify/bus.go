// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"slices"
	"sync"

	"github.com/flowd-project/flowd/lib/aspect"
	"github.com/flowd-project/flowd/lib/defs"
)

// Change describes what one compound memento changed. Node is nil when
// the change was to the Defs root.
type Change struct {
	Path    string
	Node    *defs.Node
	Defs    *defs.Defs
	Aspects aspect.Set

	// Sequence is the batch sequence number the change arrived in, or
	// zero for changes not yet published.
	Sequence uint64
}

// Observer receives changes.
type Observer interface {
	Changed(Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Change)

// Changed calls f.
func (f ObserverFunc) Changed(c Change) { f(c) }

// Registration identifies a registered observer.
type Registration uint64

type entry struct {
	id       Registration
	observer Observer
}

type pending struct {
	add    *entry
	remove Registration
}

// Bus is a synchronous, ordered change fan-out. The zero value is
// ready to use.
type Bus struct {
	mu        sync.Mutex
	observers []entry
	nextID    Registration

	dispatching int
	deferred    []pending
}

// Register adds o after every currently registered observer. During a
// notification the registration takes effect when dispatch completes.
func (b *Bus) Register(o Observer) Registration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	e := entry{id: b.nextID, observer: o}
	if b.dispatching > 0 {
		b.deferred = append(b.deferred, pending{add: &e})
	} else {
		b.observers = append(b.observers, e)
	}
	return e.id
}

// Unregister removes the observer registered as id. Unknown ids are
// ignored. During a notification the removal takes effect when
// dispatch completes.
func (b *Bus) Unregister(id Registration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dispatching > 0 {
		b.deferred = append(b.deferred, pending{remove: id})
		return
	}
	b.remove(id)
}

func (b *Bus) remove(id Registration) {
	b.observers = slices.DeleteFunc(b.observers, func(e entry) bool { return e.id == id })
}

// Len returns the number of registered observers, not counting
// deferred changes.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Notify delivers c to every registered observer in registration
// order.
func (b *Bus) Notify(c Change) {
	b.mu.Lock()
	b.dispatching++
	observers := slices.Clone(b.observers)
	b.mu.Unlock()

	defer b.finish()
	for _, e := range observers {
		e.observer.Changed(c)
	}
}

func (b *Bus) finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dispatching--
	if b.dispatching > 0 {
		return
	}
	for _, p := range b.deferred {
		if p.add != nil {
			b.observers = append(b.observers, *p.add)
		} else {
			b.remove(p.remove)
		}
	}
	b.deferred = nil
}
