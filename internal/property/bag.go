// Package property provides the run-scoped, thread-safe property bag shared by
// every target and task of a single build run.
//
// # Purpose
//
// The bag carries resolved build properties (arguments, config file values,
// environment overrides, declared defaults) and doubles as the channel through
// which tasks hand values to later tasks, e.g. a version fetched by one target
// and stamped into artifacts by another.
//
// # Concurrency Model
//
// Targets declared as async dependencies run on different goroutines at the
// same time and may read and write the bag concurrently. All access goes
// through a single RWMutex; values are treated as immutable once stored.
package property

import (
	"fmt"
	"sort"
	"sync"
)

// Key is a typed handle for a property. Using a Key instead of a bare string
// lets Go code read a property back with its static type.
type Key[T any] struct {
	name string
}

// NewKey creates a typed key for the named property.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the property name the key addresses.
func (k Key[T]) Name() string {
	return k.name
}

// Bag is a concurrency-safe mapping from property name to value.
type Bag struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewBag creates a bag pre-populated with a copy of the given values.
func NewBag(initial map[string]any) *Bag {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &Bag{values: values}
}

// Put stores an untyped value under name, replacing any previous value.
func (b *Bag) Put(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[name] = value
}

// Lookup returns the raw value stored under name.
func (b *Bag) Lookup(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[name]
	return v, ok
}

// Delete removes a property. Deleting a missing property is a no-op.
func (b *Bag) Delete(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, name)
}

// Keys returns all property names in sorted order.
func (b *Bag) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the bag's current contents.
func (b *Bag) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// Set stores a typed value.
func Set[T any](b *Bag, key Key[T], value T) {
	b.Put(key.name, value)
}

// Get reads a typed value. It reports false when the property is missing or
// holds a value of a different type.
func Get[T any](b *Bag, key Key[T]) (T, bool) {
	var zero T
	raw, ok := b.Lookup(key.name)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetOr reads a typed value, falling back to def when it is absent.
func GetOr[T any](b *Bag, key Key[T], def T) T {
	if v, ok := Get(b, key); ok {
		return v
	}
	return def
}

// Require reads a typed value and returns an error naming the property when it
// is missing or mistyped.
func Require[T any](b *Bag, key Key[T]) (T, error) {
	var zero T
	raw, ok := b.Lookup(key.name)
	if !ok {
		return zero, fmt.Errorf("property '%s' is not set", key.name)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("property '%s' holds %T, not %T", key.name, raw, zero)
	}
	return v, nil
}
