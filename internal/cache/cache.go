// Package cache memoizes a per-file computation keyed by file identity and
// content fingerprint.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Fingerprint returns the hex-encoded SHA-256 of content.
func Fingerprint(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// Entry is one generation of a slot.
type Entry[V any] struct {
	Value       V
	Fingerprint string
	Generation  uint64
}

// Event describes one Get call; see WithObserver.
type Event struct {
	Identity    string
	Fingerprint string
	Hit         bool
	Shared      bool
}

// Cache holds at most one entry per identity. Slots are swapped whole, so
// readers see either the previous or the next generation, never a mix.
// Different identities never contend beyond the short map lock.
type Cache[V any] struct {
	mu    sync.Mutex
	slots map[string]*Entry[V]
	group singleflight.Group

	generation   atomic.Uint64
	computations atomic.Uint64
	observe      func(Event)
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	observe func(Event)
}

// WithObserver installs a callback invoked after every Get.
func WithObserver(fn func(Event)) Option {
	return func(o *options) { o.observe = fn }
}

func New[V any](opts ...Option) *Cache[V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		slots:   make(map[string]*Entry[V]),
		observe: o.observe,
	}
}

// ComputeFunc produces the value for one generation.
type ComputeFunc[V any] func(fingerprint string, generation uint64) (V, error)

// Get returns the entry for (identity, content), running compute only when
// the stored fingerprint differs. Concurrent calls for the same pair share
// one computation. A failed computation leaves the slot untouched.
func (c *Cache[V]) Get(identity string, content []byte, compute ComputeFunc[V]) (Entry[V], error) {
	fp := Fingerprint(content)

	if e, ok := c.lookup(identity, fp); ok {
		c.emit(Event{Identity: identity, Fingerprint: fp, Hit: true})
		return e, nil
	}

	v, err, shared := c.group.Do(identity+"\x00"+fp, func() (any, error) {
		// A concurrent flight may have stored the entry while this
		// caller waited for the map lock.
		if e, ok := c.lookup(identity, fp); ok {
			return e, nil
		}
		gen := c.generation.Add(1)
		c.computations.Add(1)
		value, err := compute(fp, gen)
		if err != nil {
			return nil, err
		}
		e := Entry[V]{Value: value, Fingerprint: fp, Generation: gen}
		c.store(identity, &e)
		return e, nil
	})
	c.emit(Event{Identity: identity, Fingerprint: fp, Shared: shared})
	if err != nil {
		var zero Entry[V]
		return zero, err
	}
	return v.(Entry[V]), nil
}

// Replace installs a value computed outside Get, e.g. from an incremental
// reparse that already consumed the content. It is ignored when the slot
// already holds a newer generation.
func (c *Cache[V]) Replace(identity string, content []byte, compute ComputeFunc[V]) (Entry[V], error) {
	fp := Fingerprint(content)
	gen := c.generation.Add(1)
	c.computations.Add(1)
	value, err := compute(fp, gen)
	if err != nil {
		var zero Entry[V]
		return zero, err
	}
	e := Entry[V]{Value: value, Fingerprint: fp, Generation: gen}
	c.store(identity, &e)
	c.emit(Event{Identity: identity, Fingerprint: fp})
	return e, nil
}

func (c *Cache[V]) lookup(identity, fp string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.slots[identity]
	if !ok || e.Fingerprint != fp {
		return Entry[V]{}, false
	}
	return *e, true
}

// store keeps the newest generation only.
func (c *Cache[V]) store(identity string, e *Entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.slots[identity]; ok && cur.Generation > e.Generation {
		return
	}
	c.slots[identity] = e
}

// Peek returns the current entry for identity without computing anything.
func (c *Cache[V]) Peek(identity string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.slots[identity]
	if !ok {
		return Entry[V]{}, false
	}
	return *e, true
}

// Invalidate drops the slot for identity. Other identities are untouched.
func (c *Cache[V]) Invalidate(identity string) {
	c.mu.Lock()
	delete(c.slots, identity)
	c.mu.Unlock()
}

// Len is the number of occupied slots.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Computations counts how many times a compute function has run.
func (c *Cache[V]) Computations() uint64 { return c.computations.Load() }

func (c *Cache[V]) emit(ev Event) {
	if c.observe != nil {
		c.observe(ev)
	}
}
