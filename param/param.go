// Package param provides the shared parameter registry that decouples
// the runtime, feature plugins, and drivers.
//
// The registry is a flat map of string keys to arbitrary values.
// Components publish values under well-known keys (see keys.go) and
// look up what other components published, without importing each
// other. Frame counters, API interfaces, and device bundles all travel
// through it.
//
// The registry is sharded for concurrent access: keys hash to one of 16
// shards, each with its own RWMutex, so frame-counter updates from the
// present path do not contend with plugin lookups.
package param

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// shardCount is the number of shards. Must be a power of 2 for fast
// modulo via bitwise AND.
const shardCount = 16

const shardMask = shardCount - 1

// hashKey computes FNV-1a hash of a key.
func hashKey(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Registry is a thread-safe sharded key/value store.
//
// Unlike a cache, entries are never evicted: a published parameter
// stays until Delete or Clear. Reads and writes on different shards do
// not contend.
type Registry struct {
	shards [shardCount]registryShard

	// Statistics (atomic for zero-allocation reads)
	hits   atomic.Uint64
	misses atomic.Uint64
}

// registryShard is a single shard of the registry.
type registryShard struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewRegistry creates an empty parameter registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]any)
	}
	return r
}

// getShard returns the shard for a given key.
func (r *Registry) getShard(key string) *registryShard {
	return &r.shards[hashKey(key)&shardMask]
}

// Set publishes a value under key, replacing any previous value.
func (r *Registry) Set(key string, value any) {
	shard := r.getShard(key)
	shard.mu.Lock()
	shard.entries[key] = value
	shard.mu.Unlock()
}

// Get retrieves the value published under key.
// Returns (value, true) if present, (nil, false) otherwise.
func (r *Registry) Get(key string) (any, bool) {
	shard := r.getShard(key)
	shard.mu.RLock()
	v, ok := shard.entries[key]
	shard.mu.RUnlock()

	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	return v, ok
}

// Delete removes the value published under key.
// Returns true if the key was present.
func (r *Registry) Delete(key string) bool {
	shard := r.getShard(key)
	shard.mu.Lock()
	_, ok := shard.entries[key]
	delete(shard.entries, key)
	shard.mu.Unlock()
	return ok
}

// Clear removes all entries.
func (r *Registry) Clear() {
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.Lock()
		shard.entries = make(map[string]any)
		shard.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (r *Registry) Len() int {
	total := 0
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		total += len(shard.entries)
		shard.mu.RUnlock()
	}
	return total
}

// Keys returns all published keys, in no particular order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, r.Len())
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for k := range shard.entries {
			keys = append(keys, k)
		}
		shard.mu.RUnlock()
	}
	return keys
}

// Stats returns lookup statistics.
func (r *Registry) Stats() (hits, misses uint64) {
	return r.hits.Load(), r.misses.Load()
}

// Uint32 retrieves a uint32 parameter.
// Returns (0, false) when the key is absent or holds another type.
func (r *Registry) Uint32(key string) (uint32, bool) {
	v, ok := r.Get(key)
	if !ok {
		return 0, false
	}
	u, ok := v.(uint32)
	return u, ok
}

// As retrieves a parameter of type T from the registry.
// Returns the zero value and false when the key is absent or the
// published value has a different type.
func As[T any](r *Registry, key string) (T, bool) {
	v, ok := r.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
