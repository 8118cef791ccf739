// Package cache holds the in-process adaptive-parameter table: the last
// alpha/use_pcie/bandwidth estimate the controller produced for each
// collective shape, keyed by common.OpKey. Grounded on
// original_source/libampccl/cache/param_cache.h.
package cache

import (
	"sync"

	"github.com/adaptive-ccl/ampccl/common"
)

// ParamValue is the adaptive state the planner and controller exchange for
// one OpKey: the current fast-backend ratio, whether PCIe participates at
// all, and the last bandwidth samples each backend produced.
type ParamValue struct {
	Alpha   float64
	UsePCIe bool
	FastBW  float64
	PCIeBW  float64
}

// defaultParamValue is returned by Lookup on a miss: an even split with
// PCIe enabled, matching the original's ParamValue() default constructor.
func defaultParamValue() ParamValue {
	return ParamValue{Alpha: 0.5, UsePCIe: true}
}

// ParamCache is one Domain's table of ParamValue by OpKey. It is safe
// for concurrent use; every method takes the single mutex, the same
// coarse-locking posture as the original's std::mutex-guarded
// unordered_map — lookups and updates are cheap and never block on I/O.
type ParamCache struct {
	mu    sync.Mutex
	table map[common.OpKey]ParamValue
}

// NewParamCache returns an empty cache ready to use.
func NewParamCache() *ParamCache {
	return &ParamCache{table: make(map[common.OpKey]ParamValue)}
}

// Lookup returns the cached value for key, or the default 50/50-with-PCIe
// value if key has never been updated.
func (c *ParamCache) Lookup(key common.OpKey) ParamValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.table[key]; ok {
		return v
	}
	return defaultParamValue()
}

// Update installs value as the current parameters for key.
func (c *ParamCache) Update(key common.OpKey, value ParamValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table[key] = value
}

// Clear empties the cache.
func (c *ParamCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = make(map[common.OpKey]ParamValue)
}

// Size reports the number of entries currently cached.
func (c *ParamCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// Entry pairs a key with its value, the Go analogue of the original's
// std::pair<OpKey, ParamValue> snapshot element.
type Entry struct {
	Key   common.OpKey
	Value ParamValue
}

// GetAll returns a snapshot of every entry in the cache, for shared-memory
// publication or disk persistence.
func (c *ParamCache) GetAll() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.table))
	for k, v := range c.table {
		out = append(out, Entry{Key: k, Value: v})
	}
	return out
}

// SetFrom merges in, overwriting any existing entries with the same key.
// Used to absorb a snapshot read from shared memory or disk.
func (c *ParamCache) SetFrom(in []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range in {
		c.table[e.Key] = e.Value
	}
}
