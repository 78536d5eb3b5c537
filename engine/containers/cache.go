package containers

import (
	"sync"
	"time"

	"github.com/veilworld/engine/engine/core"
)

// Priority classifies an entry's eviction eligibility. Critical entries
// are exempt from automatic cleanup and only leave via explicit removal.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// Sized is anything whose resident footprint the cache can account for.
type Sized interface {
	SizeBytes() uint64
}

// Config bounds one cache instance.
type Config struct {
	// MemoryThresholdBytes is the pressure threshold that triggers
	// cleanup on store.
	MemoryThresholdBytes uint64
	// MaxEntries caps the entry count independently of memory.
	MaxEntries int
	// MaxAge is the age beyond which non-critical entries are swept.
	MaxAge time.Duration
}

// Stats is an aggregate snapshot of a cache instance.
type Stats struct {
	Entries     int
	LODEntries  int
	MemoryUsage uint64
	OldestAge   time.Duration
	NewestAge   time.Duration
	Hits        uint64
	Misses      uint64
	Evictions   uint64
}

// HitRatio is hits over total lookups, 0 when nothing was looked up yet.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[T Sized] struct {
	value      T
	sizeBytes  uint64
	createdAt  time.Time
	lastAccess time.Time
	priority   Priority
}

// Cache is a bounded, priority-tiered, LRU-evicting key-value store with
// a secondary per-key LOD-variant store. All mutation happens under one
// mutex per instance; readers observe a consistent snapshot.
//
// Cleanup runs on store whenever usage exceeds the pressure threshold or
// the entry count exceeds MaxEntries: first an age sweep of non-critical
// entries, then repeated eviction of the least-recently-accessed
// non-critical entry until usage drops under 75% of the threshold.
type Cache[T Sized] struct {
	mu sync.Mutex

	name          string
	cfg           Config
	baseThreshold uint64

	entries map[string]*entry[T]
	lods    map[string]map[int]T

	memoryUsage uint64
	hits        uint64
	misses      uint64
	evictions   uint64
}

// NewCache builds an empty cache with the given bounds. The configured
// memory threshold is remembered as the baseline that quality
// optimization rescales.
func NewCache[T Sized](name string, cfg Config) *Cache[T] {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	if cfg.MemoryThresholdBytes == 0 {
		cfg.MemoryThresholdBytes = 256 * 1024 * 1024
	}
	return &Cache[T]{
		name:          name,
		cfg:           cfg,
		baseThreshold: cfg.MemoryThresholdBytes,
		entries:       make(map[string]*entry[T]),
		lods:          make(map[string]map[int]T),
	}
}

// Get returns the cached value and refreshes its last-access time.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}
	e.lastAccess = time.Now()
	c.hits++
	return e.value, true
}

// Store inserts or updates an entry, updates the running memory total and
// triggers cleanup if the cache is over its bounds.
func (c *Cache[T]) Store(key string, value T, priority Priority) {
	size := estimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if prev, ok := c.entries[key]; ok {
		c.memoryUsage -= prev.sizeBytes
	}
	c.entries[key] = &entry[T]{
		value:      value,
		sizeBytes:  size,
		createdAt:  now,
		lastAccess: now,
		priority:   priority,
	}
	c.memoryUsage += size

	if c.memoryUsage > c.cfg.MemoryThresholdBytes || len(c.entries) > c.cfg.MaxEntries {
		c.cleanupLocked()
	}
}

// GetLOD returns the cached variant of the base key at the given level.
// LOD variants ride on their base entry's lifetime and carry no separate
// LRU state.
func (c *Cache[T]) GetLOD(baseKey string, level int) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	variants, ok := c.lods[baseKey]
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}
	v, ok := variants[level]
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}
	if e, ok := c.entries[baseKey]; ok {
		e.lastAccess = time.Now()
	}
	c.hits++
	return v, true
}

// StoreLOD stores a LOD variant against an existing base key. Variants
// without a live base entry are refused: they ride on the base entry's
// lifetime, and nothing would ever evict an orphan.
func (c *Cache[T]) StoreLOD(baseKey string, level int, value T) {
	size := estimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[baseKey]; !ok {
		core.LogDebug("cache %s: dropping LOD %d for absent base %s", c.name, level, baseKey)
		return
	}

	variants, ok := c.lods[baseKey]
	if !ok {
		variants = make(map[int]T)
		c.lods[baseKey] = variants
	}
	if prev, ok := variants[level]; ok {
		c.memoryUsage -= estimateSize(prev)
	}
	variants[level] = value
	c.memoryUsage += size

	if c.memoryUsage > c.cfg.MemoryThresholdBytes {
		c.cleanupLocked()
	}
}

// Remove deletes an entry and its LOD variants regardless of priority.
func (c *Cache[T]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *Cache[T]) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.memoryUsage -= e.sizeBytes
		delete(c.entries, key)
	}
	if variants, ok := c.lods[key]; ok {
		for _, v := range variants {
			c.memoryUsage -= estimateSize(v)
		}
		delete(c.lods, key)
	}
}

// Clear removes everything, critical entries included.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry[T])
	c.lods = make(map[string]map[int]T)
	c.memoryUsage = 0
	core.LogDebug("cache %s: cleared", c.name)
}

// OptimizeForQuality rescales the pressure threshold for the given tier
// multiplier and re-runs cleanup against the new bound.
func (c *Cache[T]) OptimizeForQuality(scale float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scale <= 0 {
		scale = 1.0
	}
	c.cfg.MemoryThresholdBytes = uint64(float64(c.baseThreshold) * scale)
	core.LogDebug("cache %s: threshold rescaled to %d bytes", c.name, c.cfg.MemoryThresholdBytes)
	c.cleanupLocked()
}

// MemoryUsage reports the running total of cached buffer bytes.
func (c *Cache[T]) MemoryUsage() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryUsage
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns an aggregate snapshot.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Entries:     len(c.entries),
		MemoryUsage: c.memoryUsage,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
	for _, variants := range c.lods {
		s.LODEntries += len(variants)
	}
	now := time.Now()
	first := true
	for _, e := range c.entries {
		age := now.Sub(e.createdAt)
		if first {
			s.OldestAge, s.NewestAge = age, age
			first = false
			continue
		}
		if age > s.OldestAge {
			s.OldestAge = age
		}
		if age < s.NewestAge {
			s.NewestAge = age
		}
	}
	return s
}

// cleanupLocked applies the two-phase eviction policy. Caller holds mu.
func (c *Cache[T]) cleanupLocked() {
	now := time.Now()

	// Phase 1: age sweep of non-critical entries.
	for key, e := range c.entries {
		if e.priority == PriorityCritical {
			continue
		}
		if now.Sub(e.createdAt) > c.cfg.MaxAge {
			c.removeLocked(key)
			c.evictions++
		}
	}

	// Phase 2: LRU eviction until under 75% of the threshold and under
	// the entry cap. Critical entries are never candidates; if only
	// critical entries remain we stop rather than violate their pin.
	target := c.cfg.MemoryThresholdBytes / 4 * 3
	for c.memoryUsage > target || len(c.entries) > c.cfg.MaxEntries {
		victim := ""
		var victimAccess time.Time
		for key, e := range c.entries {
			if e.priority == PriorityCritical {
				continue
			}
			if victim == "" || e.lastAccess.Before(victimAccess) {
				victim = key
				victimAccess = e.lastAccess
			}
		}
		if victim == "" {
			break
		}
		c.removeLocked(victim)
		c.evictions++
	}

	core.LogDebug("cache %s: cleanup done, %d entries, %d bytes", c.name, len(c.entries), c.memoryUsage)
}

// estimateSize never fails; a value that cannot report a size is charged
// a conservative default.
func estimateSize[T Sized](value T) (size uint64) {
	size = 1024
	// Sizing is advisory; a panicking implementation must not take the
	// cache down.
	defer func() { _ = recover() }()
	if s := value.SizeBytes(); s > 0 {
		size = s
	}
	return size
}
