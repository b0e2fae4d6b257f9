package pose

import (
	"fmt"

	"github.com/oxyanim/animgraph/skeleton"
)

// CachedPoseKey is a pool-allocated identifier for a cached pose buffer,
// sized to its 7-bit wire width, which caps an instance at
// MaxCachedPoseKeys simultaneously cached buffers.
type CachedPoseKey uint8

// MaxCachedPoseKeys is the largest number of simultaneously cacheable pose
// buffers per instance, fixed by the key's 7-bit wire encoding.
const MaxCachedPoseKeys = 128

// CachedPoseKeyPool is a per-instance free-list allocator for CachedPoseKey
// values.
type CachedPoseKeyPool struct {
	free []CachedPoseKey
	used []bool
}

// NewCachedPoseKeyPool creates a key pool with the full MaxCachedPoseKeys
// range available.
func NewCachedPoseKeyPool() *CachedPoseKeyPool {
	p := &CachedPoseKeyPool{
		free: make([]CachedPoseKey, MaxCachedPoseKeys),
		used: make([]bool, MaxCachedPoseKeys),
	}
	for i := range p.free {
		p.free[i] = CachedPoseKey(MaxCachedPoseKeys - 1 - i)
	}
	return p
}

// Acquire returns a fresh key. Panics if all 128 keys are in use —
// exhaustion here indicates a graph definition with more concurrent
// transitions than the wire format can ever address, a construction-time
// misconfiguration.
func (p *CachedPoseKeyPool) Acquire() CachedPoseKey {
	if len(p.free) == 0 {
		panic("pose: cached-pose key pool exhausted (max 128 per instance)")
	}
	k := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[k] = true
	return k
}

// Release returns key to the free list.
func (p *CachedPoseKeyPool) Release(key CachedPoseKey) {
	if !p.used[key] {
		panic(fmt.Sprintf("pose: double-release of cached-pose key %d", key))
	}
	p.used[key] = false
	p.free = append(p.free, key)
}

// Pool is the fixed-size, single-owner pose buffer pool. It is sized to the
// statically computed maximum concurrent buffer count for a graph and is
// never grown; exhaustion is a fatal condition.
type Pool struct {
	skel    *skeleton.Skeleton
	buffers []*Buffer
	free    []int
	inUse   []bool

	cached map[CachedPoseKey]*Buffer
}

// NewPool allocates a pool of `capacity` buffers sized to skel. Cached
// pose buffers draw from the same pool and are pinned in the cache map
// until their key is released.
func NewPool(skel *skeleton.Skeleton, capacity int) *Pool {
	p := &Pool{
		skel:   skel,
		cached: make(map[CachedPoseKey]*Buffer, 8),
	}
	p.buffers = make([]*Buffer, capacity)
	p.free = make([]int, capacity)
	p.inUse = make([]bool, capacity)
	for i := 0; i < capacity; i++ {
		p.buffers[i] = newBuffer(skel, i)
		p.free[i] = capacity - 1 - i
	}
	return p
}

// Acquire returns an uninitialized buffer for writing. Panics on
// exhaustion — the pool is sized to the graph's statically computed
// maximum and must never run dry in a correctly sized graph.
func (p *Pool) Acquire() *Buffer {
	if len(p.free) == 0 {
		panic("pose: pose buffer pool exhausted")
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inUse[idx] = true
	b := p.buffers[idx]
	b.reset(p.skel)
	return b
}

// Release returns a buffer to the free list. Double-release indicates a
// broken ownership chain and fails loudly.
func (p *Pool) Release(b *Buffer) {
	if b == nil {
		return
	}
	if !p.inUse[b.index] {
		panic(fmt.Sprintf("pose: double-release of pose buffer %d", b.index))
	}
	p.inUse[b.index] = false
	p.free = append(p.free, b.index)
}

// GetCached returns the buffer registered under key, if any.
func (p *Pool) GetCached(key CachedPoseKey) (*Buffer, bool) {
	b, ok := p.cached[key]
	return b, ok
}

// GetOrCreateCached returns the buffer registered under key, allocating and
// registering a fresh one from the scratch pool if none exists yet.
func (p *Pool) GetOrCreateCached(key CachedPoseKey) *Buffer {
	if b, ok := p.cached[key]; ok {
		return b
	}
	b := p.Acquire()
	p.cached[key] = b
	return b
}

// ReleaseCached releases the buffer registered under key back to the
// scratch free list and removes it from the cache map. Safe to call on a
// key with no registered buffer.
func (p *Pool) ReleaseCached(key CachedPoseKey) {
	b, ok := p.cached[key]
	if !ok {
		return
	}
	delete(p.cached, key)
	p.Release(b)
}

// AllReleased reports whether every buffer not pinned by the cached-pose
// map has been returned to the free list, checked at frame boundaries.
func (p *Pool) AllReleased() bool {
	return len(p.free)+len(p.cached) == len(p.buffers)
}

// Capacity returns the total number of buffers in the pool, including any
// currently held as cached poses.
func (p *Pool) Capacity() int {
	return len(p.buffers)
}
