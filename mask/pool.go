package mask

import (
	"fmt"

	"github.com/oxyanim/animgraph/skeleton"
)

// defaultPoolCapacity is the initial scratch-mask pool size.
const defaultPoolCapacity = 64

// Pool is a grow-only free-list allocator of scratch BoneMask slots sized
// to one skeleton. Unlike pose.Pool, it doubles capacity on exhaustion
// instead of panicking — masks are cheap and transient, so growth is the
// documented behavior rather than a fatal condition.
type Pool struct {
	skel  *skeleton.Skeleton
	slots []*BoneMask
	free  []int
	inUse []bool
}

// NewPool allocates a mask pool with the default initial capacity.
func NewPool(skel *skeleton.Skeleton) *Pool {
	return NewPoolSized(skel, defaultPoolCapacity)
}

// NewPoolSized allocates a mask pool with an explicit initial capacity.
func NewPoolSized(skel *skeleton.Skeleton, capacity int) *Pool {
	p := &Pool{skel: skel}
	p.grow(capacity)
	return p
}

func (p *Pool) grow(by int) {
	start := len(p.slots)
	for i := 0; i < by; i++ {
		p.slots = append(p.slots, Constant(p.skel, 0))
		p.inUse = append(p.inUse, false)
	}
	// Push new indices in descending order so Acquire, which pops from the
	// end, hands out ascending indices — matching the "first free" cursor
	// behavior.
	for i := start + by - 1; i >= start; i-- {
		p.free = append(p.free, i)
	}
}

// Acquire returns the index of a free mask slot, optionally resetting its
// contents to an all-zero mask, doubling the pool's capacity first if it is
// exhausted.
func (p *Pool) Acquire(reset bool) int {
	if len(p.free) == 0 {
		p.grow(len(p.slots))
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.inUse[idx] = true
	if reset {
		p.slots[idx] = Constant(p.skel, 0)
	}
	return idx
}

// Release returns a slot to the free list. Double-release is a runtime
// invariant violation, fatal here.
func (p *Pool) Release(idx int) {
	if !p.inUse[idx] {
		panic(fmt.Sprintf("mask: double-release of mask pool slot %d", idx))
	}
	p.inUse[idx] = false
	p.free = append(p.free, idx)
}

// Get returns the mask currently occupying slot idx.
func (p *Pool) Get(idx int) *BoneMask {
	return p.slots[idx]
}

// Set overwrites the mask occupying slot idx. idx must currently be in use.
func (p *Pool) Set(idx int, m *BoneMask) {
	p.slots[idx] = m
}

// AllReleased reports whether every slot has been returned to the free list
// — checked at frame boundaries.
func (p *Pool) AllReleased() bool {
	return len(p.free) == len(p.slots)
}

// Capacity returns the current number of slots (after any growth).
func (p *Pool) Capacity() int {
	return len(p.slots)
}
