// Package scheduler fans per-character graph updates out across a bounded
// worker pool. Characters are independent of one another, so a frame is one
// parallel sweep with a barrier at the end.
package scheduler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/oxyanim/animgraph/character"
)

// Manager schedules a set of characters for parallel per-frame updates.
// Thread-safe for concurrent Add/Remove against a running Update loop;
// Update itself must be called from a single driver goroutine.
type Manager interface {
	// Add registers a character and returns its assigned ID.
	Add(c character.Character) uint64

	// Get retrieves a registered character by ID, nil if not found.
	Get(id uint64) character.Character

	// Remove unregisters a character by ID. The character is not shut down;
	// the caller owns that decision.
	Remove(id uint64)

	// Count returns the number of registered characters.
	Count() int

	// Update evaluates every registered character for one frame. Each
	// character runs on one pool worker; Update returns once all have
	// finished.
	Update(deltaTime float32)

	// Shutdown tears down every registered character and unregisters it.
	Shutdown()
}

type manager struct {
	mu sync.RWMutex

	characters map[uint64]character.Character
	nextID     uint64

	// updatePool manages a bounded set of reusable goroutines for the
	// per-frame sweep. Workers persist across frames, avoiding per-frame
	// goroutine spawn/teardown overhead.
	updatePool worker.DynamicWorkerPool
	workers    int
}

var _ Manager = (*manager)(nil)

// Option configures a Manager at construction.
type Option func(*manager)

// WithWorkers overrides the worker count, which defaults to one fewer than
// the machine's logical CPUs.
func WithWorkers(n int) Option {
	return func(m *manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewManager creates an empty Manager.
func NewManager(options ...Option) Manager {
	m := &manager{
		characters: make(map[uint64]character.Character),
		nextID:     1,
		workers:    max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(m)
	}
	// Queue size of 256 accommodates typical character counts with headroom;
	// submissions beyond that block until a worker frees up.
	m.updatePool = worker.NewDynamicWorkerPool(m.workers, 256, 1*time.Second)
	return m
}

func (m *manager) Add(c character.Character) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.characters[id] = c
	return id
}

func (m *manager) Get(id uint64) character.Character {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.characters[id]
}

func (m *manager) Remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.characters, id)
}

func (m *manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.characters)
}

func (m *manager) Update(deltaTime float32) {
	m.mu.RLock()
	batch := make([]character.Character, 0, len(m.characters))
	for _, c := range m.characters {
		batch = append(batch, c)
	}
	m.mu.RUnlock()

	// A WaitGroup provides the per-frame barrier; the pool's own Wait blocks
	// until workers idle-exit, which is unsuitable for frame-rate workloads.
	var wg sync.WaitGroup
	for i, c := range batch {
		wg.Add(1)
		cCap := c
		m.updatePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				cCap.Update(deltaTime)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.characters {
		c.Shutdown()
		delete(m.characters, id)
	}
}
