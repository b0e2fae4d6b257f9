// Package runtime drives a scheduler.Manager from a fixed-rate tick loop,
// giving a host application a single object to start, stop, and retune.
package runtime

import (
	"log"
	"sync"
	"time"

	"github.com/oxyanim/animgraph/runtime/profiler"
	"github.com/oxyanim/animgraph/scheduler"
)

// Engine owns the animation tick loop. It evaluates every character in its
// Manager at the configured tick rate until stopped.
type Engine interface {
	// Manager returns the scheduler the engine drives each tick.
	Manager() scheduler.Manager

	// Start launches the tick loop. Returns immediately; the loop runs in its
	// own goroutine until Stop is called.
	Start()

	// Stop signals the tick loop to exit, waits for it to finish, and shuts
	// down every registered character. Safe to call more than once.
	Stop()

	// SetTickRate sets the tick rate in ticks per second. If the engine is
	// running the change takes effect immediately.
	SetTickRate(tps float64)

	// SetTickCallback registers a function called after every tick with the
	// frame's delta time, once all characters have been evaluated.
	SetTickCallback(callback func(deltaTime float32))

	// EnableProfiler enables periodic performance output to the log.
	EnableProfiler()

	// DisableProfiler disables performance output.
	DisableProfiler()
}

type engine struct {
	tickRateChannel chan time.Duration

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once

	manager      scheduler.Manager
	tickRate     time.Duration
	tickCallback func(deltaTime float32)

	profiler         *profiler.Profiler
	profilingEnabled bool
}

var _ Engine = (*engine)(nil)

// Option is a functional option for configuring an Engine.
type Option func(*engine)

// WithTickRate sets the tick rate in ticks per second. Values <= 0 are
// treated as the default (60Hz).
func WithTickRate(tps float64) Option {
	return func(e *engine) {
		if tps <= 0 {
			tps = 60
		}
		e.tickRate = time.Second / time.Duration(tps)
	}
}

// WithManager sets a pre-configured Manager rather than letting the engine
// create and own one internally.
func WithManager(m scheduler.Manager) Option {
	return func(e *engine) { e.manager = m }
}

// WithProfiling enables or disables performance profiling output.
func WithProfiling(enabled bool) Option {
	return func(e *engine) { e.profilingEnabled = enabled }
}

// NewEngine creates an Engine with the given options applied.
func NewEngine(options ...Option) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		tickRate:        time.Second / 60,
		profiler:        profiler.New(),
	}
	for _, option := range options {
		option(e)
	}
	if e.manager == nil {
		e.manager = scheduler.NewManager()
	}
	return e
}

func (e *engine) Manager() scheduler.Manager { return e.manager }

func (e *engine) Start() {
	if e.running {
		return
	}
	e.running = true
	e.wg.Add(1)
	go e.handleTick()
}

// handleTick runs the fixed-rate tick loop in its own goroutine. Fires the
// scheduler sweep and tick callback at the configured rate and listens for
// dynamic rate changes via tickRateChannel. Exits when the quit channel is
// closed. Recovers from panics to avoid crashing the host process.
func (e *engine) handleTick() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[runtime] tick goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ticker := time.NewTicker(e.tickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			e.manager.Update(dt)
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick(e.manager.Count())
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.tickRate = newRate
		}
	}
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() { close(e.quitChannel) })
}

func (e *engine) Stop() {
	e.signalQuit()
	e.wg.Wait()
	e.running = false
	e.manager.Shutdown()
}

func (e *engine) SetTickRate(tps float64) {
	if tps <= 0 {
		tps = 60
	}
	newRate := time.Second / time.Duration(tps)

	if e.running {
		// Non-blocking send; if a rate change is already pending, replace it with
		// the newest value.
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.tickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) EnableProfiler() { e.profilingEnabled = true }

func (e *engine) DisableProfiler() { e.profilingEnabled = false }
