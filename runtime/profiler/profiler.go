// Package profiler tracks tick rate and memory statistics for the animation
// runtime, logging a summary at a configurable interval.
package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler accumulates per-tick samples and periodically logs tick rate,
// character throughput, and heap statistics.
type Profiler struct {
	tickCount      int
	characterTicks int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// New creates a Profiler logging once per second.
func New() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// SetInterval changes how often the profiler logs.
func (p *Profiler) SetInterval(d time.Duration) {
	p.updateInterval = d
}

// Tick records one engine tick covering characterCount character updates.
// Logs accumulated statistics when the update interval has elapsed and
// returns true on the ticks where it logged.
func (p *Profiler) Tick(characterCount int) bool {
	p.tickCount++
	p.characterTicks += characterCount
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	tps := float64(p.tickCount) / elapsed.Seconds()
	cps := float64(p.characterTicks) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocRate := float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / elapsed.Seconds() / (1024 * 1024)
	gcDelta := p.memStats.NumGC - p.lastGCCount

	log.Printf("[Profiler] %.1f ticks/s | %.0f character-updates/s | heap %.1fMB | alloc %.2fMB/s | GC +%d",
		tps, cps, float64(p.memStats.HeapAlloc)/(1024*1024), allocRate, gcDelta)

	p.lastGCCount = p.memStats.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.tickCount = 0
	p.characterTicks = 0
	p.lastTime = now
	return true
}
