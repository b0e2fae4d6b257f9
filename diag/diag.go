// Package diag provides per-instance tracing handles wrapping the standard
// library logger, with a tag threaded explicitly through the evaluation
// context so log lines attribute to a single instance.
package diag

import "log"

// Trace is a lightweight per-instance logging handle. Every line it emits
// is prefixed with the owning instance's bracketed tag.
type Trace struct {
	tag     string
	enabled bool
}

// NewTrace creates a trace handle tagged with name, e.g. a character
// instance's identifier. Tracing is enabled by default.
func NewTrace(name string) *Trace {
	return &Trace{tag: name, enabled: true}
}

// Enable turns logging on.
func (t *Trace) Enable() {
	t.enabled = true
}

// Disable turns logging off; calls become no-ops.
func (t *Trace) Disable() {
	t.enabled = false
}

// Printf logs a formatted line tagged with this trace's instance name, if
// enabled.
func (t *Trace) Printf(format string, args ...any) {
	if !t.enabled {
		return
	}
	log.Printf("[%s] "+format, append([]any{t.tag}, args...)...)
}

// Warnf logs a formatted warning line, used for runtime invariant
// violations that are recovered locally rather than surfaced as errors.
func (t *Trace) Warnf(format string, args ...any) {
	if !t.enabled {
		return
	}
	log.Printf("[%s][warn] "+format, append([]any{t.tag}, args...)...)
}

// Recover should be deferred at the top of a per-frame update call. It logs
// any panic as a recovered runtime invariant violation instead of letting
// it cross the package boundary.
func (t *Trace) Recover(where string) {
	if r := recover(); r != nil {
		t.Warnf("recovered panic in %s: %v", where, r)
	}
}
