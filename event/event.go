// Package event implements the sampled-event buffer: a monotonically
// growing per-frame log of events emitted by graph nodes, with each node
// recording the half-open range it contributed so callers can later mark a
// whole range as ignored or as originating from an inactive branch.
package event

// Kind tags the source of a SampledEvent.
type Kind int

const (
	KindStateEntry Kind = iota
	KindStateExecute
	KindStateExit
	KindTimed
	KindAnimationClip
)

// SampledEvent is a single record emitted during a node's update.
type SampledEvent struct {
	Kind Kind

	// OriginNodeID identifies the graph node instance that emitted this event.
	OriginNodeID int

	// Payload is kind-specific data: an event name, a clip-embedded event
	// identifier, or a timed-event threshold tag.
	Payload string

	IsFromActiveBranch bool
	IsIgnored          bool
}

// Range is a half-open [Start, End) span into a Buffer, recorded by a node
// after it finishes emitting events for the frame.
type Range struct {
	Start, End int
}

// Empty reports whether the range contains no events.
func (r Range) Empty() bool {
	return r.Start >= r.End
}

// Buffer is the growable per-frame event log shared by every node in one
// GraphInstance's update.
type Buffer struct {
	events []SampledEvent
}

// NewBuffer creates an empty event buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Mark returns the buffer's current length, the starting index of a range a
// caller is about to begin appending to.
func (b *Buffer) Mark() int {
	return len(b.events)
}

// Append adds an event and returns its index.
func (b *Buffer) Append(e SampledEvent) int {
	b.events = append(b.events, e)
	return len(b.events) - 1
}

// Since returns the half-open range from start to the buffer's current
// length, intended to be called as `events.Since(mark)` immediately after a
// node finishes emitting for the frame.
func (b *Buffer) Since(start int) Range {
	return Range{Start: start, End: len(b.events)}
}

// Events returns the full event slice for the frame. The returned slice
// must not be retained across Reset.
func (b *Buffer) Events() []SampledEvent {
	return b.events
}

// At returns the event at index i.
func (b *Buffer) At(i int) SampledEvent {
	return b.events[i]
}

// MarkOnlyStateEventsAsIgnored sets IsIgnored on every event in r whose
// Kind is a state-lifecycle event (entry/execute/exit), leaving timed and
// clip-embedded events in the range untouched — used when a state's output
// is discarded after the fact but its timed/clip events should still fire.
func (b *Buffer) MarkOnlyStateEventsAsIgnored(r Range) {
	for i := r.Start; i < r.End && i < len(b.events); i++ {
		switch b.events[i].Kind {
		case KindStateEntry, KindStateExecute, KindStateExit:
			b.events[i].IsIgnored = true
		}
	}
}

// MarkEventsAsFromInactiveBranch clears IsFromActiveBranch on every event
// in r — used when a layer or transition branch that produced these events
// turns out not to be the one contributing to the final blended pose.
func (b *Buffer) MarkEventsAsFromInactiveBranch(r Range) {
	for i := r.Start; i < r.End && i < len(b.events); i++ {
		b.events[i].IsFromActiveBranch = false
	}
}

// Reset clears the buffer for the next frame.
func (b *Buffer) Reset() {
	b.events = b.events[:0]
}
