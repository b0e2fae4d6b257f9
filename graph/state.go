package graph

import (
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/event"
)

// Lifecycle tags a StateNode's current phase in the owning state machine's
// transition dance.
type Lifecycle int

const (
	LifecycleNone Lifecycle = iota
	LifecycleTransitioningIn
	LifecycleTransitioningOut
)

// TimedEvent is a single named threshold a StateNode watches for, either
// counted from the start of the state (elapsed) or from its end
// (remaining).
type TimedEvent struct {
	Name      string
	Threshold float32
	FromEnd   bool
}

// StateNode holds a child subgraph, optional entry/execute/exit event IDs,
// optional timed events, an optional layer weight/mask override, and an
// is_off_state flag.
type StateNode struct {
	base

	Child Ref

	EntryEventID   string
	ExecuteEventID string
	ExitEventID    string

	TimedEvents []TimedEvent

	// LayerWeightNode/LayerMaskNode optionally override the current layer
	// context's weight/mask in place, used when this state is the content of a
	// state-machine layer.
	LayerWeightNode Ref
	LayerMaskNode   Ref

	IsOffState bool

	lifecycle Lifecycle
	elapsed   float32
	loops     int

	entryEmitted bool
	exitEmitted  bool
	firedTimed   []bool

	childInitialized bool
	syncTrack        clip.SyncTrack
	result           PoseResult
}

// NewStateNode creates a state wrapping child (InvalidRef for an off-state
// with no pose content).
func NewStateNode(ref Ref, child Ref) *StateNode {
	return &StateNode{base: base{ref: ref}, Child: child, LayerWeightNode: InvalidRef, LayerMaskNode: InvalidRef}
}

// SetLifecycle is called by the owning StateMachineNode/TransitionNode to
// move this state between None/TransitioningIn/TransitioningOut.
func (s *StateNode) SetLifecycle(lc Lifecycle) { s.lifecycle = lc }

// Lifecycle returns the state's current phase.
func (s *StateNode) Lifecycle() Lifecycle { return s.lifecycle }

func (s *StateNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	s.elapsed = 0
	s.loops = 0
	s.entryEmitted = false
	s.exitEmitted = false
	s.firedTimed = make([]bool, len(s.TimedEvents))
	s.childInitialized = false
	if child := ctx.Instance.PoseNodeAt(s.Child); child != nil {
		child.Initialize(ctx, initialSyncTime)
		s.syncTrack = child.SyncTrack()
		s.childInitialized = true
	}
}

// SyncTrack reports the child subgraph's track, captured at initialization.
func (s *StateNode) SyncTrack() clip.SyncTrack { return s.syncTrack }

// Shutdown always emits the state's exit event, even when the state is
// killed mid-frame, to guarantee symmetric entry/exit event pairing to
// consumers.
func (s *StateNode) Shutdown(ctx *Context) {
	if !s.exitEmitted {
		s.exitEmitted = true
		if s.ExitEventID != "" {
			ctx.Events.Append(event.SampledEvent{
				Kind:               event.KindStateExit,
				OriginNodeID:       int(s.ref),
				Payload:            s.ExitEventID,
				IsFromActiveBranch: true,
			})
		}
	}
	if s.childInitialized {
		if child := ctx.Instance.PoseNodeAt(s.Child); child != nil {
			child.Shutdown(ctx)
		}
		s.childInitialized = false
	}
}

func (s *StateNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if s.beganFrame(ctx.FrameStamp()) {
		return s.result
	}

	s.elapsed += ctx.DeltaTime
	start := ctx.Events.Mark()

	if !s.entryEmitted {
		s.entryEmitted = true
		if s.EntryEventID != "" {
			ctx.Events.Append(event.SampledEvent{Kind: event.KindStateEntry, OriginNodeID: int(s.ref), Payload: s.EntryEventID, IsFromActiveBranch: true})
		}
	}

	if s.ExecuteEventID != "" {
		ctx.Events.Append(event.SampledEvent{Kind: event.KindStateExecute, OriginNodeID: int(s.ref), Payload: s.ExecuteEventID, IsFromActiveBranch: true})
	}

	var childResult PoseResult
	if child := ctx.Instance.PoseNodeAt(s.Child); child != nil {
		childResult = child.Update(ctx, syncRange)
	} else {
		childResult = PoseResult{TaskIndex: NoTask}
	}

	s.emitTimedEvents(ctx)

	if s.LayerWeightNode != InvalidRef || s.LayerMaskNode != InvalidRef {
		top := ctx.Layers.Top()
		if s.LayerWeightNode != InvalidRef {
			top.Weight = ctx.Instance.EvalFloatOr(ctx, s.LayerWeightNode, top.Weight)
		}
		if s.LayerMaskNode != InvalidRef {
			if m := ctx.Instance.MaskValueNodeAt(s.LayerMaskNode); m != nil {
				resolved, slot, pooled := m.GetValueMask(ctx)
				if pooled {
					ctx.DeferMaskRelease(slot)
				}
				top.Mask = resolved
			}
		}
		ctx.Layers.setTop(top)
	}

	childResult.Events = ctx.Events.Since(start)
	s.result = childResult
	return s.result
}

func (s *StateNode) emitTimedEvents(ctx *Context) {
	duration := s.Duration(ctx)
	for i, te := range s.TimedEvents {
		if s.firedTimed[i] {
			continue
		}
		var crossed bool
		if te.FromEnd {
			if duration <= 0 {
				continue
			}
			crossed = (duration - s.elapsed) <= te.Threshold
		} else {
			crossed = s.elapsed >= te.Threshold
		}
		if crossed {
			s.firedTimed[i] = true
			ctx.Events.Append(event.SampledEvent{Kind: event.KindTimed, OriginNodeID: int(s.ref), Payload: te.Name, IsFromActiveBranch: true})
		}
	}
}

// ElapsedTime returns the wall-clock seconds since this state was entered,
// used by TimeCondition's "elapsed time in state" comparand.
func (s *StateNode) ElapsedTime() float32 { return s.elapsed }

// sampleChild returns the state's child as a *SampleNode when it bottoms
// out directly in one, used to derive Duration/CurrentTimePercentage/
// LoopCount/sync-event percentage. States whose child is a richer subgraph
// (layers, transitions) report a zero/unknown duration for these
// comparands.
func (s *StateNode) sampleChild(ctx *Context) *SampleNode {
	n, _ := ctx.Instance.nodeAt(s.Child).(*SampleNode)
	return n
}

// Duration returns the child clip's duration in seconds if the child is a
// direct SampleNode, else 0 (unknown/indefinite).
func (s *StateNode) Duration(ctx *Context) float32 {
	if sn := s.sampleChild(ctx); sn != nil && sn.Clip != nil {
		return sn.Clip.Duration
	}
	return 0
}

// CurrentTimePercentage returns the normalized [0,1) position through the
// state's content, used by StateCompletedNode and TimeCondition.
func (s *StateNode) CurrentTimePercentage(ctx *Context) float32 {
	if sn := s.sampleChild(ctx); sn != nil {
		return sn.CurrentTime()
	}
	return 0
}

// LoopCount returns the child clip's loop count, 0 if unavailable.
func (s *StateNode) LoopCount(ctx *Context) int {
	if sn := s.sampleChild(ctx); sn != nil {
		return sn.LoopCount()
	}
	return 0
}

// SyncEventPercentage returns the (eventIndex, percentageThrough) sync time
// of the child sample node, zero value if unavailable.
func (s *StateNode) SyncEventPercentage(ctx *Context) (int, float32) {
	if sn := s.sampleChild(ctx); sn != nil {
		return sn.Clip.SyncTrack.Time(sn.CurrentTime())
	}
	return 0, 0
}
