package graph

import (
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/pose"
)

// TransitionRule is one outgoing edge from a state: a condition that, when
// true, starts the transition node at Transition toward the state at index
// TargetState. CanBeForced lets the rule interrupt an in-flight transition.
type TransitionRule struct {
	TargetState int
	Condition   Ref
	Transition  Ref
	CanBeForced bool
}

// StateMachineNode holds an ordered list of states, each with its own
// ordered list of outgoing TransitionRules evaluated top-to-bottom, plus a
// compiled-in default state and optional per-state entry conditions used
// only to pick the initial active state.
//
// The active index always names the state the machine is in or heading
// into: starting a transition moves it to the transition's target
// immediately, so rules evaluated mid-transition are the target's outgoing
// edges. That is what lets a forced rule re-enter a transition from its own
// target while the blend is still running.
type StateMachineNode struct {
	base

	States          []Ref
	EntryConditions []Ref
	Transitions     [][]TransitionRule
	DefaultState    int

	active     int
	transition Ref
	result     PoseResult

	// pendingKeys are inherited cached-pose keys awaiting release. Each is
	// held for one extra frame after its transition ends so the task DAG
	// registered on the final frame can still read the cached buffer.
	pendingKeys []pendingKeyRelease
}

type pendingKeyRelease struct {
	key  pose.CachedPoseKey
	left int
}

// NewStateMachineNode creates a state machine over states, with entry
// conditions/transitions/defaultState matching states by index.
func NewStateMachineNode(ref Ref, states []Ref, entryConditions []Ref, transitions [][]TransitionRule, defaultState int) *StateMachineNode {
	return &StateMachineNode{
		base:            base{ref: ref},
		States:          states,
		EntryConditions: entryConditions,
		Transitions:     transitions,
		DefaultState:    defaultState,
		active:          -1,
		transition:      InvalidRef,
	}
}

// ActiveState returns the index of the state the machine is in or
// transitioning into.
func (m *StateMachineNode) ActiveState() int { return m.active }

// IsTransitioning reports whether a transition is currently blending.
func (m *StateMachineNode) IsTransitioning() bool { return m.transition != InvalidRef }

// Initialize selects the initial active state: states are scanned in order,
// each entry condition initialized and evaluated in turn, the first to
// report true wins; if none do, the compiled-in default state is used.
// Every entry condition node is shut down again afterward regardless of
// outcome.
func (m *StateMachineNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	m.transition = InvalidRef
	m.pendingKeys = nil

	chosen := m.DefaultState
	found := false
	for i, condRef := range m.EntryConditions {
		if condRef == InvalidRef || found {
			continue
		}
		cond := ctx.Instance.BoolValueNodeAt(condRef)
		if cond == nil {
			continue
		}
		cond.Initialize(ctx, initialSyncTime)
		if cond.GetValueBool(ctx) {
			chosen = i
			found = true
		}
		cond.Shutdown(ctx)
	}

	m.active = chosen
	state := ctx.Instance.StateByRef(m.States[chosen])
	state.SetLifecycle(LifecycleNone)
	state.Initialize(ctx, initialSyncTime)
}

func (m *StateMachineNode) Shutdown(ctx *Context) {
	if m.transition != InvalidRef {
		if tn := ctx.Instance.transitionAt(m.transition); tn != nil {
			if key, ok := tn.InheritedCacheKey(); ok {
				m.releaseKey(ctx, key)
			}
			tn.Shutdown(ctx)
		}
		m.transition = InvalidRef
	} else if m.active >= 0 {
		ctx.Instance.StateByRef(m.States[m.active]).Shutdown(ctx)
	}
	for _, pk := range m.pendingKeys {
		m.releaseKey(ctx, pk.key)
	}
	m.pendingKeys = nil
}

func (m *StateMachineNode) releaseKey(ctx *Context, key pose.CachedPoseKey) {
	ctx.Poses.ReleaseCached(key)
	ctx.CacheKeys.Release(key)
}

// SyncTrack returns an empty track: a state machine's effective sync track
// depends on which state is active and isn't resolvable without a Context.
// Synchronized layers and transitions that need precise sync data read it
// from the active StateNode directly instead of through this method.
func (m *StateMachineNode) SyncTrack() clip.SyncTrack {
	return clip.SyncTrack{}
}

func (m *StateMachineNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if m.beganFrame(ctx.FrameStamp()) {
		return m.result
	}

	remaining := m.pendingKeys[:0]
	for _, pk := range m.pendingKeys {
		pk.left--
		if pk.left <= 0 {
			m.releaseKey(ctx, pk.key)
			continue
		}
		remaining = append(remaining, pk)
	}
	m.pendingKeys = remaining

	if m.transition != InvalidRef {
		m.result = m.updateTransition(ctx, syncRange)
		return m.result
	}

	m.evaluateTransitions(ctx, false)
	if m.transition != InvalidRef {
		m.result = m.updateTransition(ctx, syncRange)
		return m.result
	}

	state := ctx.Instance.StateByRef(m.States[m.active])
	m.result = state.Update(ctx, syncRange)
	return m.result
}

// evaluateTransitions scans the active state's outgoing rules in order; the
// first whose condition evaluates true starts its transition node. When a
// transition is already in flight, only rules with CanBeForced set are
// considered, letting a higher-priority edge interrupt the blend.
func (m *StateMachineNode) evaluateTransitions(ctx *Context, onlyForced bool) {
	for _, rule := range m.Transitions[m.active] {
		if onlyForced && !rule.CanBeForced {
			continue
		}
		cond := ctx.Instance.BoolValueNodeAt(rule.Condition)
		if cond == nil {
			continue
		}
		if !cond.GetValueBool(ctx) {
			continue
		}
		m.startTransition(ctx, rule)
		return
	}
}

func (m *StateMachineNode) startTransition(ctx *Context, rule TransitionRule) {
	tn := ctx.Instance.transitionAt(rule.Transition)
	if tn == nil {
		return
	}
	fromState := ctx.Instance.StateByRef(m.States[m.active])
	toState := ctx.Instance.StateByRef(m.States[rule.TargetState])

	var inheritedKey pose.CachedPoseKey
	hasInheritedKey := false
	if m.transition != InvalidRef {
		// A forced rule interrupts the in-flight transition. If that transition
		// allows forced transitions it has been caching its blended output under
		// its own key every frame, and the new transition reads the snapshot
		// instead of re-evaluating the old source subtree. The old transition's
		// source is shut down here, and so is its target when a snapshot is
		// taken; if the new rule re-enters one of them, Begin re-initializes it,
		// keeping entry/exit event pairing symmetric.
		old := ctx.Instance.transitionAt(m.transition)
		old.Interrupt(ctx)
		inheritedKey, hasInheritedKey = old.TakeCacheKey()
		if key, ok := old.InheritedCacheKey(); ok {
			m.pendingKeys = append(m.pendingKeys, pendingKeyRelease{key: key, left: 2})
		}
		old.Finish(ctx)
		if hasInheritedKey && fromState != toState {
			fromState.Shutdown(ctx)
		}
		m.transition = InvalidRef
	}

	fromState.SetLifecycle(LifecycleTransitioningOut)
	toState.SetLifecycle(LifecycleTransitioningIn)
	if hasInheritedKey {
		tn.BeginFromCached(ctx, inheritedKey, toState)
	} else {
		tn.Begin(ctx, fromState, toState)
	}
	m.transition = rule.Transition
	m.active = rule.TargetState
}

func (m *StateMachineNode) updateTransition(ctx *Context, syncRange *SyncRange) PoseResult {
	m.evaluateTransitions(ctx, true)

	tn := ctx.Instance.transitionAt(m.transition)
	result := tn.Update(ctx, syncRange)

	if tn.IsComplete() {
		if key, ok := tn.InheritedCacheKey(); ok {
			m.pendingKeys = append(m.pendingKeys, pendingKeyRelease{key: key, left: 2})
		}
		tn.Finish(ctx)
		m.transition = InvalidRef
	}
	return result
}
