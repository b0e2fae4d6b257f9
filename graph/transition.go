package graph

import (
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/oxyanim/animgraph/task"
)

// Easing shapes a transition's raw [0,1] progress into a blend weight.
type Easing int

const (
	EasingLinear Easing = iota
	EasingEaseIn
	EasingEaseOut
	EasingEaseInOut
	// EasingSmoothDecay is a frame-rate-independent exponential approach,
	// computed with common.LerpSmooth against a fixed half-life derived from
	// the transition duration.
	EasingSmoothDecay
)

// Apply maps linear progress t in [0,1] to an eased weight.
func (e Easing) Apply(t float32) float32 {
	t = common.Clamp01(t)
	switch e {
	case EasingEaseIn:
		return t * t
	case EasingEaseOut:
		return 1 - (1-t)*(1-t)
	case EasingEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - 2*(1-t)*(1-t)
	default:
		return t
	}
}

// RootMotionMode selects how a transition composes source/target root
// motion while blending.
type RootMotionMode int

const (
	RootMotionBlend RootMotionMode = iota
	RootMotionIgnoreSource
	RootMotionIgnoreTarget
)

// TransitionNode blends a source pose into a target state over a duration.
// The source is either a live StateNode or, after a forced interruption, a
// cached pose snapshot keyed into the pose-buffer pool.
type TransitionNode struct {
	base

	Duration     float32
	DurationNode Ref
	Easing       Easing
	RootMotion   RootMotionMode

	Synchronized            bool
	ClampDuration           bool
	KeepSyncEventIndex      bool
	KeepSyncEventPercentage bool
	ForcedTransitionAllowed bool

	PivotBoneName string

	from *StateNode
	to   *StateNode

	// sourceCacheKey reads the interrupted predecessor's snapshot when
	// sourceIsCached is set; otherwise, when hasOwnCacheKey is set, this
	// transition writes its own blended output under the key every frame so a
	// future forced transition can take over from it.
	sourceCacheKey pose.CachedPoseKey
	sourceIsCached bool
	hasOwnCacheKey bool
	ownCacheKey    pose.CachedPoseKey

	elapsed      float32
	duration     float32
	smoothWeight float32
	interrupted  bool
	result       PoseResult
}

// NewTransitionNode creates a transition node with a fixed duration and
// linear easing; callers override fields directly for richer behavior.
func NewTransitionNode(ref Ref, duration float32) *TransitionNode {
	return &TransitionNode{base: base{ref: ref}, Duration: duration, DurationNode: InvalidRef}
}

func (t *TransitionNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}

func (t *TransitionNode) Shutdown(ctx *Context) {
	if t.from != nil {
		t.from.Shutdown(ctx)
	}
	if t.to != nil {
		t.to.Shutdown(ctx)
	}
	t.releaseOwnKey(ctx)
	t.from, t.to = nil, nil
	t.sourceIsCached = false
}

func (t *TransitionNode) SyncTrack() clip.SyncTrack {
	if t.to != nil {
		return t.to.SyncTrack()
	}
	return clip.SyncTrack{}
}

// Begin starts the blend from from into to. from is nil when the source is
// a cached snapshot handed over by BeginFromCached.
func (t *TransitionNode) Begin(ctx *Context, from, to *StateNode) {
	t.from, t.to = from, to
	t.elapsed = 0
	t.smoothWeight = 0
	t.interrupted = false
	t.sourceIsCached = false
	t.duration = t.Duration
	if t.DurationNode != InvalidRef {
		if n := ctx.Instance.FloatValueNodeAt(t.DurationNode); n != nil {
			t.duration = n.GetValueFloat(ctx)
		}
	}
	if t.ClampDuration && to != nil {
		if remaining := to.Duration(ctx) * (1 - to.CurrentTimePercentage(ctx)); remaining > 0 && remaining < t.duration {
			t.duration = remaining
		}
	}
	if t.duration < 1e-4 {
		t.duration = 1e-4
	}

	initial := SyncTime{}
	if from != nil && (t.KeepSyncEventIndex || t.KeepSyncEventPercentage) {
		idx, pct := from.SyncEventPercentage(ctx)
		if t.KeepSyncEventIndex {
			initial.EventIndex = idx
		}
		if t.KeepSyncEventPercentage {
			initial.PercentageThrough = pct
		}
	}
	to.Initialize(ctx, initial)

	if t.ForcedTransitionAllowed {
		t.ownCacheKey = ctx.CacheKeys.Acquire()
		t.hasOwnCacheKey = true
	}
}

// BeginFromCached starts the blend with a cached pose snapshot as the
// source instead of a live state, used when this transition forcibly
// interrupts another one that was already caching its output under key.
func (t *TransitionNode) BeginFromCached(ctx *Context, key pose.CachedPoseKey, to *StateNode) {
	t.Begin(ctx, nil, to)
	t.sourceCacheKey = key
	t.sourceIsCached = true
}

// Interrupt marks this transition as superseded by a forced transition on
// the same state machine. When ForcedTransitionAllowed is set its blended
// output was being cached every frame, so the successor picks up from the
// snapshot without re-evaluating this transition's subtree; otherwise the
// successor starts from the live target state.
func (t *TransitionNode) Interrupt(ctx *Context) {
	t.interrupted = true
}

// TakeCacheKey transfers ownership of this transition's own cache key to
// the caller, returning false if the transition never acquired one.
func (t *TransitionNode) TakeCacheKey() (pose.CachedPoseKey, bool) {
	if !t.hasOwnCacheKey {
		return 0, false
	}
	t.hasOwnCacheKey = false
	return t.ownCacheKey, true
}

func (t *TransitionNode) releaseOwnKey(ctx *Context) {
	if !t.hasOwnCacheKey {
		return
	}
	ctx.Poses.ReleaseCached(t.ownCacheKey)
	ctx.CacheKeys.Release(t.ownCacheKey)
	t.hasOwnCacheKey = false
}

// InheritedCacheKey returns the cached-source key this transition reads
// from, if any. The owning state machine releases it once the transition
// ends, after a one-frame grace.
func (t *TransitionNode) InheritedCacheKey() (pose.CachedPoseKey, bool) {
	return t.sourceCacheKey, t.sourceIsCached
}

// IsComplete reports whether the blend has finished, by progress or by
// forced interruption.
func (t *TransitionNode) IsComplete() bool {
	return t.interrupted || t.elapsed >= t.duration
}

// Finish shuts down the source and clears this node's bookkeeping so it can
// be reused for the next transition across the same edge. The target state
// is promoted by the owning state machine; it is not shut down here.
func (t *TransitionNode) Finish(ctx *Context) {
	if t.from != nil {
		t.from.Shutdown(ctx)
	}
	if t.to != nil {
		t.to.SetLifecycle(LifecycleNone)
	}
	t.releaseOwnKey(ctx)
	t.from = nil
	t.sourceIsCached = false
	t.elapsed = 0
	t.interrupted = false
}

func (t *TransitionNode) pivotBoneIndex(ctx *Context) int {
	if t.PivotBoneName == "" {
		return int(skeleton.InvalidBoneIndex)
	}
	idx, ok := ctx.Skeleton.BoneIndex(t.PivotBoneName)
	if !ok {
		return int(skeleton.InvalidBoneIndex)
	}
	return int(idx)
}

// syncRangeFor derives the shared sync span both children are updated with
// when the transition is synchronized: the source's current sync position
// advanced by this frame's delta along its own track.
func (t *TransitionNode) syncRangeFor(ctx *Context) *SyncRange {
	if !t.Synchronized || t.from == nil {
		return nil
	}
	startIdx, startPct := t.from.SyncEventPercentage(ctx)
	duration := t.from.Duration(ctx)
	if duration <= 0 {
		return nil
	}
	track := t.from.SyncTrack()
	endTime := track.FromPercentage(startIdx, startPct) + ctx.DeltaTime/duration
	for endTime >= 1 {
		endTime -= 1
	}
	endIdx, endPct := track.Time(endTime)
	return &SyncRange{
		Start: SyncTime{EventIndex: startIdx, PercentageThrough: startPct},
		End:   SyncTime{EventIndex: endIdx, PercentageThrough: endPct},
	}
}

func (t *TransitionNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if t.beganFrame(ctx.FrameStamp()) {
		return t.result
	}

	t.elapsed += ctx.DeltaTime
	progress := common.Clamp01(t.elapsed / t.duration)

	var weight float32
	if t.Easing == EasingSmoothDecay {
		t.smoothWeight = common.LerpSmooth(t.smoothWeight, 1, ctx.DeltaTime, t.duration/4)
		weight = t.smoothWeight
	} else {
		weight = t.Easing.Apply(progress)
	}

	start := ctx.Events.Mark()

	childSync := syncRange
	if sr := t.syncRangeFor(ctx); sr != nil {
		childSync = sr
	}

	var fromResult, toResult PoseResult
	switch {
	case t.sourceIsCached:
		fromResult = PoseResult{TaskIndex: ctx.Tasks.RegisterCachedPoseRead(int(t.ref), uint8(t.sourceCacheKey))}
	case t.from != nil:
		fromMark := ctx.Events.Mark()
		fromResult = t.from.Update(ctx, childSync)
		// The source is on its way out; its state-lifecycle events no longer
		// describe the branch the machine is heading into.
		ctx.Events.MarkOnlyStateEventsAsIgnored(ctx.Events.Since(fromMark))
	default:
		fromResult = PoseResult{TaskIndex: NoTask}
	}
	if t.to != nil {
		toResult = t.to.Update(ctx, childSync)
	} else {
		toResult = PoseResult{TaskIndex: NoTask}
	}

	taskIdx := NoTask
	switch {
	case fromResult.TaskIndex == NoTask:
		taskIdx = toResult.TaskIndex
	case toResult.TaskIndex == NoTask:
		taskIdx = fromResult.TaskIndex
	default:
		taskIdx = ctx.Tasks.RegisterBlend(int(t.ref), fromResult.TaskIndex, toResult.TaskIndex, task.BlendInterpolative, weight, nil)
	}

	if t.hasOwnCacheKey && taskIdx != NoTask {
		taskIdx = ctx.Tasks.RegisterCachedPoseWrite(int(t.ref), taskIdx, uint8(t.ownCacheKey))
	}

	root := t.blendRootMotion(ctx, fromResult.RootMotionDelta, toResult.RootMotionDelta, weight)

	t.result = PoseResult{TaskIndex: taskIdx, Events: ctx.Events.Since(start), RootMotionDelta: root}
	return t.result
}

// blendRootMotion composes the two root-motion deltas under the configured
// mode. A pivot bone, when set and resolvable, anchors the blend: the
// translation difference between the two deltas is re-weighted so the blend
// crosses over at the pivot rather than drifting linearly.
func (t *TransitionNode) blendRootMotion(ctx *Context, from, to [3]float32, weight float32) [3]float32 {
	switch t.RootMotion {
	case RootMotionIgnoreSource:
		return to
	case RootMotionIgnoreTarget:
		return from
	}
	blended := common.Vec3Lerp(from, to, weight)
	if pivot := t.pivotBoneIndex(ctx); pivot != int(skeleton.InvalidBoneIndex) {
		offset := common.Vec3Scale(common.Vec3Sub(to, from), weight*(1-weight))
		blended = common.Vec3Add(blended, offset)
	}
	return blended
}
