package graph

import (
	"fmt"

	"github.com/oxyanim/animgraph/diag"
	"github.com/oxyanim/animgraph/event"
	"github.com/oxyanim/animgraph/mask"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/oxyanim/animgraph/task"
)

// GraphInstance owns the pose-buffer pool, bone-mask pool, sampled-event buffer,
// task system, layer context stack, and the instantiated node tree of one
// GraphDefinition bound to one skeleton. Lifetime: constructed from a
// compiled GraphDefinition plus a skeleton; reset per evaluation; destroyed
// with its owning character.
type GraphInstance struct {
	def  *Definition
	skel *skeleton.Skeleton

	nodes []Node
	root  Ref

	poses     *pose.Pool
	masks     *mask.Pool
	cacheKeys *pose.CachedPoseKeyPool
	events    *event.Buffer
	tasks     *task.System

	trace *diag.Trace

	frameStamp uint64

	// lastOutput is the result of the most recently completed frame, read
	// by the task-execution host after Update returns.
	lastOutput Output
}

// Output is the per-frame result of a full Update + task execution cycle.
type Output struct {
	Pose            *pose.Pose
	RootMotionDelta [3]float32
	Events          []event.SampledEvent
}

// Option configures New via the functional-options pattern.
type Option func(*instanceConfig)

type instanceConfig struct {
	poseBufferCapacity int
	maskPoolCapacity   int
	traceName          string
}

// WithPoseBufferCapacity overrides the statically-sized pose buffer pool
// capacity. Defaults to 32.
func WithPoseBufferCapacity(n int) Option {
	return func(c *instanceConfig) { c.poseBufferCapacity = n }
}

// WithMaskPoolCapacity overrides the initial mask pool capacity. Defaults
// to 64.
func WithMaskPoolCapacity(n int) Option {
	return func(c *instanceConfig) { c.maskPoolCapacity = n }
}

// WithTraceName sets the per-instance tracing tag.
func WithTraceName(name string) Option {
	return func(c *instanceConfig) { c.traceName = name }
}

// New instantiates def against skel: builds the node array, allocates the
// pose-buffer pool, mask pool, cached-pose key pool, event buffer, and task
// system, then initializes the node tree from the root.
func New(def *Definition, skel *skeleton.Skeleton, opts ...Option) *GraphInstance {
	cfg := instanceConfig{poseBufferCapacity: 32, maskPoolCapacity: 64, traceName: "graph"}
	for _, opt := range opts {
		opt(&cfg)
	}

	gi := &GraphInstance{
		def:       def,
		skel:      skel,
		root:      def.Root,
		poses:     pose.NewPool(skel, cfg.poseBufferCapacity),
		masks:     mask.NewPoolSized(skel, cfg.maskPoolCapacity),
		cacheKeys: pose.NewCachedPoseKeyPool(),
		events:    event.NewBuffer(),
		trace:     diag.NewTrace(cfg.traceName),
	}
	gi.tasks = task.NewSystem(skel, gi.poses)
	gi.nodes = def.instantiate()

	ctx := gi.newContext(0)
	if root := gi.nodeAt(gi.root); root != nil {
		// Only the root is initialized here. Each node's Initialize forwards to
		// its currently-active children (a state machine initializes just its
		// default state, not every state in the list), so dormant subtrees stay
		// uninitialized until activated.
		root.Initialize(ctx, SyncTime{})
	}
	return gi
}

func (gi *GraphInstance) newContext(dt float32) *Context {
	return &Context{
		DeltaTime: dt,
		Skeleton:  gi.skel,
		Tasks:     gi.tasks,
		Poses:     gi.poses,
		Masks:     gi.masks,
		CacheKeys: gi.cacheKeys,
		Events:    gi.events,
		Layers:    &layerStack{},
		Trace:     gi.trace,
		Instance:   gi,
		frameStamp: gi.frameStamp,
	}
}

// Update runs one full frame: resets pools/events/tasks, depth-first
// updates the root node, executes the resulting task DAG, and records the
// final pose/root-motion/events as Output.
func (gi *GraphInstance) Update(dt float32, worldTransform pose.Transform, params *ControlParameters) Output {
	defer gi.trace.Recover("GraphInstance.Update")

	gi.frameStamp++
	gi.events.Reset()
	gi.tasks.Reset()

	ctx := gi.newContext(dt)
	ctx.WorldTransform = worldTransform
	ctx.WorldTransformInverse = worldTransform.Inverse()
	ctx.ControlParameters = params

	root := gi.PoseNodeAt(gi.root)
	if root == nil {
		gi.lastOutput = Output{Pose: pose.New(gi.skel)}
		return gi.lastOutput
	}

	result := root.Update(ctx, nil)
	gi.tasks.Execute()

	for _, slot := range ctx.deferredMaskSlots {
		gi.masks.Release(slot)
	}

	var outPose *pose.Pose
	if result.TaskIndex != NoTask {
		buf := gi.tasks.Output(result.TaskIndex)
		outPose = pose.New(gi.skel)
		outPose.CopyFrom(buf.Primary)
	} else {
		outPose = pose.New(gi.skel)
		outPose.SetReferencePose()
	}
	gi.tasks.ReleaseAll()

	if !gi.poses.AllReleased() {
		gi.trace.Warnf("pose buffer pool not fully released at frame end")
	}
	if !gi.masks.AllReleased() {
		gi.trace.Warnf("mask pool not fully released at frame end")
	}

	gi.lastOutput = Output{
		Pose:            outPose,
		RootMotionDelta: result.RootMotionDelta,
		Events:          append([]event.SampledEvent(nil), gi.events.Events()...),
	}
	return gi.lastOutput
}

// LastOutput returns the most recently computed frame's output.
func (gi *GraphInstance) LastOutput() Output { return gi.lastOutput }

// Shutdown releases every currently-active node's acquired resources,
// cascading from the root exactly as Initialize did.
func (gi *GraphInstance) Shutdown() {
	ctx := gi.newContext(0)
	if root := gi.nodeAt(gi.root); root != nil {
		root.Shutdown(ctx)
	}
}

func (gi *GraphInstance) nodeAt(ref Ref) Node {
	if ref == InvalidRef || int(ref) >= len(gi.nodes) {
		return nil
	}
	return gi.nodes[ref]
}

// PoseNodeAt returns the node at ref as a PoseNode, or nil if ref is
// invalid or the node doesn't produce poses.
func (gi *GraphInstance) PoseNodeAt(ref Ref) PoseNode {
	n, ok := gi.nodeAt(ref).(PoseNode)
	if !ok {
		return nil
	}
	return n
}

// BoolValueNodeAt returns the node at ref as a BoolValueNode.
func (gi *GraphInstance) BoolValueNodeAt(ref Ref) BoolValueNode {
	n, ok := gi.nodeAt(ref).(BoolValueNode)
	if !ok {
		return nil
	}
	return n
}

// FloatValueNodeAt returns the node at ref as a FloatValueNode.
func (gi *GraphInstance) FloatValueNodeAt(ref Ref) FloatValueNode {
	n, ok := gi.nodeAt(ref).(FloatValueNode)
	if !ok {
		return nil
	}
	return n
}

// TargetValueNodeAt returns the node at ref as a TargetValueNode.
func (gi *GraphInstance) TargetValueNodeAt(ref Ref) TargetValueNode {
	n, ok := gi.nodeAt(ref).(TargetValueNode)
	if !ok {
		return nil
	}
	return n
}

// MaskValueNodeAt returns the node at ref as a MaskValueNode.
func (gi *GraphInstance) MaskValueNodeAt(ref Ref) MaskValueNode {
	n, ok := gi.nodeAt(ref).(MaskValueNode)
	if !ok {
		return nil
	}
	return n
}

// EvalBoolOr evaluates the bool value node at ref, returning fallback if
// ref is InvalidRef (an unset optional condition is treated as "always
// true" by default state selection's "no condition matched" fallthrough,
// per the caller's choice of fallback).
func (gi *GraphInstance) EvalBoolOr(ctx *Context, ref Ref, fallback bool) bool {
	n := gi.BoolValueNodeAt(ref)
	if n == nil {
		return fallback
	}
	return n.GetValueBool(ctx)
}

// EvalFloatOr evaluates the float value node at ref, returning fallback if
// ref is InvalidRef.
func (gi *GraphInstance) EvalFloatOr(ctx *Context, ref Ref, fallback float32) float32 {
	n := gi.FloatValueNodeAt(ref)
	if n == nil {
		return fallback
	}
	return n.GetValueFloat(ctx)
}

// transitionAt returns the node at ref as a *TransitionNode, or nil if ref
// is invalid or doesn't name one.
func (gi *GraphInstance) transitionAt(ref Ref) *TransitionNode {
	n, _ := gi.nodeAt(ref).(*TransitionNode)
	return n
}

// StateByRef returns the *StateNode at ref for conditions that need direct
// access to a state's timing fields (StateCompleted, TimeCondition). Panics
// if ref does not name a StateNode — this indicates a malformed
// GraphDefinition (construction-time misconfiguration), not a per-frame
// condition.
func (gi *GraphInstance) StateByRef(ref Ref) *StateNode {
	n, ok := gi.nodeAt(ref).(*StateNode)
	if !ok {
		panic(fmt.Sprintf("graph: ref %d is not a StateNode", ref))
	}
	return n
}
