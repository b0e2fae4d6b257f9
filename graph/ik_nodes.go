package graph

import (
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/task"
)

// maxRigTargets caps an IKRigNode's target inputs.
const maxRigTargets = 6

// resolveTargetModelSpace evaluates the target value node at targetRef and
// resolves it to a model-space translation. Bone-relative targets resolve
// against the previous frame's output pose, since the current frame's pose
// does not exist until the task system runs; first-frame lookups fall back
// to the bind pose. Returns false on a definition error (missing target
// node or unknown bone), in which case the calling node passes its input
// through untouched.
func resolveTargetModelSpace(ctx *Context, targetRef Ref, targetInWorldSpace bool) ([3]float32, bool) {
	tn := ctx.Instance.TargetValueNodeAt(targetRef)
	if tn == nil {
		return [3]float32{}, false
	}
	t := tn.GetValueTarget(ctx)

	refPose := ctx.Instance.LastOutput().Pose
	if refPose == nil {
		refPose = pose.New(ctx.Skeleton)
		refPose.SetReferencePose()
	}
	resolved, ok := Resolve(t, ctx.Skeleton, refPose, ctx.WorldTransform)
	if !ok {
		return [3]float32{}, false
	}
	if targetInWorldSpace && !t.IsBoneTarget {
		return resolveWorldPoint(ctx.WorldTransform, resolved.Translation), true
	}
	return resolved.Translation, true
}

// TwoBoneIKNode drives the analytic two-bone solver over its child's pose.
type TwoBoneIKNode struct {
	base

	Child              Ref
	TargetNode         Ref
	EffectorBoneName   string
	TargetInWorldSpace bool
	AllowedStretch     float32

	result PoseResult
}

func (n *TwoBoneIKNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Initialize(ctx, initialSyncTime)
	}
}

func (n *TwoBoneIKNode) Shutdown(ctx *Context) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Shutdown(ctx)
	}
}

func (n *TwoBoneIKNode) SyncTrack() clip.SyncTrack {
	return clip.SyncTrack{}
}

func (n *TwoBoneIKNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if n.beganFrame(ctx.FrameStamp()) {
		return n.result
	}

	child := ctx.Instance.PoseNodeAt(n.Child)
	if child == nil {
		n.result = PoseResult{TaskIndex: NoTask}
		return n.result
	}
	n.result = child.Update(ctx, syncRange)

	effector, ok := ctx.Skeleton.BoneIndex(n.EffectorBoneName)
	if !ok {
		ctx.Trace.Warnf("two-bone IK: unknown effector bone %q", n.EffectorBoneName)
		return n.result
	}
	target, ok := resolveTargetModelSpace(ctx, n.TargetNode, n.TargetInWorldSpace)
	if !ok {
		ctx.Trace.Warnf("two-bone IK: unresolvable target")
		return n.result
	}
	if n.result.TaskIndex == NoTask {
		return n.result
	}

	n.result.TaskIndex = ctx.Tasks.RegisterTwoBoneIK(
		int(n.ref), n.result.TaskIndex, int(effector), target, n.AllowedStretch)
	return n.result
}

// ChainSolverNode drives the iterative N-bone solver over its child's pose.
type ChainSolverNode struct {
	base

	Child            Ref
	TargetNode       Ref
	EffectorBoneName string
	ChainLength      int
	PivotIndex       int
	Stiffness        float32
	AllowedStretch   float32

	result PoseResult
}

func (n *ChainSolverNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Initialize(ctx, initialSyncTime)
	}
}

func (n *ChainSolverNode) Shutdown(ctx *Context) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Shutdown(ctx)
	}
}

func (n *ChainSolverNode) SyncTrack() clip.SyncTrack {
	return clip.SyncTrack{}
}

func (n *ChainSolverNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if n.beganFrame(ctx.FrameStamp()) {
		return n.result
	}

	child := ctx.Instance.PoseNodeAt(n.Child)
	if child == nil {
		n.result = PoseResult{TaskIndex: NoTask}
		return n.result
	}
	n.result = child.Update(ctx, syncRange)

	effector, ok := ctx.Skeleton.BoneIndex(n.EffectorBoneName)
	if !ok {
		ctx.Trace.Warnf("chain solver: unknown effector bone %q", n.EffectorBoneName)
		return n.result
	}
	target, ok := resolveTargetModelSpace(ctx, n.TargetNode, false)
	if !ok {
		ctx.Trace.Warnf("chain solver: unresolvable target")
		return n.result
	}
	if n.result.TaskIndex == NoTask || n.ChainLength < 2 {
		return n.result
	}

	n.result.TaskIndex = ctx.Tasks.RegisterChainSolver(
		int(n.ref), n.result.TaskIndex, int(effector), n.ChainLength,
		target, n.PivotIndex, n.Stiffness, n.AllowedStretch)
	return n.result
}

// IKRigNode delegates to an opaque rig resource with up to six per-effector
// targets.
type IKRigNode struct {
	base

	Child       Ref
	Rig         *task.Rig
	TargetNodes []Ref

	result PoseResult
}

func (n *IKRigNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Initialize(ctx, initialSyncTime)
	}
}

func (n *IKRigNode) Shutdown(ctx *Context) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Shutdown(ctx)
	}
}

func (n *IKRigNode) SyncTrack() clip.SyncTrack {
	return clip.SyncTrack{}
}

func (n *IKRigNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if n.beganFrame(ctx.FrameStamp()) {
		return n.result
	}

	child := ctx.Instance.PoseNodeAt(n.Child)
	if child == nil {
		n.result = PoseResult{TaskIndex: NoTask}
		return n.result
	}
	n.result = child.Update(ctx, syncRange)

	if n.Rig == nil || n.result.TaskIndex == NoTask {
		return n.result
	}

	targets := make([][3]float32, 0, len(n.TargetNodes))
	for _, tr := range n.TargetNodes {
		t, ok := resolveTargetModelSpace(ctx, tr, false)
		if !ok {
			// An unresolvable effector target is skipped, not fatal; the rig solves
			// the chains whose targets resolved.
			t = [3]float32{}
		}
		targets = append(targets, t)
	}

	n.result.TaskIndex = ctx.Tasks.RegisterIKRig(int(n.ref), n.result.TaskIndex, n.Rig, targets)
	return n.result
}

// AimIKNode rotates a single aim bone so its forward axis points at the
// target, clamped to a cone limit.
type AimIKNode struct {
	base

	Child        Ref
	TargetNode   Ref
	AimBoneName  string
	ForwardAxis  [3]float32
	ConeLimitRad float32

	result PoseResult
}

func (n *AimIKNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Initialize(ctx, initialSyncTime)
	}
}

func (n *AimIKNode) Shutdown(ctx *Context) {
	if c := ctx.Instance.PoseNodeAt(n.Child); c != nil {
		c.Shutdown(ctx)
	}
}

func (n *AimIKNode) SyncTrack() clip.SyncTrack {
	return clip.SyncTrack{}
}

func (n *AimIKNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if n.beganFrame(ctx.FrameStamp()) {
		return n.result
	}

	child := ctx.Instance.PoseNodeAt(n.Child)
	if child == nil {
		n.result = PoseResult{TaskIndex: NoTask}
		return n.result
	}
	n.result = child.Update(ctx, syncRange)

	aimBone, ok := ctx.Skeleton.BoneIndex(n.AimBoneName)
	if !ok {
		ctx.Trace.Warnf("aim IK: unknown aim bone %q", n.AimBoneName)
		return n.result
	}
	target, ok := resolveTargetModelSpace(ctx, n.TargetNode, false)
	if !ok {
		ctx.Trace.Warnf("aim IK: unresolvable target")
		return n.result
	}
	if n.result.TaskIndex == NoTask {
		return n.result
	}

	forward := n.ForwardAxis
	if common.Vec3Length(forward) < 1e-8 {
		forward = [3]float32{0, 0, 1}
	}
	n.result.TaskIndex = ctx.Tasks.RegisterAimIK(
		int(n.ref), n.result.TaskIndex, int(aimBone), forward, target, n.ConeLimitRad)
	return n.result
}
