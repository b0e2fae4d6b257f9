package graph

import (
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/mask"
	"github.com/oxyanim/animgraph/task"
)

// Layer is one entry stacked on top of a LayerBlendNode's base pose. A
// local layer wires a pose input plus optional weight/mask value nodes; a
// state-machine layer points Input directly at a StateMachineNode and
// relies on that machine's states to adjust the layer context in place.
type Layer struct {
	Input      Ref
	WeightNode Ref
	MaskNode   Ref

	// Weight is the fixed blend weight used when WeightNode is unset. A
	// zero value here means "unset" and defaults to full weight; a layer
	// that should genuinely contribute nothing expresses that through a
	// constant-0 WeightNode, which the blend then short-circuits.
	Weight float32

	IsSynchronized bool
	IgnoreEvents   bool
	BlendMode      task.BlendMode
}

// LayerBlendNode blends a base pose with an ordered list of layers. Each
// layer is updated under its own layer-context frame, then folded into the
// accumulated result with a Blend task using the (possibly state-adjusted)
// frame's weight and mask.
type LayerBlendNode struct {
	base

	Base                     Ref
	Layers                   []Layer
	OnlySampleBaseRootMotion bool

	result PoseResult
}

// NewLayerBlendNode creates a layer blend over base with layers applied in
// order. Zero Refs in optional layer fields read as unset, and a layer with
// neither a WeightNode nor a fixed Weight defaults to full weight (see
// Layer.Weight for how to author an intentionally silent layer).
func NewLayerBlendNode(ref Ref, baseRef Ref, layers []Layer) *LayerBlendNode {
	normalized := make([]Layer, len(layers))
	for i, l := range layers {
		l.WeightNode = orInvalid(l.WeightNode)
		l.MaskNode = orInvalid(l.MaskNode)
		if l.WeightNode == InvalidRef && l.Weight == 0 {
			l.Weight = 1
		}
		normalized[i] = l
	}
	return &LayerBlendNode{base: base{ref: ref}, Base: baseRef, Layers: normalized}
}

func (n *LayerBlendNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	if b := ctx.Instance.PoseNodeAt(n.Base); b != nil {
		b.Initialize(ctx, initialSyncTime)
	}
	for _, l := range n.Layers {
		if in := ctx.Instance.PoseNodeAt(l.Input); in != nil {
			in.Initialize(ctx, initialSyncTime)
		}
	}
}

func (n *LayerBlendNode) Shutdown(ctx *Context) {
	for i := len(n.Layers) - 1; i >= 0; i-- {
		if in := ctx.Instance.PoseNodeAt(n.Layers[i].Input); in != nil {
			in.Shutdown(ctx)
		}
	}
	if b := ctx.Instance.PoseNodeAt(n.Base); b != nil {
		b.Shutdown(ctx)
	}
}

// SyncTrack returns an empty track; the base input's track is not forwarded
// through this node.
func (n *LayerBlendNode) SyncTrack() clip.SyncTrack {
	return clip.SyncTrack{}
}

func (n *LayerBlendNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if n.beganFrame(ctx.FrameStamp()) {
		return n.result
	}

	baseNode := ctx.Instance.PoseNodeAt(n.Base)
	if baseNode == nil {
		n.result = PoseResult{TaskIndex: NoTask}
		return n.result
	}

	start := ctx.Events.Mark()
	accumulated := baseNode.Update(ctx, syncRange)
	rootMotion := accumulated.RootMotionDelta

	for _, l := range n.Layers {
		input := ctx.Instance.PoseNodeAt(l.Input)
		if input == nil {
			continue
		}

		weight := l.Weight
		if l.WeightNode != InvalidRef {
			weight = common.Clamp01(ctx.Instance.EvalFloatOr(ctx, l.WeightNode, weight))
		}
		var layerMask *mask.BoneMask
		if l.MaskNode != InvalidRef {
			if mn := ctx.Instance.MaskValueNodeAt(l.MaskNode); mn != nil {
				m, slot, pooled := mn.GetValueMask(ctx)
				layerMask = m
				if pooled {
					ctx.DeferMaskRelease(slot)
				}
			}
		}

		// The layer runs under its own context frame; a state-machine layer's
		// active state may rewrite the frame's weight/mask before we read it back
		// for the fold.
		ctx.Layers.push(LayerContext{Weight: weight, Mask: layerMask})

		layerMark := ctx.Events.Mark()
		var layerSync *SyncRange
		if l.IsSynchronized {
			layerSync = syncRange
		}
		layerResult := input.Update(ctx, layerSync)

		frame := ctx.Layers.Top()
		ctx.Layers.pop()
		weight, layerMask = frame.Weight, frame.Mask

		if l.IgnoreEvents {
			ctx.Events.MarkEventsAsFromInactiveBranch(ctx.Events.Since(layerMark))
		}

		if layerResult.TaskIndex == NoTask {
			continue
		}
		if accumulated.TaskIndex == NoTask {
			accumulated = layerResult
			continue
		}
		accumulated.TaskIndex = ctx.Tasks.RegisterBlend(
			int(n.ref), accumulated.TaskIndex, layerResult.TaskIndex, l.BlendMode, weight, layerMask)

		if !n.OnlySampleBaseRootMotion {
			rootMotion = common.Vec3Lerp(rootMotion, layerResult.RootMotionDelta, weight)
		}
	}

	n.result = PoseResult{
		TaskIndex:       accumulated.TaskIndex,
		Events:          ctx.Events.Since(start),
		RootMotionDelta: rootMotion,
	}
	return n.result
}
