package graph

import (
	"github.com/oxyanim/animgraph/diag"
	"github.com/oxyanim/animgraph/event"
	"github.com/oxyanim/animgraph/mask"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/oxyanim/animgraph/task"
)

// LayerContext is a stack frame carrying the weight and optional bone mask
// that modifies how subsequent layers blend into an accumulator.
type LayerContext struct {
	Weight float32
	Mask   *mask.BoneMask
}

// layerStack is the per-instance stack of active LayerContext frames,
// pushed by LayerBlendNode.Update before updating each layer and popped
// immediately after.
type layerStack struct {
	frames []LayerContext
}

func (s *layerStack) push(lc LayerContext) { s.frames = append(s.frames, lc) }
func (s *layerStack) pop()                 { s.frames = s.frames[:len(s.frames)-1] }

// setTop replaces the innermost frame in place, used by a StateNode that
// overrides the ambient layer weight/mask. A no-op against the base layer
// (empty stack), which has no frame to overwrite.
func (s *layerStack) setTop(lc LayerContext) {
	if len(s.frames) == 0 {
		return
	}
	s.frames[len(s.frames)-1] = lc
}

// Top returns the innermost active layer context, or the identity context
// (weight 1, no mask) if the stack is empty.
func (s *layerStack) Top() LayerContext {
	if len(s.frames) == 0 {
		return LayerContext{Weight: 1}
	}
	return s.frames[len(s.frames)-1]
}

// Context is the per-frame evaluation context threaded through every node's
// Initialize/Shutdown/Update call: the task-execution host's world
// transform, the shared resource pools, and a per-instance tracing handle.
type Context struct {
	DeltaTime float32

	// WorldTransform and WorldTransformInverse let IK nodes convert a
	// world-space target into model space.
	WorldTransform        pose.Transform
	WorldTransformInverse pose.Transform

	Skeleton  *skeleton.Skeleton
	Tasks     *task.System
	Poses     *pose.Pool
	Masks     *mask.Pool
	CacheKeys *pose.CachedPoseKeyPool
	Events    *event.Buffer

	Layers *layerStack

	Trace *diag.Trace

	// frameStamp increments once per GraphInstance.Update call and backs every
	// node's "updated this frame" cache.
	frameStamp uint64

	// ControlParameters are named external inputs sampled once per frame by
	// ControlParamFloat/ControlParamBool value nodes.
	ControlParameters *ControlParameters

	// deferredMaskSlots are pooled mask slots whose contents are still
	// referenced by registered blend tasks; they are released only after task
	// execution completes for the frame.
	deferredMaskSlots []int

	// Instance is the owning GraphInstance, giving nodes access to their
	// children by Ref.
	Instance *GraphInstance
}

// FrameStamp returns the context's current frame identifier, used by node
// base caches to detect "already updated this frame".
func (c *Context) FrameStamp() uint64 { return c.frameStamp }

// DeferMaskRelease schedules a pooled mask slot for release after the task
// system has executed, keeping the mask's contents stable for any blend
// task that captured it during update.
func (c *Context) DeferMaskRelease(slot int) {
	c.deferredMaskSlots = append(c.deferredMaskSlots, slot)
}

// ControlParameters holds the external, gameplay-driven inputs a compiled
// graph reads each frame. Populated by the task-execution host (package
// character) before calling GraphInstance.Update.
type ControlParameters struct {
	Floats map[string]float32
	Bools  map[string]bool
}

// NewControlParameters creates an empty parameter set.
func NewControlParameters() *ControlParameters {
	return &ControlParameters{Floats: make(map[string]float32), Bools: make(map[string]bool)}
}

// Float returns the named float parameter, or 0 if unset.
func (p *ControlParameters) Float(name string) float32 { return p.Floats[name] }

// Bool returns the named bool parameter, or false if unset.
func (p *ControlParameters) Bool(name string) bool { return p.Bools[name] }
