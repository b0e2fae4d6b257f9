// Package graph implements the runtime node-graph evaluation core: a flat,
// index-based array of node instances producing poses, values, or IK
// targets. All parent/child relationships are Ref indices into the owning
// instance's node array; there are no back-pointers.
package graph

import (
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/event"
	"github.com/oxyanim/animgraph/mask"
)

// Ref is an index into a GraphInstance's node array. InvalidRef marks an
// unset/optional child reference.
type Ref uint16

// InvalidRef is the sentinel for "no node".
const InvalidRef Ref = 0xFFFF

// PoseResult is what a pose-producing node's Update returns.
type PoseResult struct {
	TaskIndex       int
	Events          event.Range
	RootMotionDelta [3]float32
}

// NoTask is the sentinel "no task registered" result, returned by nodes
// whose definition-error path skips registering any effect.
const NoTask = -1

// Node is the minimal contract every node variant satisfies:
// allocate/release per-instance state, cascading to children.
type Node interface {
	Ref() Ref
	Initialize(ctx *Context, initialSyncTime SyncTime)
	Shutdown(ctx *Context)
}

// PoseNode is satisfied by nodes whose value kind is pose-producing
// (states, transitions, layers, IK nodes, samples). Update is called at
// most once per frame; SyncTrack exposes the node's named sync events for
// synchronized blends.
type PoseNode interface {
	Node
	Update(ctx *Context, syncRange *SyncRange) PoseResult
	SyncTrack() clip.SyncTrack
}

// BoolValueNode is satisfied by boolean-valued nodes (constants, control
// parameters, transition conditions).
type BoolValueNode interface {
	Node
	GetValueBool(ctx *Context) bool
}

// FloatValueNode is satisfied by float-valued nodes (constants, control
// parameters, layer/state weight sources, transition duration overrides).
type FloatValueNode interface {
	Node
	GetValueFloat(ctx *Context) float32
}

// TargetValueNode is satisfied by IK target-producing nodes.
type TargetValueNode interface {
	Node
	GetValueTarget(ctx *Context) Target
}

// MaskValueNode is satisfied by bone-mask-producing nodes. The returned
// pool slot (if pooled is true) is owned by the caller, matching the
// ownership contract of mask.TaskList.Evaluate.
type MaskValueNode interface {
	Node
	GetValueMask(ctx *Context) (m *mask.BoneMask, poolSlot int, pooled bool)
}

// SyncTime is a normalized position expressed relative to a sync track.
type SyncTime struct {
	EventIndex        int
	PercentageThrough float32
}

// SyncRange optionally constrains a synchronized child's update to a
// specific sync-event span, used by synchronized transitions and layers.
type SyncRange struct {
	Start, End SyncTime
}

// base is embedded by every concrete node type. It implements the "updated
// this frame" / "cached result" caching every node relies on, plus the
// shared Ref() accessor.
type base struct {
	ref        Ref
	frameStamp uint64
	updated    bool
}

func (b *base) Ref() Ref { return b.ref }

// beganFrame reports whether this node has already run its update logic
// this frame (frame identified by stamp), marking it updated as a side
// effect if not.
func (b *base) beganFrame(stamp uint64) bool {
	if b.updated && b.frameStamp == stamp {
		return true
	}
	b.frameStamp = stamp
	b.updated = true
	return false
}
