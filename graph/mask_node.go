package graph

import "github.com/oxyanim/animgraph/mask"

// ConstMaskNode yields a fixed, skeleton-owned precomputed mask. Since the
// mask is borrowed directly from the skeleton's registered collection, no
// pool slot is consumed.
type ConstMaskNode struct {
	base
	m *mask.BoneMask
}

// NewConstMaskNode wraps an already-built mask, typically constructed once
// at graph-definition time via mask.Definition/mask.Constant/mask.PerBone.
func NewConstMaskNode(ref Ref, m *mask.BoneMask) *ConstMaskNode {
	return &ConstMaskNode{base: base{ref: ref}, m: m}
}

func (n *ConstMaskNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *ConstMaskNode) Shutdown(ctx *Context)                            {}
func (n *ConstMaskNode) GetValueMask(ctx *Context) (*mask.BoneMask, int, bool) {
	return n.m, 0, false
}

// TaskListMaskNode evaluates a mask.TaskList against the instance's mask
// pool each frame it is asked for a value. The caller is responsible for
// releasing the returned pool slot, per the TaskList.Evaluate contract.
type TaskListMaskNode struct {
	base
	List *mask.TaskList
}

// NewTaskListMaskNode wraps a pre-built mask.TaskList.
func NewTaskListMaskNode(ref Ref, list *mask.TaskList) *TaskListMaskNode {
	return &TaskListMaskNode{base: base{ref: ref}, List: list}
}

func (n *TaskListMaskNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *TaskListMaskNode) Shutdown(ctx *Context)                            {}
func (n *TaskListMaskNode) GetValueMask(ctx *Context) (*mask.BoneMask, int, bool) {
	m, slot, pooled := n.List.Evaluate(ctx.Masks)
	return m, slot, pooled
}
