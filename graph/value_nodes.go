package graph

import "github.com/oxyanim/animgraph/pose"

// ConstFloatNode is a literal float value node.
type ConstFloatNode struct {
	base
	Value float32
}

// NewConstFloatNode creates a constant float value node at ref.
func NewConstFloatNode(ref Ref, value float32) *ConstFloatNode {
	return &ConstFloatNode{base: base{ref: ref}, Value: value}
}

func (n *ConstFloatNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *ConstFloatNode) Shutdown(ctx *Context)                            {}
func (n *ConstFloatNode) GetValueFloat(ctx *Context) float32              { return n.Value }

// ConstBoolNode is a literal bool value node.
type ConstBoolNode struct {
	base
	Value bool
}

// NewConstBoolNode creates a constant bool value node at ref.
func NewConstBoolNode(ref Ref, value bool) *ConstBoolNode {
	return &ConstBoolNode{base: base{ref: ref}, Value: value}
}

func (n *ConstBoolNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *ConstBoolNode) Shutdown(ctx *Context)                            {}
func (n *ConstBoolNode) GetValueBool(ctx *Context) bool                  { return n.Value }

// ControlParamFloatNode reads a named external float input each frame.
type ControlParamFloatNode struct {
	base
	Name string
}

// NewControlParamFloatNode creates a float control-parameter node.
func NewControlParamFloatNode(ref Ref, name string) *ControlParamFloatNode {
	return &ControlParamFloatNode{base: base{ref: ref}, Name: name}
}

func (n *ControlParamFloatNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *ControlParamFloatNode) Shutdown(ctx *Context)                            {}
func (n *ControlParamFloatNode) GetValueFloat(ctx *Context) float32 {
	if ctx.ControlParameters == nil {
		return 0
	}
	return ctx.ControlParameters.Float(n.Name)
}

// ControlParamBoolNode reads a named external bool input each frame.
type ControlParamBoolNode struct {
	base
	Name string
}

// NewControlParamBoolNode creates a bool control-parameter node.
func NewControlParamBoolNode(ref Ref, name string) *ControlParamBoolNode {
	return &ControlParamBoolNode{base: base{ref: ref}, Name: name}
}

func (n *ControlParamBoolNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *ControlParamBoolNode) Shutdown(ctx *Context)                            {}
func (n *ControlParamBoolNode) GetValueBool(ctx *Context) bool {
	if ctx.ControlParameters == nil {
		return false
	}
	return ctx.ControlParameters.Bool(n.Name)
}

// BoneTargetNode resolves a bone-relative Target each frame.
type BoneTargetNode struct {
	base
	BoneName          string
	OffsetRotation    [4]float32
	OffsetTranslation [3]float32
	OffsetIsWorld     bool
}

// NewBoneTargetNode creates a bone-relative target node.
func NewBoneTargetNode(ref Ref, boneName string, offsetRotation [4]float32, offsetTranslation [3]float32, offsetIsWorld bool) *BoneTargetNode {
	return &BoneTargetNode{base: base{ref: ref}, BoneName: boneName, OffsetRotation: offsetRotation, OffsetTranslation: offsetTranslation, OffsetIsWorld: offsetIsWorld}
}

func (n *BoneTargetNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *BoneTargetNode) Shutdown(ctx *Context)                            {}
func (n *BoneTargetNode) GetValueTarget(ctx *Context) Target {
	return FromBone(n.BoneName, n.OffsetRotation, n.OffsetTranslation, n.OffsetIsWorld)
}

// AbsoluteTargetNode wraps a fixed/externally-driven absolute transform
// target, refreshed from a control parameter-style source by the host if
// needed; most graphs set Value once at construction for a static target.
type AbsoluteTargetNode struct {
	base
	Value Target
}

// NewAbsoluteTargetNode creates an absolute target node.
func NewAbsoluteTargetNode(ref Ref, value Target) *AbsoluteTargetNode {
	return &AbsoluteTargetNode{base: base{ref: ref}, Value: value}
}

func (n *AbsoluteTargetNode) Initialize(ctx *Context, initialSyncTime SyncTime) {}
func (n *AbsoluteTargetNode) Shutdown(ctx *Context)                            {}
func (n *AbsoluteTargetNode) GetValueTarget(ctx *Context) Target               { return n.Value }

// SetAbsolute lets a host update the target transform in place between
// frames (e.g. tracking a moving gameplay prop).
func (n *AbsoluteTargetNode) SetAbsolute(t pose.Transform) {
	n.Value = FromAbsolute(t)
}
