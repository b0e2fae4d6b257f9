package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/mask"
	"github.com/oxyanim/animgraph/task"
)

// ResourceID identifies a shared read-only resource (skeleton, clip, rig,
// bone-mask definition) bound to a data slot.
type ResourceID = uuid.UUID

// DataSlots maps slot indices to the resources a compiled graph references.
// Slots are shared read-only across every instance of the same definition.
type DataSlots struct {
	clips    map[int]*clip.Clip
	rigs     map[int]*task.Rig
	ids      map[int]ResourceID
	clipSlot map[*clip.Clip]int
	rigSlot  map[*task.Rig]int
}

// NewDataSlots creates an empty slot table.
func NewDataSlots() *DataSlots {
	return &DataSlots{
		clips:    make(map[int]*clip.Clip),
		rigs:     make(map[int]*task.Rig),
		ids:      make(map[int]ResourceID),
		clipSlot: make(map[*clip.Clip]int),
		rigSlot:  make(map[*task.Rig]int),
	}
}

// BindClip binds c to slot under id, returning the slot index.
func (d *DataSlots) BindClip(slot int, id ResourceID, c *clip.Clip) int {
	d.clips[slot] = c
	d.ids[slot] = id
	d.clipSlot[c] = slot
	return slot
}

// BindRig binds r to slot under id, returning the slot index.
func (d *DataSlots) BindRig(slot int, id ResourceID, r *task.Rig) int {
	d.rigs[slot] = r
	d.ids[slot] = id
	d.rigSlot[r] = slot
	return slot
}

// Clip resolves the clip bound at slot, nil if the slot is unbound.
func (d *DataSlots) Clip(slot int) *clip.Clip { return d.clips[slot] }

// Rig resolves the rig bound at slot, nil if the slot is unbound.
func (d *DataSlots) Rig(slot int) *task.Rig { return d.rigs[slot] }

// ID returns the resource identifier bound at slot.
func (d *DataSlots) ID(slot int) ResourceID { return d.ids[slot] }

// ClipSlot returns the slot a clip was bound at, -1 if never bound. Used
// when encoding a task stream for replication.
func (d *DataSlots) ClipSlot(c *clip.Clip) int {
	if s, ok := d.clipSlot[c]; ok {
		return s
	}
	return -1
}

// RigSlot returns the slot a rig was bound at, -1 if never bound.
func (d *DataSlots) RigSlot(r *task.Rig) int {
	if s, ok := d.rigSlot[r]; ok {
		return s
	}
	return -1
}

var _ task.Resources = (*DataSlots)(nil)

// NodeDef is one record in a Definition's flat node array. Instantiate
// builds a fresh mutable node for one GraphInstance; the definition itself
// stays immutable and shared.
type NodeDef interface {
	Instantiate(ref Ref) Node
}

// Definition is a compiled graph: a flat array of node definitions, a
// data-slot table, and the root node to evaluate each frame. Instances are
// created with New; the definition is never mutated afterward.
type Definition struct {
	Root  Ref
	Slots *DataSlots
	defs  []NodeDef
}

func (d *Definition) instantiate() []Node {
	nodes := make([]Node, len(d.defs))
	for i, nd := range d.defs {
		nodes[i] = nd.Instantiate(Ref(i))
	}
	return nodes
}

// Builder assembles a Definition one node at a time. Add returns the Ref
// later defs use to reference the node as a child.
type Builder struct {
	defs  []NodeDef
	slots *DataSlots
}

// NewBuilder creates an empty definition builder.
func NewBuilder() *Builder {
	return &Builder{slots: NewDataSlots()}
}

// Slots exposes the builder's data-slot table for resource binding.
func (b *Builder) Slots() *DataSlots { return b.slots }

// Add appends def and returns its Ref.
func (b *Builder) Add(def NodeDef) Ref {
	if len(b.defs) >= int(InvalidRef) {
		panic("graph: definition exceeds maximum node count")
	}
	b.defs = append(b.defs, def)
	return Ref(len(b.defs) - 1)
}

// Build finalizes the definition with root as the evaluation entry point.
// Panics on a dangling root, the one structural error that cannot be
// recovered from at runtime.
func (b *Builder) Build(root Ref) *Definition {
	if int(root) >= len(b.defs) {
		panic(fmt.Sprintf("graph: root ref %d out of range (%d nodes)", root, len(b.defs)))
	}
	return &Definition{Root: root, Slots: b.slots, defs: b.defs}
}

// SampleDef compiles to a SampleNode over Clip.
type SampleDef struct {
	Clip *clip.Clip
}

func (d SampleDef) Instantiate(ref Ref) Node { return NewSampleNode(ref, d.Clip) }

// StateDef compiles to a StateNode.
type StateDef struct {
	Child           Ref
	EntryEventID    string
	ExecuteEventID  string
	ExitEventID     string
	TimedEvents     []TimedEvent
	LayerWeightNode Ref
	LayerMaskNode   Ref
	IsOffState      bool
}

func (d StateDef) Instantiate(ref Ref) Node {
	s := NewStateNode(ref, d.Child)
	s.EntryEventID = d.EntryEventID
	s.ExecuteEventID = d.ExecuteEventID
	s.ExitEventID = d.ExitEventID
	s.TimedEvents = d.TimedEvents
	s.LayerWeightNode = orInvalid(d.LayerWeightNode)
	s.LayerMaskNode = orInvalid(d.LayerMaskNode)
	s.IsOffState = d.IsOffState
	return s
}

// orInvalid maps the zero Ref to InvalidRef so optional fields left unset
// in a def literal read as "no node". Node 0 therefore cannot be the target
// of an optional reference; builders add real content after at least one
// placeholder when that matters.
func orInvalid(r Ref) Ref {
	if r == 0 {
		return InvalidRef
	}
	return r
}

// StateMachineDef compiles to a StateMachineNode.
type StateMachineDef struct {
	States          []Ref
	EntryConditions []Ref
	Transitions     [][]TransitionRule
	DefaultState    int
}

func (d StateMachineDef) Instantiate(ref Ref) Node {
	entry := d.EntryConditions
	if entry == nil {
		entry = make([]Ref, len(d.States))
		for i := range entry {
			entry[i] = InvalidRef
		}
	}
	transitions := d.Transitions
	if transitions == nil {
		transitions = make([][]TransitionRule, len(d.States))
	}
	return NewStateMachineNode(ref, d.States, entry, transitions, d.DefaultState)
}

// TransitionDef compiles to a TransitionNode.
type TransitionDef struct {
	Duration                float32
	DurationNode            Ref
	Easing                  Easing
	RootMotion              RootMotionMode
	Synchronized            bool
	ClampDuration           bool
	KeepSyncEventIndex      bool
	KeepSyncEventPercentage bool
	ForcedTransitionAllowed bool
	PivotBoneName           string
}

func (d TransitionDef) Instantiate(ref Ref) Node {
	t := NewTransitionNode(ref, d.Duration)
	if d.DurationNode != 0 {
		t.DurationNode = d.DurationNode
	}
	t.Easing = d.Easing
	t.RootMotion = d.RootMotion
	t.Synchronized = d.Synchronized
	t.ClampDuration = d.ClampDuration
	t.KeepSyncEventIndex = d.KeepSyncEventIndex
	t.KeepSyncEventPercentage = d.KeepSyncEventPercentage
	t.ForcedTransitionAllowed = d.ForcedTransitionAllowed
	t.PivotBoneName = d.PivotBoneName
	return t
}

// LayerBlendDef compiles to a LayerBlendNode.
type LayerBlendDef struct {
	Base                     Ref
	Layers                   []Layer
	OnlySampleBaseRootMotion bool
}

func (d LayerBlendDef) Instantiate(ref Ref) Node {
	n := NewLayerBlendNode(ref, d.Base, d.Layers)
	n.OnlySampleBaseRootMotion = d.OnlySampleBaseRootMotion
	return n
}

// TwoBoneIKDef compiles to a TwoBoneIKNode.
type TwoBoneIKDef struct {
	Child              Ref
	TargetNode         Ref
	EffectorBoneName   string
	TargetInWorldSpace bool
	AllowedStretch     float32
}

func (d TwoBoneIKDef) Instantiate(ref Ref) Node {
	return &TwoBoneIKNode{
		base:               base{ref: ref},
		Child:              d.Child,
		TargetNode:         d.TargetNode,
		EffectorBoneName:   d.EffectorBoneName,
		TargetInWorldSpace: d.TargetInWorldSpace,
		AllowedStretch:     d.AllowedStretch,
	}
}

// ChainSolverDef compiles to a ChainSolverNode.
type ChainSolverDef struct {
	Child            Ref
	TargetNode       Ref
	EffectorBoneName string
	ChainLength      int
	PivotIndex       int
	Stiffness        float32
	AllowedStretch   float32
}

func (d ChainSolverDef) Instantiate(ref Ref) Node {
	return &ChainSolverNode{
		base:             base{ref: ref},
		Child:            d.Child,
		TargetNode:       d.TargetNode,
		EffectorBoneName: d.EffectorBoneName,
		ChainLength:      d.ChainLength,
		PivotIndex:       d.PivotIndex,
		Stiffness:        d.Stiffness,
		AllowedStretch:   d.AllowedStretch,
	}
}

// IKRigDef compiles to an IKRigNode with up to 6 target inputs.
type IKRigDef struct {
	Child       Ref
	Rig         *task.Rig
	TargetNodes []Ref
}

func (d IKRigDef) Instantiate(ref Ref) Node {
	targets := d.TargetNodes
	if len(targets) > maxRigTargets {
		targets = targets[:maxRigTargets]
	}
	return &IKRigNode{base: base{ref: ref}, Child: d.Child, Rig: d.Rig, TargetNodes: targets}
}

// AimIKDef compiles to an AimIKNode.
type AimIKDef struct {
	Child        Ref
	TargetNode   Ref
	AimBoneName  string
	ForwardAxis  [3]float32
	ConeLimitRad float32
}

func (d AimIKDef) Instantiate(ref Ref) Node {
	return &AimIKNode{
		base:         base{ref: ref},
		Child:        d.Child,
		TargetNode:   d.TargetNode,
		AimBoneName:  d.AimBoneName,
		ForwardAxis:  d.ForwardAxis,
		ConeLimitRad: d.ConeLimitRad,
	}
}

// ConstFloatDef compiles to a ConstFloatNode.
type ConstFloatDef struct{ Value float32 }

func (d ConstFloatDef) Instantiate(ref Ref) Node { return NewConstFloatNode(ref, d.Value) }

// ConstBoolDef compiles to a ConstBoolNode.
type ConstBoolDef struct{ Value bool }

func (d ConstBoolDef) Instantiate(ref Ref) Node { return NewConstBoolNode(ref, d.Value) }

// ControlParamFloatDef compiles to a ControlParamFloatNode.
type ControlParamFloatDef struct{ Name string }

func (d ControlParamFloatDef) Instantiate(ref Ref) Node {
	return NewControlParamFloatNode(ref, d.Name)
}

// ControlParamBoolDef compiles to a ControlParamBoolNode.
type ControlParamBoolDef struct{ Name string }

func (d ControlParamBoolDef) Instantiate(ref Ref) Node {
	return NewControlParamBoolNode(ref, d.Name)
}

// StateCompletedDef compiles to a StateCompletedNode.
type StateCompletedDef struct {
	SourceState        Ref
	TransitionDuration float32
	DurationNode       Ref
}

func (d StateCompletedDef) Instantiate(ref Ref) Node {
	n := NewStateCompletedNode(ref, d.SourceState, d.TransitionDuration)
	if d.DurationNode != 0 {
		n.DurationNode = d.DurationNode
	}
	return n
}

// TimeConditionDef compiles to a TimeConditionNode.
type TimeConditionDef struct {
	SourceState   Ref
	Metric        TimeMetric
	Op            CompareOp
	Comparand     float32
	ComparandNode Ref
}

func (d TimeConditionDef) Instantiate(ref Ref) Node {
	n := NewTimeConditionNode(ref, d.SourceState, d.Metric, d.Op, d.Comparand)
	if d.ComparandNode != 0 {
		n.ComparandNode = d.ComparandNode
	}
	return n
}

// BoneTargetDef compiles to a BoneTargetNode.
type BoneTargetDef struct {
	BoneName          string
	OffsetRotation    [4]float32
	OffsetTranslation [3]float32
	OffsetIsWorld     bool
}

func (d BoneTargetDef) Instantiate(ref Ref) Node {
	rot := d.OffsetRotation
	if rot == ([4]float32{}) {
		rot = [4]float32{0, 0, 0, 1}
	}
	return NewBoneTargetNode(ref, d.BoneName, rot, d.OffsetTranslation, d.OffsetIsWorld)
}

// AbsoluteTargetDef compiles to an AbsoluteTargetNode.
type AbsoluteTargetDef struct{ Value Target }

func (d AbsoluteTargetDef) Instantiate(ref Ref) Node { return NewAbsoluteTargetNode(ref, d.Value) }

// ConstMaskDef compiles to a ConstMaskNode over a prebuilt mask.
type ConstMaskDef struct{ Mask *mask.BoneMask }

func (d ConstMaskDef) Instantiate(ref Ref) Node { return NewConstMaskNode(ref, d.Mask) }

// TaskListMaskDef compiles to a TaskListMaskNode over a prebuilt list.
type TaskListMaskDef struct{ List *mask.TaskList }

func (d TaskListMaskDef) Instantiate(ref Ref) Node { return NewTaskListMaskNode(ref, d.List) }
