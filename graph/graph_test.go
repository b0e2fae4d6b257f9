package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/event"
	"github.com/oxyanim/animgraph/graph"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
)

func chainSkeleton(t *testing.T, n int) *skeleton.Skeleton {
	t.Helper()
	bones := make([]skeleton.Bone, n)
	for i := range bones {
		parent := int32(i - 1)
		if i == 0 {
			parent = skeleton.InvalidBoneIndex
		}
		bones[i] = skeleton.Bone{Name: string(rune('a' + i)), ParentIndex: parent}
	}
	return skeleton.New(bones)
}

// constantClip returns a clip holding one static pose for its whole
// duration, with translation on bone 1 (when present) set to x.
func constantClip(t *testing.T, skel *skeleton.Skeleton, duration, x float32) *clip.Clip {
	t.Helper()
	frame := make([]pose.Transform, skel.BoneCount())
	for i := range frame {
		frame[i] = pose.Identity()
	}
	if len(frame) > 1 {
		frame[1].Translation = [3]float32{x, 0, 0}
	}
	return clip.New(skel, duration, clip.SyncTrack{}, []float32{0}, [][]pose.Transform{frame})
}

func countEvents(events []event.SampledEvent, kind event.Kind, payload string) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind && e.Payload == payload {
			n++
		}
	}
	return n
}

// twoStateMachine compiles: state A (default) --[param "go", 0.5s]--> state B.
func twoStateMachine(t *testing.T, skel *skeleton.Skeleton, forced bool) *graph.Definition {
	t.Helper()
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})

	aSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.1)})
	bSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.9)})

	aState := b.Add(graph.StateDef{
		Child:          aSample,
		EntryEventID:   "a_enter",
		ExecuteEventID: "a_exec",
		ExitEventID:    "a_exit",
	})
	bState := b.Add(graph.StateDef{
		Child:          bSample,
		EntryEventID:   "b_enter",
		ExecuteEventID: "b_exec",
		ExitEventID:    "b_exit",
	})

	goParam := b.Add(graph.ControlParamBoolDef{Name: "go"})
	backParam := b.Add(graph.ControlParamBoolDef{Name: "back"})
	toB := b.Add(graph.TransitionDef{Duration: 0.5, ForcedTransitionAllowed: forced})
	toA := b.Add(graph.TransitionDef{Duration: 0.5})

	machine := b.Add(graph.StateMachineDef{
		States: []graph.Ref{aState, bState},
		Transitions: [][]graph.TransitionRule{
			{{TargetState: 1, Condition: goParam, Transition: toB}},
			{{TargetState: 0, Condition: backParam, Transition: toA, CanBeForced: true}},
		},
	})
	return b.Build(machine)
}

func runFrames(gi *graph.GraphInstance, params *graph.ControlParameters, frames int, dt float32) []event.SampledEvent {
	var all []event.SampledEvent
	for i := 0; i < frames; i++ {
		out := gi.Update(dt, pose.Identity(), params)
		all = append(all, out.Events...)
	}
	return all
}

func TestSingleStateMachineStaysPut(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})
	sample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.5)})
	state := b.Add(graph.StateDef{Child: sample, ExecuteEventID: "only"})
	machine := b.Add(graph.StateMachineDef{States: []graph.Ref{state}})
	def := b.Build(machine)

	gi := graph.New(def, skel)
	params := graph.NewControlParameters()
	events := runFrames(gi, params, 120, 1.0/60)

	require.Equal(t, 120, countEvents(events, event.KindStateExecute, "only"))
	out := gi.LastOutput()
	require.NotNil(t, out.Pose)
	require.InDelta(t, 0.5, out.Pose.Local(1).Translation[0], 1e-5)
}

func TestStateEntryExitParityAcrossTransition(t *testing.T) {
	skel := chainSkeleton(t, 2)
	def := twoStateMachine(t, skel, false)
	gi := graph.New(def, skel)
	params := graph.NewControlParameters()

	dt := float32(1.0 / 60)
	var all []event.SampledEvent

	// 0.25s in state A, then trigger the 0.5s transition and run out the
	// rest of the second.
	all = append(all, runFrames(gi, params, 15, dt)...)
	params.Bools["go"] = true
	all = append(all, runFrames(gi, params, 45, dt)...)

	require.Equal(t, 1, countEvents(all, event.KindStateEntry, "a_enter"))
	require.Equal(t, 1, countEvents(all, event.KindStateExit, "a_exit"))
	require.Equal(t, 1, countEvents(all, event.KindStateEntry, "b_enter"))
	require.Equal(t, 0, countEvents(all, event.KindStateExit, "b_exit"))
	require.Greater(t, countEvents(all, event.KindStateExecute, "b_exec"), 0)
}

func TestTransitionMarksSourceStateEventsIgnored(t *testing.T) {
	skel := chainSkeleton(t, 2)
	def := twoStateMachine(t, skel, false)
	gi := graph.New(def, skel)
	params := graph.NewControlParameters()
	params.Bools["go"] = true

	out := gi.Update(1.0/60, pose.Identity(), params)

	sawIgnoredSource := false
	sawLiveTarget := false
	for _, e := range out.Events {
		if e.Payload == "a_exec" && e.IsIgnored {
			sawIgnoredSource = true
		}
		if e.Payload == "b_exec" && !e.IsIgnored {
			sawLiveTarget = true
		}
	}
	require.True(t, sawIgnoredSource)
	require.True(t, sawLiveTarget)
}

func TestForcedTransitionReentersSource(t *testing.T) {
	skel := chainSkeleton(t, 2)
	def := twoStateMachine(t, skel, true)
	gi := graph.New(def, skel)
	params := graph.NewControlParameters()

	dt := float32(1.0 / 60)
	var all []event.SampledEvent

	all = append(all, runFrames(gi, params, 5, dt)...)
	params.Bools["go"] = true
	// Interrupt the A->B blend halfway through with the forced B->A rule.
	all = append(all, runFrames(gi, params, 15, dt)...)
	params.Bools["go"] = false
	params.Bools["back"] = true
	all = append(all, runFrames(gi, params, 45, dt)...)

	require.Equal(t, 2, countEvents(all, event.KindStateEntry, "a_enter"))
	require.Equal(t, 1, countEvents(all, event.KindStateExit, "a_exit"))
	require.Equal(t, 1, countEvents(all, event.KindStateEntry, "b_enter"))
	require.Equal(t, 1, countEvents(all, event.KindStateExit, "b_exit"))

	out := gi.LastOutput()
	require.NotNil(t, out.Pose)
	// Settled back in A.
	require.InDelta(t, 0.1, out.Pose.Local(1).Translation[0], 1e-3)
}

func TestLayerWeightZeroLeavesBaseUntouched(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})

	baseSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.25)})
	waveSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.75)})
	zero := b.Add(graph.ConstFloatDef{Value: 0})
	layered := b.Add(graph.LayerBlendDef{
		Base: baseSample,
		Layers: []graph.Layer{
			{Input: waveSample, WeightNode: zero},
		},
	})
	def := b.Build(layered)

	gi := graph.New(def, skel)
	out := gi.Update(1.0/60, pose.Identity(), graph.NewControlParameters())
	require.InDelta(t, 0.25, out.Pose.Local(1).Translation[0], 1e-6)
}

func TestLayerBlendHonorsWeight(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})

	baseSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.0)})
	waveSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 1.0)})
	half := b.Add(graph.ConstFloatDef{Value: 0.5})
	layered := b.Add(graph.LayerBlendDef{
		Base: baseSample,
		Layers: []graph.Layer{
			{Input: waveSample, WeightNode: half},
		},
	})
	def := b.Build(layered)

	gi := graph.New(def, skel)
	out := gi.Update(1.0/60, pose.Identity(), graph.NewControlParameters())
	require.InDelta(t, 0.5, out.Pose.Local(1).Translation[0], 1e-5)
}

func TestSharedSubtreeUpdatesOncePerFrame(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})

	sample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.5)})
	shared := b.Add(graph.StateDef{Child: sample, ExecuteEventID: "shared"})
	half := b.Add(graph.ConstFloatDef{Value: 0.5})
	layered := b.Add(graph.LayerBlendDef{
		Base: shared,
		Layers: []graph.Layer{
			{Input: shared, WeightNode: half},
		},
	})
	def := b.Build(layered)

	gi := graph.New(def, skel)
	out := gi.Update(1.0/60, pose.Identity(), graph.NewControlParameters())
	// The state feeds both the base and the layer, but its update (and
	// event emission) happens exactly once.
	require.Equal(t, 1, countEvents(out.Events, event.KindStateExecute, "shared"))
}

func TestTwoBoneIKNodeReachesTarget(t *testing.T) {
	skel := chainSkeleton(t, 3)

	// Straight chain along +X: joints at 0, 1, 2.
	frame := []pose.Transform{pose.Identity(), pose.Identity(), pose.Identity()}
	frame[1].Translation = [3]float32{1, 0, 0}
	frame[2].Translation = [3]float32{1, 0, 0}
	c := clip.New(skel, 1.0, clip.SyncTrack{}, []float32{0}, [][]pose.Transform{frame})

	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})
	sample := b.Add(graph.SampleDef{Clip: c})
	target := b.Add(graph.AbsoluteTargetDef{
		Value: graph.FromAbsolute(pose.Transform{
			Rotation:    [4]float32{0, 0, 0, 1},
			Translation: [3]float32{1.5, 1.0, 0},
			Scale:       1,
		}),
	})
	root := b.Add(graph.TwoBoneIKDef{
		Child:            sample,
		TargetNode:       target,
		EffectorBoneName: "c",
	})
	def := b.Build(root)

	gi := graph.New(def, skel)
	out := gi.Update(1.0/60, pose.Identity(), graph.NewControlParameters())

	effector := out.Pose.Model(2).Translation
	require.InDelta(t, 1.5, effector[0], 1e-3)
	require.InDelta(t, 1.0, effector[1], 1e-3)
	require.InDelta(t, 0.0, effector[2], 1e-3)
}

func TestUnknownEffectorBonePassesPoseThrough(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})
	sample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.25)})
	target := b.Add(graph.AbsoluteTargetDef{Value: graph.FromAbsolute(pose.Identity())})
	root := b.Add(graph.TwoBoneIKDef{
		Child:            sample,
		TargetNode:       target,
		EffectorBoneName: "no_such_bone",
	})
	def := b.Build(root)

	gi := graph.New(def, skel)
	out := gi.Update(1.0/60, pose.Identity(), graph.NewControlParameters())
	require.InDelta(t, 0.25, out.Pose.Local(1).Translation[0], 1e-6)
}

func TestTimeConditionDrivesTransition(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})

	aSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.1)})
	bSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.9)})
	aState := b.Add(graph.StateDef{Child: aSample, ExitEventID: "a_exit"})
	bState := b.Add(graph.StateDef{Child: bSample, EntryEventID: "b_enter"})

	halfWay := b.Add(graph.TimeConditionDef{
		SourceState: aState,
		Metric:      graph.MetricElapsedTime,
		Op:          graph.OpGreaterEqual,
		Comparand:   0.5,
	})
	toB := b.Add(graph.TransitionDef{Duration: 0.2})
	machine := b.Add(graph.StateMachineDef{
		States: []graph.Ref{aState, bState},
		Transitions: [][]graph.TransitionRule{
			{{TargetState: 1, Condition: halfWay, Transition: toB}},
			{},
		},
	})
	def := b.Build(machine)

	gi := graph.New(def, skel)
	events := runFrames(gi, graph.NewControlParameters(), 90, 1.0/60)

	require.Equal(t, 1, countEvents(events, event.KindStateExit, "a_exit"))
	require.Equal(t, 1, countEvents(events, event.KindStateEntry, "b_enter"))
}

func TestStateCompletedCondition(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})

	aSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 0.5, 0.1)})
	bSample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.9)})
	aState := b.Add(graph.StateDef{Child: aSample, ExitEventID: "a_exit"})
	bState := b.Add(graph.StateDef{Child: bSample, EntryEventID: "b_enter"})

	completed := b.Add(graph.StateCompletedDef{
		SourceState:        aState,
		TransitionDuration: 0.1,
	})
	toB := b.Add(graph.TransitionDef{Duration: 0.1})
	machine := b.Add(graph.StateMachineDef{
		States: []graph.Ref{aState, bState},
		Transitions: [][]graph.TransitionRule{
			{{TargetState: 1, Condition: completed, Transition: toB}},
			{},
		},
	})
	def := b.Build(machine)

	gi := graph.New(def, skel)
	events := runFrames(gi, graph.NewControlParameters(), 60, 1.0/60)

	require.Equal(t, 1, countEvents(events, event.KindStateExit, "a_exit"))
	require.Equal(t, 1, countEvents(events, event.KindStateEntry, "b_enter"))
}

func TestTimedEventsFire(t *testing.T) {
	skel := chainSkeleton(t, 2)
	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})
	sample := b.Add(graph.SampleDef{Clip: constantClip(t, skel, 1.0, 0.5)})
	state := b.Add(graph.StateDef{
		Child: sample,
		TimedEvents: []graph.TimedEvent{
			{Name: "warmup_done", Threshold: 0.25},
			{Name: "almost_over", Threshold: 0.25, FromEnd: true},
		},
	})
	machine := b.Add(graph.StateMachineDef{States: []graph.Ref{state}})
	def := b.Build(machine)

	gi := graph.New(def, skel)
	events := runFrames(gi, graph.NewControlParameters(), 60, 1.0/60)

	require.Equal(t, 1, countEvents(events, event.KindTimed, "warmup_done"))
	require.Equal(t, 1, countEvents(events, event.KindTimed, "almost_over"))
}
