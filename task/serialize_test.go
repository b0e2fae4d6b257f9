package task_test

import (
	"testing"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/oxyanim/animgraph/task"
	"github.com/stretchr/testify/require"
)

type slotTable struct {
	clips map[int]*clip.Clip
	rigs  map[int]*task.Rig
}

func (s slotTable) Clip(slot int) *clip.Clip { return s.clips[slot] }
func (s slotTable) Rig(slot int) *task.Rig   { return s.rigs[slot] }

func rampClip(t *testing.T, skel *skeleton.Skeleton, endX float32) *clip.Clip {
	t.Helper()
	start := make([]pose.Transform, skel.BoneCount())
	end := make([]pose.Transform, skel.BoneCount())
	for i := range start {
		start[i] = pose.Identity()
		end[i] = pose.Identity()
	}
	end[0].Translation = [3]float32{endX, 0, 0}
	return clip.New(skel, 1, clip.SyncTrack{}, []float32{0, 1}, [][]pose.Transform{start, end})
}

func TestTaskStreamRoundTrip(t *testing.T) {
	skel := chainSkeleton(t, 3)
	clipA := rampClip(t, skel, 1.0)
	clipB := rampClip(t, skel, -1.0)
	slots := slotTable{clips: map[int]*clip.Clip{0: clipA, 1: clipB}}

	pool := pose.NewPool(skel, 8)
	sys := task.NewSystem(skel, pool)
	a := sys.RegisterSample(1, clipA, 0.3)
	b := sys.RegisterSample(2, clipB, 0.4)
	blend := sys.RegisterBlend(3, a, b, task.BlendInterpolative, 0.5, nil)

	sys.Execute()
	want := pose.New(skel)
	want.CopyFrom(sys.Output(blend).Primary)
	sys.ReleaseAll()
	require.True(t, pool.AllReleased())

	bs := sys.Encode(
		func(i int) int {
			if i == a {
				return 0
			}
			return 1
		},
		func(i int) int { return 0 },
	)

	decoded := task.Decode(skel, slots, bs)
	require.Len(t, decoded, 3)

	sys2 := task.NewSystem(skel, pool)
	for _, dt := range decoded {
		sys2.Append(dt)
	}
	sys2.Execute()
	got := sys2.Output(blend)

	// Weights quantize to 8 bits; clip times likewise. The decoded
	// stream's output must match within that tolerance.
	for i := 0; i < skel.BoneCount(); i++ {
		for c := 0; c < 3; c++ {
			require.InDelta(t, want.Local(i).Translation[c], got.Primary.Local(i).Translation[c], 2.0/255)
		}
		for c := 0; c < 4; c++ {
			require.InDelta(t, want.Local(i).Rotation[c], got.Primary.Local(i).Rotation[c], 2.0/255)
		}
	}
	sys2.ReleaseAll()
	require.True(t, pool.AllReleased())
}

func TestDecodedIKTaskKeepsEncodedTarget(t *testing.T) {
	skel := chainSkeleton(t, 3)
	pool := pose.NewPool(skel, 8)
	sys := task.NewSystem(skel, pool)

	src := sys.RegisterReferencePose(1)
	sys.RegisterTwoBoneIK(2, src, 2, [3]float32{1.5, 1, 0}, 0)

	bs := sys.Encode(func(int) int { return 0 }, func(int) int { return 0 })
	decoded := task.Decode(skel, nil, bs)
	require.Len(t, decoded, 2)

	// The model-space target travels in the stream verbatim; a receiver
	// must not re-derive it from its own pose state.
	require.Equal(t, task.KindTwoBoneIK, decoded[1].Kind)
	require.InDelta(t, 1.5, decoded[1].Target[0], 1e-6)
	require.InDelta(t, 1.0, decoded[1].Target[1], 1e-6)
	require.Equal(t, 2, decoded[1].EffectorBone)
}
