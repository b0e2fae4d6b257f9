package task_test

import (
	"testing"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/oxyanim/animgraph/task"
	"github.com/stretchr/testify/require"
)

func oneBoneSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	return skeleton.New([]skeleton.Bone{{Name: "root", ParentIndex: skeleton.InvalidBoneIndex}})
}

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

func TestReferencePoseTask(t *testing.T) {
	skel := oneBoneSkeleton(t)
	pool := pose.NewPool(skel, 4)
	sys := task.NewSystem(skel, pool)

	idx := sys.RegisterReferencePose(1)
	sys.Execute()

	out := sys.Output(idx)
	require.True(t, out.PoseSet())
	sys.ReleaseOutput(idx)
	require.True(t, pool.AllReleased())
}

func TestBlendWeightZeroYieldsSourceUnchanged(t *testing.T) {
	skel := oneBoneSkeleton(t)
	pool := pose.NewPool(skel, 4)
	sys := task.NewSystem(skel, pool)

	src := sys.RegisterZeroPose(1)
	tgt := sys.RegisterReferencePose(1)
	blend := sys.RegisterBlend(1, src, tgt, task.BlendInterpolative, 0, nil)
	sys.Execute()

	out := sys.Output(blend)
	require.Equal(t, pose.TypeAdditive, out.Primary.Type)
	sys.ReleaseOutput(blend)
	require.True(t, pool.AllReleased())
}

func TestBlendWeightOneYieldsTarget(t *testing.T) {
	skel := oneBoneSkeleton(t)
	pool := pose.NewPool(skel, 4)
	sys := task.NewSystem(skel, pool)

	src := sys.RegisterZeroPose(1)
	tgt := sys.RegisterReferencePose(1)
	blend := sys.RegisterBlend(1, src, tgt, task.BlendInterpolative, 1, nil)
	sys.Execute()

	out := sys.Output(blend)
	require.Equal(t, pose.TypeReference, out.Primary.Type)
	sys.ReleaseOutput(blend)
	require.True(t, pool.AllReleased())
}

func TestCachedPoseRoundTrip(t *testing.T) {
	skel := oneBoneSkeleton(t)
	pool := pose.NewPool(skel, 4)
	sys := task.NewSystem(skel, pool)

	src := sys.RegisterReferencePose(1)
	write := sys.RegisterCachedPoseWrite(1, src, 7)
	sys.Execute()
	sys.ReleaseOutput(write)

	sys2 := task.NewSystem(skel, pool)
	read := sys2.RegisterCachedPoseRead(1, 7)
	sys2.Execute()
	out := sys2.Output(read)
	require.True(t, out.PoseSet())
	sys2.ReleaseOutput(read)
	require.True(t, pool.AllReleased())
}

func TestSampleClipTask(t *testing.T) {
	skel := oneBoneSkeleton(t)
	pool := pose.NewPool(skel, 4)
	sys := task.NewSystem(skel, pool)

	end := pose.Identity()
	end.Translation = [3]float32{2, 0, 0}
	c := clip.New(skel, 1, clip.SyncTrack{}, []float32{0, 1}, [][]pose.Transform{{pose.Identity()}, {end}})

	idx := sys.RegisterSample(1, c, 0.5)
	sys.Execute()
	out := sys.Output(idx)
	require.InDelta(t, 1.0, out.Primary.Local(0).Translation[0], 1e-5)
	sys.ReleaseOutput(idx)
}
