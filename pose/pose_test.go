package pose_test

import (
	"testing"

	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T, n int) *skeleton.Skeleton {
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

func TestModelSpaceComposition(t *testing.T) {
	skel := chain(t, 3)
	p := pose.New(skel)
	p.SetLocal(0, pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{1, 0, 0}, Scale: 1})
	p.SetLocal(1, pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{1, 0, 0}, Scale: 1})
	p.SetLocal(2, pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{1, 0, 0}, Scale: 1})

	require.InDelta(t, 1.0, p.Model(0).Translation[0], 1e-5)
	require.InDelta(t, 2.0, p.Model(1).Translation[0], 1e-5)
	require.InDelta(t, 3.0, p.Model(2).Translation[0], 1e-5)
}

func TestModelSpaceInvalidatedOnLocalWrite(t *testing.T) {
	skel := chain(t, 2)
	p := pose.New(skel)
	p.SetLocal(1, pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{5, 0, 0}, Scale: 1})
	require.InDelta(t, 5.0, p.Model(1).Translation[0], 1e-5)

	p.SetLocal(0, pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{2, 0, 0}, Scale: 1})
	require.InDelta(t, 7.0, p.Model(1).Translation[0], 1e-5)
}

func TestPoolAcquireReleaseReturnsToInitialState(t *testing.T) {
	skel := chain(t, 3)
	pool := pose.NewPool(skel, 4)
	require.True(t, pool.AllReleased())

	a := pool.Acquire()
	b := pool.Acquire()
	c := pool.Acquire()
	require.False(t, pool.AllReleased())

	pool.Release(b)
	d := pool.Acquire()
	pool.Release(a)
	pool.Release(c)
	pool.Release(d)

	require.True(t, pool.AllReleased())
}

func TestPoolExhaustionPanics(t *testing.T) {
	skel := chain(t, 1)
	pool := pose.NewPool(skel, 1)
	pool.Acquire()
	require.Panics(t, func() { pool.Acquire() })
}

func TestCachedPoseRoundTrip(t *testing.T) {
	skel := chain(t, 2)
	pool := pose.NewPool(skel, 2)
	keys := pose.NewCachedPoseKeyPool()

	key := keys.Acquire()
	buf := pool.GetOrCreateCached(key)
	buf.Primary.SetLocal(0, pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{9, 0, 0}, Scale: 1})
	buf.MarkPoseSet()

	again, ok := pool.GetCached(key)
	require.True(t, ok)
	require.Same(t, buf, again)
	require.True(t, again.PoseSet())

	pool.ReleaseCached(key)
	keys.Release(key)
	_, ok = pool.GetCached(key)
	require.False(t, ok)
}

func TestCachedPoseKeyPoolExhaustionPanics(t *testing.T) {
	keys := pose.NewCachedPoseKeyPool()
	for i := 0; i < pose.MaxCachedPoseKeys; i++ {
		keys.Acquire()
	}
	require.Panics(t, func() { keys.Acquire() })
}
