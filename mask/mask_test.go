package mask_test

import (
	"testing"

	"github.com/oxyanim/animgraph/mask"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/stretchr/testify/require"
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

func TestFeatherement(t *testing.T) {
	skel := chainSkeleton(t, 5)
	m := mask.Definition(skel, map[string]float32{"a": 1.0, "e": 0.0})

	require.InDelta(t, 1.0, m.Weight(0), 1e-6)
	require.InDelta(t, 0.75, m.Weight(1), 1e-6)
	require.InDelta(t, 0.5, m.Weight(2), 1e-6)
	require.InDelta(t, 0.25, m.Weight(3), 1e-6)
	require.InDelta(t, 0.0, m.Weight(4), 1e-6)
}

func TestUniformTags(t *testing.T) {
	skel := chainSkeleton(t, 4)
	require.Equal(t, mask.TagZero, mask.Constant(skel, 0).Tag())
	require.Equal(t, mask.TagOne, mask.Constant(skel, 1).Tag())
	require.Equal(t, mask.TagMixed, mask.Constant(skel, 0.5).Tag())
}

func TestCombineWithAllOnesIsNoOp(t *testing.T) {
	skel := chainSkeleton(t, 4)
	m := mask.PerBone(skel, []float32{0.2, 0.4, 0.6, 0.8})
	ones := mask.Constant(skel, 1)

	combined := m.CombineWith(ones)
	for i := 0; i < skel.BoneCount(); i++ {
		require.InDelta(t, m.Weight(i), combined.Weight(i), 1e-6)
	}
}

func TestCombineWithZeroYieldsZero(t *testing.T) {
	skel := chainSkeleton(t, 3)
	m := mask.PerBone(skel, []float32{0.2, 0.4, 0.6})
	zero := mask.Constant(skel, 0)

	combined := m.CombineWith(zero)
	require.Equal(t, mask.TagZero, combined.Tag())
}

func TestBlendBoundaryWeights(t *testing.T) {
	skel := chainSkeleton(t, 2)
	a := mask.Constant(skel, 0.2)
	b := mask.Constant(skel, 0.8)

	require.InDelta(t, 0.2, a.BlendTo(b, 0).Weight(0), 1e-6)
	require.InDelta(t, 0.8, a.BlendTo(b, 1).Weight(0), 1e-6)
	require.InDelta(t, 0.5, a.BlendTo(b, 0.5).Weight(0), 1e-6)
}

func TestScaleWeightsShortCircuits(t *testing.T) {
	skel := chainSkeleton(t, 3)
	m := mask.PerBone(skel, []float32{0.1, 0.2, 0.3})

	require.InDelta(t, m.Weight(0), m.ScaleWeights(1).Weight(0), 1e-6)
	require.Equal(t, mask.TagZero, m.ScaleWeights(0).Tag())
}

func TestPoolResetsFreeListCursor(t *testing.T) {
	skel := chainSkeleton(t, 4)
	pool := mask.NewPoolSized(skel, 4)

	a := pool.Acquire(false)
	b := pool.Acquire(false)
	c := pool.Acquire(false)
	require.False(t, pool.AllReleased())

	pool.Release(b)
	reused := pool.Acquire(false)
	require.Equal(t, b, reused)

	pool.Release(a)
	pool.Release(c)
	pool.Release(reused)
	require.True(t, pool.AllReleased())
}

func TestPoolGrowsOnExhaustion(t *testing.T) {
	skel := chainSkeleton(t, 2)
	pool := mask.NewPoolSized(skel, 1)
	pool.Acquire(false)
	require.NotPanics(t, func() { pool.Acquire(false) })
	require.Equal(t, 2, pool.Capacity())
}

func TestTaskListEvaluation(t *testing.T) {
	skel := chainSkeleton(t, 4)
	skel.RegisterMask("upper", []float32{0, 0, 1, 1})

	list := mask.NewTaskList(skel)
	a := list.Mask(0)
	b := list.GenerateMask(0.5)
	list.CombineWith(a, b)

	result, _, pooled := list.Evaluate(pool(t, skel))
	require.True(t, pooled)
	require.InDelta(t, 0, result.Weight(0), 1e-6)
	require.InDelta(t, 0.5, result.Weight(2), 1e-6)
}

func pool(t *testing.T, skel *skeleton.Skeleton) *mask.Pool {
	t.Helper()
	return mask.NewPool(skel)
}

func TestSerializationRoundTrip(t *testing.T) {
	skel := chainSkeleton(t, 6)
	skel.RegisterMask("lower", []float32{1, 1, 0, 0, 0, 0})

	list := mask.NewTaskList(skel)
	a := list.Mask(0)
	b := list.GenerateMask(0.3)
	list.BlendFrom(a, b, 0.6)

	encoded := list.Encode()
	decoded := mask.Decode(skel, encoded)
	require.Equal(t, list.Len(), decoded.Len())

	p1 := mask.NewPool(skel)
	p2 := mask.NewPool(skel)
	r1, _, _ := list.Evaluate(p1)
	r2, _, _ := decoded.Evaluate(p2)
	for i := 0; i < skel.BoneCount(); i++ {
		require.InDelta(t, r1.Weight(i), r2.Weight(i), 1.0/255)
	}
}
