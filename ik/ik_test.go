package ik_test

import (
	"testing"

	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/ik"
	"github.com/oxyanim/animgraph/pose"
	"github.com/stretchr/testify/require"
)

func TestTwoBoneReachesTargetWithinChainLength(t *testing.T) {
	chain := ik.TwoBoneChain{
		A: pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{0, 0, 0}, Scale: 1},
		B: pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{1, 0, 0}, Scale: 1},
		C: pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{2, 0, 0}, Scale: 1},
	}
	target := [3]float32{1, 1, 0}

	result := ik.SolveTwoBone(chain, target, 0)

	lenAB := common.Vec3Length(common.Vec3Sub(chain.B.Translation, chain.A.Translation))
	lenBC := common.Vec3Length(common.Vec3Sub(chain.C.Translation, chain.B.Translation))

	// Effector position after applying both rotations should land near the
	// target, within the chain's reach tolerance.
	effector := common.Vec3Add(result.B.Translation, common.QuatRotateVec3(result.B.Rotation, common.Vec3Sub(chain.C.Translation, chain.B.Translation)))
	dist := common.Vec3Distance(effector, target)
	require.Less(t, dist, float32(0.05))
	_ = lenAB
	_ = lenBC
}

func TestTwoBoneClampsUnreachableTarget(t *testing.T) {
	chain := ik.TwoBoneChain{
		A: pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{0, 0, 0}, Scale: 1},
		B: pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{1, 0, 0}, Scale: 1},
		C: pose.Transform{Rotation: common.IdentityQuat(), Translation: [3]float32{2, 0, 0}, Scale: 1},
	}
	far := [3]float32{100, 0, 0}
	require.NotPanics(t, func() { ik.SolveTwoBone(chain, far, 0) })
}

func TestChainSolverPreservesLinkLengths(t *testing.T) {
	links := []ik.ChainLink{
		{Position: [3]float32{0, 0, 0}, Rotation: common.IdentityQuat()},
		{Position: [3]float32{1, 0, 0}, Rotation: common.IdentityQuat()},
		{Position: [3]float32{2, 0, 0}, Rotation: common.IdentityQuat()},
		{Position: [3]float32{3, 0, 0}, Rotation: common.IdentityQuat()},
	}
	target := [3]float32{1, 2, 0}

	result := ik.SolveChain(links, target, 0, 0.5, 0.01, 10)
	require.Len(t, result.Links, 4)

	for i := 0; i < len(result.Links)-1; i++ {
		dist := common.Vec3Distance(result.Links[i].Position, result.Links[i+1].Position)
		require.InDelta(t, 1.0, dist, 0.02)
	}

	effectorDist := common.Vec3Distance(result.Links[3].Position, target)
	require.Less(t, effectorDist, float32(0.5))
}
