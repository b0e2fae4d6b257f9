// Package ik implements the two-bone analytic and N-bone iterative chain
// solvers used for reach and aim effectors.
package ik

import (
	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/pose"
)

// TwoBoneChain names the three model-space transforms a two-bone solve
// operates on: A (root), B (mid), C (effector).
type TwoBoneChain struct {
	A, B, C pose.Transform
}

// TwoBoneResult holds the solved model-space transforms for A and B; C's
// rotation is left to the caller (the effector bone typically keeps its own
// local rotation, only its position changes as a result of A/B moving).
type TwoBoneResult struct {
	A, B pose.Transform
}

// SolveTwoBone solves a three-joint chain analytically against a
// model-space target. target and allowedStretch are both in model space /
// world units.
func SolveTwoBone(chain TwoBoneChain, target [3]float32, allowedStretch float32) TwoBoneResult {
	a := chain.A.Translation
	b := chain.B.Translation
	c := chain.C.Translation

	lenAB := common.Vec3Length(common.Vec3Sub(b, a))
	lenBC := common.Vec3Length(common.Vec3Sub(c, b))
	maxReach := lenAB + lenBC + allowedStretch

	toTarget := common.Vec3Sub(target, a)
	dist := common.Vec3Length(toTarget)
	effectiveTarget := target
	if dist > maxReach && dist > 1e-8 {
		dir := common.Vec3Scale(toTarget, 1/dist)
		effectiveTarget = common.Vec3Add(a, common.Vec3Scale(dir, maxReach))
		toTarget = common.Vec3Sub(effectiveTarget, a)
		dist = maxReach
	}
	if dist < 1e-8 || lenAB < 1e-8 || lenBC < 1e-8 {
		return TwoBoneResult{A: chain.A, B: chain.B}
	}
	dirAT := common.Vec3Scale(toTarget, 1/dist)

	// The bend stays in the chain's current plane; a straight chain has no
	// plane of its own, so any axis perpendicular to the target direction
	// serves.
	axis := common.Vec3Cross(common.Vec3Sub(b, a), common.Vec3Sub(c, a))
	if common.Vec3Length(axis) < 1e-8 {
		axis = common.Vec3Cross(dirAT, [3]float32{0, 1, 0})
		if common.Vec3Length(axis) < 1e-8 {
			axis = common.Vec3Cross(dirAT, [3]float32{1, 0, 0})
		}
	}
	axis = common.Vec3Normalize(axis)

	// Triangle (lenAB, dist, lenBC): the interior angle at A positions the
	// mid joint off the A->target line.
	triDist := dist
	if triDist > lenAB+lenBC {
		triDist = lenAB + lenBC
	}
	if triDist < absDiff(lenAB, lenBC) {
		triDist = absDiff(lenAB, lenBC)
	}
	angleAtA := lawOfCosinesAngle(lenAB, triDist, lenBC)

	newBDir := common.QuatRotateVec3(common.QuatFromAxisAngle(axis, angleAtA), dirAT)
	newB := common.Vec3Add(a, common.Vec3Scale(newBDir, lenAB))

	newA := chain.A
	oldABDir := common.Vec3Normalize(common.Vec3Sub(b, a))
	aDelta := common.QuatBetween(oldABDir, newBDir)
	newA.Rotation = common.QuatNormalize(common.QuatMul(aDelta, chain.A.Rotation))

	newBTransform := chain.B
	newBTransform.Translation = newB
	oldBCDir := common.Vec3Normalize(common.Vec3Sub(c, b))
	newBCDir := common.Vec3Normalize(common.Vec3Sub(effectiveTarget, newB))
	bDelta := common.QuatBetween(oldBCDir, newBCDir)
	newBTransform.Rotation = common.QuatNormalize(common.QuatMul(bDelta, chain.B.Rotation))

	return TwoBoneResult{A: newA, B: newBTransform}
}

func absDiff(a, b float32) float32 {
	if a > b {
		return a - b
	}
	return b - a
}

// lawOfCosinesAngle returns the angle opposite side `opposite` in a
// triangle with the other two sides `s1`, `s2`. Degenerate triangles clamp
// the cosine argument into [-1,1].
func lawOfCosinesAngle(s1, s2, opposite float32) float32 {
	if s1 <= 1e-8 || s2 <= 1e-8 {
		return 0
	}
	cosAngle := (s1*s1 + s2*s2 - opposite*opposite) / (2 * s1 * s2)
	if cosAngle > 1 {
		cosAngle = 1
	}
	if cosAngle < -1 {
		cosAngle = -1
	}
	return acos(cosAngle)
}
