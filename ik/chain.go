package ik

import "github.com/oxyanim/animgraph/common"

// ChainLink is one bone's contribution to an N-bone chain solve: its
// model-space position and the local rotation that should be reapplied once
// the solve converges.
type ChainLink struct {
	Position [3]float32
	Rotation [4]float32
}

// ChainResult holds the solved model-space positions and rotations for
// every link in the chain, in root-to-effector order.
type ChainResult struct {
	Links []ChainLink
}

// SolveChain runs the N-bone iterative solve: pre-rotation about a pivot,
// effector pinning, position-based length correction, a cinch pass clamping
// final link lengths, and conversion back to rotations.
func SolveChain(links []ChainLink, target [3]float32, pivotIndex int, stiffness float32, allowedStretch float32, iterations int) ChainResult {
	n := len(links)
	if n < 2 {
		return ChainResult{Links: append([]ChainLink(nil), links...)}
	}

	origPositions := make([][3]float32, n)
	restLengths := make([]float32, n-1)
	for i, l := range links {
		origPositions[i] = l.Position
	}
	for i := 0; i < n-1; i++ {
		restLengths[i] = common.Vec3Length(common.Vec3Sub(origPositions[i+1], origPositions[i]))
	}

	positions := make([][3]float32, n)
	copy(positions, origPositions)

	// Step 3: pre-rotation about pivotIndex, scaled by stiffness, rotating the
	// subchain so the effector maps closer to target.
	if pivotIndex >= 0 && pivotIndex < n-1 {
		pivot := positions[pivotIndex]
		effector := positions[n-1]
		oldDir := common.Vec3Sub(effector, pivot)
		newDir := common.Vec3Sub(target, pivot)
		if common.Vec3Length(oldDir) > 1e-8 && common.Vec3Length(newDir) > 1e-8 {
			full := common.QuatBetween(common.Vec3Normalize(oldDir), common.Vec3Normalize(newDir))
			scaled := common.QuatNLerp(common.IdentityQuat(), full, common.Clamp01(stiffness))
			for i := pivotIndex + 1; i < n; i++ {
				positions[i] = common.Vec3Add(pivot, common.QuatRotateVec3(scaled, common.Vec3Sub(positions[i], pivot)))
			}
		}
	}

	// Step 4: pin the effector at the target.
	positions[n-1] = target

	// Step 5: iterative position-based correction, endpoints weighted (root
	// pinned at weight 0, effector pinned at weight 1 meaning it never moves
	// away from target).
	if iterations <= 0 {
		iterations = 6
	}
	for iter := 0; iter < iterations; iter++ {
		for i := 0; i < n-1; i++ {
			delta := common.Vec3Sub(positions[i+1], positions[i])
			dist := common.Vec3Length(delta)
			if dist < 1e-8 {
				continue
			}
			diff := dist - restLengths[i]
			dir := common.Vec3Scale(delta, 1/dist)
			correction := common.Vec3Scale(dir, diff)

			wRoot, wChild := splitWeight(i, n)
			positions[i] = common.Vec3Add(positions[i], common.Vec3Scale(correction, wRoot))
			positions[i+1] = common.Vec3Sub(positions[i+1], common.Vec3Scale(correction, wChild))
		}
		positions[n-1] = target
	}

	// Step 6: cinch — clamp each link length to rest*(1+-stretch) working from
	// the root outward.
	for i := 0; i < n-1; i++ {
		delta := common.Vec3Sub(positions[i+1], positions[i])
		dist := common.Vec3Length(delta)
		maxLen := restLengths[i] * (1 + allowedStretch)
		minLen := restLengths[i] * (1 - allowedStretch)
		if minLen < 0 {
			minLen = 0
		}
		if dist > maxLen && dist > 1e-8 {
			positions[i+1] = common.Vec3Add(positions[i], common.Vec3Scale(delta, maxLen/dist))
		} else if dist < minLen && dist > 1e-8 {
			positions[i+1] = common.Vec3Add(positions[i], common.Vec3Scale(delta, minLen/dist))
		}
	}

	// Step 7: convert positions back into rotations via the delta quaternion
	// from each link's original radial direction to its new one.
	result := make([]ChainLink, n)
	for i := 0; i < n; i++ {
		result[i] = ChainLink{Position: positions[i], Rotation: links[i].Rotation}
	}
	for i := 0; i < n-1; i++ {
		oldDir := common.Vec3Sub(origPositions[i+1], origPositions[i])
		newDir := common.Vec3Sub(positions[i+1], positions[i])
		if common.Vec3Length(oldDir) < 1e-8 || common.Vec3Length(newDir) < 1e-8 {
			continue
		}
		delta := common.QuatBetween(common.Vec3Normalize(oldDir), common.Vec3Normalize(newDir))
		result[i].Rotation = common.QuatNormalize(common.QuatMul(delta, links[i].Rotation))
	}

	return ChainResult{Links: result}
}

// splitWeight returns the (root-side, child-side) correction weights for
// link i in a chain of n joints: the chain root (joint 0) never moves
// (weight 0), the effector (joint n-1) is pinned to the target (weight 0 on
// its own side of any correction), and interior joints split evenly.
func splitWeight(linkIndex, n int) (float32, float32) {
	rootPinned := linkIndex == 0
	childPinned := linkIndex+1 == n-1

	switch {
	case rootPinned && childPinned:
		return 0, 0
	case rootPinned:
		return 0, 1
	case childPinned:
		return 1, 0
	default:
		return 0.5, 0.5
	}
}
