// Package pose implements the Transform/Pose/PoseBuffer primitives of the
// runtime: per-bone local transforms, lazily computed model-space
// transforms, and the pooled buffers the task system reads and writes.
package pose

import "github.com/oxyanim/animgraph/common"

// Transform is a decomposed rigid transform: unit quaternion rotation,
// translation, and a single uniform scale factor.
type Transform struct {
	Rotation    [4]float32
	Translation [3]float32
	Scale       float32
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: common.IdentityQuat(), Scale: 1}
}

// Compose returns child * parent, applying child's transform first and then
// parent's (child_model = local * parent_model).
func (t Transform) Compose(parent Transform) Transform {
	rotation := common.QuatMul(parent.Rotation, t.Rotation)
	scale := t.Scale * parent.Scale
	translation := common.Vec3Add(
		common.QuatRotateVec3(parent.Rotation, common.Vec3Scale(t.Translation, parent.Scale)),
		parent.Translation,
	)
	return Transform{Rotation: common.QuatNormalize(rotation), Translation: translation, Scale: scale}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	invRot := common.QuatInverse(t.Rotation)
	invScale := float32(1)
	if t.Scale != 0 {
		invScale = 1 / t.Scale
	}
	invTranslation := common.Vec3Scale(common.QuatRotateVec3(invRot, t.Translation), -invScale)
	return Transform{Rotation: invRot, Translation: invTranslation, Scale: invScale}
}

// DeltaFrom returns the transform d such that t == d.Compose(other), i.e.
// the relative transform taking `other` to `t`.
func (t Transform) DeltaFrom(other Transform) Transform {
	return t.Compose(other.Inverse())
}

// Lerp linearly interpolates translation and scale and nlerps rotation
// between a and b by weight w.
func Lerp(a, b Transform, w float32) Transform {
	return Transform{
		Rotation:    common.QuatNLerp(a.Rotation, b.Rotation, w),
		Translation: common.Vec3Lerp(a.Translation, b.Translation, w),
		Scale:       a.Scale + (b.Scale-a.Scale)*w,
	}
}

// ScaleWeighted scales a transform's deviation from identity by w, used to
// apply a per-bone mask weight to an additive delta.
func ScaleWeighted(t Transform, w float32) Transform {
	return Transform{
		Rotation:    common.QuatNLerp(common.IdentityQuat(), t.Rotation, w),
		Translation: common.Vec3Scale(t.Translation, w),
		Scale:       1 + (t.Scale-1)*w,
	}
}

// ComposeAdditive applies delta as an additive offset onto base, weighted
// by w.
func ComposeAdditive(base, delta Transform, w float32) Transform {
	return ScaleWeighted(delta, w).Compose(base)
}
