package graph

import (
	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
)

// Target is an IK goal in one of two representations: a bone plus an offset
// interpreted in bone-space or world-space, or an absolute transform.
type Target struct {
	IsBoneTarget bool

	// Bone-target fields.
	BoneName          string
	OffsetRotation    [4]float32
	OffsetTranslation [3]float32
	OffsetIsWorld     bool

	// Absolute-target field.
	Absolute pose.Transform
}

// FromAbsolute builds an absolute-transform Target.
func FromAbsolute(t pose.Transform) Target {
	return Target{Absolute: t}
}

// FromBone builds a bone-relative Target. offsetIsWorld selects whether the
// offset is interpreted in bone-space or world-space.
func FromBone(boneName string, offsetRotation [4]float32, offsetTranslation [3]float32, offsetIsWorld bool) Target {
	return Target{
		IsBoneTarget:      true,
		BoneName:          boneName,
		OffsetRotation:    offsetRotation,
		OffsetTranslation: offsetTranslation,
		OffsetIsWorld:     offsetIsWorld,
	}
}

// Resolve converts t against p into a model-space transform (bone lookup
// plus offset composition). The second return value is false when the
// target names a bone the skeleton doesn't have; callers handle that by
// skipping the IK node's effect rather than aborting the frame.
func Resolve(t Target, skel *skeleton.Skeleton, p *pose.Pose, worldTransform pose.Transform) (pose.Transform, bool) {
	if !t.IsBoneTarget {
		return t.Absolute, true
	}
	idx, ok := skel.BoneIndex(t.BoneName)
	if !ok {
		return pose.Transform{}, false
	}
	boneModel := p.Model(int(idx))
	offset := pose.Transform{Rotation: t.OffsetRotation, Translation: t.OffsetTranslation, Scale: 1}
	if t.OffsetIsWorld {
		// The offset is expressed in world space: convert bone model-space into
		// world space, apply the offset there, then convert back.
		boneWorld := boneModel.Compose(worldTransform)
		resultWorld := boneWorld
		resultWorld.Rotation = common.QuatNormalize(common.QuatMul(t.OffsetRotation, boneWorld.Rotation))
		resultWorld.Translation = common.Vec3Add(boneWorld.Translation, t.OffsetTranslation)
		return resultWorld.Compose(worldTransform.Inverse()), true
	}
	return offset.Compose(boneModel), true
}

// resolveWorldPoint converts an absolute world-space point into model space
// using the context's world transform, used by AimIK/IK nodes whose target
// is already a plain point rather than a full Target.
func resolveWorldPoint(worldTransform pose.Transform, point [3]float32) [3]float32 {
	inv := worldTransform.Inverse()
	return common.Vec3Add(common.QuatRotateVec3(inv.Rotation, common.Vec3Scale(point, inv.Scale)), inv.Translation)
}
