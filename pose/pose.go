package pose

import "github.com/oxyanim/animgraph/skeleton"

// Type tags a Pose with the default semantics a blend should apply when the
// pose is consumed.
type Type int

const (
	// TypeRegular is an ordinary sampled/blended pose.
	TypeRegular Type = iota
	// TypeReference is a skeleton's bind pose.
	TypeReference
	// TypeZero is an all-identity pose, tagged additive by convention.
	TypeZero
	// TypeAdditive marks a pose as a delta to be composed onto a base, rather
	// than blended directly.
	TypeAdditive
)

// Pose is a fixed-length ordered sequence of local-space bone transforms
// plus a lazily computed, parallel model-space array.
type Pose struct {
	skel  *skeleton.Skeleton
	Type  Type
	local []Transform
	model []Transform
	dirty bool

	// RootMotionDelta accumulates the root bone's motion delta for this pose,
	// consumed by callers that track character locomotion.
	RootMotionDelta Transform
}

// New allocates a pose for skel, with every local transform set to identity
// and tagged TypeRegular.
func New(skel *skeleton.Skeleton) *Pose {
	n := skel.BoneCount()
	p := &Pose{
		skel:            skel,
		Type:            TypeRegular,
		local:           make([]Transform, n),
		model:           make([]Transform, n),
		dirty:           true,
		RootMotionDelta: Identity(),
	}
	for i := range p.local {
		p.local[i] = Identity()
	}
	return p
}

// Skeleton returns the skeleton this pose was allocated against.
func (p *Pose) Skeleton() *skeleton.Skeleton {
	return p.skel
}

// BoneCount returns the number of bones in the pose.
func (p *Pose) BoneCount() int {
	return len(p.local)
}

// Local returns the local-space transform of bone i.
func (p *Pose) Local(i int) Transform {
	return p.local[i]
}

// SetLocal writes the local-space transform of bone i. Any local write
// invalidates the entire model-space array; there is no partial recompute.
func (p *Pose) SetLocal(i int, t Transform) {
	p.local[i] = t
	p.dirty = true
}

// LocalSlice exposes the local transform array directly for bulk writes
// (e.g. clip sampling). Callers must call MarkLocalDirty after mutating it.
func (p *Pose) LocalSlice() []Transform {
	return p.local
}

// MarkLocalDirty forces model-space to be recomputed on next access.
func (p *Pose) MarkLocalDirty() {
	p.dirty = true
}

// Model returns the model-space transform of bone i, recomputing the full
// model-space array first if local-space data has changed since the last
// computation.
func (p *Pose) Model(i int) Transform {
	p.refreshModel()
	return p.model[i]
}

// RefreshModel forces the model-space array to be recomputed now, even if
// it is not currently dirty. Most callers should use Model/ModelSlice
// instead, which recompute lazily.
func (p *Pose) RefreshModel() {
	p.refreshModel()
}

func (p *Pose) refreshModel() {
	if !p.dirty {
		return
	}
	for i := range p.local {
		parent := p.skel.ParentIndex(i)
		if parent == skeleton.InvalidBoneIndex {
			p.model[i] = p.local[i]
		} else {
			p.model[i] = p.local[i].Compose(p.model[parent])
		}
	}
	p.dirty = false
}

// ModelSlice returns the full model-space array, refreshing it first if
// necessary. The returned slice must not be retained across a subsequent
// local write.
func (p *Pose) ModelSlice() []Transform {
	p.refreshModel()
	return p.model
}

// CopyFrom overwrites p's local transforms, type, and root motion delta
// with src's. Model-space is marked dirty; it is not copied, since it is
// cheap to recompute and copying it would risk staleness bugs.
func (p *Pose) CopyFrom(src *Pose) {
	copy(p.local, src.local)
	p.Type = src.Type
	p.RootMotionDelta = src.RootMotionDelta
	p.dirty = true
}

// Reset sets every local transform back to identity, tags the pose
// TypeRegular, and clears root motion.
func (p *Pose) Reset() {
	for i := range p.local {
		p.local[i] = Identity()
	}
	p.Type = TypeRegular
	p.RootMotionDelta = Identity()
	p.dirty = true
}

// SetReferencePose copies the skeleton's bind pose (identity local
// transforms, by convention of this runtime's Skeleton resource, which does
// not carry a separate bind-pose array) and tags the result TypeReference.
func (p *Pose) SetReferencePose() {
	p.Reset()
	p.Type = TypeReference
}

// SetZeroPose sets every local transform to identity and tags the result
// TypeAdditive, the form a ZeroPose task emits.
func (p *Pose) SetZeroPose() {
	p.Reset()
	p.Type = TypeAdditive
}
