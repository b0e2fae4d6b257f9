// Package mask implements the bone-mask algebra: per-joint weight maps, a
// grow-only pool of scratch masks, and a deferred task list that composes
// masks lazily and bottom-up.
package mask

import (
	"fmt"

	"github.com/oxyanim/animgraph/skeleton"
)

// Tag classifies a mask's weights for blend short-circuiting.
type Tag int

const (
	TagMixed Tag = iota
	TagZero
	TagOne
)

// BoneMask is a padded, per-bone weight vector in [0,1].
type BoneMask struct {
	skel *skeleton.Skeleton

	// weights has length ceil(bone_count/4)*4, padded for SIMD-friendly layout
	// even though this runtime never issues SIMD instructions directly.
	weights []float32

	tag Tag

	// Name is the registered identifier for a skeleton-owned mask, empty for
	// anonymous pool-allocated masks.
	Name string
}

// PaddedLength returns ceil(boneCount/4)*4.
func PaddedLength(boneCount int) int {
	return (boneCount + 3) &^ 3
}

func tagOf(weights []float32, boneCount int) Tag {
	allZero, allOne := true, true
	for i := 0; i < boneCount; i++ {
		if weights[i] != 0 {
			allZero = false
		}
		if weights[i] != 1 {
			allOne = false
		}
	}
	switch {
	case allZero:
		return TagZero
	case allOne:
		return TagOne
	default:
		return TagMixed
	}
}

// newMask allocates a zeroed, padded weight buffer for skel; every bone and
// the padding tail start at weight 0.
func newMask(skel *skeleton.Skeleton) *BoneMask {
	n := skel.BoneCount()
	return &BoneMask{
		skel:    skel,
		weights: make([]float32, PaddedLength(n)),
	}
}

// Constant builds a mask with every bone set to the same weight.
func Constant(skel *skeleton.Skeleton, weight float32) *BoneMask {
	m := newMask(skel)
	n := skel.BoneCount()
	for i := 0; i < n; i++ {
		m.weights[i] = weight
	}
	m.tag = tagOf(m.weights, n)
	return m
}

// PerBone builds a mask from an explicit per-bone weight list, which must
// have exactly skel.BoneCount() entries.
func PerBone(skel *skeleton.Skeleton, weights []float32) *BoneMask {
	if len(weights) != skel.BoneCount() {
		panic(fmt.Sprintf("mask: per-bone weight list has %d entries, skeleton has %d bones", len(weights), skel.BoneCount()))
	}
	m := newMask(skel)
	copy(m.weights, weights)
	m.tag = tagOf(m.weights, skel.BoneCount())
	return m
}

// Definition maps a subset of bones, by name, to explicit weights. Bones
// not listed are resolved by featherement: walking up parents from each
// explicitly set bone until a set ancestor is found, then either copying
// the ancestor's weight across the intermediate bones (a zero-chain, when
// no set descendant bounds them) or linearly interpolating between the set
// ancestor and set descendant across a feather-chain. An unset root
// defaults to 0.
func Definition(skel *skeleton.Skeleton, explicit map[string]float32) *BoneMask {
	n := skel.BoneCount()
	set := make([]bool, n)
	weights := make([]float32, n)
	explicitIdx := make([]int, 0, len(explicit))
	for name, w := range explicit {
		idx, ok := skel.BoneIndex(name)
		if !ok {
			continue // unknown bone names are skipped, not fatal
		}
		weights[idx] = w
		set[idx] = true
		explicitIdx = append(explicitIdx, int(idx))
	}
	feather(skel, weights, set, explicitIdx)

	m := newMask(skel)
	copy(m.weights, weights)
	m.tag = tagOf(m.weights, n)
	return m
}

// feather fills every unset bone in weights in place, per the algorithm in
// the mask definition.
func feather(skel *skeleton.Skeleton, weights []float32, set []bool, explicitIdx []int) {
	n := len(weights)
	for i := 0; i < n; i++ {
		if !set[i] && skel.IsRoot(i) {
			weights[i] = 0
			set[i] = true
		}
	}

	for _, leaf := range explicitIdx {
		if skel.IsRoot(leaf) {
			continue
		}
		var chain []int
		ancestor := int(skel.ParentIndex(leaf))
		for !set[ancestor] {
			chain = append(chain, ancestor)
			ancestor = int(skel.ParentIndex(ancestor))
		}
		if len(chain) == 0 {
			continue
		}
		// chain[0] sits next to the explicitly-set descendant, so the
		// interpolation anchors at the leaf weight and walks toward the
		// ancestor's.
		ancestorWeight := weights[ancestor]
		leafWeight := weights[leaf]
		steps := len(chain) + 1
		for offset, b := range chain {
			t := float32(offset+1) / float32(steps)
			weights[b] = leafWeight + (ancestorWeight-leafWeight)*t
			set[b] = true
		}
	}

	// Any bone still unset at this point lies on a branch with no explicitly
	// set descendant: a zero-chain that simply copies its nearest set
	// ancestor's weight down.
	for i := 0; i < n; i++ {
		if set[i] {
			continue
		}
		ancestor := int(skel.ParentIndex(i))
		for !set[ancestor] {
			ancestor = int(skel.ParentIndex(ancestor))
		}
		weights[i] = weights[ancestor]
		set[i] = true
	}
}

// Skeleton returns the skeleton this mask was built against.
func (m *BoneMask) Skeleton() *skeleton.Skeleton {
	return m.skel
}

// Tag returns the mask's weight-info classification.
func (m *BoneMask) Tag() Tag {
	return m.tag
}

// Weight returns the weight of bone i.
func (m *BoneMask) Weight(i int) float32 {
	return m.weights[i]
}

// Weights exposes the full padded weight slice. Callers must not mutate it;
// use CombineWith/BlendFrom/ScaleWeights to derive a new mask.
func (m *BoneMask) Weights() []float32 {
	return m.weights
}

// clone returns an unregistered deep copy sharing skel.
func (m *BoneMask) clone() *BoneMask {
	c := newMask(m.skel)
	copy(c.weights, m.weights)
	c.tag = m.tag
	return c
}

// CombineWith returns a new mask that is the per-element product of m and
// other. Combining with an all-ones mask is a no-op, short-circuited by
// returning a clone of m when other is tagged One, and a clone of other
// when m is tagged One.
func (m *BoneMask) CombineWith(other *BoneMask) *BoneMask {
	if m.tag == TagOne {
		return other.clone()
	}
	if other.tag == TagOne {
		return m.clone()
	}
	if m.tag == TagZero || other.tag == TagZero {
		return Constant(m.skel, 0)
	}
	out := newMask(m.skel)
	n := m.skel.BoneCount()
	for i := 0; i < n; i++ {
		out.weights[i] = m.weights[i] * other.weights[i]
	}
	out.tag = tagOf(out.weights, n)
	return out
}

// BlendFrom returns lerp(source, m, w) per element: the mask when this mask
// is treated as the blend target. Short-circuits when w is 0 or 1, or when
// source and m share a uniform tag.
func (m *BoneMask) BlendFrom(source *BoneMask, w float32) *BoneMask {
	return blend(source, m, w)
}

// BlendTo returns lerp(m, target, w) per element.
func (m *BoneMask) BlendTo(target *BoneMask, w float32) *BoneMask {
	return blend(m, target, w)
}

func blend(a, b *BoneMask, w float32) *BoneMask {
	if w <= 0 {
		return a.clone()
	}
	if w >= 1 {
		return b.clone()
	}
	if a.tag == b.tag && a.tag != TagMixed {
		return a.clone()
	}
	out := newMask(a.skel)
	n := a.skel.BoneCount()
	for i := 0; i < n; i++ {
		out.weights[i] = a.weights[i] + (b.weights[i]-a.weights[i])*w
	}
	out.tag = tagOf(out.weights, n)
	return out
}

// ScaleWeights returns a new mask with every weight multiplied by k.
// Short-circuited for k == 1 (no-op clone) and k == 0 (all-zero mask).
func (m *BoneMask) ScaleWeights(k float32) *BoneMask {
	if k == 1 {
		return m.clone()
	}
	if k == 0 {
		return Constant(m.skel, 0)
	}
	out := newMask(m.skel)
	n := m.skel.BoneCount()
	for i := 0; i < n; i++ {
		out.weights[i] = m.weights[i] * k
	}
	out.tag = tagOf(out.weights, n)
	return out
}
