package task

import (
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/skeleton"
)

// kindBits is the fixed width of a task-kind code. 4 bits covers the ten
// kinds defined here, including the supplemental AimIK kind.
const kindBits = 4

// Resources resolves the data-slot references a deserialized task needs
// without recomputing anything derived from the registering instance's
// local pose, mirroring the data-slot table of graph definition's data-slot
// table.
type Resources interface {
	Clip(slot int) *clip.Clip
	Rig(slot int) *Rig
}

// Encode serializes every registered task in s to a bit stream: a 5-bit
// count prefix, then per-task kind code, dependency indices at
// ceil(log2(task_count)) bits, effector bone indices at
// ceil(log2(bone_count)) bits, 8-bit quantized weights, and targets as
// full 32-bit floats.
func (s *System) Encode(clipSlot func(i int) int, rigSlot func(i int) int) *bitset.BitSet {
	boneBits := s.skel.BoneIndexBitWidth()
	depBits := bitsFor(len(s.tasks))

	bs := bitset.New(0)
	pos := uint(0)
	writeBits(bs, &pos, uint64(len(s.tasks)), 5)

	for i, t := range s.tasks {
		writeBits(bs, &pos, uint64(t.Kind), kindBits)
		for _, d := range t.Deps() {
			writeBits(bs, &pos, uint64(d), depBits)
		}
		switch t.Kind {
		case KindSample:
			writeBits(bs, &pos, uint64(clipSlot(i)), 16)
			writeBits(bs, &pos, uint64(quantize8(t.ClipTime)), 8)
		case KindBlend:
			writeBits(bs, &pos, uint64(t.BlendMode), 2)
			writeBits(bs, &pos, uint64(quantize8(t.BlendWeight)), 8)
		case KindCachedPoseWrite, KindCachedPoseRead:
			writeBits(bs, &pos, uint64(t.CacheKey), 7)
		case KindTwoBoneIK:
			writeBits(bs, &pos, uint64(t.EffectorBone), boneBits)
			writeTarget(bs, &pos, t.Target)
			writeBits(bs, &pos, uint64(quantize8(clamp01Frac(t.AllowedStretch))), 8)
		case KindChainSolver:
			writeBits(bs, &pos, uint64(t.EffectorBone), boneBits)
			writeBits(bs, &pos, uint64(t.ChainLength), 8)
			writeTarget(bs, &pos, t.Target)
			writeBits(bs, &pos, uint64(t.PivotBone), 8)
			writeBits(bs, &pos, uint64(quantize8(t.Stiffness)), 8)
			writeBits(bs, &pos, uint64(quantize8(clamp01Frac(t.AllowedStretch))), 8)
		case KindAimIK:
			writeBits(bs, &pos, uint64(t.EffectorBone), boneBits)
			writeTarget(bs, &pos, t.Target)
			writeBits(bs, &pos, uint64(quantize8(clamp01Frac(t.AimConeLimit))), 8)
		case KindIKRig:
			writeBits(bs, &pos, uint64(rigSlot(i)), 16)
			writeBits(bs, &pos, uint64(t.RigTargetsLen), 3)
			for j := 0; j < t.RigTargetsLen; j++ {
				writeTarget(bs, &pos, t.RigTargets[j])
			}
		}
	}
	return bs
}

// Decode rebuilds the task list from a bit stream encoded by Encode,
// resolving clip/rig data-slot references through res.
func Decode(skel *skeleton.Skeleton, res Resources, bs *bitset.BitSet) []Task {
	// Decode is a pure data-reconstruction step: it returns the decoded task
	// list for the caller to feed into a System via its Register* methods
	// (keeping System's invariant checks in one place), rather than mutating a
	// System directly.
	pos := uint(0)
	count := int(readBits(bs, &pos, 5))
	depBits := bitsFor(count)
	boneBits := skel.BoneIndexBitWidth()

	tasks := make([]Task, 0, count)
	for i := 0; i < count; i++ {
		kind := Kind(readBits(bs, &pos, kindBits))
		t := Task{Kind: kind, SourceNodeID: -1}

		depCount := expectedDepCount(kind)
		deps := make([]int, depCount)
		for d := 0; d < depCount; d++ {
			deps[d] = int(readBits(bs, &pos, depBits))
		}
		t.setDeps(deps...)

		switch kind {
		case KindSample:
			slot := int(readBits(bs, &pos, 16))
			t.ClipTime = dequantize8(uint8(readBits(bs, &pos, 8)))
			if res != nil {
				t.Clip = res.Clip(slot)
			}
		case KindBlend:
			t.BlendMode = BlendMode(readBits(bs, &pos, 2))
			t.BlendWeight = dequantize8(uint8(readBits(bs, &pos, 8)))
		case KindCachedPoseWrite, KindCachedPoseRead:
			t.CacheKey = uint8(readBits(bs, &pos, 7))
		case KindTwoBoneIK:
			t.EffectorBone = int(readBits(bs, &pos, boneBits))
			t.Target = readTarget(bs, &pos)
			t.AllowedStretch = dequantize8(uint8(readBits(bs, &pos, 8)))
		case KindChainSolver:
			t.EffectorBone = int(readBits(bs, &pos, boneBits))
			t.ChainLength = int(readBits(bs, &pos, 8))
			t.Target = readTarget(bs, &pos)
			t.PivotBone = int(readBits(bs, &pos, 8))
			t.Stiffness = dequantize8(uint8(readBits(bs, &pos, 8)))
			t.AllowedStretch = dequantize8(uint8(readBits(bs, &pos, 8)))
		case KindAimIK:
			t.EffectorBone = int(readBits(bs, &pos, boneBits))
			t.Target = readTarget(bs, &pos)
			t.AimConeLimit = dequantize8(uint8(readBits(bs, &pos, 8)))
		case KindIKRig:
			slot := int(readBits(bs, &pos, 16))
			if res != nil {
				t.Rig = res.Rig(slot)
			}
			t.RigTargetsLen = int(readBits(bs, &pos, 3))
			for j := 0; j < t.RigTargetsLen; j++ {
				t.RigTargets[j] = readTarget(bs, &pos)
			}
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func expectedDepCount(kind Kind) int {
	switch kind {
	case KindReferencePose, KindZeroPose, KindSample, KindCachedPoseRead:
		return 0
	case KindBlend:
		return 2
	default:
		return 1
	}
}

// clamp01Frac clamps an unbounded non-negative value (a stretch percentage
// or cone-limit radians) into [0,1] for 8-bit quantization; no scale is
// applied, so values above 1 travel as 1. Values are clamped, not wrapped,
// so round-tripping through the wire format never overflows.
func clamp01Frac(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// writeTarget encodes a model-space target as 3x32-bit floats.
func writeTarget(bs *bitset.BitSet, pos *uint, target [3]float32) {
	for _, component := range target {
		writeBits(bs, pos, uint64(math.Float32bits(component)), 32)
	}
}

func readTarget(bs *bitset.BitSet, pos *uint) [3]float32 {
	var out [3]float32
	for i := range out {
		out[i] = math.Float32frombits(uint32(readBits(bs, pos, 32)))
	}
	return out
}

func bitsFor(n int) int {
	if n <= 1 {
		return 0
	}
	bits := 0
	for (1 << bits) < n {
		bits++
	}
	return bits
}

func quantize8(w float32) uint8 {
	if w <= 0 {
		return 0
	}
	if w >= 1 {
		return 255
	}
	return uint8(w*255 + 0.5)
}

func dequantize8(q uint8) float32 {
	return float32(q) / 255
}

func writeBits(bs *bitset.BitSet, pos *uint, value uint64, width int) {
	for i := 0; i < width; i++ {
		bit := (value >> uint(width-1-i)) & 1
		if bit != 0 {
			bs.Set(*pos)
		}
		*pos++
	}
}

func readBits(bs *bitset.BitSet, pos *uint, width int) uint64 {
	var value uint64
	for i := 0; i < width; i++ {
		value <<= 1
		if bs.Test(*pos) {
			value |= 1
		}
		*pos++
	}
	return value
}
