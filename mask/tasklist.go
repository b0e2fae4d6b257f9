package mask

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/oxyanim/animgraph/skeleton"
)

// Kind tags a single entry in a BoneMaskTaskList.
type Kind int

const (
	KindMask Kind = iota
	KindGenerateMask
	KindCombineWith
	KindBlendFrom
	KindBlendTo
	KindScaleWeights
)

// kindBits is the fixed width of a task-kind code in the wire format.
const kindBits = 3

// MaxTasks is the largest task-list length the 5-bit count prefix can
// address.
const MaxTasks = 31

// task is one entry in a TaskList. Operand indices reference earlier
// positions in the same list.
type task struct {
	kind      Kind
	maskIndex int     // KindMask: index into the skeleton's registered masks
	weight    float32 // KindGenerateMask, KindScaleWeights: constant/scalar
	blendW    float32 // KindBlendFrom/KindBlendTo: blend weight
	a, b      int     // operand task indices, meaning depends on kind
}

// TaskList is an ordered, at-most-31-entry sequence of deferred mask
// operations, evaluated bottom-up against a mask pool.
type TaskList struct {
	skel  *skeleton.Skeleton
	tasks []task
}

// NewTaskList creates an empty task list bound to skel.
func NewTaskList(skel *skeleton.Skeleton) *TaskList {
	return &TaskList{skel: skel}
}

func (l *TaskList) append(t task) int {
	if len(l.tasks) >= MaxTasks {
		panic(fmt.Sprintf("mask: task list exceeds max %d tasks", MaxTasks))
	}
	l.tasks = append(l.tasks, t)
	return len(l.tasks) - 1
}

// Mask appends a reference to skeleton-owned precomputed mask maskIndex,
// returning this task's index for use as an operand of a later task.
func (l *TaskList) Mask(maskIndex int) int {
	return l.append(task{kind: KindMask, maskIndex: maskIndex})
}

// GenerateMask appends a constant-weight mask task.
func (l *TaskList) GenerateMask(weight float32) int {
	return l.append(task{kind: KindGenerateMask, weight: weight})
}

// CombineWith appends a per-element-product task over two earlier tasks.
func (l *TaskList) CombineWith(a, b int) int {
	l.requireOperand(a)
	l.requireOperand(b)
	return l.append(task{kind: KindCombineWith, a: a, b: b})
}

// BlendFrom appends a blend_from(source, w) task: lerp(source, target, w).
func (l *TaskList) BlendFrom(source, target int, w float32) int {
	l.requireOperand(source)
	l.requireOperand(target)
	return l.append(task{kind: KindBlendFrom, a: source, b: target, blendW: w})
}

// BlendTo appends a blend_to(base, target, w) task, identical evaluation to
// BlendFrom but kept as a distinct kind code to mirror the two named
// operations referencing earlier entries in the same list.
func (l *TaskList) BlendTo(base, target int, w float32) int {
	l.requireOperand(base)
	l.requireOperand(target)
	return l.append(task{kind: KindBlendTo, a: base, b: target, blendW: w})
}

// ScaleWeights appends a scalar-multiply task over an earlier task.
func (l *TaskList) ScaleWeights(a int, k float32) int {
	l.requireOperand(a)
	return l.append(task{kind: KindScaleWeights, a: a, weight: k})
}

func (l *TaskList) requireOperand(idx int) {
	if idx < 0 || idx >= len(l.tasks) {
		panic(fmt.Sprintf("mask: task operand index %d is not strictly less than the current position", idx))
	}
}

// Len returns the number of tasks registered.
func (l *TaskList) Len() int {
	return len(l.tasks)
}

// result is the outcome of evaluating one task: a borrowed reference to a
// skeleton mask, or an owned pool slot.
type result struct {
	ref      *BoneMask
	poolSlot int
	pooled   bool
}

// Evaluate runs every task in order against pool, returning the final
// task's mask plus, if it occupies a pool slot, that slot index.
func (l *TaskList) Evaluate(pool *Pool) (*BoneMask, int, bool) {
	if len(l.tasks) == 0 {
		return nil, 0, false
	}
	results := make([]result, len(l.tasks))
	for i, t := range l.tasks {
		results[i] = l.evalOne(pool, t, results[:i])
	}
	last := results[len(results)-1]
	return last.ref, last.poolSlot, last.pooled
}

func (l *TaskList) evalOne(pool *Pool, t task, prior []result) result {
	switch t.kind {
	case KindMask:
		named, ok := l.skel.MaskByIndex(t.maskIndex)
		if !ok {
			// Runtime invariant violation : an out-of-range mask index. Skipped in
			// release builds via a harmless all-one fallback so downstream combine
			// ops are no-ops.
			return result{ref: Constant(l.skel, 1)}
		}
		return result{ref: PerBone(l.skel, named.Weights)}

	case KindGenerateMask:
		slot := pool.Acquire(false)
		pool.Set(slot, Constant(l.skel, t.weight))
		return result{poolSlot: slot, pooled: true, ref: pool.Get(slot)}

	case KindCombineWith:
		return l.evalBinary(pool, prior, t.a, t.b, func(a, b *BoneMask) *BoneMask { return a.CombineWith(b) })

	case KindBlendFrom:
		return l.evalBinary(pool, prior, t.a, t.b, func(a, b *BoneMask) *BoneMask { return b.BlendFrom(a, t.blendW) })

	case KindBlendTo:
		return l.evalBinary(pool, prior, t.a, t.b, func(a, b *BoneMask) *BoneMask { return a.BlendTo(b, t.blendW) })

	case KindScaleWeights:
		operand := prior[t.a]
		out := operand.ref.ScaleWeights(t.weight)
		if operand.pooled {
			pool.Set(operand.poolSlot, out)
			return result{poolSlot: operand.poolSlot, pooled: true, ref: out}
		}
		slot := pool.Acquire(false)
		pool.Set(slot, out)
		return result{poolSlot: slot, pooled: true, ref: out}

	default:
		panic(fmt.Sprintf("mask: unknown task kind %d", t.kind))
	}
}

// evalBinary implements the pool-slot reuse discipline: "if both operands
// are borrowed skeleton masks, acquire a new pool slot and fill it; if
// exactly one is a pool slot, mutate that slot in place and release the
// other if needed; if both are pool slots, reuse one and release the
// other."
func (l *TaskList) evalBinary(pool *Pool, prior []result, ai, bi int, op func(a, b *BoneMask) *BoneMask) result {
	a, b := prior[ai], prior[bi]
	out := op(a.ref, b.ref)

	switch {
	case !a.pooled && !b.pooled:
		slot := pool.Acquire(false)
		pool.Set(slot, out)
		return result{poolSlot: slot, pooled: true, ref: out}

	case a.pooled && !b.pooled:
		pool.Set(a.poolSlot, out)
		return result{poolSlot: a.poolSlot, pooled: true, ref: out}

	case !a.pooled && b.pooled:
		pool.Set(b.poolSlot, out)
		return result{poolSlot: b.poolSlot, pooled: true, ref: out}

	default: // both pooled: reuse a's slot, release b's
		pool.Set(a.poolSlot, out)
		pool.Release(b.poolSlot)
		return result{poolSlot: a.poolSlot, pooled: true, ref: out}
	}
}

// Encode serializes the task list to its wire format: a 5-bit task count
// prefix, then per task a 3-bit kind code, operand/mask index fields sized
// to the list and skeleton, and 8-bit normalized floats for weights.
func (l *TaskList) Encode() *bitset.BitSet {
	indexBits := bitsFor(len(l.tasks))
	maskBits := l.skel.BoneIndexBitWidth()
	if l.skel.MaskCount() > 0 {
		maskBits = bitsForCount(l.skel.MaskCount())
	}

	bs := bitset.New(0)
	pos := uint(0)
	writeBits(bs, &pos, uint64(len(l.tasks)), 5)
	for _, t := range l.tasks {
		writeBits(bs, &pos, uint64(t.kind), kindBits)
		switch t.kind {
		case KindMask:
			writeBits(bs, &pos, uint64(t.maskIndex), maskBits)
		case KindGenerateMask:
			writeBits(bs, &pos, uint64(quantize8(t.weight)), 8)
		case KindCombineWith:
			writeBits(bs, &pos, uint64(t.a), indexBits)
			writeBits(bs, &pos, uint64(t.b), indexBits)
		case KindBlendFrom, KindBlendTo:
			writeBits(bs, &pos, uint64(t.a), indexBits)
			writeBits(bs, &pos, uint64(t.b), indexBits)
			writeBits(bs, &pos, uint64(quantize8(t.blendW)), 8)
		case KindScaleWeights:
			writeBits(bs, &pos, uint64(t.a), indexBits)
			writeBits(bs, &pos, uint64(quantize8(t.weight)), 8)
		}
	}
	return bs
}

// Decode rebuilds a TaskList from wire bits encoded by Encode, against
// skel.
func Decode(skel *skeleton.Skeleton, bs *bitset.BitSet) *TaskList {
	pos := uint(0)
	count := int(readBits(bs, &pos, 5))
	l := NewTaskList(skel)

	indexBits := bitsFor(count)
	maskBits := skel.BoneIndexBitWidth()
	if skel.MaskCount() > 0 {
		maskBits = bitsForCount(skel.MaskCount())
	}

	for i := 0; i < count; i++ {
		kind := Kind(readBits(bs, &pos, kindBits))
		switch kind {
		case KindMask:
			l.Mask(int(readBits(bs, &pos, maskBits)))
		case KindGenerateMask:
			l.GenerateMask(dequantize8(uint8(readBits(bs, &pos, 8))))
		case KindCombineWith:
			a := int(readBits(bs, &pos, indexBits))
			b := int(readBits(bs, &pos, indexBits))
			l.CombineWith(a, b)
		case KindBlendFrom:
			a := int(readBits(bs, &pos, indexBits))
			b := int(readBits(bs, &pos, indexBits))
			w := dequantize8(uint8(readBits(bs, &pos, 8)))
			l.BlendFrom(a, b, w)
		case KindBlendTo:
			a := int(readBits(bs, &pos, indexBits))
			b := int(readBits(bs, &pos, indexBits))
			w := dequantize8(uint8(readBits(bs, &pos, 8)))
			l.BlendTo(a, b, w)
		case KindScaleWeights:
			a := int(readBits(bs, &pos, indexBits))
			k := dequantize8(uint8(readBits(bs, &pos, 8)))
			l.ScaleWeights(a, k)
		}
	}
	return l
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

// bitsForCount returns ceil(log2(n)) for n >= 1, with a floor of 1 bit so a
// single registered mask still has an addressable index field.
func bitsForCount(n int) int {
	b := bitsFor(n)
	if b == 0 {
		b = 1
	}
	return b
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
