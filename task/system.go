package task

import (
	"fmt"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/common"
	"github.com/oxyanim/animgraph/ik"
	"github.com/oxyanim/animgraph/mask"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
)

// maxTasks bounds a single frame's task count, matching the 5-bit count
// prefix the wire format shares with package mask's task lists.
const maxTasks = 31

// System is the per-instance task builder/executor: nodes register tasks
// during graph update, then System.Execute runs them in registration order
// against a pose buffer pool.
type System struct {
	skel *skeleton.Skeleton
	pool *pose.Pool

	tasks   []Task
	outputs []*pose.Buffer

	// refs counts the remaining consumers of each task's output during
	// Execute; a dependency's buffer is released (or transferred) only
	// when its last consumer is done with it, which keeps shared subtrees
	// (one task feeding several parents) sound.
	refs []int
}

// NewSystem creates an empty task system bound to skel and pool. A fresh
// System must be created (or Reset) every frame.
func NewSystem(skel *skeleton.Skeleton, pool *pose.Pool) *System {
	return &System{skel: skel, pool: pool}
}

// Reset clears registered tasks and outputs for the next frame. Any
// still-owned output buffers should already have been released by the
// caller before calling Reset.
func (s *System) Reset() {
	s.tasks = s.tasks[:0]
	s.outputs = s.outputs[:0]
}

// Len returns the number of registered tasks.
func (s *System) Len() int {
	return len(s.tasks)
}

func (s *System) register(t Task) int {
	if len(s.tasks) >= maxTasks {
		panic(fmt.Sprintf("task: system exceeds max %d tasks per frame", maxTasks))
	}
	s.tasks = append(s.tasks, t)
	s.outputs = append(s.outputs, nil)
	return len(s.tasks) - 1
}

// Append adds an already-built task, typically decoded from a replicated
// stream, validating its dependency indices against the tasks registered
// so far.
func (s *System) Append(t Task) int {
	for _, d := range t.Deps() {
		if d < 0 || d >= len(s.tasks) {
			panic(fmt.Sprintf("task: dependency %d out of range (%d tasks)", d, len(s.tasks)))
		}
	}
	return s.register(t)
}

// RegisterReferencePose appends a ReferencePose task.
func (s *System) RegisterReferencePose(sourceNodeID int) int {
	return s.register(Task{Kind: KindReferencePose, SourceNodeID: sourceNodeID})
}

// RegisterZeroPose appends a ZeroPose task.
func (s *System) RegisterZeroPose(sourceNodeID int) int {
	return s.register(Task{Kind: KindZeroPose, SourceNodeID: sourceNodeID})
}

// RegisterSample appends a Sample task that samples c at normalized time t.
func (s *System) RegisterSample(sourceNodeID int, c *clip.Clip, t float32) int {
	task := Task{Kind: KindSample, SourceNodeID: sourceNodeID, Clip: c, ClipTime: t}
	return s.register(task)
}

// RegisterBlend appends a Blend task combining the poses produced by source
// and target, with optional m (nil for no mask).
func (s *System) RegisterBlend(sourceNodeID, source, target int, mode BlendMode, w float32, m *mask.BoneMask) int {
	t := Task{Kind: KindBlend, SourceNodeID: sourceNodeID, BlendMode: mode, BlendWeight: w, BlendMask: m}
	t.setDeps(source, target)
	return s.register(t)
}

// RegisterCachedPoseWrite appends a task copying dependency dep's pose into
// the keyed cache, passing the same pose through as its own output.
func (s *System) RegisterCachedPoseWrite(sourceNodeID int, dep int, key uint8) int {
	t := Task{Kind: KindCachedPoseWrite, SourceNodeID: sourceNodeID, CacheKey: key}
	t.setDeps(dep)
	return s.register(t)
}

// RegisterCachedPoseRead appends a task copying the keyed cache into a
// fresh output, or emitting an empty pose if no such cache entry exists.
func (s *System) RegisterCachedPoseRead(sourceNodeID int, key uint8) int {
	return s.register(Task{Kind: KindCachedPoseRead, SourceNodeID: sourceNodeID, CacheKey: key})
}

// RegisterTwoBoneIK appends a TwoBoneIK task over dependency dep's pose.
func (s *System) RegisterTwoBoneIK(sourceNodeID int, dep int, effectorBone int, target [3]float32, allowedStretch float32) int {
	t := Task{Kind: KindTwoBoneIK, SourceNodeID: sourceNodeID, EffectorBone: effectorBone, Target: target, AllowedStretch: allowedStretch}
	t.setDeps(dep)
	return s.register(t)
}

// RegisterChainSolver appends a ChainSolver task.
func (s *System) RegisterChainSolver(sourceNodeID int, dep int, effectorBone, chainLength int, target [3]float32, pivotBone int, stiffness, allowedStretch float32) int {
	t := Task{Kind: KindChainSolver, SourceNodeID: sourceNodeID, EffectorBone: effectorBone, ChainLength: chainLength, Target: target, PivotBone: pivotBone, Stiffness: stiffness, AllowedStretch: allowedStretch}
	t.setDeps(dep)
	return s.register(t)
}

// RegisterIKRig appends an IKRig task delegating to rig with up to 6
// per-effector targets.
func (s *System) RegisterIKRig(sourceNodeID int, dep int, rig *Rig, targets [][3]float32) int {
	t := Task{Kind: KindIKRig, SourceNodeID: sourceNodeID, Rig: rig}
	t.RigTargetsLen = copy(t.RigTargets[:], targets)
	t.setDeps(dep)
	return s.register(t)
}

// RegisterAimIK appends an AimIK task rotating aimBone so forward points at
// target, clamped by coneLimit radians.
func (s *System) RegisterAimIK(sourceNodeID int, dep int, aimBone int, forward [3]float32, target [3]float32, coneLimit float32) int {
	t := Task{Kind: KindAimIK, SourceNodeID: sourceNodeID, EffectorBone: aimBone, AimForward: forward, Target: target, AimConeLimit: coneLimit}
	t.setDeps(dep)
	return s.register(t)
}

// Execute runs every registered task in order. Dependency buffers are
// released as their last consumer finishes with them; outputs nothing
// consumed (the root, plus any dead branches) stay owned by the system
// until ReleaseOutput or ReleaseAll.
func (s *System) Execute() {
	s.refs = make([]int, len(s.tasks))
	for _, t := range s.tasks {
		for _, d := range t.Deps() {
			s.refs[d]++
		}
	}
	for i, t := range s.tasks {
		s.outputs[i] = s.executeOne(t)
	}
}

// accessDep borrows dependency slot i of t read-only.
func (s *System) accessDep(t Task, i int) *pose.Buffer {
	return s.outputs[t.Deps()[i]]
}

// consumeDep records that one consumer of dependency slot i is done
// reading; the buffer is released once no consumers remain.
func (s *System) consumeDep(t Task, i int) {
	d := t.Deps()[i]
	s.refs[d]--
	if s.refs[d] == 0 && s.outputs[d] != nil {
		s.pool.Release(s.outputs[d])
		s.outputs[d] = nil
	}
}

// transferDep takes ownership of dependency slot i's buffer for in-place
// mutation. If other consumers still need the dependency, the contents are
// copied into a fresh buffer instead.
func (s *System) transferDep(t Task, i int) *pose.Buffer {
	d := t.Deps()[i]
	s.refs[d]--
	src := s.outputs[d]
	if s.refs[d] == 0 {
		s.outputs[d] = nil
		return src
	}
	out := s.pool.Acquire()
	out.Primary.CopyFrom(src.Primary)
	if src.PoseSet() {
		out.MarkPoseSet()
	}
	return out
}

// Output returns the buffer produced by task index i. Valid only after
// Execute.
func (s *System) Output(i int) *pose.Buffer {
	return s.outputs[i]
}

// ReleaseOutput releases task i's output buffer back to the pool. Safe to
// call at most once per task index.
func (s *System) ReleaseOutput(i int) {
	if s.outputs[i] == nil {
		return
	}
	s.pool.Release(s.outputs[i])
	s.outputs[i] = nil
}

// ReleaseAll releases every output buffer still owned by the system,
// returning the pool to its frame-boundary state.
func (s *System) ReleaseAll() {
	for i := range s.outputs {
		s.ReleaseOutput(i)
	}
}

func (s *System) executeOne(t Task) *pose.Buffer {
	switch t.Kind {
	case KindReferencePose:
		buf := s.pool.Acquire()
		buf.Primary.SetReferencePose()
		buf.MarkPoseSet()
		return buf

	case KindZeroPose:
		buf := s.pool.Acquire()
		buf.Primary.SetZeroPose()
		buf.MarkPoseSet()
		return buf

	case KindSample:
		buf := s.pool.Acquire()
		if t.Clip != nil {
			t.Clip.Sample(t.ClipTime, buf.Primary)
		}
		buf.MarkPoseSet()
		return buf

	case KindBlend:
		return s.executeBlend(t)

	case KindCachedPoseWrite:
		src := s.transferDep(t, 0)
		cached := s.pool.GetOrCreateCached(pose.CachedPoseKey(t.CacheKey))
		cached.Primary.CopyFrom(src.Primary)
		cached.MarkPoseSet()
		return src

	case KindCachedPoseRead:
		cached, ok := s.pool.GetCached(pose.CachedPoseKey(t.CacheKey))
		buf := s.pool.Acquire()
		if ok && cached.PoseSet() {
			buf.Primary.CopyFrom(cached.Primary)
			buf.MarkPoseSet()
		}
		return buf

	case KindTwoBoneIK:
		return s.executeTwoBoneIK(t)

	case KindChainSolver:
		return s.executeChainSolver(t)

	case KindAimIK:
		return s.executeAimIK(t)

	case KindIKRig:
		return s.executeIKRig(t)

	default:
		panic(fmt.Sprintf("task: unknown kind %d", t.Kind))
	}
}

func (s *System) executeBlend(t Task) *pose.Buffer {
	// Uniform-tag and endpoint-weight short-circuits: the untouched
	// operand is passed through and the other released.
	zeroEffect := (t.BlendMask != nil && t.BlendMask.Tag() == mask.TagZero) ||
		(t.BlendMask == nil && t.BlendWeight <= 0)
	fullEffect := t.BlendWeight >= 1 &&
		(t.BlendMask == nil || t.BlendMask.Tag() == mask.TagOne)
	if zeroEffect {
		out := s.transferDep(t, 0)
		s.consumeDep(t, 1)
		return out
	}
	if fullEffect {
		s.consumeDep(t, 0)
		return s.transferDep(t, 1)
	}

	source := s.accessDep(t, 0)
	target := s.accessDep(t, 1)
	out := s.pool.Acquire()
	n := s.skel.BoneCount()
	if t.BlendMode == BlendInterpolativeGlobalSpace {
		// Blend in model space, then convert the result back to local by
		// peeling each bone off its already-blended parent.
		blended := make([]pose.Transform, n)
		for i := 0; i < n; i++ {
			w := t.BlendWeight
			if t.BlendMask != nil {
				w = w * t.BlendMask.Weight(i)
			}
			blended[i] = pose.Lerp(source.Primary.Model(i), target.Primary.Model(i), w)
		}
		for i := 0; i < n; i++ {
			parent := s.skel.ParentIndex(i)
			if parent == skeleton.InvalidBoneIndex {
				out.Primary.SetLocal(i, blended[i])
			} else {
				out.Primary.SetLocal(i, blended[i].DeltaFrom(blended[parent]))
			}
		}
	} else {
		for i := 0; i < n; i++ {
			w := t.BlendWeight
			if t.BlendMask != nil {
				w = w * t.BlendMask.Weight(i)
			}
			var result pose.Transform
			if t.BlendMode == BlendAdditive {
				result = pose.ComposeAdditive(source.Primary.Local(i), target.Primary.Local(i), w)
			} else {
				result = pose.Lerp(source.Primary.Local(i), target.Primary.Local(i), w)
			}
			out.Primary.SetLocal(i, result)
		}
	}
	out.MarkPoseSet()
	s.consumeDep(t, 0)
	s.consumeDep(t, 1)
	return out
}

// boneChainUp returns the indices [ancestor...effector] walking up `steps`
// parents from effector, root-to-leaf order.
func boneChainUp(skel *skeleton.Skeleton, effector, steps int) []int {
	chain := []int{effector}
	cur := effector
	for i := 0; i < steps; i++ {
		p := skel.ParentIndex(cur)
		if p == skeleton.InvalidBoneIndex {
			break
		}
		cur = int(p)
		chain = append(chain, cur)
	}
	// reverse to root-first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// writeBackLocal converts a solved model-space transform for bone idx back
// into local space given its parent's (unchanged) model transform, and
// writes it to p.
func writeBackLocal(skel *skeleton.Skeleton, p *pose.Pose, idx int, newModel pose.Transform) {
	parent := skel.ParentIndex(idx)
	if parent == skeleton.InvalidBoneIndex {
		p.SetLocal(idx, newModel)
		return
	}
	p.SetLocal(idx, newModel.DeltaFrom(p.Model(int(parent))))
}

func (s *System) executeTwoBoneIK(t Task) *pose.Buffer {
	buf := s.transferDep(t, 0)
	chainIdx := boneChainUp(s.skel, t.EffectorBone, 2)
	if len(chainIdx) != 3 {
		// Definition error : effector doesn't have two ancestors. Fall through
		// with the input pose untouched.
		return buf
	}
	a, b, c := chainIdx[0], chainIdx[1], chainIdx[2]
	chain := ik.TwoBoneChain{A: buf.Primary.Model(a), B: buf.Primary.Model(b), C: buf.Primary.Model(c)}
	result := ik.SolveTwoBone(chain, t.Target, t.AllowedStretch)

	writeBackLocal(s.skel, buf.Primary, a, result.A)
	writeBackLocal(s.skel, buf.Primary, b, result.B)
	return buf
}

func (s *System) executeChainSolver(t Task) *pose.Buffer {
	buf := s.transferDep(t, 0)
	chainIdx := boneChainUp(s.skel, t.EffectorBone, t.ChainLength-1)
	if len(chainIdx) < 2 {
		return buf
	}
	links := make([]ik.ChainLink, len(chainIdx))
	for i, idx := range chainIdx {
		m := buf.Primary.Model(idx)
		links[i] = ik.ChainLink{Position: m.Translation, Rotation: m.Rotation}
	}
	pivot := t.PivotBone
	if pivot < 0 || pivot >= len(chainIdx) {
		pivot = 0
	}
	result := ik.SolveChain(links, t.Target, pivot, t.Stiffness, t.AllowedStretch, 6)

	for i, idx := range chainIdx[:len(chainIdx)-1] {
		m := buf.Primary.Model(idx)
		m.Rotation = result.Links[i].Rotation
		m.Translation = result.Links[i].Position
		writeBackLocal(s.skel, buf.Primary, idx, m)
	}
	return buf
}

func (s *System) executeAimIK(t Task) *pose.Buffer {
	buf := s.transferDep(t, 0)
	model := buf.Primary.Model(t.EffectorBone)
	currentDir := common.QuatRotateVec3(model.Rotation, t.AimForward)
	toTarget := common.Vec3Sub(t.Target, model.Translation)
	if common.Vec3Length(toTarget) < 1e-8 {
		return buf
	}
	desiredDir := common.Vec3Normalize(toTarget)
	delta := common.QuatBetween(common.Vec3Normalize(currentDir), desiredDir)

	swing := common.QuatSwingAngle(t.AimForward, common.IdentityQuat(), delta)
	if t.AimConeLimit > 0 && swing > t.AimConeLimit {
		clampT := t.AimConeLimit / swing
		delta = common.QuatNLerp(common.IdentityQuat(), delta, clampT)
	}

	model.Rotation = common.QuatNormalize(common.QuatMul(delta, model.Rotation))
	writeBackLocal(s.skel, buf.Primary, t.EffectorBone, model)
	return buf
}

func (s *System) executeIKRig(t Task) *pose.Buffer {
	buf := s.transferDep(t, 0)
	if t.Rig == nil {
		return buf
	}
	for i, rigChain := range t.Rig.Chains {
		if i >= t.RigTargetsLen {
			break
		}
		target := t.RigTargets[i]
		if rigChain.ChainLength <= 2 {
			chainIdx := boneChainUp(s.skel, rigChain.EffectorBone, 2)
			if len(chainIdx) != 3 {
				continue
			}
			a, b, c := chainIdx[0], chainIdx[1], chainIdx[2]
			chain := ik.TwoBoneChain{A: buf.Primary.Model(a), B: buf.Primary.Model(b), C: buf.Primary.Model(c)}
			result := ik.SolveTwoBone(chain, target, rigChain.AllowedStretch)
			writeBackLocal(s.skel, buf.Primary, a, result.A)
			writeBackLocal(s.skel, buf.Primary, b, result.B)
			continue
		}

		chainIdx := boneChainUp(s.skel, rigChain.EffectorBone, rigChain.ChainLength-1)
		if len(chainIdx) < 2 {
			continue
		}
		links := make([]ik.ChainLink, len(chainIdx))
		for j, idx := range chainIdx {
			m := buf.Primary.Model(idx)
			links[j] = ik.ChainLink{Position: m.Translation, Rotation: m.Rotation}
		}
		pivot := rigChain.PivotBone
		if pivot < 0 || pivot >= len(chainIdx) {
			pivot = 0
		}
		result := ik.SolveChain(links, target, pivot, rigChain.Stiffness, rigChain.AllowedStretch, 6)
		for j, idx := range chainIdx[:len(chainIdx)-1] {
			m := buf.Primary.Model(idx)
			m.Rotation = result.Links[j].Rotation
			m.Translation = result.Links[j].Position
			writeBackLocal(s.skel, buf.Primary, idx, m)
		}
	}
	return buf
}
