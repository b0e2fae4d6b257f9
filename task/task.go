// Package task implements the deferred pose-task DAG: a register phase that
// appends tasks during graph update, and an execute phase that runs them in
// topological (registration) order against a pose buffer pool.
package task

import (
	"fmt"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/mask"
)

// Kind tags a task's effect.
type Kind int

const (
	KindReferencePose Kind = iota
	KindZeroPose
	KindSample
	KindBlend
	KindCachedPoseWrite
	KindCachedPoseRead
	KindTwoBoneIK
	KindChainSolver
	KindIKRig
	KindAimIK
)

// BlendMode selects how Blend composes its two dependency poses.
type BlendMode int

const (
	BlendInterpolative BlendMode = iota
	BlendAdditive
	BlendInterpolativeGlobalSpace
)

// Stage tags when a task is expected to run relative to a physics step.
type Stage int

const (
	StageAny Stage = iota
	StagePrePhysics
	StagePostPhysics
)

// maxDeps is the practical dependency-count ceiling; no task kind uses more
// than four inputs.
const maxDeps = 4

// Task is one entry in a System's registered DAG. Only the fields relevant
// to its Kind are populated.
type Task struct {
	Kind Kind

	deps    [maxDeps]int
	depCount int

	SourceNodeID int
	Stage        Stage

	// Sample
	Clip     *clip.Clip
	ClipTime float32

	// Blend
	BlendMode   BlendMode
	BlendWeight float32
	BlendMask   *mask.BoneMask

	// CachedPoseWrite / CachedPoseRead
	CacheKey uint8

	// TwoBoneIK / ChainSolver / AimIK
	EffectorBone   int
	ChainLength    int
	Target         [3]float32
	TargetIsWorld  bool
	AllowedStretch float32
	PivotBone      int
	Stiffness      float32
	AimForward     [3]float32
	AimConeLimit   float32

	// IKRig
	Rig           *Rig
	RigTargets    [6][3]float32
	RigTargetsLen int
}

// Deps returns this task's dependency indices.
func (t *Task) Deps() []int {
	return t.deps[:t.depCount]
}

func (t *Task) setDeps(deps ...int) {
	if len(deps) > maxDeps {
		panic(fmt.Sprintf("task: %d dependencies exceeds max %d", len(deps), maxDeps))
	}
	t.depCount = copy(t.deps[:], deps)
}

// Rig is the opaque resource an IKRig task delegates to: a list of named
// effector chains, each solved with the same analytic/iterative solvers as
// the standalone IK tasks.
type Rig struct {
	Name   string
	Chains []RigChain
}

// RigChain names one effector's chain within a Rig.
type RigChain struct {
	EffectorBone   int
	ChainLength    int
	PivotBone      int
	Stiffness      float32
	AllowedStretch float32
}
