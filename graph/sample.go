package graph

import (
	"github.com/oxyanim/animgraph/clip"
)

// SampleNode is a leaf pose node sampling an animation clip at a looping
// normalized time. Time advances each frame by DeltaTime / clip duration
// and wraps at 1, tracking a loop count for TimeCondition's "loop count"
// comparand.
type SampleNode struct {
	base
	Clip *clip.Clip

	time      float32
	loopCount int
	result    PoseResult
}

// NewSampleNode creates a sample node over c.
func NewSampleNode(ref Ref, c *clip.Clip) *SampleNode {
	return &SampleNode{base: base{ref: ref}, Clip: c}
}

func (n *SampleNode) Initialize(ctx *Context, initialSyncTime SyncTime) {
	n.time = n.Clip.SyncTrack.FromPercentage(initialSyncTime.EventIndex, initialSyncTime.PercentageThrough)
	n.loopCount = 0
}

func (n *SampleNode) Shutdown(ctx *Context) {}

func (n *SampleNode) SyncTrack() clip.SyncTrack {
	if n.Clip == nil {
		return clip.SyncTrack{}
	}
	return n.Clip.SyncTrack
}

// CurrentTime returns the node's current normalized clip position in [0,1),
// used by TimeCondition's "percentage-through-state" comparand.
func (n *SampleNode) CurrentTime() float32 { return n.time }

// LoopCount returns the number of times this node's clip has wrapped
// around, used by TimeCondition's "loop count" comparand.
func (n *SampleNode) LoopCount() int { return n.loopCount }

func (n *SampleNode) Update(ctx *Context, syncRange *SyncRange) PoseResult {
	if n.beganFrame(ctx.FrameStamp()) {
		return n.result
	}

	if syncRange != nil {
		n.time = n.Clip.SyncTrack.FromPercentage(syncRange.End.EventIndex, syncRange.End.PercentageThrough)
	} else if n.Clip != nil && n.Clip.Duration > 0 {
		n.time += ctx.DeltaTime / n.Clip.Duration
		for n.time >= 1 {
			n.time -= 1
			n.loopCount++
		}
	}

	start := ctx.Events.Mark()
	taskIdx := ctx.Tasks.RegisterSample(int(n.ref), n.Clip, n.time)

	root := [3]float32{}
	if n.Clip != nil {
		// Root motion is reported as the delta of the root bone's local transform
		// translation sampled this frame; the task itself recomputes the full
		// pose, this is just the summary delta handed back up the node tree.
		sampled := ctx.Poses.Acquire()
		n.Clip.Sample(n.time, sampled.Primary)
		root = sampled.Primary.RootMotionDelta.Translation
		ctx.Poses.Release(sampled)
	}

	n.result = PoseResult{TaskIndex: taskIdx, Events: ctx.Events.Since(start), RootMotionDelta: root}
	return n.result
}
