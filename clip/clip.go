// Package clip implements the read-only animation clip resource: a fixed
// duration, a named sync track, a root-motion curve, and a sample method
// producing a pose at a normalized time.
package clip

import (
	"sort"

	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
)

// SyncEvent is a single named marker distributed over a clip's normalized
// duration.
type SyncEvent struct {
	Name string
	// Percentage is this event's position in [0,1) along the clip.
	Percentage float32
}

// SyncTrack is the ordered set of sync events belonging to a clip, used to
// align two time-varying poses by phase rather than wall time.
type SyncTrack struct {
	Events []SyncEvent
}

// Time locates a normalized clip position t in [0,1) against a sync track,
// returning the index of the event at or before t and the fractional
// percentage through the interval to the next event.
func (s SyncTrack) Time(t float32) (eventIndex int, percentageThrough float32) {
	if len(s.Events) == 0 {
		return 0, 0
	}
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].Percentage <= t {
			eventIndex = i
			break
		}
	}
	start := s.Events[eventIndex].Percentage
	var end float32 = 1
	if eventIndex+1 < len(s.Events) {
		end = s.Events[eventIndex+1].Percentage
	}
	span := end - start
	if span <= 0 {
		return eventIndex, 0
	}
	return eventIndex, (t - start) / span
}

// FromPercentage converts an (eventIndex, percentageThrough) sync time back
// into a normalized clip position.
func (s SyncTrack) FromPercentage(eventIndex int, percentageThrough float32) float32 {
	if len(s.Events) == 0 {
		return 0
	}
	start := s.Events[eventIndex].Percentage
	var end float32 = 1
	if eventIndex+1 < len(s.Events) {
		end = s.Events[eventIndex+1].Percentage
	}
	return start + (end-start)*percentageThrough
}

// keyframe is one sampled local-transform snapshot at a normalized time.
type keyframe struct {
	t     float32
	local []pose.Transform
}

// Clip is a read-only animation resource: a fixed-length track of keyframes
// per bone, a duration, a sync track, and an optional root-motion curve.
type Clip struct {
	skel      *skeleton.Skeleton
	Duration  float32
	SyncTrack SyncTrack
	frames    []keyframe

	// rootBoneIndex names the root-motion bone. Sample writes its sampled
	// local transform into the output pose's RootMotionDelta, the same way
	// as any other bone track.
	rootBoneIndex int32
}

// New constructs a clip from an explicit, time-ordered list of keyframes.
// Frames must be sorted ascending by normalized time and each must supply
// one local transform per bone in skel.
func New(skel *skeleton.Skeleton, duration float32, sync SyncTrack, frameTimes []float32, frameLocals [][]pose.Transform) *Clip {
	if len(frameTimes) != len(frameLocals) {
		panic("clip: frameTimes and frameLocals length mismatch")
	}
	frames := make([]keyframe, len(frameTimes))
	for i, t := range frameTimes {
		if len(frameLocals[i]) != skel.BoneCount() {
			panic("clip: keyframe bone count mismatch with skeleton")
		}
		frames[i] = keyframe{t: t, local: frameLocals[i]}
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].t < frames[j].t })

	rootIdx := skeleton.InvalidBoneIndex
	if skel.BoneCount() > 0 {
		rootIdx = 0
	}
	return &Clip{skel: skel, Duration: duration, SyncTrack: sync, frames: frames, rootBoneIndex: rootIdx}
}

// Skeleton returns the skeleton this clip was authored against.
func (c *Clip) Skeleton() *skeleton.Skeleton {
	return c.skel
}

// Sample writes the pose at normalized time t (clamped to [0,1]) into out,
// linearly interpolating between the bracketing keyframes.
func (c *Clip) Sample(t float32, out *pose.Pose) {
	if len(c.frames) == 0 {
		out.Reset()
		return
	}
	if t < 0 {
		t = 0
	}
	if t >= 1 {
		t = 1
	}

	if len(c.frames) == 1 {
		for i, tr := range c.frames[0].local {
			out.SetLocal(i, tr)
		}
		if c.rootBoneIndex != skeleton.InvalidBoneIndex {
			out.RootMotionDelta = out.Local(int(c.rootBoneIndex))
		}
		return
	}

	lo := 0
	for lo+1 < len(c.frames) && c.frames[lo+1].t <= t {
		lo++
	}
	hi := lo + 1
	if hi >= len(c.frames) {
		for i, tr := range c.frames[lo].local {
			out.SetLocal(i, tr)
		}
		if c.rootBoneIndex != skeleton.InvalidBoneIndex {
			out.RootMotionDelta = out.Local(int(c.rootBoneIndex))
		}
		return
	}

	span := c.frames[hi].t - c.frames[lo].t
	w := float32(0)
	if span > 0 {
		w = (t - c.frames[lo].t) / span
	}
	for i := range c.frames[lo].local {
		out.SetLocal(i, pose.Lerp(c.frames[lo].local[i], c.frames[hi].local[i], w))
	}

	if c.rootBoneIndex != skeleton.InvalidBoneIndex {
		out.RootMotionDelta = out.Local(int(c.rootBoneIndex))
	}
}
