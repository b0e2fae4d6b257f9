package pose

import "github.com/oxyanim/animgraph/skeleton"

// Buffer is a pose plus an optional secondary pose (for two-channel
// operations like Blend) and a flag recording whether its contents reflect
// a meaningful prior write.
type Buffer struct {
	Primary   *Pose
	Secondary *Pose

	// poseSet is true exactly when Primary's contents reflect a meaningful
	// write.
	poseSet bool

	// index is this buffer's slot in its owning Pool, used by Pool for
	// free-list bookkeeping.
	index int
}

// PoseSet reports whether this buffer's contents are meaningful.
func (b *Buffer) PoseSet() bool {
	return b.poseSet
}

// MarkPoseSet records that Primary now holds a meaningful write. Every task
// that writes a pose must call this before handing the buffer to a
// dependent task.
func (b *Buffer) MarkPoseSet() {
	b.poseSet = true
}

func newBuffer(skel *skeleton.Skeleton, index int) *Buffer {
	return &Buffer{Primary: New(skel), index: index}
}

func (b *Buffer) reset(skel *skeleton.Skeleton) {
	b.Primary.Reset()
	b.Secondary = nil
	b.poseSet = false
}
