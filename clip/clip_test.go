package clip_test

import (
	"testing"

	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/skeleton"
	"github.com/stretchr/testify/require"
)

func oneBoneSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	return skeleton.New([]skeleton.Bone{{Name: "root", ParentIndex: skeleton.InvalidBoneIndex}})
}

func TestSampleInterpolatesBetweenKeyframes(t *testing.T) {
	skel := oneBoneSkeleton(t)
	start := pose.Identity()
	end := pose.Identity()
	end.Translation = [3]float32{10, 0, 0}

	c := clip.New(skel, 1.0, clip.SyncTrack{}, []float32{0, 1}, [][]pose.Transform{{start}, {end}})

	out := pose.New(skel)
	c.Sample(0.5, out)
	require.InDelta(t, 5.0, out.Local(0).Translation[0], 1e-5)
}

func TestSyncTrackTimeRoundTrip(t *testing.T) {
	track := clip.SyncTrack{Events: []clip.SyncEvent{
		{Name: "footL", Percentage: 0},
		{Name: "footR", Percentage: 0.5},
	}}

	idx, pct := track.Time(0.75)
	require.Equal(t, 1, idx)
	require.InDelta(t, 0.5, pct, 1e-5)

	back := track.FromPercentage(idx, pct)
	require.InDelta(t, 0.75, back, 1e-5)
}
