package scheduler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxyanim/animgraph/character"
	"github.com/oxyanim/animgraph/clip"
	"github.com/oxyanim/animgraph/graph"
	"github.com/oxyanim/animgraph/pose"
	"github.com/oxyanim/animgraph/scheduler"
	"github.com/oxyanim/animgraph/skeleton"
)

func testDefinition(t *testing.T) (*graph.Definition, *skeleton.Skeleton) {
	t.Helper()
	skel := skeleton.New([]skeleton.Bone{
		{Name: "root", ParentIndex: skeleton.InvalidBoneIndex},
		{Name: "spine", ParentIndex: 0},
	})
	frame := []pose.Transform{pose.Identity(), pose.Identity()}
	frame[1].Translation = [3]float32{0.5, 0, 0}
	c := clip.New(skel, 1, clip.SyncTrack{}, []float32{0}, [][]pose.Transform{frame})

	b := graph.NewBuilder()
	b.Add(graph.ConstFloatDef{Value: 0})
	sample := b.Add(graph.SampleDef{Clip: c})
	state := b.Add(graph.StateDef{Child: sample})
	machine := b.Add(graph.StateMachineDef{States: []graph.Ref{state}})
	return b.Build(machine), skel
}

func TestManagerUpdatesEveryCharacter(t *testing.T) {
	def, skel := testDefinition(t)
	m := scheduler.NewManager(scheduler.WithWorkers(4))

	const n = 16
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, m.Add(character.New(fmt.Sprintf("char-%d", i), def, skel)))
	}
	require.Equal(t, n, m.Count())

	for frame := 0; frame < 8; frame++ {
		m.Update(1.0 / 60)
	}

	for _, id := range ids {
		c := m.Get(id)
		require.NotNil(t, c)
		out := c.LastOutput()
		require.NotNil(t, out.Pose)
		require.InDelta(t, 0.5, out.Pose.Local(1).Translation[0], 1e-5)
	}

	m.Shutdown()
	require.Equal(t, 0, m.Count())
}

func TestCharacterParameterWrites(t *testing.T) {
	def, skel := testDefinition(t)
	c := character.New("solo", def, skel)
	c.SetFloat("speed", 2.5)
	c.SetBool("crouching", true)
	c.SetWorldTransform(pose.Transform{
		Rotation:    [4]float32{0, 0, 0, 1},
		Translation: [3]float32{10, 0, 0},
		Scale:       1,
	})

	out := c.Update(1.0 / 60)
	require.NotNil(t, out.Pose)
	require.InDelta(t, 10.0, c.WorldTransform().Translation[0], 1e-6)
	c.Shutdown()
}
