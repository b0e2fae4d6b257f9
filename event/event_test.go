package event_test

import (
	"testing"

	"github.com/oxyanim/animgraph/event"
	"github.com/stretchr/testify/require"
)

func TestRangeTrackingAndIgnore(t *testing.T) {
	buf := event.NewBuffer()

	mark := buf.Mark()
	buf.Append(event.SampledEvent{Kind: event.KindStateEntry, OriginNodeID: 1, IsFromActiveBranch: true})
	buf.Append(event.SampledEvent{Kind: event.KindTimed, OriginNodeID: 1, IsFromActiveBranch: true})
	r := buf.Since(mark)

	require.Equal(t, 0, r.Start)
	require.Equal(t, 2, r.End)

	buf.MarkOnlyStateEventsAsIgnored(r)
	require.True(t, buf.At(0).IsIgnored)
	require.False(t, buf.At(1).IsIgnored)
}

func TestMarkFromInactiveBranch(t *testing.T) {
	buf := event.NewBuffer()
	mark := buf.Mark()
	buf.Append(event.SampledEvent{Kind: event.KindStateExit, IsFromActiveBranch: true})
	r := buf.Since(mark)

	buf.MarkEventsAsFromInactiveBranch(r)
	require.False(t, buf.At(0).IsFromActiveBranch)
}

func TestResetClearsBuffer(t *testing.T) {
	buf := event.NewBuffer()
	buf.Append(event.SampledEvent{Kind: event.KindTimed})
	buf.Reset()
	require.Empty(t, buf.Events())
}
