package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccumulateNeverArmsSameNodeTwice(t *testing.T) {
	a := NewAccumulate(DefaultNodes)

	seen := map[string]bool{}
	last := ""
	var lastGen uint64
	for i := 0; i < 200; i++ {
		target, ok := a.Next()
		require.True(t, ok)
		require.Len(t, target.Nodes, 1)

		node := target.Nodes[0]
		assert.NotEqual(t, last, node, "draw %d repeated the node", i)
		assert.Greater(t, target.Generation, lastGen)
		assert.Equal(t, AnyValue, target.Value)

		seen[node] = true
		last = node
		lastGen = target.Generation
	}
	assert.Len(t, seen, len(DefaultNodes), "every node should be armed eventually")
}

func TestAccumulateScoresEveryHit(t *testing.T) {
	a := NewAccumulate(DefaultNodes)
	v := a.Judge(Hit{Source: SourceBus, Device: "node2", Value: "green"}, Target{Value: AnyValue})
	assert.Equal(t, Verdict{Accepted: true, Correct: true, Points: 1, Advance: true}, v)
	assert.Zero(t, a.Lockout())
	assert.True(t, a.ControllerHitsCorrect())
}

func TestSequenceIsFiniteWithoutImmediateRepeats(t *testing.T) {
	palette := []string{"green", "blue", "yellow"}
	s := NewSequence(palette, 50)
	assert.Equal(t, 50, s.Remaining())

	allowed := map[string]bool{"green": true, "blue": true, "yellow": true}
	last := ""
	for i := 0; i < 50; i++ {
		target, ok := s.Next()
		require.True(t, ok, "draw %d", i)
		assert.True(t, allowed[target.Value], "value %q outside palette", target.Value)
		assert.NotEqual(t, last, target.Value, "draw %d repeated the colour", i)
		assert.True(t, target.Announce)
		assert.Equal(t, DefaultNodes, target.Nodes)
		last = target.Value
	}

	_, ok := s.Next()
	assert.False(t, ok, "sequence must be exhausted")
	assert.Equal(t, 0, s.Remaining())
}

func TestSequenceIgnoresWrongColours(t *testing.T) {
	s := NewSequence([]string{"green", "blue"}, 10)

	correct := s.Judge(Hit{Value: "blue"}, Target{Value: "blue"})
	assert.Equal(t, Verdict{Accepted: true, Correct: true, Points: 1, Advance: true}, correct)

	wrong := s.Judge(Hit{Value: "red"}, Target{Value: "blue"})
	assert.Equal(t, Verdict{}, wrong, "wrong colours neither score nor penalize")
}

func TestMatchTargetJudgesBothWays(t *testing.T) {
	m := NewMatchTarget(paletteColors())

	correct := m.Judge(Hit{Value: "red"}, Target{Value: "red"})
	assert.Equal(t, Verdict{Accepted: true, Correct: true, Points: PointsCorrect, Advance: true}, correct)

	wrong := m.Judge(Hit{Value: "white"}, Target{Value: "red"})
	assert.Equal(t, Verdict{Accepted: true, Correct: false, Points: PointsIncorrect, Advance: false}, wrong)

	assert.Equal(t, time.Second, m.Lockout())
}

func TestMatchTargetDrawsFromPalette(t *testing.T) {
	m := NewMatchTarget([]string{"red", "blue"})
	var lastGen uint64
	for i := 0; i < 20; i++ {
		target, ok := m.Next()
		require.True(t, ok)
		assert.Contains(t, []string{"red", "blue"}, target.Value)
		assert.Greater(t, target.Generation, lastGen)
		lastGen = target.Generation
	}
}

func TestForGameMapsGameNumbers(t *testing.T) {
	cases := []struct {
		game int
		name string
	}{
		{GameHoverAndSeek, "hover-and-seek"},
		{GameHuesDetected, "hues-detected"},
		{GameColourChaos, "colour-chaos"},
	}
	for _, c := range cases {
		strat, err := ForGame(c.game)
		require.NoError(t, err)
		assert.Equal(t, c.name, strat.Name())
	}

	_, err := ForGame(4)
	assert.Error(t, err)
}
