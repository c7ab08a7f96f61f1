package game

import (
	"math/rand/v2"
	"time"
)

// Match-target scoring constants (colour-chaos rules).
const (
	PointsCorrect   = 50
	PointsIncorrect = -10
	matchLockout    = 1 * time.Second
)

// MatchTarget is the colour-chaos rule set: the target holds an expected
// colour, a matching hit scores PointsCorrect and advances the target after a
// lockout window, a mismatch scores PointsIncorrect and leaves the target in
// place.
type MatchTarget struct {
	values []string
	gen    uint64
}

func NewMatchTarget(values []string) *MatchTarget {
	return &MatchTarget{values: values}
}

func (m *MatchTarget) Name() string { return "colour-chaos" }

func (m *MatchTarget) Next() (Target, bool) {
	m.gen++
	return Target{
		Value:      m.values[rand.IntN(len(m.values))],
		Generation: m.gen,
	}, true
}

func (m *MatchTarget) Judge(hit Hit, target Target) Verdict {
	if hit.Value == target.Value {
		return Verdict{Accepted: true, Correct: true, Points: PointsCorrect, Advance: true}
	}
	return Verdict{Accepted: true, Correct: false, Points: PointsIncorrect, Advance: false}
}

func (m *MatchTarget) Lockout() time.Duration      { return matchLockout }
func (m *MatchTarget) ControllerHitsCorrect() bool { return true }
func (m *MatchTarget) Duration() time.Duration     { return 30 * time.Second }
