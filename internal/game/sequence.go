package game

import (
	"math/rand/v2"
	"time"
)

// DefaultSequenceLength is how many targets the sequence game precomputes.
const DefaultSequenceLength = 300

// Sequence is the hues-detected rule set: targets are drawn from a
// precomputed finite sequence with no immediate repeats, a correct hit scores
// one point and advances, a wrong hit is ignored outright, and the session
// ends early once the sequence is exhausted.
type Sequence struct {
	seq []string
	idx int
	gen uint64
	// every target arms the whole fleet alongside the colour broadcast
	nodes []string
}

func NewSequence(values []string, length int) *Sequence {
	seq := make([]string, 0, length)
	last := ""
	for i := 0; i < length; i++ {
		options := make([]string, 0, len(values))
		for _, v := range values {
			if v != last {
				options = append(options, v)
			}
		}
		next := options[rand.IntN(len(options))]
		seq = append(seq, next)
		last = next
	}
	return &Sequence{seq: seq, nodes: DefaultNodes}
}

func (s *Sequence) Name() string { return "hues-detected" }

func (s *Sequence) Next() (Target, bool) {
	if s.idx >= len(s.seq) {
		return Target{}, false
	}
	v := s.seq[s.idx]
	s.idx++
	s.gen++
	return Target{Value: v, Generation: s.gen, Nodes: s.nodes, Announce: true}, true
}

func (s *Sequence) Judge(hit Hit, target Target) Verdict {
	if hit.Value == target.Value {
		return Verdict{Accepted: true, Correct: true, Points: 1, Advance: true}
	}
	// Wrong-colour hits are not penalized, they simply don't count.
	return Verdict{}
}

func (s *Sequence) Lockout() time.Duration      { return 0 }
func (s *Sequence) ControllerHitsCorrect() bool { return true }
func (s *Sequence) Duration() time.Duration     { return 30 * time.Second }

// Remaining reports how many targets are left to draw.
func (s *Sequence) Remaining() int { return len(s.seq) - s.idx }
