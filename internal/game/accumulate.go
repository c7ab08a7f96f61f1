package game

import (
	"math/rand/v2"
	"time"
)

// Accumulate is the hover-and-seek rule set: every accepted hit scores one
// point, no target matching. Each advance arms a random node, cycling through
// the whole fleet before repeating and never arming the same node twice in a
// row.
type Accumulate struct {
	nodes []string
	pool  []string
	last  string
	gen   uint64
}

func NewAccumulate(nodes []string) *Accumulate {
	return &Accumulate{
		nodes: nodes,
		pool:  append([]string(nil), nodes...),
	}
}

func (a *Accumulate) Name() string { return "hover-and-seek" }

func (a *Accumulate) Next() (Target, bool) {
	if len(a.pool) == 0 {
		a.pool = append([]string(nil), a.nodes...)
	}
	candidates := a.pool
	if len(candidates) > 1 || candidates[0] == a.last {
		filtered := make([]string, 0, len(candidates))
		for _, n := range candidates {
			if n != a.last {
				filtered = append(filtered, n)
			}
		}
		if len(filtered) > 0 {
			candidates = filtered
		} else {
			candidates = a.nodes
		}
	}
	node := candidates[rand.IntN(len(candidates))]
	for i, n := range a.pool {
		if n == node {
			a.pool = append(a.pool[:i], a.pool[i+1:]...)
			break
		}
	}
	a.last = node
	a.gen++
	return Target{Value: AnyValue, Generation: a.gen, Nodes: []string{node}}, true
}

func (a *Accumulate) Judge(Hit, Target) Verdict {
	return Verdict{Accepted: true, Correct: true, Points: 1, Advance: true}
}

func (a *Accumulate) Lockout() time.Duration      { return 0 }
func (a *Accumulate) ControllerHitsCorrect() bool { return true }
func (a *Accumulate) Duration() time.Duration     { return 15 * time.Second }
