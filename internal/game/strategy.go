package game

import (
	"fmt"
	"time"
)

// Strategy is the pluggable scoring policy run by the session engine. The
// engine owns all timing and state; a strategy only draws targets and judges
// hits.
type Strategy interface {
	Name() string
	// Next returns the target to arm, or ok=false when the variant has no
	// targets left (the session then ends early).
	Next() (Target, bool)
	// Judge scores a hit against the active target.
	Judge(hit Hit, target Target) Verdict
	// Lockout is how long input is ignored after a correct hit before the
	// target advances. Zero advances immediately.
	Lockout() time.Duration
	// ControllerHitsCorrect reports whether controller-sourced hits bypass
	// target matching and are scored as correct. This is a deliberate
	// simplification of gesture input, kept as an explicit flag.
	ControllerHitsCorrect() bool
	// Duration is the play window, measured from the first accepted hit.
	Duration() time.Duration
}

// The installed fleet: five target nodes, four of them colour-mapped.
var (
	DefaultNodes = []string{"node1", "node2", "node3", "node4", "node5"}

	DefaultNodeColors = map[string]string{
		"node1": "white",
		"node2": "green",
		"node3": "blue",
		"node4": "yellow",
		"node5": "red",
	}
)

// Game numbers as recorded in the ledger.
const (
	GameHoverAndSeek = 1
	GameHuesDetected = 2
	GameColourChaos  = 3
)

// ForGame returns the scoring strategy for a game number.
func ForGame(game int) (Strategy, error) {
	switch game {
	case GameHoverAndSeek:
		return NewAccumulate(DefaultNodes), nil
	case GameHuesDetected:
		return NewSequence(sequenceColors(), DefaultSequenceLength), nil
	case GameColourChaos:
		return NewMatchTarget(paletteColors()), nil
	default:
		return nil, fmt.Errorf("unknown game number %d", game)
	}
}

func paletteColors() []string {
	colors := make([]string, 0, len(DefaultNodeColors))
	for _, n := range DefaultNodes {
		colors = append(colors, DefaultNodeColors[n])
	}
	return colors
}

// sequenceColors is the palette of the sequence game: the colour nodes only,
// node1 (white) is used as a trigger-only beacon there.
func sequenceColors() []string {
	colors := make([]string, 0, len(DefaultNodes)-1)
	for _, n := range DefaultNodes[1:] {
		colors = append(colors, DefaultNodeColors[n])
	}
	return colors
}
