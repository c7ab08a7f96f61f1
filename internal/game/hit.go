package game

// Source identifies where a hit event came from.
type Source int

const (
	SourceBus Source = iota
	SourceController
)

func (s Source) String() string {
	if s == SourceController {
		return "controller"
	}
	return "bus"
}

// Hit is one player input event. Bus hits carry the reporting device and its
// mapped value; controller hits carry neither.
type Hit struct {
	Source Source
	Device string
	Value  string
}

// AnyValue marks a target that accepts every hit.
const AnyValue = "any"

// Target is the currently expected correct value. At most one target is
// active at any instant; it is replaced only through the strategy's advance.
type Target struct {
	Value      string
	Generation uint64
	// Nodes to arm with a trigger publish when this target becomes active.
	Nodes []string
	// Announce broadcasts the target value on the color subject.
	Announce bool
}

// Verdict is a strategy's judgement of one hit.
type Verdict struct {
	// Accepted hits count toward the session; the first one arms the
	// duration timer.
	Accepted bool
	Correct  bool
	Points   int
	// Advance replaces the target after the strategy's lockout.
	Advance bool
}
