package controller

import "strings"

// EventKind classifies one line of controller output.
type EventKind int

const (
	// KindHit is a player input event.
	KindHit EventKind = iota
	// KindDiagnostic is anything else the helper prints.
	KindDiagnostic
)

// Event is one parsed line from the controller process. Raw keeps the full
// line so richer payloads can be added without breaking the contract.
type Event struct {
	Kind EventKind
	Raw  string
}

// ParseLine classifies one line of the helper's stdout. A line is a hit iff it
// contains "hit" case-insensitively; everything else is a diagnostic.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	if strings.Contains(strings.ToLower(line), "hit") {
		return Event{Kind: KindHit, Raw: line}, true
	}
	return Event{Kind: KindDiagnostic, Raw: line}, true
}
