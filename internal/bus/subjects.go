package bus

import "strings"

// Subjects spoken between the console and the target nodes. Per-device
// subjects append the device id as the final token.
const (
	SubjectReset       = "game.reset"
	SubjectPrepare     = "game.prepare"
	SubjectReady       = "game.ready"
	SubjectTrigger     = "game.trigger"
	SubjectHit         = "game.hit"
	SubjectColor       = "game.color"
	SubjectScore       = "game.score"
	SubjectHitFeedback = "game.hitfb"
)

// Well-known payloads.
const (
	PayloadReset = "reset"
	PayloadReady = "ready"
	PayloadStart = "start"
	PayloadHit   = "hit"
)

// DeviceSubject builds the per-device form of a subject, e.g.
// DeviceSubject(SubjectReady, "node3") -> "game.ready.node3".
func DeviceSubject(base, deviceID string) string {
	return base + "." + deviceID
}

// WildcardSubject subscribes to all devices under a base subject.
func WildcardSubject(base string) string {
	return base + ".*"
}

// DeviceFromSubject returns the trailing device token of a per-device
// subject, or "" if the subject has no device suffix.
func DeviceFromSubject(subject string) string {
	i := strings.LastIndex(subject, ".")
	if i < 0 || i == len(subject)-1 {
		return ""
	}
	return subject[i+1:]
}
