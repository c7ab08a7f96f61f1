package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceSubject(t *testing.T) {
	assert.Equal(t, "game.ready.node3", DeviceSubject(SubjectReady, "node3"))
	assert.Equal(t, "game.trigger.node1", DeviceSubject(SubjectTrigger, "node1"))
}

func TestWildcardSubject(t *testing.T) {
	assert.Equal(t, "game.hit.*", WildcardSubject(SubjectHit))
}

func TestDeviceFromSubject(t *testing.T) {
	assert.Equal(t, "node5", DeviceFromSubject("game.ready.node5"))
	assert.Equal(t, "", DeviceFromSubject("noseparator"))
	assert.Equal(t, "", DeviceFromSubject("trailing."))
}
