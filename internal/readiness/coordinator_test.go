package readiness

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flycamp/arcade/internal/bus"
)

// fakeBus is an in-memory bus: publishes are delivered synchronously to every
// matching subscription.
type fakeBus struct {
	mu        sync.Mutex
	subs      []*fakeSub
	published []string
}

type fakeSub struct {
	parent  *fakeBus
	pattern string
	handler bus.Handler
	active  bool
}

func (s *fakeSub) Unsubscribe() error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	s.active = false
	return nil
}

func (f *fakeBus) Subscribe(subject string, h bus.Handler) (bus.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSub{parent: f, pattern: subject, handler: h, active: true}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeBus) Publish(subject string, payload []byte) error {
	f.mu.Lock()
	f.published = append(f.published, subject+"="+string(payload))
	handlers := make([]bus.Handler, 0, len(f.subs))
	for _, s := range f.subs {
		if s.active && subjectMatches(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(subject, payload)
	}
	return nil
}

func (f *fakeBus) publishedSubjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func subjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	if len(pt) != len(st) {
		return false
	}
	for i := range pt {
		if pt[i] != "*" && pt[i] != st[i] {
			return false
		}
	}
	return true
}

// ackOnPrepare publishes ready acks for the given devices as soon as the
// prepare broadcast goes out.
func ackOnPrepare(t *testing.T, fb *fakeBus, devices ...string) {
	t.Helper()
	_, err := fb.Subscribe(bus.SubjectPrepare, func(string, []byte) {
		for _, d := range devices {
			_ = fb.Publish(bus.DeviceSubject(bus.SubjectReady, d), []byte(bus.PayloadReady))
		}
	})
	require.NoError(t, err)
}

func TestCheckSucceedsWhenAllDevicesAck(t *testing.T) {
	fb := &fakeBus{}
	ackOnPrepare(t, fb, "node1", "node2", "node3")
	c := NewCoordinator(fb, zap.NewNop())

	res, err := c.Check(context.Background(), CheckOptions{
		Devices: []string{"node1", "node2", "node3"},
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Empty(t, res.Missing)
	assert.ElementsMatch(t, []string{"node1", "node2", "node3"}, res.Acked)
}

func TestCheckReportsMissingDevicesVerbatim(t *testing.T) {
	fb := &fakeBus{}
	ackOnPrepare(t, fb, "node1", "node2")
	c := NewCoordinator(fb, zap.NewNop())

	res, err := c.Check(context.Background(), CheckOptions{
		Devices: []string{"node1", "node2", "node3"},
		Timeout: 500 * time.Millisecond,
	})
	var unready *UnreadyError
	require.ErrorAs(t, err, &unready)
	assert.False(t, res.Ready)
	assert.Equal(t, []string{"node3"}, res.Missing)
	assert.Equal(t, []string{"node3"}, unready.Missing)
}

func TestCheckMissingEqualsSetMinusAcks(t *testing.T) {
	fb := &fakeBus{}
	ackOnPrepare(t, fb, "b", "d")
	c := NewCoordinator(fb, zap.NewNop())

	res, err := c.Check(context.Background(), CheckOptions{
		Devices: []string{"a", "b", "c", "d", "e"},
		Timeout: 500 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, res.Missing)
}

func TestRepeatedAcksAreIdempotent(t *testing.T) {
	fb := &fakeBus{}
	_, err := fb.Subscribe(bus.SubjectPrepare, func(string, []byte) {
		for i := 0; i < 5; i++ {
			_ = fb.Publish(bus.DeviceSubject(bus.SubjectReady, "node1"), []byte(bus.PayloadReady))
		}
	})
	require.NoError(t, err)
	c := NewCoordinator(fb, zap.NewNop())

	res, err := c.Check(context.Background(), CheckOptions{
		Devices: []string{"node1", "node2"},
		Timeout: 500 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, []string{"node1"}, res.Acked)
	assert.Equal(t, []string{"node2"}, res.Missing)
}

func TestCheckHonorsSuppressFlags(t *testing.T) {
	fb := &fakeBus{}
	ackOnPrepare(t, fb, "node1")
	c := NewCoordinator(fb, zap.NewNop())

	// With prepare suppressed the ack trigger never fires.
	res, err := c.Check(context.Background(), CheckOptions{
		Devices:     []string{"node1"},
		Timeout:     400 * time.Millisecond,
		SkipReset:   true,
		SkipPrepare: true,
	})
	require.Error(t, err)
	assert.False(t, res.Ready)

	for _, p := range fb.publishedSubjects() {
		assert.NotContains(t, p, bus.SubjectReset)
		assert.NotContains(t, p, bus.SubjectPrepare+"=")
	}
}

func TestCheckPublishesResetThenPrepare(t *testing.T) {
	fb := &fakeBus{}
	ackOnPrepare(t, fb, "node1")
	c := NewCoordinator(fb, zap.NewNop())

	_, err := c.Check(context.Background(), CheckOptions{
		Devices:   []string{"node1"},
		Timeout:   2 * time.Second,
		VisualCue: "huestheboss",
	})
	require.NoError(t, err)

	published := fb.publishedSubjects()
	require.GreaterOrEqual(t, len(published), 2)
	assert.Equal(t, bus.SubjectReset+"="+bus.PayloadReset, published[0])
	assert.Equal(t, bus.SubjectPrepare+"=huestheboss", published[1])
}
