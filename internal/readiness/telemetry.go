package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Probe failures. Both are readiness-step failures, not fatal to the system.
var (
	ErrTelemetryTimeout           = errors.New("telemetry: no sample before timeout")
	ErrTelemetryCapabilityMissing = errors.New("telemetry: no complete pose variable scheme in capability table")
)

// Sample is one positional reading. Only its arrival matters to the gate; the
// values are logged for the operator.
type Sample struct {
	X, Y, Z float64
}

// TelemetryConn is the narrow view of a position-reporting device the gate
// needs. Flight control and pose estimation live behind it.
type TelemetryConn interface {
	// SetParam sets a device parameter; failures are non-fatal to the probe.
	SetParam(name, value string) error
	// Capabilities returns the device's declared signal names ("group.name").
	Capabilities() (map[string]struct{}, error)
	// Sample subscribes to the named variables at the given period. The
	// returned stop function must always be called.
	Sample(vars [3]string, period time.Duration) (<-chan Sample, func(), error)
	Close() error
}

// The recognized pose variable schemes, in preference order. A partially
// present scheme counts as absent; variables are never mixed across schemes.
var poseSchemes = [][3]string{
	{"stateEstimate.x", "stateEstimate.y", "stateEstimate.z"},
	{"kalman.stateX", "kalman.stateY", "kalman.stateZ"},
}

const (
	samplePeriod          = 100 * time.Millisecond
	telemetryPollInterval = 100 * time.Millisecond
)

// Gate is the single-device readiness probe: it waits for the first
// positional sample to arrive within the timeout.
type Gate struct {
	log     *zap.Logger
	Timeout time.Duration
}

func NewGate(log *zap.Logger) *Gate {
	return &Gate{log: log, Timeout: DefaultTimeout}
}

// Wait picks the first fully present pose scheme, subscribes to it, and blocks
// until one sample arrives or the timeout elapses. The subscription is stopped
// and the connection closed on every exit path.
func (g *Gate) Wait(ctx context.Context, conn TelemetryConn) error {
	defer func() {
		if err := conn.Close(); err != nil {
			g.log.Warn("telemetry close", zap.Error(err))
		}
	}()

	// Best effort: pose variables only update under the kalman estimator.
	if err := conn.SetParam("stabilizer.estimator", "2"); err != nil {
		g.log.Warn("could not set estimator param", zap.Error(err))
	}

	caps, err := conn.Capabilities()
	if err != nil {
		return fmt.Errorf("read capability table: %w", err)
	}
	vars, ok := choosePoseScheme(caps)
	if !ok {
		return ErrTelemetryCapabilityMissing
	}
	g.log.Info("pose variables selected", zap.Strings("vars", vars[:]))

	samples, stop, err := conn.Sample(vars, samplePeriod)
	if err != nil {
		return fmt.Errorf("start pose sampling: %w", err)
	}
	defer stop()

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		select {
		case s, open := <-samples:
			if !open {
				return ErrTelemetryTimeout
			}
			g.log.Info("first pose sample",
				zap.Float64("x", s.X), zap.Float64("y", s.Y), zap.Float64("z", s.Z))
			return nil
		case <-time.After(telemetryPollInterval):
			if time.Now().After(deadline) {
				return ErrTelemetryTimeout
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func choosePoseScheme(caps map[string]struct{}) ([3]string, bool) {
	for _, scheme := range poseSchemes {
		complete := true
		for _, v := range scheme {
			if _, ok := caps[v]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return scheme, true
		}
	}
	return [3]string{}, false
}
