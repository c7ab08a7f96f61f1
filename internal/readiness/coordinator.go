// Package readiness implements the pre-game device handshake: a
// reset→prepare→ready round trip across the target fleet, a telemetry probe
// for the drone, and an aggregated check that runs every configured step and
// reports them all.
package readiness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/flycamp/arcade/internal/bus"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultVisualCue   = "shieldworld"
	pollInterval       = 50 * time.Millisecond
	resetGraceInterval = 200 * time.Millisecond
)

// UnreadyError reports the devices that never acked. The missing list is the
// primary diagnostic surfaced to operators and is reported verbatim.
type UnreadyError struct {
	Missing []string
}

func (e *UnreadyError) Error() string {
	return fmt.Sprintf("devices not ready: %s", strings.Join(e.Missing, ", "))
}

// CheckOptions configures one handshake invocation.
type CheckOptions struct {
	Devices   []string
	Timeout   time.Duration
	VisualCue string
	// SkipReset and SkipPrepare suppress the corresponding broadcast.
	SkipReset   bool
	SkipPrepare bool
}

// Result is the immutable outcome of one handshake.
type Result struct {
	Ready   bool     `json:"ready"`
	Acked   []string `json:"acked"`
	Missing []string `json:"missing"`
}

// Coordinator runs the handshake over the message bus. It blocks its caller
// directly; it is only used before a session exists.
type Coordinator struct {
	bus bus.Bus
	log *zap.Logger
}

func NewCoordinator(b bus.Bus, log *zap.Logger) *Coordinator {
	return &Coordinator{bus: b, log: log}
}

// Check runs reset→prepare→ready for the given device set. It succeeds iff
// every device acks within the timeout; one missing device fails the whole
// check. Repeated acks from the same device are idempotent.
func (c *Coordinator) Check(ctx context.Context, opts CheckOptions) (Result, error) {
	ctx, span := otel.Tracer("arcade/readiness").Start(ctx, "readiness.Check")
	defer span.End()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.VisualCue == "" {
		opts.VisualCue = DefaultVisualCue
	}

	var (
		mu    sync.Mutex
		acked = make(map[string]time.Time, len(opts.Devices))
	)
	wanted := make(map[string]struct{}, len(opts.Devices))
	for _, id := range opts.Devices {
		wanted[id] = struct{}{}
	}

	sub, err := c.bus.Subscribe(bus.WildcardSubject(bus.SubjectReady), func(subject string, payload []byte) {
		if strings.TrimSpace(strings.ToLower(string(payload))) != bus.PayloadReady {
			return
		}
		id := bus.DeviceFromSubject(subject)
		if _, ok := wanted[id]; !ok {
			return
		}
		mu.Lock()
		if _, seen := acked[id]; !seen {
			acked[id] = time.Now()
			c.log.Info("device ready", zap.String("device", id))
		}
		mu.Unlock()
	})
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if uerr := sub.Unsubscribe(); uerr != nil {
			c.log.Warn("ready unsubscribe", zap.Error(uerr))
		}
	}()

	if !opts.SkipReset {
		if err := c.bus.Publish(bus.SubjectReset, []byte(bus.PayloadReset)); err != nil {
			return Result{}, fmt.Errorf("publish reset: %w", err)
		}
		// Brief grace so nodes finish their reset handlers before the visual.
		select {
		case <-time.After(resetGraceInterval):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if !opts.SkipPrepare {
		if err := c.bus.Publish(bus.SubjectPrepare, []byte(opts.VisualCue)); err != nil {
			return Result{}, fmt.Errorf("publish prepare: %w", err)
		}
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		mu.Lock()
		done := len(acked) == len(wanted)
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	res := Result{Ready: len(acked) == len(wanted)}
	for id := range acked {
		res.Acked = append(res.Acked, id)
	}
	for _, id := range opts.Devices {
		if _, ok := acked[id]; !ok {
			res.Missing = append(res.Missing, id)
		}
	}
	sort.Strings(res.Acked)
	if !res.Ready {
		return res, &UnreadyError{Missing: res.Missing}
	}
	return res, nil
}
