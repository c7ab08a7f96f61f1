// Package game runs the per-session control loop: countdown, active play
// under a pluggable scoring strategy, and termination with a durable ledger
// write. The loop is the single writer of all session state; the bus callback
// and the controller reader hand events in through one channel.
package game

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/flycamp/arcade/internal/bus"
	"github.com/flycamp/arcade/internal/controller"
	"github.com/flycamp/arcade/internal/ledger"
	"github.com/flycamp/arcade/internal/models"
)

// State is the session lifecycle. Ended is terminal.
type State int

const (
	StateIdle State = iota
	StateCountdown
	StateRunning
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCountdown:
		return "countdown"
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	default:
		return "idle"
	}
}

// DefaultCountdown is the delay between start and active play.
const DefaultCountdown = 3 * time.Second

// DefaultIdleLimit bounds how long a session waits for its first accepted hit
// before giving up. Without it a hitless session would block the daemon
// forever, since the play window only opens on the first hit.
const DefaultIdleLimit = 60 * time.Second

const hitBuffer = 64

// Config describes one play.
type Config struct {
	TokenID  int
	Meta     models.SessionMeta
	Strategy Strategy
	// Countdown before the Running state; DefaultCountdown when zero.
	Countdown time.Duration
	// IdleLimit bounds the wait for the first accepted hit; DefaultIdleLimit
	// when zero.
	IdleLimit time.Duration
	// Controller, when set, is the external input helper to supervise. A
	// spawn failure degrades the session to bus-only input.
	Controller *controller.CommandSpec
	// DeviceValues maps a reporting device to its target value.
	DeviceValues map[string]string
	// DonePath, when set, receives the completion marker after finalize.
	DonePath string
}

// Session owns one play from countdown to ledger write.
type Session struct {
	ID string

	cfg    Config
	bus    bus.Bus
	ledger ledger.Store
	sup    *controller.Supervisor
	log    *zap.Logger

	hits chan Hit

	mu    sync.Mutex
	state State
	score int
}

func NewSession(b bus.Bus, store ledger.Store, log *zap.Logger, cfg Config) *Session {
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultCountdown
	}
	if cfg.IdleLimit <= 0 {
		cfg.IdleLimit = DefaultIdleLimit
	}
	if cfg.DeviceValues == nil {
		cfg.DeviceValues = DefaultNodeColors
	}
	id := uuid.NewString()
	return &Session{
		ID:     id,
		cfg:    cfg,
		bus:    b,
		ledger: store,
		sup:    controller.NewSupervisor(log),
		log:    log.With(zap.String("session", id), zap.String("variant", cfg.Strategy.Name())),
		hits:   make(chan Hit, hitBuffer),
	}
}

// Snapshot returns the current state and score for the status API.
func (s *Session) Snapshot() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.score
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) addScore(points int) int {
	s.mu.Lock()
	s.score += points
	sc := s.score
	s.mu.Unlock()
	return sc
}

// Run drives the session to completion and returns the play record. On a
// persistence failure the record is still returned alongside the error so the
// caller can retry the finalize. A canceled context aborts without a ledger
// write.
func (s *Session) Run(ctx context.Context) (models.PlayRecord, error) {
	ctx, span := otel.Tracer("arcade/game").Start(ctx, "session.Run")
	defer span.End()

	strat := s.cfg.Strategy
	s.log.Info("session starting",
		zap.Int("game", s.cfg.Meta.GameNumber),
		zap.Int("level", s.cfg.Meta.LevelNumber),
		zap.String("controller", s.cfg.Meta.Controller))

	s.setState(StateCountdown)
	select {
	case <-time.After(s.cfg.Countdown):
	case <-ctx.Done():
		s.setState(StateEnded)
		return models.PlayRecord{}, ctx.Err()
	}

	sub, err := s.bus.Subscribe(bus.WildcardSubject(bus.SubjectHit), s.onBusMessage)
	if err != nil {
		s.setState(StateEnded)
		return models.PlayRecord{}, err
	}
	defer func() {
		if uerr := sub.Unsubscribe(); uerr != nil {
			s.log.Warn("hit unsubscribe", zap.Error(uerr))
		}
	}()

	if s.cfg.Controller != nil {
		if err := s.sup.Start(*s.cfg.Controller); err != nil {
			s.log.Warn("controller spawn failed, bus-only input", zap.Error(err))
		} else {
			go s.forwardControllerHits()
		}
	}
	defer s.sup.Stop()

	s.setState(StateRunning)
	s.publishScore(0)

	var target Target
	if t, ok := strat.Next(); ok {
		target = t
		s.armTarget(target)
	} else {
		return s.finish(ctx, 0, 0)
	}

	var (
		accepting           = true
		beginTS, endTS      int64
		durationTimer       *time.Timer
		advanceTimer        *time.Timer
		durationC, advanceC <-chan time.Time
	)
	idleTimer := time.NewTimer(s.cfg.IdleLimit)
	idleC := idleTimer.C
	defer func() {
		idleTimer.Stop()
		if durationTimer != nil {
			durationTimer.Stop()
		}
		if advanceTimer != nil {
			advanceTimer.Stop()
		}
	}()

run:
	for {
		select {
		case <-ctx.Done():
			s.setState(StateEnded)
			if perr := s.bus.Publish(bus.SubjectReset, []byte(bus.PayloadReset)); perr != nil {
				s.log.Warn("reset publish", zap.Error(perr))
			}
			return models.PlayRecord{}, ctx.Err()

		case <-durationC:
			break run

		case <-idleC:
			s.log.Info("no accepted hit before idle limit")
			break run

		case <-advanceC:
			advanceC = nil
			accepting = true
			t, ok := strat.Next()
			if !ok {
				break run
			}
			target = t
			s.armTarget(target)

		case hit := <-s.hits:
			if !accepting {
				continue
			}
			if hit.Source == SourceController && strat.ControllerHitsCorrect() {
				hit.Value = target.Value
			}
			v := strat.Judge(hit, target)
			if !v.Accepted {
				continue
			}
			hitsTotal.WithLabelValues(hit.Source.String()).Inc()
			if durationC == nil {
				idleTimer.Stop()
				idleC = nil
				beginTS = time.Now().Unix()
				durationTimer = time.NewTimer(strat.Duration())
				durationC = durationTimer.C
			}
			score := s.addScore(v.Points)
			s.publishScore(score)
			s.publishFeedback(hit, v.Correct)
			s.log.Debug("hit judged",
				zap.String("source", hit.Source.String()),
				zap.String("device", hit.Device),
				zap.Bool("correct", v.Correct),
				zap.Int("score", score))

			if v.Correct && v.Advance {
				if lockout := strat.Lockout(); lockout > 0 {
					accepting = false
					advanceTimer = time.NewTimer(lockout)
					advanceC = advanceTimer.C
				} else {
					t, ok := strat.Next()
					if !ok {
						break run
					}
					target = t
					s.armTarget(target)
				}
			}
		}
	}

	endTS = time.Now().Unix()
	if beginTS == 0 {
		beginTS = endTS
	}
	return s.finish(ctx, beginTS, endTS)
}

// finish is the Ended transition: stop the controller, reset the fleet, write
// the ledger, and signal the front end. Ended is terminal.
func (s *Session) finish(ctx context.Context, beginTS, endTS int64) (models.PlayRecord, error) {
	s.setState(StateEnded)
	s.sup.Stop()
	if err := s.bus.Publish(bus.SubjectReset, []byte(bus.PayloadReset)); err != nil {
		s.log.Warn("reset publish", zap.Error(err))
	}
	sessionsTotal.WithLabelValues(s.cfg.Strategy.Name()).Inc()

	if endTS == 0 {
		endTS = time.Now().Unix()
	}
	if beginTS == 0 {
		beginTS = endTS
	}
	_, score := s.Snapshot()

	play := models.PlayRecord{
		PlayID:         s.ID,
		TokenID:        s.cfg.TokenID,
		GameNumber:     s.cfg.Meta.GameNumber,
		LevelNumber:    s.cfg.Meta.LevelNumber,
		Score:          score,
		BeginTimestamp: beginTS,
		EndTimestamp:   endTS,
	}
	if err := s.ledger.Finalize(ctx, play); err != nil {
		finalizeTotal.WithLabelValues("error").Inc()
		s.log.Error("ledger finalize failed", zap.Error(err))
		return play, err
	}
	finalizeTotal.WithLabelValues("ok").Inc()

	if err := WriteDoneMarker(s.cfg.DonePath); err != nil {
		s.log.Warn("done marker", zap.Error(err))
	}
	s.log.Info("session finished", zap.Int("score", score))
	return play, nil
}

// onBusMessage runs on the bus delivery goroutine; it only posts into the
// session's hit queue.
func (s *Session) onBusMessage(subject string, payload []byte) {
	if strings.TrimSpace(strings.ToLower(string(payload))) != bus.PayloadHit {
		return
	}
	device := bus.DeviceFromSubject(subject)
	if device == "" {
		return
	}
	hit := Hit{Source: SourceBus, Device: device, Value: s.cfg.DeviceValues[device]}
	select {
	case s.hits <- hit:
	default:
		s.log.Warn("hit dropped, queue full", zap.String("device", device))
	}
}

// forwardControllerHits runs until the supervisor's reader closes its event
// channel; it only posts into the session's hit queue.
func (s *Session) forwardControllerHits() {
	for ev := range s.sup.Events() {
		if ev.Kind != controller.KindHit {
			continue
		}
		select {
		case s.hits <- Hit{Source: SourceController}:
		default:
			s.log.Warn("controller hit dropped, queue full")
		}
	}
}

func (s *Session) armTarget(t Target) {
	if t.Announce && t.Value != "" {
		if err := s.bus.Publish(bus.SubjectColor, []byte(t.Value)); err != nil {
			s.log.Warn("color publish", zap.Error(err))
		}
	}
	for _, n := range t.Nodes {
		if err := s.bus.Publish(bus.DeviceSubject(bus.SubjectTrigger, n), []byte(bus.PayloadStart)); err != nil {
			s.log.Warn("trigger publish", zap.Error(err), zap.String("node", n))
		}
	}
}

func (s *Session) publishScore(score int) {
	if err := s.bus.Publish(bus.SubjectScore, []byte(strconv.Itoa(score))); err != nil {
		s.log.Warn("score publish", zap.Error(err))
	}
}

func (s *Session) publishFeedback(hit Hit, correct bool) {
	if hit.Source != SourceBus || hit.Device == "" {
		return
	}
	fb := "incorrect"
	if correct {
		fb = "correct"
	}
	if err := s.bus.Publish(bus.DeviceSubject(bus.SubjectHitFeedback, hit.Device), []byte(fb)); err != nil {
		s.log.Warn("feedback publish", zap.Error(err))
	}
}
