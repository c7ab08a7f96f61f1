// Package server orchestrates the arcade: it runs readiness checks on demand,
// launches at most one game session at a time, and exposes the pieces the
// HTTP shim needs.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/flycamp/arcade/internal/bus"
	"github.com/flycamp/arcade/internal/controller"
	"github.com/flycamp/arcade/internal/game"
	"github.com/flycamp/arcade/internal/ledger"
	"github.com/flycamp/arcade/internal/models"
	"github.com/flycamp/arcade/internal/readiness"
)

var ErrSessionInProgress = errors.New("a session is already in progress")

// Config wires the orchestrator to the installation.
type Config struct {
	// Devices in the target fleet, checked by the node handshake.
	Devices []string
	// CarDevices, when non-empty, adds a car handshake step to the check.
	CarDevices []string
	// TelemetryDial, when set, adds a drone telemetry gate step. It returns
	// a fresh connection; the gate owns and closes it.
	TelemetryDial func(ctx context.Context) (readiness.TelemetryConn, error)

	// Session handoff files shared with the console front end.
	MetaPath  string
	TokenPath string
	DonePath  string

	// Controller helper commands, selected by the session metadata. An
	// empty Path disables that controller.
	GestureCmd  controller.CommandSpec
	JoystickCmd controller.CommandSpec
}

// Server is safe for concurrent use by the HTTP handlers.
type Server struct {
	cfg    Config
	bus    bus.Bus
	ledger ledger.Store
	coord  *readiness.Coordinator
	gate   *readiness.Gate
	log    *zap.Logger

	mu       sync.Mutex
	current  *game.Session
	cancel   context.CancelFunc
	lastPlay *models.PlayRecord
	lastErr  error
}

func New(b bus.Bus, store ledger.Store, log *zap.Logger, cfg Config) *Server {
	if len(cfg.Devices) == 0 {
		cfg.Devices = game.DefaultNodes
	}
	return &Server{
		cfg:    cfg,
		bus:    b,
		ledger: store,
		coord:  readiness.NewCoordinator(b, log),
		gate:   readiness.NewGate(log),
		log:    log,
	}
}

func (s *Server) Ledger() ledger.Store { return s.ledger }

// RunCheck executes every configured readiness step and reports them all;
// an early failure never skips the remaining steps.
func (s *Server) RunCheck(ctx context.Context, opts readiness.CheckOptions) readiness.AggregateResult {
	if len(opts.Devices) == 0 {
		opts.Devices = s.cfg.Devices
	}
	steps := []readiness.Step{
		{Name: "Nodes", Run: func(ctx context.Context) error {
			_, err := s.coord.Check(ctx, opts)
			return err
		}},
	}
	if len(s.cfg.CarDevices) > 0 {
		steps = append(steps, readiness.Step{Name: "Car", Run: func(ctx context.Context) error {
			carOpts := opts
			carOpts.Devices = s.cfg.CarDevices
			_, err := s.coord.Check(ctx, carOpts)
			return err
		}})
	}
	if s.cfg.TelemetryDial != nil {
		steps = append(steps, readiness.Step{Name: "Drone", Run: func(ctx context.Context) error {
			conn, err := s.cfg.TelemetryDial(ctx)
			if err != nil {
				return fmt.Errorf("connect drone: %w", err)
			}
			return s.gate.Wait(ctx, conn)
		}})
	}
	return readiness.RunAll(ctx, s.log, steps)
}

// StartSession reads the metadata handoff and launches a session in the
// background. The session is bounded by its own timers, not by the caller's
// request context; Abort cancels it early. Only one session may run at a
// time.
func (s *Server) StartSession() (string, error) {
	meta, err := game.ReadMeta(s.cfg.MetaPath)
	if err != nil {
		s.log.Warn("session meta", zap.Error(err))
	}
	strat, err := game.ForGame(meta.GameNumber)
	if err != nil {
		return "", err
	}

	cfg := game.Config{
		TokenID:    s.readTokenID(),
		Meta:       meta,
		Strategy:   strat,
		Controller: s.controllerCmd(meta.Controller),
		DonePath:   s.cfg.DonePath,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		if st, _ := s.current.Snapshot(); st != game.StateEnded {
			return "", ErrSessionInProgress
		}
	}
	sess := game.NewSession(s.bus, s.ledger, s.log, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	s.current = sess
	s.cancel = cancel

	go func() {
		defer cancel()
		play, err := sess.Run(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastErr = err
		if err == nil || errors.As(err, new(*ledger.PersistenceError)) {
			s.lastPlay = &play
		}
	}()
	return sess.ID, nil
}

// Abort cancels the running session so a stuck or abandoned play never wedges
// the daemon. It reports false when no session is in progress.
func (s *Server) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.cancel == nil {
		return false
	}
	if st, _ := s.current.Snapshot(); st == game.StateEnded {
		return false
	}
	s.cancel()
	return true
}

// Status reports the current session and the last finished play.
type Status struct {
	SessionID string             `json:"session_id,omitempty"`
	State     string             `json:"state"`
	Score     int                `json:"score"`
	LastPlay  *models.PlayRecord `json:"last_play,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{State: game.StateIdle.String(), LastPlay: s.lastPlay}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	if s.current != nil {
		state, score := s.current.Snapshot()
		st.SessionID = s.current.ID
		st.State = state.String()
		st.Score = score
	}
	return st
}

// controllerCmd picks the helper for the player's preference: joystick when
// asked for, otherwise gesture. A missing path disables the controller and
// the session runs on bus input alone.
func (s *Server) controllerCmd(preference string) *controller.CommandSpec {
	var cmd controller.CommandSpec
	if strings.EqualFold(preference, "joystick") {
		cmd = s.cfg.JoystickCmd
	} else {
		cmd = s.cfg.GestureCmd
	}
	if cmd.Path == "" {
		return nil
	}
	return &cmd
}

// readTokenID loads the player's token id written by the registration front
// end. Zero means an anonymous play.
func (s *Server) readTokenID() int {
	if s.cfg.TokenPath == "" {
		return 0
	}
	data, err := os.ReadFile(s.cfg.TokenPath)
	if err != nil {
		s.log.Warn("token file", zap.Error(err))
		return 0
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		s.log.Warn("token file not numeric", zap.Error(err))
		return 0
	}
	return id
}
