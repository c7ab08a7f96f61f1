// Package controller supervises an external input-generating process (a
// vision or joystick helper) and turns its line-oriented stdout into hit
// events for the game loop.
package controller

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ErrSpawn wraps a failed process start. The session degrades to bus-only
// input when it sees this.
var ErrSpawn = errors.New("controller: spawn failed")

// CommandSpec names the helper executable and its arguments.
type CommandSpec struct {
	Path string
	Args []string
}

const (
	termWait       = 1 * time.Second
	readerJoinWait = 1 * time.Second
	eventBuffer    = 64
)

// Supervisor owns at most one helper process at a time. Start is idempotent
// while the process is alive; Stop is idempotent and safe before any Start.
type Supervisor struct {
	log *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	events     chan Event
	stopCh     chan struct{}
	readerDone chan struct{}
	running    bool
}

func NewSupervisor(log *zap.Logger) *Supervisor {
	return &Supervisor{log: log}
}

// Start spawns the helper with captured stdout/stderr and begins reading its
// output. A second Start while the process is alive is a no-op, not an error.
func (s *Supervisor) Start(spec CommandSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	cmd := exec.Command(spec.Path, spec.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: stderr pipe: %v", ErrSpawn, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	s.log.Info("controller started", zap.String("path", spec.Path), zap.Int("pid", cmd.Process.Pid))

	s.cmd = cmd
	s.events = make(chan Event, eventBuffer)
	s.stopCh = make(chan struct{})
	s.readerDone = make(chan struct{})
	s.running = true

	go s.readLoop(cmd, stdout, stderr, s.events, s.stopCh, s.readerDone)
	return nil
}

// Events returns the channel the current reader delivers hit events on. It is
// closed when the reader exits. Nil before the first Start.
func (s *Supervisor) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Running reports whether a helper process is currently tracked and alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Supervisor) readLoop(cmd *exec.Cmd, stdout, stderr io.Reader, events chan<- Event, stopCh, done chan struct{}) {
	defer close(done)
	defer close(events)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		select {
		case <-stopCh:
			goto drain
		default:
		}
		ev, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if ev.Kind == KindDiagnostic {
			s.log.Debug("controller output", zap.String("line", ev.Raw))
			continue
		}
		select {
		case events <- ev:
		default:
			s.log.Warn("controller event dropped, queue full")
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("controller stdout read", zap.Error(err))
	}

drain:
	if errOut, err := io.ReadAll(stderr); err == nil && len(errOut) > 0 {
		s.log.Warn("controller stderr", zap.ByteString("output", errOut))
	}
	if err := cmd.Wait(); err != nil {
		s.log.Debug("controller exited", zap.Error(err))
	}

	s.mu.Lock()
	if s.cmd == cmd {
		s.running = false
	}
	s.mu.Unlock()
}

// Stop signals the reader, asks the process to terminate, escalates to
// SIGKILL after a bounded wait, and joins the reader with a bounded timeout.
// Safe to call before any Start and more than once.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	stopCh := s.stopCh
	done := s.readerDone
	s.cmd = nil
	s.stopCh = nil
	s.readerDone = nil
	s.mu.Unlock()

	if cmd == nil {
		return
	}
	if stopCh != nil {
		close(stopCh)
	}

	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.log.Debug("controller terminate", zap.Error(err))
		}
	}

	select {
	case <-done:
	case <-time.After(termWait):
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				s.log.Warn("controller kill", zap.Error(err))
			}
		}
		select {
		case <-done:
		case <-time.After(readerJoinWait):
			s.log.Warn("controller reader did not exit in time")
		}
	}

	s.mu.Lock()
	// A Start may have raced in while Stop was waiting; only clear the flag
	// when no fresh process has been tracked since.
	if s.cmd == nil {
		s.running = false
	}
	s.mu.Unlock()
	s.log.Info("controller stopped")
}
