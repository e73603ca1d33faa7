// Package supervisor owns the lifecycle of the NexRift backend process.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bongobongo2020/nexrift/internal/logging"
)

const (
	// GracePeriod is how long a terminated backend gets before it is killed.
	GracePeriod = 5 * time.Second

	// RestartDelay separates the stop and start halves of a restart so the
	// backend's port is released before it binds again.
	RestartDelay = time.Second

	// killWait bounds how long Shutdown waits for a killed backend to be
	// reaped.
	killWait = 2 * time.Second
)

// State is the lifecycle state of the backend.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// CommandResolver decides what to run each time the backend starts.
type CommandResolver interface {
	Command() Command
}

// Options configures a Supervisor. Zero values select the real
// implementations.
type Options struct {
	Resolver     CommandResolver
	Spawner      Spawner
	Clock        Clock
	Logger       *logging.Logger
	GracePeriod  time.Duration
	RestartDelay time.Duration
}

// Status is a snapshot of the supervisor.
type Status struct {
	State        State     `json:"state"`
	PID          int       `json:"pid,omitempty"`
	Interpreter  string    `json:"interpreter,omitempty"`
	Script       string    `json:"script,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	LastExitCode *int      `json:"last_exit_code,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	Restarting   bool      `json:"restarting,omitempty"`
}

// Supervisor runs at most one backend process at a time.
type Supervisor struct {
	resolver     CommandResolver
	spawner      Spawner
	clock        Clock
	log          *logging.Logger
	grace        time.Duration
	restartDelay time.Duration

	mu           sync.Mutex
	state        State
	proc         Process
	gen          uint64
	done         chan struct{}
	cmd          Command
	startedAt    time.Time
	lastExitCode *int
	lastError    string
	killTimer    Timer
	restartTimer Timer
	pendingStart bool
	closed       bool

	events *hub
}

// New creates a stopped supervisor.
func New(opts Options) *Supervisor {
	s := &Supervisor{
		resolver:     opts.Resolver,
		spawner:      opts.Spawner,
		clock:        opts.Clock,
		log:          opts.Logger,
		grace:        opts.GracePeriod,
		restartDelay: opts.RestartDelay,
		state:        StateStopped,
		events:       newHub(),
	}
	if s.resolver == nil {
		s.resolver = Locator{}
	}
	if s.spawner == nil {
		s.spawner = ExecSpawner{}
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.grace <= 0 {
		s.grace = GracePeriod
	}
	if s.restartDelay <= 0 {
		s.restartDelay = RestartDelay
	}
	return s
}

// Subscribe returns a new event stream.
func (s *Supervisor) Subscribe() *Subscription {
	return s.events.subscribe()
}

// Status returns the current state of the backend.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:        s.state,
		LastExitCode: s.lastExitCode,
		LastError:    s.lastError,
		Restarting:   s.restartTimer != nil || s.pendingStart,
	}
	if s.proc != nil {
		st.PID = s.proc.Pid()
		st.Interpreter = s.cmd.Interpreter
		st.Script = s.cmd.Script
		st.StartedAt = s.startedAt
	}
	return st
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the backend. It is a no-op while a process is running.
// While a previous process is still stopping, the start is deferred until
// it has exited. Spawn failures are reported as EventError, not returned.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Supervisor) startLocked() {
	if s.closed {
		return
	}
	switch s.state {
	case StateRunning:
		return
	case StateStopping:
		s.log.Debug().Msg("backend still stopping, start deferred")
		s.pendingStart = true
		return
	}
	s.spawnLocked()
}

func (s *Supervisor) spawnLocked() {
	cmd := s.resolver.Command()
	s.log.Info().
		Str("interpreter", cmd.Interpreter).
		Str("script", cmd.Script).
		Msg("Starting backend")

	s.gen++
	gen := s.gen
	proc, err := s.spawner.Spawn(cmd, func(stream Stream, line string) {
		s.onOutput(gen, stream, line)
	})
	if err != nil {
		msg := fmt.Sprintf("Failed to start backend: %v", err)
		s.log.Error().Err(err).Msg("Failed to start backend")
		s.lastError = msg
		s.emit(Event{Kind: EventError, Message: msg})
		return
	}

	s.proc = proc
	s.cmd = cmd
	s.startedAt = time.Now().UTC()
	s.lastError = ""
	s.done = make(chan struct{})

	from := s.state
	s.state = StateRunning
	s.emit(Event{
		Kind:        EventState,
		PID:         proc.Pid(),
		From:        from,
		To:          StateRunning,
		Interpreter: cmd.Interpreter,
		Script:      cmd.Script,
	})
	s.log.Info().Int("pid", proc.Pid()).Msg("Backend started")

	go s.wait(proc, gen, s.done)
}

func (s *Supervisor) onOutput(gen uint64, stream Stream, line string) {
	s.mu.Lock()
	pid := 0
	if s.gen == gen && s.proc != nil {
		pid = s.proc.Pid()
	}
	s.mu.Unlock()

	ev := s.log.Info()
	if stream == Stderr {
		ev = s.log.Warn()
	}
	ev.Str("stream", string(stream)).Int("pid", pid).Msg(line)

	s.emit(Event{Kind: EventOutput, PID: pid, Stream: stream, Line: line})
}

func (s *Supervisor) wait(proc Process, gen uint64, done chan struct{}) {
	code, err := proc.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)

	if s.gen != gen {
		return
	}
	if s.killTimer != nil {
		s.killTimer.Stop()
		s.killTimer = nil
	}

	pid := proc.Pid()
	requested := s.state == StateStopping
	s.proc = nil
	s.lastExitCode = &code
	s.setStateLocked(StateStopped, pid)

	switch {
	case err != nil:
		s.log.Error().Err(err).Int("pid", pid).Msg("Backend process failed")
		if !requested {
			msg := fmt.Sprintf("Backend process failed: %v", err)
			s.lastError = msg
			s.emit(Event{Kind: EventError, PID: pid, Message: msg})
		}
	default:
		s.log.Info().Int("pid", pid).Int("code", code).Bool("requested", requested).
			Msgf("Backend process exited with code %d", code)
		if code != 0 && !requested {
			msg := fmt.Sprintf("Backend exited with code %d", code)
			s.lastError = msg
			s.emit(Event{Kind: EventError, PID: pid, Code: code, Message: msg})
		}
	}
	s.emit(Event{Kind: EventExit, PID: pid, Code: code, Requested: requested})

	if s.pendingStart && !s.closed {
		s.pendingStart = false
		s.spawnLocked()
	}
}

// Stop sends the backend a termination signal and kills it if it has not
// exited after the grace period. A restart waiting on its delay is
// cancelled. Otherwise it is a no-op unless a process is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRestartLocked()
	s.stopLocked()
}

func (s *Supervisor) cancelRestartLocked() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
}

func (s *Supervisor) stopLocked() {
	// A stop supersedes a start that was waiting on the previous process.
	s.pendingStart = false

	if s.state != StateRunning {
		return
	}

	proc := s.proc
	gen := s.gen
	s.setStateLocked(StateStopping, proc.Pid())
	s.log.Info().Int("pid", proc.Pid()).Msg("Stopping backend")

	if err := proc.Terminate(); err != nil {
		s.log.Warn().Err(err).Int("pid", proc.Pid()).Msg("Failed to signal backend")
	}
	s.killTimer = s.clock.AfterFunc(s.grace, func() {
		s.escalate(gen)
	})
}

// escalate kills the process started as generation gen if it is still
// stopping.
func (s *Supervisor) escalate(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.killTimer = nil
	if s.gen != gen || s.state != StateStopping || s.proc == nil {
		return
	}
	s.log.Warn().Int("pid", s.proc.Pid()).Dur("grace", s.grace).Msg("Backend did not exit, killing")
	if err := s.proc.Kill(); err != nil {
		s.log.Error().Err(err).Int("pid", s.proc.Pid()).Msg("Failed to kill backend")
	}
}

// Restart stops the backend and starts it again after the restart delay.
// The start happens even if the backend was not running. Calling Restart
// again before the delay elapses replaces the pending start.
func (s *Supervisor) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.log.Info().Msg("Restarting backend")
	s.stopLocked()
	s.cancelRestartLocked()

	var t Timer
	t = s.clock.AfterFunc(s.restartDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A timer that was cancelled after it fired must not start.
		if s.restartTimer != t {
			return
		}
		s.restartTimer = nil
		s.startLocked()
	})
	s.restartTimer = t
}

// Shutdown stops the backend and waits for it to exit. If ctx ends first the
// process is killed and Shutdown returns ctx's error once it has exited, or
// after a short wait if it is never reaped.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancelRestartLocked()
	s.stopLocked()
	done := s.done
	proc := s.proc
	s.mu.Unlock()

	if proc == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.log.Warn().Int("pid", proc.Pid()).Msg("Shutdown deadline reached, killing backend")
	_ = proc.Kill()
	select {
	case <-done:
	case <-time.After(killWait):
		s.log.Error().Int("pid", proc.Pid()).Msg("Backend not reaped after kill, giving up")
	}
	return ctx.Err()
}

// Close cancels pending timers and closes every subscription. A running
// backend is left alone; call Shutdown first.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	s.pendingStart = false
	s.cancelRestartLocked()
	s.mu.Unlock()

	s.events.close()
}

func (s *Supervisor) setStateLocked(to State, pid int) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.emit(Event{Kind: EventState, PID: pid, From: from, To: to})
}

func (s *Supervisor) emit(ev Event) {
	ev.Time = time.Now().UTC()
	s.events.broadcast(ev)
}
