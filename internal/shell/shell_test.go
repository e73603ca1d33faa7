package shell

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
)

type testProcess struct {
	pid    int
	output supervisor.OutputFunc
	exit   chan int
	once   sync.Once
}

func (p *testProcess) Pid() int           { return p.pid }
func (p *testProcess) Terminate() error   { p.finish(0); return nil }
func (p *testProcess) Kill() error        { p.finish(-1); return nil }
func (p *testProcess) Wait() (int, error) { return <-p.exit, nil }

func (p *testProcess) finish(code int) {
	p.once.Do(func() { p.exit <- code })
}

type testSpawner struct {
	mu    sync.Mutex
	procs []*testProcess
}

func (s *testSpawner) Spawn(_ supervisor.Command, out supervisor.OutputFunc) (supervisor.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &testProcess{pid: 1000 + len(s.procs), output: out, exit: make(chan int, 1)}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *testSpawner) last() *testProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[len(s.procs)-1]
}

func (s *testSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func testOptions(t *testing.T, sp supervisor.Spawner) Options {
	t.Helper()
	return Options{
		Headless: true,
		Spawner:  sp,
		AppDir:   t.TempDir(),
		Logger:   logging.Nop(),
	}
}

func TestHeadlessLifecycle(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	sp := &testSpawner{}

	sh, err := Init(testOptions(t, sp))
	require.NoError(t, err)

	_, err = Init(testOptions(t, sp))
	require.ErrorIs(t, err, config.ErrAlreadyRunning)

	var mu sync.Mutex
	var pushed []string
	detach := sh.Gateway().Attach(bridge.NotifierFunc(func(event string, payload any) {
		if event == bridge.EventBackendError {
			mu.Lock()
			pushed = append(pushed, payload.(string))
			mu.Unlock()
		}
	}))
	defer detach()

	runErr := make(chan error, 1)
	go func() { runErr <- sh.Run() }()

	require.Eventually(t, func() bool {
		return sh.Backend().State() == supervisor.StateRunning
	}, 3*time.Second, 5*time.Millisecond)

	info, err := config.LoadShellInfo()
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, os.Getpid(), info.PID)
	assert.NotZero(t, info.Port)
	assert.Equal(t, info.Port, sh.Port())

	proc := sp.last()
	proc.output(supervisor.Stderr, "Traceback: boom")
	proc.finish(3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pushed) == 1
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, "Backend exited with code 3", pushed[0])

	var logs []*models.BackendLogEntry
	require.Eventually(t, func() bool {
		logs, _ = config.ListBackendLogs()
		return len(logs) == 1
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, SessionCrashed, logs[0].Status)
	assert.Equal(t, 3, logs[0].ExitCode)

	_, content, err := config.ReadBackendLog(logs[0].LogID)
	require.NoError(t, err)
	assert.Contains(t, content, "[stderr] Traceback: boom")

	sh.RequestShutdown()
	sh.RequestShutdown()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("shell did not stop")
	}

	info, err = config.LoadShellInfo()
	require.NoError(t, err)
	assert.Nil(t, info)

	// The instance lock is free again.
	again, err := Init(testOptions(t, sp))
	require.NoError(t, err)
	again.Teardown()
}

func TestAutoStartDisabled(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())
	store, err := config.OpenSettingsStore()
	require.NoError(t, err)
	require.NoError(t, store.Save(models.Document{"autoStart": false}))

	sp := &testSpawner{}
	sh, err := Init(testOptions(t, sp))
	require.NoError(t, err)
	defer sh.Teardown()

	sh.autoStart()
	assert.Equal(t, 0, sp.count())
	assert.Equal(t, "stopped", sh.BackendState())
}

func TestDevModeDoesNotAutoStart(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())

	sp := &testSpawner{}
	opts := testOptions(t, sp)
	opts.Dev = true
	sh, err := Init(opts)
	require.NoError(t, err)
	defer sh.Teardown()

	sh.autoStart()
	assert.Equal(t, 0, sp.count())
	assert.False(t, sh.HasWindow())
}

func TestSessionRecorder(t *testing.T) {
	var written []*config.BackendSession
	r := &sessionRecorder{
		write: func(s *config.BackendSession) (*models.BackendLogEntry, error) {
			written = append(written, s)
			return &models.BackendLogEntry{LogID: "backend-x", Status: s.Status}, nil
		},
		maxLines: 2,
		log:      logging.Nop(),
	}

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.handle(supervisor.Event{Kind: supervisor.EventState, To: supervisor.StateRunning, PID: 7, Time: started, Interpreter: "python3", Script: "/opt/app_manager.py"})
	for _, line := range []string{"one", "two", "three"} {
		r.handle(supervisor.Event{Kind: supervisor.EventOutput, PID: 7, Stream: supervisor.Stdout, Line: line})
	}
	// Output from another process is not part of this session.
	r.handle(supervisor.Event{Kind: supervisor.EventOutput, PID: 8, Stream: supervisor.Stdout, Line: "other"})
	r.handle(supervisor.Event{Kind: supervisor.EventExit, PID: 7, Code: 0, Requested: true, Time: started.Add(time.Minute)})

	require.Len(t, written, 1)
	s := written[0]
	assert.Equal(t, "python3", s.Interpreter)
	assert.Equal(t, "/opt/app_manager.py", s.Script)
	assert.Equal(t, []string{"[stdout] two", "[stdout] three"}, s.Lines)
	assert.Equal(t, SessionStopped, s.Status)
	assert.Equal(t, started.Add(time.Minute), s.EndedAt)

	// An exit without a recorded start writes nothing.
	r.handle(supervisor.Event{Kind: supervisor.EventExit, PID: 9, Code: 1})
	assert.Len(t, written, 1)
}

func TestSessionRecorderWriteFailure(t *testing.T) {
	r := &sessionRecorder{
		write: func(*config.BackendSession) (*models.BackendLogEntry, error) {
			return nil, errors.New("disk full")
		},
		maxLines: 10,
		log:      logging.Nop(),
	}
	r.handle(supervisor.Event{Kind: supervisor.EventState, To: supervisor.StateRunning, PID: 1})
	r.handle(supervisor.Event{Kind: supervisor.EventExit, PID: 1, Code: 1})
	assert.Nil(t, r.current)
}

func TestSessionStatus(t *testing.T) {
	tests := []struct {
		ev   supervisor.Event
		want string
	}{
		{supervisor.Event{Code: 0}, SessionExited},
		{supervisor.Event{Code: 2}, SessionCrashed},
		{supervisor.Event{Code: -1, Requested: true}, SessionStopped},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sessionStatus(tt.ev))
	}
}
