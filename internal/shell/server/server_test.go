package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
)

// idleProcess runs until it is told to stop.
type idleProcess struct {
	pid  int
	once sync.Once
	done chan struct{}
}

func (p *idleProcess) Pid() int           { return p.pid }
func (p *idleProcess) Terminate() error   { p.finish(); return nil }
func (p *idleProcess) Kill() error        { p.finish(); return nil }
func (p *idleProcess) Wait() (int, error) { <-p.done; return 0, nil }
func (p *idleProcess) finish()            { p.once.Do(func() { close(p.done) }) }

type idleSpawner struct{}

func (idleSpawner) Spawn(supervisor.Command, supervisor.OutputFunc) (supervisor.Process, error) {
	return &idleProcess{pid: 4242, done: make(chan struct{})}, nil
}

type fakeLogs struct{}

func (fakeLogs) List() ([]*models.BackendLogEntry, error) {
	return []*models.BackendLogEntry{{LogID: "backend-1", ExitCode: 1, Status: "crashed"}}, nil
}

func (fakeLogs) Read(id string) (*models.BackendLogEntry, string, error) {
	if id != "backend-1" {
		return nil, "", fmt.Errorf("log not found: %w", fs.ErrNotExist)
	}
	return &models.BackendLogEntry{LogID: id}, "Traceback\n", nil
}

type testEnv struct {
	server   *Server
	conn     *grpc.ClientConn
	backend  *supervisor.Supervisor
	gateway  *bridge.Gateway
	shutdown chan struct{}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := supervisor.New(supervisor.Options{Spawner: idleSpawner{}})
	t.Cleanup(func() {
		_ = backend.Shutdown(context.Background())
		backend.Close()
	})

	gateway := bridge.New(bridge.Options{
		AppPath:  func() (string, error) { return "/opt/nexrift", nil },
		Settings: config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.yaml")),
	})

	shutdown := make(chan struct{}, 1)
	lis := bufconn.Listen(1 << 20)
	srv, err := New(Options{
		Listener: lis,
		Backend:  backend,
		Bridge:   gateway,
		Logs:     fakeLogs{},
		Dashboard: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "<html>dashboard</html>")
		}),
		DashboardPath:   "/opt/nexrift/dashboard/dashboard.html",
		Version:         "1.2.3",
		RequestShutdown: func() { shutdown <- struct{}{} },
		AllowOrigin:     func(origin string) bool { return strings.HasPrefix(origin, "http://127.0.0.1") },
	})
	require.NoError(t, err)

	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	conn, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &testEnv{server: srv, conn: conn, backend: backend, gateway: gateway, shutdown: shutdown}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	client := NewShellServiceClient(env.conn)

	st, err := client.GetStatus(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", st.Version)
	assert.Equal(t, "/opt/nexrift/dashboard/dashboard.html", st.Dashboard)
	assert.Equal(t, supervisor.StateStopped, st.Backend.State)
}

func TestBackendControl(t *testing.T) {
	env := newTestEnv(t)
	client := NewShellServiceClient(env.conn)
	ctx := testContext(t)

	st, err := client.StartBackend(ctx)
	require.NoError(t, err)
	assert.Equal(t, supervisor.StateRunning, st.State)
	assert.Equal(t, 4242, st.PID)

	_, err = client.StopBackend(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return env.backend.State() == supervisor.StateStopped
	}, time.Second, 5*time.Millisecond)

	st, err = client.RestartBackend(ctx)
	require.NoError(t, err)
	assert.True(t, st.Restarting)
}

func TestWatchBackend(t *testing.T) {
	env := newTestEnv(t)
	client := NewShellServiceClient(env.conn)

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	stream, err := client.WatchBackend(ctx)
	require.NoError(t, err)

	// The subscription is registered once the server handler runs, so keep
	// cycling the backend until a start is observed.
	running := make(chan struct{})
	go func() {
		for {
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			if ev.Kind == supervisor.EventState && ev.To == supervisor.StateRunning {
				close(running)
				return
			}
		}
	}()

	deadline := time.After(3 * time.Second)
	for {
		env.backend.Start()
		select {
		case <-running:
			return
		case <-time.After(20 * time.Millisecond):
			env.backend.Stop()
			require.Eventually(t, func() bool {
				return env.backend.State() == supervisor.StateStopped
			}, time.Second, time.Millisecond)
		case <-deadline:
			t.Fatal("no backend event received")
		}
	}
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t)
	client := NewShellServiceClient(env.conn)
	ctx := testContext(t)

	list, err := client.ListLogs(ctx)
	require.NoError(t, err)
	require.Len(t, list.Logs, 1)
	assert.Equal(t, "crashed", list.Logs[0].Status)

	content, err := client.GetLog(ctx, &LogRequest{LogID: "backend-1"})
	require.NoError(t, err)
	assert.Equal(t, "Traceback\n", content.Content)

	_, err = client.GetLog(ctx, &LogRequest{LogID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetLog(ctx, &LogRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestShutdownRequest(t *testing.T) {
	env := newTestEnv(t)
	client := NewShellServiceClient(env.conn)

	require.NoError(t, client.Shutdown(testContext(t)))
	select {
	case <-env.shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown not requested")
	}
}

func TestBridgeInvoke(t *testing.T) {
	env := newTestEnv(t)
	client := NewBridgeServiceClient(env.conn)
	ctx := testContext(t)

	doc := json.RawMessage(`{"theme":"light","servers":[],"autoStart":false}`)
	resp, err := client.Invoke(ctx, &InvokeRequest{Channel: bridge.ChannelSaveSettings, Args: []json.RawMessage{doc}})
	require.NoError(t, err)
	assert.JSONEq(t, `true`, string(resp.Result))

	resp, err = client.Invoke(ctx, &InvokeRequest{Channel: bridge.ChannelGetSettings})
	require.NoError(t, err)
	assert.JSONEq(t, string(doc), string(resp.Result))

	resp, err = client.Invoke(ctx, &InvokeRequest{Channel: bridge.ChannelSelectFolder})
	require.NoError(t, err)
	assert.Equal(t, "null", string(resp.Result))

	_, err = client.Invoke(ctx, &InvokeRequest{Channel: "shell-exec"})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestBridgeEvents(t *testing.T) {
	env := newTestEnv(t)
	client := NewBridgeServiceClient(env.conn)

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	stream, err := client.Events(ctx)
	require.NoError(t, err)

	received := make(chan *PushEvent, 1)
	go func() {
		ev, err := stream.Recv()
		if err == nil {
			received <- ev
		}
	}()

	deadline := time.After(3 * time.Second)
	for {
		env.gateway.NotifyBackendError("Backend exited with code 1")
		select {
		case ev := <-received:
			assert.Equal(t, bridge.EventBackendError, ev.Event)
			assert.JSONEq(t, `"Backend exited with code 1"`, string(ev.Payload))
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no push event received")
		}
	}
}

// grpcWebFrame encodes a single gRPC-web data frame.
func grpcWebFrame(payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	return frame
}

func TestGrpcWebInvoke(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	body := grpcWebFrame([]byte(`{"channel":"get-app-path"}`))
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/nexrift.shell.v1.Bridge/Invoke", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/grpc-web+json")
	req.Header.Set("X-Grpc-Web", "1")
	req.Header.Set("Origin", "http://127.0.0.1:8080")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://127.0.0.1:8080", resp.Header.Get("Access-Control-Allow-Origin"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Greater(t, len(data), 5)
	require.Equal(t, byte(0), data[0], "first frame must be a data frame")
	n := binary.BigEndian.Uint32(data[1:5])
	assert.JSONEq(t, `{"result":"/opt/nexrift"}`, string(data[5:5+n]))
	assert.Contains(t, strings.ToLower(string(data[5+n:])), "grpc-status: 0")
}

func TestDashboardAndHealth(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok"}`, string(data))

	resp, err = http.Get(ts.URL + "/dashboard.html")
	require.NoError(t, err)
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "<html>dashboard</html>", string(data))
}
