package bridge

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/models"
)

type fakeDialogs struct {
	mu        sync.Mutex
	errors    [][2]string
	folder    string
	cancelled bool
	err       error

	active  int32
	overlap int32
	delay   time.Duration
}

func (d *fakeDialogs) enter() func() {
	if atomic.AddInt32(&d.active, 1) > 1 {
		atomic.StoreInt32(&d.overlap, 1)
	}
	time.Sleep(d.delay)
	return func() { atomic.AddInt32(&d.active, -1) }
}

func (d *fakeDialogs) ShowError(title, message string) (string, error) {
	defer d.enter()()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, [2]string{title, message})
	return "OK", d.err
}

func (d *fakeDialogs) SelectDirectory(string) (string, bool, error) {
	defer d.enter()()
	if d.err != nil {
		return "", false, d.err
	}
	if d.cancelled {
		return "", false, nil
	}
	return d.folder, true, nil
}

type fakeShell struct {
	paths []string
	err   error
}

func (s *fakeShell) OpenPath(path string) error {
	s.paths = append(s.paths, path)
	return s.err
}

func (s *fakeShell) OpenURL(string) error { return nil }

type recorder struct {
	mu     sync.Mutex
	events []string
	data   []any
}

func (r *recorder) Emit(event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.data = append(r.data, payload)
}

func newTestGateway(t *testing.T) (*Gateway, *fakeDialogs, *fakeShell, *config.SettingsStore) {
	t.Helper()
	dialogs := &fakeDialogs{folder: "/home/user/apps"}
	shell := &fakeShell{}
	store := config.NewSettingsStore(filepath.Join(t.TempDir(), "settings.yaml"))
	g := New(Options{
		AppPath:  func() (string, error) { return "/opt/nexrift", nil },
		Dialogs:  dialogs,
		Shell:    shell,
		Settings: store,
	})
	return g, dialogs, shell, store
}

func rawArgs(t *testing.T, args ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		require.NoError(t, err)
		out[i] = data
	}
	return out
}

func TestSettingsRoundTrip(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	doc := map[string]any{
		"servers": []any{
			map[string]any{"id": "lab", "name": "Lab", "address": "10.0.0.5:8000", "active": true, "autoConnect": false},
		},
		"activeServerId": "lab",
		"theme":          "light",
		"autoStart":      false,
		"custom":         map[string]any{"nested": []any{1.5, "x", nil}},
	}

	ok, err := g.Invoke(ChannelSaveSettings, rawArgs(t, doc))
	require.NoError(t, err)
	assert.Equal(t, true, ok)

	got, err := g.Invoke(ChannelGetSettings, nil)
	require.NoError(t, err)
	assert.Equal(t, models.Document(doc), got)
}

func TestGetSettingsDefaults(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	got, err := g.GetSettings()
	require.NoError(t, err)
	assert.Equal(t, models.NewDocument(), got)
}

func TestSaveSettingsRejectsNonObject(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	_, err := g.Invoke(ChannelSaveSettings, rawArgs(t, []string{"a"}))
	assert.Error(t, err)
}

func TestSelectFolder(t *testing.T) {
	t.Run("selected", func(t *testing.T) {
		g, _, _, _ := newTestGateway(t)
		got, err := g.SelectFolder()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "/home/user/apps", *got)
	})

	t.Run("empty path is not a cancellation", func(t *testing.T) {
		g, dialogs, _, _ := newTestGateway(t)
		dialogs.folder = ""
		got, err := g.SelectFolder()
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "", *got)
	})

	t.Run("cancelled", func(t *testing.T) {
		g, dialogs, _, _ := newTestGateway(t)
		dialogs.cancelled = true

		got, err := g.Invoke(ChannelSelectFolder, nil)
		require.NoError(t, err)

		data, err := json.Marshal(got)
		require.NoError(t, err)
		assert.Equal(t, "null", string(data))
	})

	t.Run("dialog failure", func(t *testing.T) {
		g, dialogs, _, _ := newTestGateway(t)
		dialogs.err = errors.New("no display")
		_, err := g.SelectFolder()
		assert.Error(t, err)
	})
}

func TestShowErrorDialog(t *testing.T) {
	g, dialogs, _, _ := newTestGateway(t)

	got, err := g.Invoke(ChannelShowErrorDialog, rawArgs(t, "Backend", "Connection refused"))
	require.NoError(t, err)
	assert.Equal(t, DialogResult{Response: 0, Button: "OK"}, got)
	assert.Equal(t, [][2]string{{"Backend", "Connection refused"}}, dialogs.errors)

	_, err = g.Invoke(ChannelShowErrorDialog, rawArgs(t, 1, 2))
	assert.Error(t, err)
}

func TestOpenFolderIgnoresErrors(t *testing.T) {
	g, _, shell, _ := newTestGateway(t)
	shell.err = errors.New("xdg-open: not found")

	got, err := g.Invoke(ChannelOpenFolder, rawArgs(t, "/srv/apps/todo"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{"/srv/apps/todo"}, shell.paths)
}

func TestGetAppPath(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	got, err := g.Invoke(ChannelGetAppPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "/opt/nexrift", got)
}

func TestUnknownChannel(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	for _, ch := range []string{"", "exec", "get-settings ", "backend-error"} {
		_, err := g.Invoke(ch, nil)
		assert.ErrorIs(t, err, ErrUnknownChannel, ch)
	}
}

func TestTooManyArguments(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	_, err := g.Invoke(ChannelOpenFolder, rawArgs(t, "/a", "/b"))
	assert.Error(t, err)
}

func TestInvocationsAreSerialized(t *testing.T) {
	g, dialogs, _, _ := newTestGateway(t)
	dialogs.delay = 5 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = g.Invoke(ChannelShowErrorDialog, rawArgs(t, "t", "m"))
			} else {
				_, _ = g.Invoke(ChannelSelectFolder, nil)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(0), atomic.LoadInt32(&dialogs.overlap))
}

type blockingDialogs struct {
	opened  chan struct{}
	dismiss chan struct{}
}

func (d *blockingDialogs) ShowError(string, string) (string, error) {
	close(d.opened)
	<-d.dismiss
	return "OK", nil
}

func (d *blockingDialogs) SelectDirectory(string) (string, bool, error) {
	return "", false, nil
}

func TestSetDialogsWhileDialogOpen(t *testing.T) {
	g, _, _, _ := newTestGateway(t)
	modal := &blockingDialogs{opened: make(chan struct{}), dismiss: make(chan struct{})}
	g.SetDialogs(modal)

	result := make(chan error, 1)
	go func() {
		_, err := g.ShowErrorDialog("Backend", "crashed")
		result <- err
	}()
	<-modal.opened

	swapped := make(chan struct{})
	go func() {
		g.SetDialogs(nil)
		close(swapped)
	}()
	select {
	case <-swapped:
	case <-time.After(time.Second):
		t.Fatal("SetDialogs blocked on the open dialog")
	}

	// Later calls use the new dialogs.
	close(modal.dismiss)
	require.NoError(t, <-result)
	sel, err := g.SelectFolder()
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestNotify(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	// Nothing attached: dropped without panicking.
	g.NotifyBackendError("Backend exited with code 1")

	r := &recorder{}
	detach := g.Attach(r)
	g.NotifyBackendError("Backend exited with code 2")
	detach()
	g.NotifyBackendError("Backend exited with code 3")

	assert.Equal(t, []string{EventBackendError}, r.events)
	assert.Equal(t, []any{"Backend exited with code 2"}, r.data)
}

func TestReloadSettings(t *testing.T) {
	g, _, _, store := newTestGateway(t)
	r := &recorder{}
	defer g.Attach(r)()

	_, err := g.GetSettings()
	require.NoError(t, err)

	changed, err := g.ReloadSettings()
	require.NoError(t, err)
	assert.False(t, changed)

	// Our own save is not reported back.
	_, err = g.SaveSettings(map[string]any{"theme": "light"})
	require.NoError(t, err)
	changed, err = g.ReloadSettings()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, store.Save(models.Document{"theme": "dark"}))
	changed, err = g.ReloadSettings()
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, []string{EventSettingsChanged}, r.events)
	assert.Equal(t, models.Document{"theme": "dark"}, r.data[0])
}

func TestHeadlessDialogs(t *testing.T) {
	g := New(Options{Settings: config.NewSettingsStore(filepath.Join(t.TempDir(), "s.yaml"))})

	res, err := g.ShowErrorDialog("t", "m")
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Button)

	sel, err := g.SelectFolder()
	require.NoError(t, err)
	assert.Nil(t, sel)

	_, err = g.AppPath()
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	assert.Len(t, Channels(), 6)
}
