// Package shell owns the desktop shell's components: the backend
// supervisor, the bridge, the dashboard server, the window and the tray. It
// wires them together between Init and Teardown.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	goruntime "runtime"
	"sync"
	"syscall"
	"time"

	"github.com/bongobongo2020/nexrift/internal/buildinfo"
	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
	"github.com/bongobongo2020/nexrift/internal/shell/dashboard"
	"github.com/bongobongo2020/nexrift/internal/shell/server"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
	"github.com/bongobongo2020/nexrift/internal/shell/tray"
	"github.com/bongobongo2020/nexrift/internal/shell/watcher"
	"github.com/bongobongo2020/nexrift/internal/shell/window"
)

// teardownTimeout bounds how long quitting waits for the backend.
const teardownTimeout = supervisor.GracePeriod + 2*time.Second

// Options configures a Shell.
type Options struct {
	// Dev skips the automatic backend start, opens the web inspector and
	// reloads the dashboard when its files change.
	Dev bool
	// Headless runs without window or tray until signalled.
	Headless bool
	// Port for the dashboard and control server; 0 picks a free port.
	Port   int
	Logger *logging.Logger

	// Overridable for tests.
	Spawner supervisor.Spawner
	AppDir  string
}

// Shell is one running NexRift instance.
type Shell struct {
	opts Options
	log  *logging.Logger

	lock      *config.InstanceLock
	appDir    string
	settings  *config.SettingsStore
	desktop   bridge.Shell
	gateway   *bridge.Gateway
	backend   *supervisor.Supervisor
	dashboard *dashboard.Handler
	server    *server.Server
	watcher   *watcher.Watcher
	window    *window.Window
	tray      *tray.Tray

	done         chan struct{}
	quit         chan struct{}
	quitOnce     sync.Once
	teardownOnce sync.Once
	wg           sync.WaitGroup
}

// Init acquires the single-instance lock and creates every component. The
// shell does nothing until Run.
func Init(opts Options) (*Shell, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewDefault()
	}
	log := opts.Logger

	if err := config.EnsureGlobalDir(); err != nil {
		return nil, fmt.Errorf("failed to create global directory: %w", err)
	}

	lock, err := config.AcquireInstanceLock()
	if err != nil {
		if errors.Is(err, config.ErrAlreadyRunning) {
			if running, info, _ := config.IsShellRunning(); running {
				return nil, fmt.Errorf("%w (PID %d, port %d)", err, info.PID, info.Port)
			}
		}
		return nil, err
	}

	s := &Shell{
		opts:    opts,
		log:     log,
		lock:    lock,
		appDir:  opts.AppDir,
		desktop: bridge.DesktopShell{},
		done:    make(chan struct{}),
		quit:    make(chan struct{}),
	}
	if err := s.init(); err != nil {
		_ = lock.Release()
		return nil, err
	}
	return s, nil
}

func (s *Shell) init() error {
	if s.appDir == "" {
		dir, err := config.AppDir()
		if err != nil {
			return fmt.Errorf("failed to resolve application directory: %w", err)
		}
		s.appDir = dir
	}

	settings, err := config.OpenSettingsStore()
	if err != nil {
		return err
	}
	s.settings = settings

	s.gateway = bridge.New(bridge.Options{
		AppPath:  func() (string, error) { return s.appDir, nil },
		Shell:    s.desktop,
		Settings: settings,
		Logger:   s.log.Component("bridge"),
	})

	s.backend = supervisor.New(supervisor.Options{
		Resolver: supervisor.Locator{AppDir: s.appDir, Dev: s.opts.Dev},
		Spawner:  s.opts.Spawner,
		Logger:   s.log.Component("backend"),
	})

	cwd, _ := os.Getwd()
	loc := dashboard.Locate(s.appDir, cwd)
	if loc.Found() {
		s.log.Info().Str("path", loc.Path).Msg("Dashboard found")
	} else {
		s.log.Warn().Str("expected", loc.Expected).Msg("Dashboard not found")
	}
	s.dashboard = dashboard.NewHandler(loc, s.log.Component("dashboard"))

	// The window works without the server, so a busy port is not fatal.
	srv, err := server.New(server.Options{
		Port:            s.opts.Port,
		Backend:         s.backend,
		Bridge:          s.gateway,
		Logs:            config.BackendLogs{},
		Dashboard:       s.dashboard,
		DashboardPath:   loc.Path,
		Version:         buildinfo.Version,
		Dev:             s.opts.Dev,
		RequestShutdown: s.RequestShutdown,
		AllowOrigin:     dashboard.IsAppOrigin,
		Logger:          s.log.Component("server"),
	})
	if err != nil {
		s.log.Error().Err(err).Int("port", s.opts.Port).Msg("Dashboard server unavailable")
	} else {
		s.server = srv
	}

	watchOpts := watcher.Options{
		SettingsFile: settings.Path(),
		Logger:       s.log.Component("watcher"),
	}
	if s.opts.Dev {
		watchOpts.DashboardDir = loc.Dir()
	}
	w, err := watcher.New(watchOpts)
	if err != nil {
		s.log.Warn().Err(err).Msg("File watching unavailable")
	} else {
		s.watcher = w
	}

	if !s.opts.Headless {
		theme := models.NewDocument().Theme()
		if doc, err := settings.Load(); err == nil {
			theme = doc.Theme()
		}
		s.tray = tray.New(s, s.log.Component("tray"))
		s.window = window.New(window.Options{
			Title:       "NexRift",
			Dashboard:   s.dashboard,
			Gateway:     s.gateway,
			OpenURL:     s.desktop.OpenURL,
			Theme:       theme,
			Dev:         s.opts.Dev,
			HideOnClose: tray.Supported() || goruntime.GOOS == "darwin",
			Logger:      s.log.Component("window"),
			OnStartup:   s.windowReady,
			OnShutdown:  s.Teardown,
		})
	}
	return nil
}

// Run starts the shell and blocks until it quits.
func (s *Shell) Run() error {
	s.start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
			s.RequestShutdown()
		case <-s.done:
		}
	}()

	if s.window == nil {
		s.log.Info().Msg("Running headless")
		s.autoStart()
		<-s.quit
		s.Teardown()
		return nil
	}

	err := s.window.Run()
	// Normally already done by the window's shutdown hook.
	s.Teardown()
	return err
}

func (s *Shell) start() {
	port := 0
	host := server.DefaultHost
	if s.server != nil {
		port = s.server.Port()
		host = s.server.Host()
		go func() {
			if err := s.server.Serve(); err != nil {
				s.log.Error().Err(err).Msg("Server error")
			}
		}()
	}

	info := models.NewShellInfo(host, port, os.Getpid(), buildinfo.Version, s.opts.Dev)
	if err := config.SaveShellInfo(info); err != nil {
		s.log.Warn().Err(err).Msg("Failed to write shell info")
	}
	s.log.Info().Int("port", port).Int("pid", info.PID).Bool("dev", s.opts.Dev).Msg("NexRift started")

	sub := s.backend.Subscribe()
	recorder := newSessionRecorder(s.log.Component("sessions"))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.pump(sub, recorder)
	}()

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to start file watcher")
		} else {
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.watch()
			}()
		}
	}
}

func (s *Shell) windowReady() {
	if s.tray.Register() {
		s.log.Debug().Msg("Tray registered")
	}
	s.autoStart()
}

// autoStart starts the backend unless in development mode or disabled in
// the settings.
func (s *Shell) autoStart() {
	if s.opts.Dev {
		s.log.Info().Msg("Development mode, not starting backend")
		return
	}
	doc, err := s.settings.Load()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load settings, using defaults")
		doc = models.NewDocument()
	}
	if !doc.AutoStart() {
		s.log.Info().Msg("Backend auto start disabled")
		return
	}
	s.backend.Start()
}

// pump forwards supervisor events until the subscription closes.
func (s *Shell) pump(sub *supervisor.Subscription, recorder *sessionRecorder) {
	for ev := range sub.C {
		recorder.handle(ev)

		switch ev.Kind {
		case supervisor.EventError:
			s.gateway.NotifyBackendError(ev.Message)
		case supervisor.EventState:
			if s.tray != nil {
				s.tray.UpdateBackend(string(ev.To))
			}
		}
	}
}

func (s *Shell) watch() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.watcher.Events():
			switch ev.Type {
			case watcher.EventSettingsChanged:
				if _, err := s.gateway.ReloadSettings(); err != nil {
					s.log.Warn().Err(err).Msg("Failed to reload settings")
				}
			case watcher.EventDashboardChanged:
				s.log.Debug().Str("path", ev.Path).Msg("Dashboard changed, reloading")
				if s.window != nil {
					s.window.Reload()
				}
				s.gateway.Notify(bridge.EventDashboardChanged, ev.Path)
			}
		}
	}
}

// RequestShutdown asks the shell to quit. Safe to call from any goroutine,
// more than once.
func (s *Shell) RequestShutdown() {
	s.quitOnce.Do(func() {
		s.log.Info().Msg("Shutdown requested")
		close(s.quit)
		if s.window != nil {
			s.window.Quit()
		}
	})
}

// Teardown stops the backend and releases everything Init acquired. It is
// safe to call more than once.
func (s *Shell) Teardown() {
	s.teardownOnce.Do(func() {
		s.log.Info().Msg("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		if err := s.backend.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Backend did not stop in time")
		}
		cancel()

		close(s.done)
		if s.watcher != nil {
			s.watcher.Stop()
		}
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := s.server.Stop(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Failed to stop server")
			}
			cancel()
		}

		// Closing the supervisor ends pump once queued events are recorded.
		s.backend.Close()
		s.wg.Wait()

		if err := config.RemoveShellInfo(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to remove shell info")
		}
		if err := s.lock.Release(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to release instance lock")
		}
		s.log.Info().Msg("NexRift stopped")
	})
}

// Gateway returns the bridge gateway.
func (s *Shell) Gateway() *bridge.Gateway {
	return s.gateway
}

// Backend returns the backend supervisor.
func (s *Shell) Backend() *supervisor.Supervisor {
	return s.backend
}

// The methods below implement tray.ShellState.

// Port returns the dashboard server's port, or 0 when it is not running.
func (s *Shell) Port() int {
	if s.server == nil {
		return 0
	}
	return s.server.Port()
}

// BackendState returns the backend's lifecycle state.
func (s *Shell) BackendState() string {
	return string(s.backend.State())
}

// HasWindow reports whether the shell has a window.
func (s *Shell) HasWindow() bool {
	return s.window != nil
}

// ToggleWindow shows or hides the window.
func (s *Shell) ToggleWindow() {
	if s.window != nil {
		s.window.Toggle()
	}
}

// OpenDashboard opens the served dashboard in the default browser.
func (s *Shell) OpenDashboard() {
	port := s.Port()
	if port == 0 {
		port = server.DefaultPort
	}
	url := fmt.Sprintf("http://%s:%d/%s", server.DefaultHost, port, dashboard.FileName)
	if err := s.desktop.OpenURL(url); err != nil {
		s.log.Warn().Err(err).Str("url", url).Msg("Failed to open dashboard")
	}
}

// RestartBackend restarts the backend.
func (s *Shell) RestartBackend() {
	s.backend.Restart()
}
