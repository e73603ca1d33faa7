// Package window hosts the dashboard in a native window.
package window

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
)

// Window geometry.
const (
	Width     = 1400
	Height    = 900
	MinWidth  = 1200
	MinHeight = 700
)

// Gateway is the bridge as seen by the window.
type Gateway interface {
	Invoker
	SetDialogs(d bridge.Dialogs)
	Attach(n bridge.Notifier) (detach func())
}

// Options configures a Window.
type Options struct {
	Title     string
	Dashboard http.Handler
	Gateway   Gateway
	// OpenURL opens links the window may not show itself.
	OpenURL func(url string) error
	// Theme is the dashboard theme, "dark" or "light". It picks the
	// background shown before the page paints.
	Theme string
	// Dev opens the web inspector on startup.
	Dev bool
	// HideOnClose hides the window instead of quitting when it is closed.
	HideOnClose bool
	Logger *logging.Logger
	// OnStartup runs once the window exists.
	OnStartup func()
	// OnShutdown runs when the application is quitting.
	OnShutdown func()
}

// Window is the application's single main window.
type Window struct {
	opts     Options
	log      *logging.Logger
	bindings *Bindings

	mu      sync.Mutex
	ctx     context.Context
	visible bool
	detach  func()
}

// New creates a window. Run shows it.
func New(opts Options) *Window {
	if opts.Title == "" {
		opts.Title = "NexRift"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Window{
		opts:     opts,
		log:      opts.Logger,
		bindings: NewBindings(opts.Gateway, opts.OpenURL, opts.Logger),
	}
}

// Run shows the window and blocks running the UI event loop until the
// application quits. Must be called from main.
func (w *Window) Run() error {
	err := wails.Run(&options.App{
		Title:     w.opts.Title,
		Width:     Width,
		Height:    Height,
		MinWidth:  MinWidth,
		MinHeight: MinHeight,
		AssetServer: &assetserver.Options{
			Handler: w.opts.Dashboard,
		},
		BackgroundColour:  background(w.opts.Theme),
		HideWindowOnClose: w.opts.HideOnClose,
		OnStartup:         w.startup,
		OnDomReady:        w.domReady,
		OnShutdown:        w.shutdown,
		Bind:              []interface{}{w.bindings},
		Logger:            wailsLogger{log: w.log},
		LogLevel:          logger.INFO,
		Debug: options.Debug{
			OpenInspectorOnStartup: w.opts.Dev,
		},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   "NexRift",
				Message: "Python App Manager",
			},
		},
	})
	if err != nil {
		return fmt.Errorf("window error: %w", err)
	}
	return nil
}

func background(theme string) *options.RGBA {
	if theme == "light" {
		return &options.RGBA{R: 245, G: 245, B: 247, A: 255}
	}
	return &options.RGBA{R: 30, G: 30, B: 46, A: 255}
}

func (w *Window) startup(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.visible = true
	w.mu.Unlock()

	if w.opts.Gateway != nil {
		w.opts.Gateway.SetDialogs(dialogs{ctx: ctx})
		w.detach = w.opts.Gateway.Attach(notifier{ctx: ctx})
	}
	w.log.Info().Msg("Window started")

	if w.opts.OnStartup != nil {
		w.opts.OnStartup()
	}
}

func (w *Window) domReady(ctx context.Context) {
	w.log.Debug().Msg("Dashboard DOM ready")
}

func (w *Window) shutdown(ctx context.Context) {
	w.log.Info().Msg("Window shutting down")

	if w.detach != nil {
		w.detach()
	}
	if w.opts.Gateway != nil {
		w.opts.Gateway.SetDialogs(nil)
	}

	w.mu.Lock()
	w.ctx = nil
	w.mu.Unlock()

	if w.opts.OnShutdown != nil {
		w.opts.OnShutdown()
	}
}

// runtimeContext returns the runtime context, or nil before startup and after
// shutdown.
func (w *Window) runtimeContext() context.Context {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctx
}

// Show brings the window to the front.
func (w *Window) Show() {
	ctx := w.runtimeContext()
	if ctx == nil {
		return
	}
	runtime.WindowShow(ctx)
	runtime.WindowUnminimise(ctx)

	w.mu.Lock()
	w.visible = true
	w.mu.Unlock()
}

// Hide hides the window without quitting.
func (w *Window) Hide() {
	ctx := w.runtimeContext()
	if ctx == nil {
		return
	}
	runtime.WindowHide(ctx)

	w.mu.Lock()
	w.visible = false
	w.mu.Unlock()
}

// Toggle shows a hidden window and hides a visible one.
func (w *Window) Toggle() {
	w.mu.Lock()
	visible := w.visible
	w.mu.Unlock()

	if visible {
		w.Hide()
	} else {
		w.Show()
	}
}

// Reload reloads the dashboard.
func (w *Window) Reload() {
	if ctx := w.runtimeContext(); ctx != nil {
		runtime.WindowReloadApp(ctx)
	}
}

// Quit ends the event loop; Run returns once shutdown hooks have run.
func (w *Window) Quit() {
	if ctx := w.runtimeContext(); ctx != nil {
		runtime.Quit(ctx)
	}
}
