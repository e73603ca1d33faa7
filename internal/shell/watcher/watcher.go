// Package watcher reports edits to the settings file and the dashboard
// directory made outside the shell.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bongobongo2020/nexrift/internal/logging"
)

// DebounceDelay collapses bursts of writes to the same file.
const DebounceDelay = 100 * time.Millisecond

// EventType represents the type of file system event.
type EventType int

// Event types for file system changes.
const (
	EventSettingsChanged EventType = iota
	EventDashboardChanged
)

func (t EventType) String() string {
	switch t {
	case EventSettingsChanged:
		return "settings-changed"
	case EventDashboardChanged:
		return "dashboard-changed"
	default:
		return "unknown"
	}
}

// Event represents a file system change event.
type Event struct {
	Type EventType
	Path string
}

// Options configures a Watcher. Empty paths are not watched.
type Options struct {
	// SettingsFile is the settings document.
	SettingsFile string
	// DashboardDir holds the dashboard's files.
	DashboardDir string
	Debounce     time.Duration
	Logger       *logging.Logger
}

// Watcher watches for file system changes relevant to the shell.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	settingsFile string
	dashboardDir string
	delay        time.Duration
	log          *logging.Logger

	eventsChan chan Event
	done       chan struct{}
	stopOnce   sync.Once

	debounce   map[string]*time.Timer
	debounceMu sync.Mutex
}

// New creates a new file system watcher.
func New(opts Options) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DebounceDelay
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	w := &Watcher{
		fsWatcher:  fsWatcher,
		delay:      opts.Debounce,
		log:        opts.Logger,
		eventsChan: make(chan Event, 100),
		done:       make(chan struct{}),
		debounce:   make(map[string]*time.Timer),
	}
	if opts.SettingsFile != "" {
		w.settingsFile = filepath.Clean(opts.SettingsFile)
	}
	if opts.DashboardDir != "" {
		w.dashboardDir = filepath.Clean(opts.DashboardDir)
	}
	return w, nil
}

// Events returns the channel for receiving events.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Start starts the watcher. The settings file is watched through its
// directory so atomic replacements are seen.
func (w *Watcher) Start() error {
	if w.settingsFile != "" {
		if err := w.fsWatcher.Add(filepath.Dir(w.settingsFile)); err != nil {
			return err
		}
	}
	if w.dashboardDir != "" {
		if err := w.fsWatcher.Add(w.dashboardDir); err != nil {
			w.log.Warn().Err(err).Str("dir", w.dashboardDir).Msg("Failed to watch dashboard directory")
		}
	}

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()

		w.debounceMu.Lock()
		for path, timer := range w.debounce {
			timer.Stop()
			delete(w.debounce, path)
		}
		w.debounceMu.Unlock()
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.log.Debug().Str("op", event.Op.String()).Str("path", event.Name).Msg("fsnotify")
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Rename covers editors that write a temp file and move it over the target.
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	path := filepath.Clean(event.Name)
	var typ EventType
	switch {
	case w.settingsFile != "" && path == w.settingsFile:
		typ = EventSettingsChanged
	case w.dashboardDir != "" && filepath.Dir(path) == w.dashboardDir:
		typ = EventDashboardChanged
	default:
		return
	}

	w.debounceEvent(path, func() {
		select {
		case w.eventsChan <- Event{Type: typ, Path: path}:
		case <-w.done:
		}
	})
}

func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(w.delay, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}
