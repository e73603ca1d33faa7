// Package bridge is the narrow set of privileged operations the dashboard may
// ask the shell to perform, plus the events the shell pushes back to it.
package bridge

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/models"
)

// ErrUnknownChannel is returned for a channel outside the fixed set.
var ErrUnknownChannel = errors.New("unknown bridge channel")

// DialogResult is what the dashboard gets back once an error dialog has
// been dismissed.
type DialogResult struct {
	Response int    `json:"response"`
	Button   string `json:"button"`
}

// FolderSelection is the outcome of the folder picker. Nil means the user
// cancelled and encodes as JSON null, which is distinct from "".
type FolderSelection = *string

// Dialogs shows native dialogs.
type Dialogs interface {
	// ShowError shows a modal error and returns the label of the button
	// that dismissed it.
	ShowError(title, message string) (string, error)
	// SelectDirectory asks for a directory. ok is false when cancelled.
	SelectDirectory(title string) (path string, ok bool, err error)
}

// Shell hands paths and URLs to the desktop environment.
type Shell interface {
	OpenPath(path string) error
	OpenURL(url string) error
}

// SettingsStore loads and replaces the settings document.
type SettingsStore interface {
	Load() (models.Document, error)
	Save(doc models.Document) error
}

// Notifier delivers push events to an attached presentation.
type Notifier interface {
	Emit(event string, payload any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(event string, payload any)

// Emit implements Notifier.
func (f NotifierFunc) Emit(event string, payload any) { f(event, payload) }

// Options configures a Gateway.
type Options struct {
	// AppPath returns the application's installation directory.
	AppPath  func() (string, error)
	Dialogs  Dialogs
	Shell    Shell
	Settings SettingsStore
	Logger   *logging.Logger
}

// Gateway dispatches bridge calls. Calls are handled one at a time.
type Gateway struct {
	appPath  func() (string, error)
	dialogs  Dialogs
	shell    Shell
	settings SettingsStore
	log      *logging.Logger

	mu       sync.Mutex
	lastSeen models.Document

	// dialogsMu is separate from mu so a window can swap dialogs while a
	// modal is open.
	dialogsMu sync.RWMutex

	notifyMu  sync.RWMutex
	notifiers map[string]Notifier
}

// New creates a Gateway. Missing dialogs fall back to HeadlessDialogs.
func New(opts Options) *Gateway {
	g := &Gateway{
		appPath:   opts.AppPath,
		dialogs:   opts.Dialogs,
		shell:     opts.Shell,
		settings:  opts.Settings,
		log:       opts.Logger,
		notifiers: make(map[string]Notifier),
	}
	if g.log == nil {
		g.log = logging.Nop()
	}
	if g.dialogs == nil {
		g.dialogs = HeadlessDialogs{Logger: g.log}
	}
	return g
}

// SetDialogs swaps the dialog implementation, e.g. once a window exists.
// It does not wait for a dialog that is already open.
func (g *Gateway) SetDialogs(d Dialogs) {
	if d == nil {
		d = HeadlessDialogs{Logger: g.log}
	}
	g.dialogsMu.Lock()
	g.dialogs = d
	g.dialogsMu.Unlock()
}

func (g *Gateway) currentDialogs() Dialogs {
	g.dialogsMu.RLock()
	defer g.dialogsMu.RUnlock()
	return g.dialogs
}

// AppPath returns the application's installation directory.
func (g *Gateway) AppPath() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.appPath == nil {
		return "", errors.New("application path unavailable")
	}
	return g.appPath()
}

// ShowErrorDialog shows a modal error dialog and waits for it to be
// dismissed.
func (g *Gateway) ShowErrorDialog(title, message string) (DialogResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	button, err := g.currentDialogs().ShowError(title, message)
	if err != nil {
		return DialogResult{}, fmt.Errorf("failed to show dialog: %w", err)
	}
	if button == "" {
		button = "OK"
	}
	return DialogResult{Response: 0, Button: button}, nil
}

// OpenFolder reveals path in the system file manager. Failures are logged
// and otherwise ignored.
func (g *Gateway) OpenFolder(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shell == nil {
		g.log.Debug().Str("path", path).Msg("No desktop shell, not opening folder")
		return
	}
	if err := g.shell.OpenPath(path); err != nil {
		g.log.Warn().Err(err).Str("path", path).Msg("Failed to open folder")
	}
}

// SelectFolder asks the user for a directory. A nil result means the picker
// was cancelled.
func (g *Gateway) SelectFolder() (FolderSelection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	path, ok, err := g.currentDialogs().SelectDirectory("Select App Folder")
	if err != nil {
		return nil, fmt.Errorf("failed to open folder picker: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &path, nil
}

// GetSettings returns a copy of the settings document.
func (g *Gateway) GetSettings() (models.Document, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	doc, err := g.settings.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	g.lastSeen = doc
	return doc, nil
}

// SaveSettings replaces the whole settings document.
func (g *Gateway) SaveSettings(settings any) (bool, error) {
	doc, err := models.ToDocument(settings)
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.settings.Save(doc); err != nil {
		return false, fmt.Errorf("failed to save settings: %w", err)
	}
	g.lastSeen = doc
	return true, nil
}

// ReloadSettings re-reads the settings document and pushes settings-changed
// when it differs from what the dashboard last saw. Used when the file is
// edited outside the shell.
func (g *Gateway) ReloadSettings() (bool, error) {
	g.mu.Lock()
	doc, err := g.settings.Load()
	if err != nil {
		g.mu.Unlock()
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	changed := g.lastSeen == nil || !reflect.DeepEqual(g.lastSeen, doc)
	g.lastSeen = doc
	g.mu.Unlock()

	if changed {
		g.Notify(EventSettingsChanged, doc)
	}
	return changed, nil
}

// Attach registers a presentation for push events. The returned function
// detaches it.
func (g *Gateway) Attach(n Notifier) (detach func()) {
	id := uuid.New().String()

	g.notifyMu.Lock()
	g.notifiers[id] = n
	g.notifyMu.Unlock()

	return func() {
		g.notifyMu.Lock()
		delete(g.notifiers, id)
		g.notifyMu.Unlock()
	}
}

// Notify pushes an event to every attached presentation. Events are dropped
// when nothing is attached.
func (g *Gateway) Notify(event string, payload any) {
	g.notifyMu.RLock()
	defer g.notifyMu.RUnlock()

	if len(g.notifiers) == 0 {
		g.log.Debug().Str("event", event).Msg("No presentation attached, dropping event")
		return
	}
	for _, n := range g.notifiers {
		n.Emit(event, payload)
	}
}

// NotifyBackendError pushes a backend-error message.
func (g *Gateway) NotifyBackendError(message string) {
	g.Notify(EventBackendError, message)
}
