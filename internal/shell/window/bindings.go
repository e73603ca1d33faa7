package window

import (
	"encoding/json"

	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/shell/dashboard"
)

// Invoker dispatches bridge calls.
type Invoker interface {
	Invoke(channel string, args []json.RawMessage) (any, error)
}

// Bindings is the object the dashboard's bridge script calls inside the
// window. It exposes only the bridge's fixed channels and the navigation
// policy.
type Bindings struct {
	invoker Invoker
	open    func(url string) error
	log     *logging.Logger
}

// NewBindings creates bindings that dispatch to invoker and hand external
// URLs to open.
func NewBindings(invoker Invoker, open func(url string) error, logger *logging.Logger) *Bindings {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bindings{invoker: invoker, open: open, log: logger}
}

// Invoke calls a bridge channel.
func (b *Bindings) Invoke(channel string, args []json.RawMessage) (any, error) {
	return b.invoker.Invoke(channel, args)
}

// Navigate reports whether the window may follow a link to url. Links it
// may not follow are opened in the default browser instead.
func (b *Bindings) Navigate(url string) bool {
	if dashboard.AllowInWindow(url) {
		return true
	}
	if err := b.OpenExternal(url); err != nil {
		b.log.Warn().Err(err).Str("url", url).Msg("Failed to open link externally")
	}
	return false
}

// OpenExternal opens url in the default browser.
func (b *Bindings) OpenExternal(url string) error {
	b.log.Debug().Str("url", url).Msg("Opening externally")
	if b.open == nil {
		return nil
	}
	return b.open(url)
}
