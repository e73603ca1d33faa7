package dashboard

import (
	"net/url"
	"strings"
)

// appHosts are the hosts the window may show.
var appHosts = map[string]bool{
	"127.0.0.1":       true,
	"localhost":       true,
	"wails.localhost": true,
}

// AllowInWindow reports whether the window may navigate to raw. Anything
// else is opened in the default browser.
func AllowInWindow(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "":
		// Relative reference within the current page.
		return u.Host == ""
	case "wails":
		return true
	case "about":
		return u.Opaque == "blank"
	case "http", "https":
		return appHosts[strings.ToLower(u.Hostname())]
	default:
		return false
	}
}

// IsAppOrigin reports whether a browser Origin header belongs to a page the
// shell serves itself.
func IsAppOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return AllowInWindow(origin)
}
