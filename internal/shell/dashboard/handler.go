package dashboard

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/bongobongo2020/nexrift/internal/logging"
)

// BridgeScriptPath is where the bridge shim is served.
const BridgeScriptPath = "/nexrift/bridge.js"

//go:embed assets/bridge.js
var bridgeScript []byte

var bridgeTag = []byte(`<script src="` + BridgeScriptPath + `"></script>`)

var missingPage = template.Must(template.New("missing").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>NexRift</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; background: #1e1e2e; color: #cdd6f4; padding: 40px; }
h1 { color: #f38ba8; }
code { background: #313244; padding: 2px 6px; border-radius: 4px; }
li { margin: 4px 0; }
</style>
</head>
<body>
<h1>Dashboard not found</h1>
<p>NexRift could not find <code>{{.FileName}}</code>. It was expected at:</p>
<p><code>{{.Location.Expected}}</code></p>
<p>Locations searched:</p>
<ul>{{range .Location.Tried}}<li><code>{{.}}</code></li>{{end}}</ul>
</body>
</html>
`))

// Handler serves the dashboard directory. The entry page gets the bridge
// script injected; when no dashboard exists every page is a diagnostic
// naming where it was expected.
type Handler struct {
	loc   Location
	files http.Handler
	log   *logging.Logger
}

// NewHandler creates a handler for loc.
func NewHandler(loc Location, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	h := &Handler{loc: loc, log: logger}
	if loc.Found() {
		h.files = http.FileServer(http.Dir(loc.Dir()))
	}
	return h
}

// Location returns where the dashboard was found.
func (h *Handler) Location() Location {
	return h.loc
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path == BridgeScriptPath {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(bridgeScript)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if !h.loc.Found() {
		h.serveMissing(w, clean)
		return
	}
	if isEntry(clean) {
		h.serveEntry(w, r)
		return
	}
	h.files.ServeHTTP(w, r)
}

// isEntry reports whether p names the dashboard page itself.
func isEntry(p string) bool {
	return p == "/" || p == "/"+FileName || p == "/index.html"
}

func (h *Handler) serveEntry(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(h.loc.Path)
	if err != nil {
		h.log.Error().Err(err).Str("path", h.loc.Path).Msg("Failed to read dashboard")
		http.Error(w, "failed to read dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(InjectBridge(data))
}

// serveMissing answers entry pages with the diagnostic as a normal page.
// The window's asset server replaces the body of a 404 on "/" with its own
// placeholder, so only other paths report not found.
func (h *Handler) serveMissing(w http.ResponseWriter, p string) {
	if !isEntry(p) {
		http.Error(w, "dashboard not found", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	err := missingPage.Execute(&buf, struct {
		FileName string
		Location Location
	}{FileName, h.loc})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to render dashboard diagnostic")
		http.Error(w, "dashboard not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

// InjectBridge adds the bridge script tag to an HTML page, before the first
// closing head tag when there is one.
func InjectBridge(page []byte) []byte {
	if bytes.Contains(page, bridgeTag) {
		return page
	}
	for _, marker := range []string{"</head>", "<body"} {
		if i := indexFold(page, marker); i >= 0 {
			out := make([]byte, 0, len(page)+len(bridgeTag)+1)
			out = append(out, page[:i]...)
			out = append(out, bridgeTag...)
			out = append(out, '\n')
			return append(out, page[i:]...)
		}
	}
	return append(append(append([]byte{}, bridgeTag...), '\n'), page...)
}

// indexFold finds an ASCII marker in page ignoring case.
func indexFold(page []byte, marker string) int {
	for i := 0; i+len(marker) <= len(page); i++ {
		if strings.EqualFold(string(page[i:i+len(marker)]), marker) {
			return i
		}
	}
	return -1
}
