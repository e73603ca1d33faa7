// Package server serves the dashboard, the shell's control service and the
// bridge on a single local port. Native gRPC arrives as HTTP/2 cleartext,
// browsers use gRPC-web, everything else is static dashboard content.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"

	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/models"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
	"github.com/bongobongo2020/nexrift/internal/shell/supervisor"
)

// DefaultPort is where the dashboard is served.
const DefaultPort = 8080

// DefaultHost is the only interface the server binds to.
const DefaultHost = "127.0.0.1"

// Backend is the supervisor as seen by the control service.
type Backend interface {
	Start()
	Stop()
	Restart()
	Status() supervisor.Status
	Subscribe() *supervisor.Subscription
}

// Bridge is the gateway as seen by the bridge service.
type Bridge interface {
	Invoke(channel string, args []json.RawMessage) (any, error)
	Attach(n bridge.Notifier) (detach func())
}

// LogStore reads backend session logs.
type LogStore interface {
	List() ([]*models.BackendLogEntry, error)
	Read(logID string) (*models.BackendLogEntry, string, error)
}

// Options configures a Server.
type Options struct {
	Host string
	// Port to listen on; 0 picks a free port.
	Port int
	// Listener, when set, is used instead of listening on Host:Port.
	Listener net.Listener

	Backend   Backend
	Bridge    Bridge
	Logs      LogStore
	Dashboard http.Handler
	// DashboardPath is reported in the shell status.
	DashboardPath string
	Version       string
	Dev           bool
	// RequestShutdown is called when a client asks the shell to quit.
	RequestShutdown func()
	// AllowOrigin decides which browser origins may call gRPC-web.
	AllowOrigin func(origin string) bool
	Logger      *logging.Logger
}

// Server is the shell's local HTTP/gRPC server.
type Server struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	listener   net.Listener
	host       string
	port       int
	startedAt  time.Time
	log        *logging.Logger
}

// New creates a server and binds its listener. Serve must be called to
// start handling requests.
func New(opts Options) (*Server, error) {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.AllowOrigin == nil {
		opts.AllowOrigin = func(string) bool { return false }
	}

	listener := opts.Listener
	if listener == nil {
		var err error
		listener, err = (&net.ListenConfig{}).Listen(context.TODO(), "tcp", net.JoinHostPort(opts.Host, fmt.Sprint(opts.Port)))
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %w", err)
		}
	}

	port := opts.Port
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}

	srv := &Server{
		grpcServer: grpc.NewServer(),
		listener:   listener,
		host:       opts.Host,
		port:       port,
		startedAt:  time.Now().UTC(),
		log:        opts.Logger,
	}

	RegisterShellServiceServer(srv.grpcServer, &shellService{server: srv, opts: opts})
	RegisterBridgeServiceServer(srv.grpcServer, &bridgeService{bridge: opts.Bridge, log: opts.Logger})

	wrapped := grpcweb.WrapServer(srv.grpcServer,
		grpcweb.WithOriginFunc(opts.AllowOrigin),
		grpcweb.WithAllowedRequestHeaders([]string{"*"}),
	)

	dashboard := opts.Dashboard
	if dashboard == nil {
		dashboard = http.NotFoundHandler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	mux.Handle("/", dashboard)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case isNativeGRPC(r):
			srv.grpcServer.ServeHTTP(w, r)
		case wrapped.IsGrpcWebRequest(r) || wrapped.IsAcceptableGrpcCorsRequest(r):
			wrapped.ServeHTTP(w, r)
		default:
			mux.ServeHTTP(w, r)
		}
	})

	srv.httpServer = &http.Server{
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, nil
}

func isNativeGRPC(r *http.Request) bool {
	return r.ProtoMajor == 2 &&
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc") &&
		!strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc-web")
}

// Host returns the address the server is bound to.
func (s *Server) Host() string {
	return s.host
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve starts serving requests. This blocks until Stop is called.
func (s *Server) Serve() error {
	s.log.Info().Str("addr", s.listener.Addr().String()).Msg("Serving dashboard and control service")
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop ends open streams and shuts the HTTP server down. The listener is
// closed even if Serve was never called.
func (s *Server) Stop(ctx context.Context) error {
	s.grpcServer.Stop()
	err := s.httpServer.Shutdown(ctx)
	_ = s.listener.Close()
	return err
}
