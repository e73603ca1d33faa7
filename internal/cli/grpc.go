package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"

	"github.com/bongobongo2020/nexrift/internal/config"
	"github.com/bongobongo2020/nexrift/internal/shell/server"
)

// ErrShellNotRunning is returned when no shell is running.
var ErrShellNotRunning = errors.New("NexRift is not running")

// callTimeout bounds unary control calls.
const callTimeout = 10 * time.Second

// connectShell establishes a gRPC connection to the running shell.
func connectShell() (*grpc.ClientConn, error) {
	running, info, err := config.IsShellRunning()
	if err != nil {
		return nil, fmt.Errorf("failed to load shell info: %w", err)
	}
	if !running || info == nil {
		return nil, ErrShellNotRunning
	}
	if info.Port == 0 {
		return nil, fmt.Errorf("NexRift is running without a control port (PID %d)", info.PID)
	}

	addr := net.JoinHostPort(info.Host, strconv.Itoa(info.Port))
	conn, err := server.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to shell: %w", err)
	}
	return conn, nil
}

// withShell runs fn with a shell client and a call context.
func withShell(fn func(ctx context.Context, client *server.ShellServiceClient) error) error {
	conn, err := connectShell()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx, server.NewShellServiceClient(conn))
}

// withBridge runs fn with a bridge client and a call context.
func withBridge(fn func(ctx context.Context, client *server.BridgeServiceClient) error) error {
	conn, err := connectShell()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx, server.NewBridgeServiceClient(conn))
}
