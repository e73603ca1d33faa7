package server

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/bongobongo2020/nexrift/internal/logging"
	"github.com/bongobongo2020/nexrift/internal/shell/bridge"
)

// pushBuffer is how many push events a slow gRPC-web client may lag behind
// before events are dropped for it.
const pushBuffer = 64

// ============================================================================
// Shell service
// ============================================================================

type shellService struct {
	server *Server
	opts   Options
}

func (s *shellService) GetStatus(_ context.Context, _ *emptypb.Empty) (*ShellStatus, error) {
	st := &ShellStatus{
		Version:   s.opts.Version,
		PID:       os.Getpid(),
		Host:      s.server.Host(),
		Port:      s.server.Port(),
		Dev:       s.opts.Dev,
		StartedAt: s.server.startedAt,
		Dashboard: s.opts.DashboardPath,
	}
	if s.opts.Backend != nil {
		st.Backend = s.opts.Backend.Status()
	}
	return st, nil
}

func (s *shellService) backend() (Backend, error) {
	if s.opts.Backend == nil {
		return nil, status.Error(codes.Unavailable, "backend supervisor not available")
	}
	return s.opts.Backend, nil
}

func (s *shellService) StartBackend(_ context.Context, _ *emptypb.Empty) (*BackendStatus, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	b.Start()
	st := b.Status()
	return &st, nil
}

func (s *shellService) StopBackend(_ context.Context, _ *emptypb.Empty) (*BackendStatus, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	b.Stop()
	st := b.Status()
	return &st, nil
}

func (s *shellService) RestartBackend(_ context.Context, _ *emptypb.Empty) (*BackendStatus, error) {
	b, err := s.backend()
	if err != nil {
		return nil, err
	}
	b.Restart()
	st := b.Status()
	return &st, nil
}

func (s *shellService) WatchBackend(_ *emptypb.Empty, stream grpc.ServerStreamingServer[BackendEvent]) error {
	b, err := s.backend()
	if err != nil {
		return err
	}
	sub := b.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}

func (s *shellService) ListLogs(_ context.Context, _ *emptypb.Empty) (*LogList, error) {
	if s.opts.Logs == nil {
		return &LogList{}, nil
	}
	logs, err := s.opts.Logs.List()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to list logs: %v", err)
	}
	return &LogList{Logs: logs}, nil
}

func (s *shellService) GetLog(_ context.Context, req *LogRequest) (*LogContent, error) {
	if req.LogID == "" {
		return nil, status.Error(codes.InvalidArgument, "log_id is required")
	}
	if s.opts.Logs == nil {
		return nil, status.Errorf(codes.NotFound, "log %s not found", req.LogID)
	}
	entry, content, err := s.opts.Logs.Read(req.LogID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, status.Errorf(codes.NotFound, "log %s not found", req.LogID)
		}
		return nil, status.Errorf(codes.InvalidArgument, "failed to read log: %v", err)
	}
	return &LogContent{Entry: entry, Content: content}, nil
}

func (s *shellService) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if s.opts.RequestShutdown == nil {
		return nil, status.Error(codes.Unimplemented, "shutdown not supported")
	}
	s.server.log.Info().Msg("Shutdown requested by client")
	go s.opts.RequestShutdown()
	return &emptypb.Empty{}, nil
}

// ============================================================================
// Bridge service
// ============================================================================

type bridgeService struct {
	bridge Bridge
	log    *logging.Logger
}

func (s *bridgeService) Invoke(_ context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	if s.bridge == nil {
		return nil, status.Error(codes.Unavailable, "bridge not available")
	}
	result, err := s.bridge.Invoke(req.Channel, req.Args)
	if err != nil {
		if errors.Is(err, bridge.ErrUnknownChannel) {
			return nil, status.Error(codes.Unimplemented, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	return &InvokeResponse{Result: data}, nil
}

func (s *bridgeService) Events(_ *emptypb.Empty, stream grpc.ServerStreamingServer[PushEvent]) error {
	if s.bridge == nil {
		return status.Error(codes.Unavailable, "bridge not available")
	}

	events := make(chan PushEvent, pushBuffer)
	detach := s.bridge.Attach(bridge.NotifierFunc(func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("Failed to encode push event")
			return
		}
		select {
		case events <- PushEvent{Event: event, Payload: data}:
		default:
			s.log.Debug().Str("event", event).Msg("Push client is behind, dropping event")
		}
	}))
	defer detach()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case ev := <-events:
			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}
