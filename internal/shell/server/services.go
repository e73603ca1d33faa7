package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// ============================================================================
// Service definitions
//
// There is no .proto for these services; the descriptors below are written
// by hand and every message travels through the JSON codec.
// ============================================================================

const (
	shellServiceName  = "nexrift.shell.v1.Shell"
	bridgeServiceName = "nexrift.shell.v1.Bridge"
)

// ShellServiceServer is the control surface used by nexriftctl.
type ShellServiceServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*ShellStatus, error)
	StartBackend(context.Context, *emptypb.Empty) (*BackendStatus, error)
	StopBackend(context.Context, *emptypb.Empty) (*BackendStatus, error)
	RestartBackend(context.Context, *emptypb.Empty) (*BackendStatus, error)
	WatchBackend(*emptypb.Empty, grpc.ServerStreamingServer[BackendEvent]) error
	ListLogs(context.Context, *emptypb.Empty) (*LogList, error)
	GetLog(context.Context, *LogRequest) (*LogContent, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// BridgeServiceServer exposes the bridge to dashboards running outside the
// shell's window, over gRPC-web.
type BridgeServiceServer interface {
	Invoke(context.Context, *InvokeRequest) (*InvokeResponse, error)
	Events(*emptypb.Empty, grpc.ServerStreamingServer[PushEvent]) error
}

// unary builds a MethodDesc for a unary method on service.
func unary[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// serverStream builds a StreamDesc for a server-streaming method.
func serverStream[S any, Req any, Resp any](method string, call func(S, *Req, grpc.ServerStreamingServer[Resp]) error) grpc.StreamDesc {
	return grpc.StreamDesc{
		StreamName:    method,
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(Req)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return call(srv.(S), in, &grpc.GenericServerStream[Req, Resp]{ServerStream: stream})
		},
	}
}

var shellServiceDesc = grpc.ServiceDesc{
	ServiceName: shellServiceName,
	HandlerType: (*ShellServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(shellServiceName, "GetStatus", ShellServiceServer.GetStatus),
		unary(shellServiceName, "StartBackend", ShellServiceServer.StartBackend),
		unary(shellServiceName, "StopBackend", ShellServiceServer.StopBackend),
		unary(shellServiceName, "RestartBackend", ShellServiceServer.RestartBackend),
		unary(shellServiceName, "ListLogs", ShellServiceServer.ListLogs),
		unary(shellServiceName, "GetLog", ShellServiceServer.GetLog),
		unary(shellServiceName, "Shutdown", ShellServiceServer.Shutdown),
	},
	Streams: []grpc.StreamDesc{
		serverStream("WatchBackend", ShellServiceServer.WatchBackend),
	},
	Metadata: "nexrift/shell/v1/shell",
}

var bridgeServiceDesc = grpc.ServiceDesc{
	ServiceName: bridgeServiceName,
	HandlerType: (*BridgeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(bridgeServiceName, "Invoke", BridgeServiceServer.Invoke),
	},
	Streams: []grpc.StreamDesc{
		serverStream("Events", BridgeServiceServer.Events),
	},
	Metadata: "nexrift/shell/v1/bridge",
}

// RegisterShellServiceServer registers the shell service with a gRPC server.
func RegisterShellServiceServer(s grpc.ServiceRegistrar, srv ShellServiceServer) {
	s.RegisterService(&shellServiceDesc, srv)
}

// RegisterBridgeServiceServer registers the bridge service with a gRPC server.
func RegisterBridgeServiceServer(s grpc.ServiceRegistrar, srv BridgeServiceServer) {
	s.RegisterService(&bridgeServiceDesc, srv)
}

// ============================================================================
// Clients
// ============================================================================

// ShellServiceClient calls the shell service.
type ShellServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewShellServiceClient creates a client on conn. Conn must use the JSON
// content subtype, see Dial.
func NewShellServiceClient(cc grpc.ClientConnInterface) *ShellServiceClient {
	return &ShellServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func openServerStream[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, service string, desc *grpc.StreamDesc, in *Req, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Resp], error) {
	stream, err := cc.NewStream(ctx, desc, "/"+service+"/"+desc.StreamName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Resp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// GetStatus returns the shell's status.
func (c *ShellServiceClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*ShellStatus, error) {
	return invoke[ShellStatus](ctx, c.cc, shellServiceName, "GetStatus", &emptypb.Empty{}, opts...)
}

// StartBackend starts the backend.
func (c *ShellServiceClient) StartBackend(ctx context.Context, opts ...grpc.CallOption) (*BackendStatus, error) {
	return invoke[BackendStatus](ctx, c.cc, shellServiceName, "StartBackend", &emptypb.Empty{}, opts...)
}

// StopBackend stops the backend.
func (c *ShellServiceClient) StopBackend(ctx context.Context, opts ...grpc.CallOption) (*BackendStatus, error) {
	return invoke[BackendStatus](ctx, c.cc, shellServiceName, "StopBackend", &emptypb.Empty{}, opts...)
}

// RestartBackend restarts the backend.
func (c *ShellServiceClient) RestartBackend(ctx context.Context, opts ...grpc.CallOption) (*BackendStatus, error) {
	return invoke[BackendStatus](ctx, c.cc, shellServiceName, "RestartBackend", &emptypb.Empty{}, opts...)
}

// WatchBackend streams backend events until ctx is cancelled.
func (c *ShellServiceClient) WatchBackend(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[BackendEvent], error) {
	return openServerStream[emptypb.Empty, BackendEvent](ctx, c.cc, shellServiceName, &shellServiceDesc.Streams[0], &emptypb.Empty{}, opts...)
}

// ListLogs lists backend session logs.
func (c *ShellServiceClient) ListLogs(ctx context.Context, opts ...grpc.CallOption) (*LogList, error) {
	return invoke[LogList](ctx, c.cc, shellServiceName, "ListLogs", &emptypb.Empty{}, opts...)
}

// GetLog reads one backend session log.
func (c *ShellServiceClient) GetLog(ctx context.Context, in *LogRequest, opts ...grpc.CallOption) (*LogContent, error) {
	return invoke[LogContent](ctx, c.cc, shellServiceName, "GetLog", in, opts...)
}

// Shutdown asks the shell to quit.
func (c *ShellServiceClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, shellServiceName, "Shutdown", &emptypb.Empty{}, opts...)
	return err
}

// BridgeServiceClient calls the bridge service.
type BridgeServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBridgeServiceClient creates a client on conn.
func NewBridgeServiceClient(cc grpc.ClientConnInterface) *BridgeServiceClient {
	return &BridgeServiceClient{cc: cc}
}

// Invoke calls a bridge channel.
func (c *BridgeServiceClient) Invoke(ctx context.Context, in *InvokeRequest, opts ...grpc.CallOption) (*InvokeResponse, error) {
	return invoke[InvokeResponse](ctx, c.cc, bridgeServiceName, "Invoke", in, opts...)
}

// Events streams push events until ctx is cancelled.
func (c *BridgeServiceClient) Events(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[PushEvent], error) {
	return openServerStream[emptypb.Empty, PushEvent](ctx, c.cc, bridgeServiceName, &bridgeServiceDesc.Streams[0], &emptypb.Empty{}, opts...)
}
