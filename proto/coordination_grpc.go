// Package proto declares the casecoord.v1.Coordination gRPC service. Messages
// are protobuf well-known types: parameters travel in a structpb.Struct,
// payloads in a wrapperspb.BytesValue, child listings in a structpb.ListValue
// and acknowledgements as emptypb.Empty.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	protobuf "google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "casecoord.v1.Coordination"

const (
	Coordination_OpenSession_FullMethodName  = "/" + ServiceName + "/OpenSession"
	Coordination_KeepAlive_FullMethodName    = "/" + ServiceName + "/KeepAlive"
	Coordination_CloseSession_FullMethodName = "/" + ServiceName + "/CloseSession"
	Coordination_CreateNode_FullMethodName   = "/" + ServiceName + "/CreateNode"
	Coordination_GetData_FullMethodName      = "/" + ServiceName + "/GetData"
	Coordination_SetData_FullMethodName      = "/" + ServiceName + "/SetData"
	Coordination_DeleteNode_FullMethodName   = "/" + ServiceName + "/DeleteNode"
	Coordination_Children_FullMethodName     = "/" + ServiceName + "/Children"
	Coordination_AcquireLock_FullMethodName  = "/" + ServiceName + "/AcquireLock"
	Coordination_ReleaseLock_FullMethodName  = "/" + ServiceName + "/ReleaseLock"
)

// CoordinationClient is the client API for the Coordination service.
type CoordinationClient interface {
	OpenSession(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	KeepAlive(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	CloseSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	CreateNode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetData(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	SetData(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	DeleteNode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Children(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error)
	AcquireLock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ReleaseLock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type coordinationClient struct {
	cc grpc.ClientConnInterface
}

// NewCoordinationClient returns a client stub over cc.
func NewCoordinationClient(cc grpc.ClientConnInterface) CoordinationClient {
	return &coordinationClient{cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinationClient) OpenSession(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, Coordination_OpenSession_FullMethodName, in, opts)
}

func (c *coordinationClient) KeepAlive(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Coordination_KeepAlive_FullMethodName, in, opts)
}

func (c *coordinationClient) CloseSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Coordination_CloseSession_FullMethodName, in, opts)
}

func (c *coordinationClient) CreateNode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Coordination_CreateNode_FullMethodName, in, opts)
}

func (c *coordinationClient) GetData(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, Coordination_GetData_FullMethodName, in, opts)
}

func (c *coordinationClient) SetData(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Coordination_SetData_FullMethodName, in, opts)
}

func (c *coordinationClient) DeleteNode(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Coordination_DeleteNode_FullMethodName, in, opts)
}

func (c *coordinationClient) Children(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, Coordination_Children_FullMethodName, in, opts)
}

func (c *coordinationClient) AcquireLock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, Coordination_AcquireLock_FullMethodName, in, opts)
}

func (c *coordinationClient) ReleaseLock(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, Coordination_ReleaseLock_FullMethodName, in, opts)
}

// CoordinationServer is the server API for the Coordination service.
// Implementations should embed UnimplementedCoordinationServer.
type CoordinationServer interface {
	OpenSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	KeepAlive(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CloseSession(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CreateNode(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	GetData(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	SetData(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteNode(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Children(context.Context, *structpb.Struct) (*structpb.ListValue, error)
	AcquireLock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReleaseLock(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// UnimplementedCoordinationServer answers every method with codes.Unimplemented.
type UnimplementedCoordinationServer struct{}

func (UnimplementedCoordinationServer) OpenSession(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method OpenSession not implemented")
}
func (UnimplementedCoordinationServer) KeepAlive(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method KeepAlive not implemented")
}
func (UnimplementedCoordinationServer) CloseSession(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CloseSession not implemented")
}
func (UnimplementedCoordinationServer) CreateNode(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateNode not implemented")
}
func (UnimplementedCoordinationServer) GetData(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetData not implemented")
}
func (UnimplementedCoordinationServer) SetData(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetData not implemented")
}
func (UnimplementedCoordinationServer) DeleteNode(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DeleteNode not implemented")
}
func (UnimplementedCoordinationServer) Children(context.Context, *structpb.Struct) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Children not implemented")
}
func (UnimplementedCoordinationServer) AcquireLock(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method AcquireLock not implemented")
}
func (UnimplementedCoordinationServer) ReleaseLock(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReleaseLock not implemented")
}

// RegisterCoordinationServer registers srv on s.
func RegisterCoordinationServer(s grpc.ServiceRegistrar, srv CoordinationServer) {
	s.RegisterService(&Coordination_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc.MethodHandler.
func unaryHandler[Req any, PReq interface {
	*Req
	protobuf.Message
}, Resp any](fullMethod string, call func(CoordinationServer, context.Context, PReq) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoordinationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CoordinationServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Coordination_ServiceDesc is the grpc.ServiceDesc for the Coordination service.
var Coordination_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoordinationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenSession", Handler: unaryHandler(Coordination_OpenSession_FullMethodName, CoordinationServer.OpenSession)},
		{MethodName: "KeepAlive", Handler: unaryHandler(Coordination_KeepAlive_FullMethodName, CoordinationServer.KeepAlive)},
		{MethodName: "CloseSession", Handler: unaryHandler(Coordination_CloseSession_FullMethodName, CoordinationServer.CloseSession)},
		{MethodName: "CreateNode", Handler: unaryHandler(Coordination_CreateNode_FullMethodName, CoordinationServer.CreateNode)},
		{MethodName: "GetData", Handler: unaryHandler(Coordination_GetData_FullMethodName, CoordinationServer.GetData)},
		{MethodName: "SetData", Handler: unaryHandler(Coordination_SetData_FullMethodName, CoordinationServer.SetData)},
		{MethodName: "DeleteNode", Handler: unaryHandler(Coordination_DeleteNode_FullMethodName, CoordinationServer.DeleteNode)},
		{MethodName: "Children", Handler: unaryHandler(Coordination_Children_FullMethodName, CoordinationServer.Children)},
		{MethodName: "AcquireLock", Handler: unaryHandler(Coordination_AcquireLock_FullMethodName, CoordinationServer.AcquireLock)},
		{MethodName: "ReleaseLock", Handler: unaryHandler(Coordination_ReleaseLock_FullMethodName, CoordinationServer.ReleaseLock)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "casecoord/v1/coordination.proto",
}
