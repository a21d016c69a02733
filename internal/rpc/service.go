// Package rpc is the gRPC contract between a device and the remote store.
//
// The service is described by hand instead of being generated from a .proto
// file: every method takes and returns a google.protobuf.Struct, and the
// typed request/response shapes in messages.go are converted to and from
// Struct values at the edges. Both sides of the wire share this package.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "agencysync.v1.RemoteStore"

const (
	MethodAuthenticate = "/" + ServiceName + "/Authenticate"
	MethodPing         = "/" + ServiceName + "/Ping"
	MethodGet          = "/" + ServiceName + "/Get"
	MethodInsert       = "/" + ServiceName + "/Insert"
	MethodUpdate       = "/" + ServiceName + "/Update"
	MethodDelete       = "/" + ServiceName + "/Delete"
)

// RemoteStoreServer is implemented by the remote store.
type RemoteStoreServer interface {
	Authenticate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Update(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RemoteStoreClient is the caller side of RemoteStoreServer.
type RemoteStoreClient interface {
	Authenticate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type remoteStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewRemoteStoreClient(cc grpc.ClientConnInterface) RemoteStoreClient {
	return &remoteStoreClient{cc: cc}
}

func (c *remoteStoreClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *remoteStoreClient) Authenticate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAuthenticate, in, opts...)
}

func (c *remoteStoreClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPing, in, opts...)
}

func (c *remoteStoreClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGet, in, opts...)
}

func (c *remoteStoreClient) Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodInsert, in, opts...)
}

func (c *remoteStoreClient) Update(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodUpdate, in, opts...)
}

func (c *remoteStoreClient) Delete(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDelete, in, opts...)
}

type serverCall func(srv RemoteStoreServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call serverCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RemoteStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RemoteStoreServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the RemoteStore service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RemoteStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Authenticate", Handler: unaryHandler(MethodAuthenticate, RemoteStoreServer.Authenticate)},
		{MethodName: "Ping", Handler: unaryHandler(MethodPing, RemoteStoreServer.Ping)},
		{MethodName: "Get", Handler: unaryHandler(MethodGet, RemoteStoreServer.Get)},
		{MethodName: "Insert", Handler: unaryHandler(MethodInsert, RemoteStoreServer.Insert)},
		{MethodName: "Update", Handler: unaryHandler(MethodUpdate, RemoteStoreServer.Update)},
		{MethodName: "Delete", Handler: unaryHandler(MethodDelete, RemoteStoreServer.Delete)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agencysync/v1/remote_store.proto",
}

func RegisterRemoteStoreServer(s grpc.ServiceRegistrar, srv RemoteStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}
