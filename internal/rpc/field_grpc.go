package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "agrispray.v1.FieldService"

// Full method names.
const (
	FieldServiceGetRecommendationMethod = "/" + ServiceName + "/GetRecommendation"
	FieldServiceGetHistoryMethod        = "/" + ServiceName + "/GetHistory"
	FieldServiceExecuteSprayMethod      = "/" + ServiceName + "/ExecuteSpray"
)

// FieldServiceServer is the server API for the FieldService. Messages are protobuf
// well-known types carrying the JSON form of the domain records.
type FieldServiceServer interface {
	GetRecommendation(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExecuteSpray(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterFieldServiceServer registers srv with s.
func RegisterFieldServiceServer(s grpc.ServiceRegistrar, srv FieldServiceServer) {
	s.RegisterService(&FieldServiceDesc, srv)
}

// FieldServiceDesc describes the FieldService for grpc.Server.RegisterService.
var FieldServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FieldServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetRecommendation",
			Handler:    getRecommendationHandler,
		},
		{
			MethodName: "GetHistory",
			Handler:    getHistoryHandler,
		},
		{
			MethodName: "ExecuteSpray",
			Handler:    executeSprayHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agrispray/v1/field.proto",
}

func getRecommendationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FieldServiceServer).GetRecommendation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FieldServiceGetRecommendationMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FieldServiceServer).GetRecommendation(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FieldServiceServer).GetHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FieldServiceGetHistoryMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FieldServiceServer).GetHistory(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func executeSprayHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FieldServiceServer).ExecuteSpray(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: FieldServiceExecuteSprayMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FieldServiceServer).ExecuteSpray(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// FieldServiceClient is the client API for the FieldService.
type FieldServiceClient interface {
	GetRecommendation(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ExecuteSpray(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type fieldServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFieldServiceClient creates a FieldServiceClient on cc.
func NewFieldServiceClient(cc grpc.ClientConnInterface) FieldServiceClient {
	return &fieldServiceClient{cc}
}

func (c *fieldServiceClient) GetRecommendation(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FieldServiceGetRecommendationMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fieldServiceClient) GetHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FieldServiceGetHistoryMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fieldServiceClient) ExecuteSpray(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FieldServiceExecuteSprayMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
