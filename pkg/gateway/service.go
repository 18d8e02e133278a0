// Package gateway exposes the OpenRouter client over gRPC.
//
// The service is declared by hand rather than generated from a .proto file.
// Every message is a google.protobuf.Struct carrying the same JSON documents
// the OpenRouter HTTP API uses, so callers can reuse OpenRouter request bodies
// as they are:
//
//	service openrouter.v1.Gateway {
//	  rpc ChatCompletion(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc StructuredCompletion(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc StreamChatCompletion(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	  rpc ListModels(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc GetCredits(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
package gateway

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "openrouter.v1.Gateway"

const (
	methodChatCompletion       = "/" + ServiceName + "/ChatCompletion"
	methodStructuredCompletion = "/" + ServiceName + "/StructuredCompletion"
	methodStreamChatCompletion = "/" + ServiceName + "/StreamChatCompletion"
	methodListModels           = "/" + ServiceName + "/ListModels"
	methodGetCredits           = "/" + ServiceName + "/GetCredits"
)

// GatewayServer is the server API of the gateway service.
type GatewayServer interface {
	ChatCompletion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StructuredCompletion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamChatCompletion(*structpb.Struct, ChunkStream) error
	ListModels(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetCredits(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ChunkStream is the server side of StreamChatCompletion.
type ChunkStream interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

// RegisterGatewayServer registers srv on s.
func RegisterGatewayServer(s grpc.ServiceRegistrar, srv GatewayServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ChatCompletion", Handler: chatCompletionHandler},
		{MethodName: "StructuredCompletion", Handler: structuredCompletionHandler},
		{MethodName: "ListModels", Handler: listModelsHandler},
		{MethodName: "GetCredits", Handler: getCreditsHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamChatCompletion", Handler: streamChatCompletionHandler, ServerStreams: true},
	},
	Metadata: "openrouter/v1/gateway.proto",
}

func chatCompletionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).ChatCompletion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodChatCompletion}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServer).ChatCompletion(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func structuredCompletionHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).StructuredCompletion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodStructuredCompletion}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServer).StructuredCompletion(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listModelsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).ListModels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListModels}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServer).ListModels(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getCreditsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(GatewayServer).GetCredits(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetCredits}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GatewayServer).GetCredits(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func streamChatCompletionHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(GatewayServer).StreamChatCompletion(in, &chunkStream{stream})
}

type chunkStream struct {
	grpc.ServerStream
}

func (s *chunkStream) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// GatewayClient is the client API of the gateway service.
type GatewayClient struct {
	cc grpc.ClientConnInterface
}

func NewGatewayClient(cc grpc.ClientConnInterface) *GatewayClient {
	return &GatewayClient{cc: cc}
}

func (c *GatewayClient) ChatCompletion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodChatCompletion, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GatewayClient) StructuredCompletion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodStructuredCompletion, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GatewayClient) ListModels(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListModels, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GatewayClient) GetCredits(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetCredits, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChunkReceiver is the client side of StreamChatCompletion.
type ChunkReceiver struct {
	grpc.ClientStream
}

// Recv returns the next chunk, or io.EOF once the stream has ended.
func (r *ChunkReceiver) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := r.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *GatewayClient) StreamChatCompletion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*ChunkReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &serviceDesc.Streams[0], methodStreamChatCompletion, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ChunkReceiver{stream}, nil
}
