package wire

import (
	"context"

	"google.golang.org/grpc"
)

// PluginServiceServer is the interface a plugin binary implements to serve
// the gRPC service described in spec.md §6. It is hand-authored against
// google.golang.org/grpc's low-level ServiceDesc API in place of a
// protoc-gen-go-grpc-generated interface (see types.go doc comment).
type PluginServiceServer interface {
	SetConfig(ctx context.Context, req *SetConfigRequest) (*SetConfigResponse, error)
	DefaultPolicyExpr(ctx context.Context, req *DefaultPolicyExprRequest) (*DefaultPolicyExprResponse, error)
	ExplainDefaultQuery(ctx context.Context, req *ExplainDefaultQueryRequest) (*ExplainDefaultQueryResponse, error)
	QuerySchemas(req *QuerySchemasRequest, stream QuerySchemasServerStream) error
	Query(stream QueryServerStream) error
}

// QuerySchemasServerStream is the server-streaming handle for QuerySchemas.
type QuerySchemasServerStream interface {
	Send(*QuerySchemaEntry) error
	grpc.ServerStream
}

// QueryServerStream is the bidirectional-streaming handle for Query.
type QueryServerStream interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ServerStream
}

type querySchemasServerStream struct{ grpc.ServerStream }

func (s *querySchemasServerStream) Send(m *QuerySchemaEntry) error { return s.ServerStream.SendMsg(m) }

type queryServerStream struct{ grpc.ServerStream }

func (s *queryServerStream) Send(m *Frame) error { return s.ServerStream.SendMsg(m) }
func (s *queryServerStream) Recv() (*Frame, error) {
	m := new(Frame)
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func setConfigHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetConfigRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PluginServiceServer).SetConfig(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/SetConfig"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PluginServiceServer).SetConfig(ctx, req.(*SetConfigRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func defaultPolicyExprHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DefaultPolicyExprRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PluginServiceServer).DefaultPolicyExpr(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/DefaultPolicyExpr"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PluginServiceServer).DefaultPolicyExpr(ctx, req.(*DefaultPolicyExprRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func explainDefaultQueryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ExplainDefaultQueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PluginServiceServer).ExplainDefaultQuery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/ExplainDefaultQuery"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PluginServiceServer).ExplainDefaultQuery(ctx, req.(*ExplainDefaultQueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func querySchemasHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(QuerySchemasRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PluginServiceServer).QuerySchemas(m, &querySchemasServerStream{stream})
}

func queryHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PluginServiceServer).Query(&queryServerStream{stream})
}

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hipcheck.v1.PluginService"

// ServiceDesc is the hand-authored grpc.ServiceDesc for the plugin service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PluginServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetConfig", Handler: setConfigHandler},
		{MethodName: "DefaultPolicyExpr", Handler: defaultPolicyExprHandler},
		{MethodName: "ExplainDefaultQuery", Handler: explainDefaultQueryHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "QuerySchemas", Handler: querySchemasHandler, ServerStreams: true},
		{StreamName: "Query", Handler: queryHandler, ServerStreams: true, ClientStreams: true},
	},
	Metadata: "hipcheck/wire/service.go",
}

// RegisterPluginServiceServer registers srv on s.
func RegisterPluginServiceServer(s grpc.ServiceRegistrar, srv PluginServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
