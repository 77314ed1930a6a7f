package wire

import (
	"context"

	"google.golang.org/grpc"
)

// PluginServiceClient is the host side's handle onto a running plugin's
// gRPC service.
type PluginServiceClient interface {
	SetConfig(ctx context.Context, req *SetConfigRequest, opts ...grpc.CallOption) (*SetConfigResponse, error)
	DefaultPolicyExpr(ctx context.Context, req *DefaultPolicyExprRequest, opts ...grpc.CallOption) (*DefaultPolicyExprResponse, error)
	ExplainDefaultQuery(ctx context.Context, req *ExplainDefaultQueryRequest, opts ...grpc.CallOption) (*ExplainDefaultQueryResponse, error)
	QuerySchemas(ctx context.Context, req *QuerySchemasRequest, opts ...grpc.CallOption) (QuerySchemasClientStream, error)
	Query(ctx context.Context, opts ...grpc.CallOption) (QueryClientStream, error)
}

// QuerySchemasClientStream is the client side of the QuerySchemas server stream.
type QuerySchemasClientStream interface {
	Recv() (*QuerySchemaEntry, error)
	grpc.ClientStream
}

// QueryClientStream is the client side of the bidirectional Query stream.
type QueryClientStream interface {
	Send(*Frame) error
	Recv() (*Frame, error)
	grpc.ClientStream
}

type pluginServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPluginServiceClient wraps cc with the hand-authored PluginService client stubs.
func NewPluginServiceClient(cc grpc.ClientConnInterface) PluginServiceClient {
	return &pluginServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(ContentSubtype)}, opts...)
}

func (c *pluginServiceClient) SetConfig(ctx context.Context, req *SetConfigRequest, opts ...grpc.CallOption) (*SetConfigResponse, error) {
	out := new(SetConfigResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/SetConfig", req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pluginServiceClient) DefaultPolicyExpr(ctx context.Context, req *DefaultPolicyExprRequest, opts ...grpc.CallOption) (*DefaultPolicyExprResponse, error) {
	out := new(DefaultPolicyExprResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/DefaultPolicyExpr", req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pluginServiceClient) ExplainDefaultQuery(ctx context.Context, req *ExplainDefaultQueryRequest, opts ...grpc.CallOption) (*ExplainDefaultQueryResponse, error) {
	out := new(ExplainDefaultQueryResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ExplainDefaultQuery", req, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

type querySchemasClientStream struct{ grpc.ClientStream }

func (s *querySchemasClientStream) Recv() (*QuerySchemaEntry, error) {
	m := new(QuerySchemaEntry)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *pluginServiceClient) QuerySchemas(ctx context.Context, req *QuerySchemasRequest, opts ...grpc.CallOption) (QuerySchemasClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/QuerySchemas", callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	cs := &querySchemasClientStream{stream}
	if err := cs.SendMsg(req); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}
	return cs, nil
}

type queryClientStream struct{ grpc.ClientStream }

func (s *queryClientStream) Send(f *Frame) error { return s.ClientStream.SendMsg(f) }
func (s *queryClientStream) Recv() (*Frame, error) {
	m := new(Frame)
	if err := s.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *pluginServiceClient) Query(ctx context.Context, opts ...grpc.CallOption) (QueryClientStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], "/"+ServiceName+"/Query", callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	return &queryClientStream{stream}, nil
}
