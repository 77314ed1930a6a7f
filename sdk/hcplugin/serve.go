package hcplugin

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// server adapts a Plugin to wire.PluginServiceServer.
type server struct {
	impl Plugin
	log  *slog.Logger
}

func (s *server) SetConfig(ctx context.Context, req *wire.SetConfigRequest) (*wire.SetConfigResponse, error) {
	if err := s.impl.SetConfig(ctx, req.ConfigJSON); err != nil {
		if cfgErr, ok := err.(*wire.ConfigError); ok {
			return nil, encodeConfigError(cfgErr)
		}
		return nil, err
	}
	return &wire.SetConfigResponse{}, nil
}

func encodeConfigError(ce *wire.ConfigError) error {
	data, jsonErr := json.Marshal(ce)
	if jsonErr != nil {
		return ce
	}
	return status.Error(codes.InvalidArgument, string(data))
}

func (s *server) DefaultPolicyExpr(ctx context.Context, req *wire.DefaultPolicyExprRequest) (*wire.DefaultPolicyExprResponse, error) {
	expr, err := s.impl.DefaultPolicyExpr(ctx)
	if err != nil {
		return nil, err
	}
	return &wire.DefaultPolicyExprResponse{Expr: expr}, nil
}

func (s *server) ExplainDefaultQuery(ctx context.Context, req *wire.ExplainDefaultQueryRequest) (*wire.ExplainDefaultQueryResponse, error) {
	explanation, err := s.impl.ExplainDefaultQuery(ctx)
	if err != nil {
		return nil, err
	}
	if explanation == "" {
		return &wire.ExplainDefaultQueryResponse{}, nil
	}
	return &wire.ExplainDefaultQueryResponse{Explanation: &explanation}, nil
}

func (s *server) QuerySchemas(req *wire.QuerySchemasRequest, stream wire.QuerySchemasServerStream) error {
	for _, entry := range s.impl.Schemas() {
		e := entry
		if err := stream.Send(&e); err != nil {
			return err
		}
	}
	return nil
}

func (s *server) Query(stream wire.QueryServerStream) error {
	d := newDispatcher(s.impl, stream)
	return d.run()
}

// Options configures Serve. Zero value is valid; Port defaults to the
// value of the --port flag.
type Options struct {
	Port   int
	Logger *slog.Logger
}

// Serve binds 127.0.0.1:<port> (read from --port per spec.md §6's plugin
// binary contract, unless Options.Port is set) and blocks serving impl's
// gRPC service until the listener errors.
func Serve(impl Plugin, opts ...Options) error {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Port == 0 {
		port := flag.Int("port", 0, "TCP port to listen on")
		flag.Parse()
		o.Port = *port
	}
	if o.Port == 0 {
		return fmt.Errorf("hcplugin: no --port supplied")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", o.Port))
	if err != nil {
		return fmt.Errorf("hcplugin: listen: %w", err)
	}

	gs := grpc.NewServer()
	wire.RegisterPluginServiceServer(gs, &server{impl: impl, log: o.Logger})

	o.Logger.Info("plugin serving", "port", o.Port)
	return gs.Serve(lis)
}
