package hcplugin

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/mitre/hipcheck-sub002/internal/engine"
	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// pipe connects one engine-side conn to one dispatcher entirely in-process,
// so the suspend/resume protocol can be exercised against both real
// implementations instead of a hand-crafted fake on either side.
type pipe struct {
	toPlugin chan *wire.Frame
	toHost   chan *wire.Frame
}

func newPipe() *pipe {
	return &pipe{toPlugin: make(chan *wire.Frame, 16), toHost: make(chan *wire.Frame, 16)}
}

type pipeHostSide struct{ p *pipe }

func (s pipeHostSide) Send(f *wire.Frame) error { s.p.toPlugin <- f; return nil }
func (s pipeHostSide) Recv() (*wire.Frame, error) {
	f, ok := <-s.p.toHost
	if !ok {
		return nil, io.EOF
	}
	return f, nil
}
func (s pipeHostSide) Header() (metadata.MD, error) { return nil, nil }
func (s pipeHostSide) Trailer() metadata.MD         { return nil }
func (s pipeHostSide) CloseSend() error             { return nil }
func (s pipeHostSide) Context() context.Context     { return context.Background() }
func (s pipeHostSide) SendMsg(m interface{}) error  { return nil }
func (s pipeHostSide) RecvMsg(m interface{}) error  { return nil }

type pipePluginSide struct{ p *pipe }

func (s pipePluginSide) Send(f *wire.Frame) error { s.p.toHost <- f; return nil }
func (s pipePluginSide) Recv() (*wire.Frame, error) {
	f, ok := <-s.p.toPlugin
	if !ok {
		return nil, io.EOF
	}
	return f, nil
}
func (s pipePluginSide) SetHeader(metadata.MD) error  { return nil }
func (s pipePluginSide) SendHeader(metadata.MD) error { return nil }
func (s pipePluginSide) SetTrailer(metadata.MD)       {}
func (s pipePluginSide) Context() context.Context     { return context.Background() }
func (s pipePluginSide) SendMsg(m interface{}) error  { return nil }
func (s pipePluginSide) RecvMsg(m interface{}) error  { return nil }

type doublingPlugin struct{}

func (doublingPlugin) SetConfig(ctx context.Context, configJSON string) error   { return nil }
func (doublingPlugin) DefaultPolicyExpr(ctx context.Context) (string, error)   { return "", nil }
func (doublingPlugin) ExplainDefaultQuery(ctx context.Context) (string, error) { return "", nil }
func (doublingPlugin) Schemas() []wire.QuerySchemaEntry                       { return nil }
func (doublingPlugin) Query(ctx context.Context, eng *Engine, name, key string) (string, []string, error) {
	return `{"2x":` + key + `}`, nil, nil
}

type delegatingPlugin struct{}

func (delegatingPlugin) SetConfig(ctx context.Context, configJSON string) error   { return nil }
func (delegatingPlugin) DefaultPolicyExpr(ctx context.Context) (string, error)   { return "", nil }
func (delegatingPlugin) ExplainDefaultQuery(ctx context.Context) (string, error) { return "", nil }
func (delegatingPlugin) Schemas() []wire.QuerySchemaEntry                       { return nil }
func (delegatingPlugin) Query(ctx context.Context, eng *Engine, name, key string) (string, []string, error) {
	v, err := eng.QueryPlugin(ctx, "acme", "helper", "double", key)
	if err != nil {
		return "", nil, err
	}
	return `{"outer":` + v + `}`, nil, nil
}

// TestEngineAndDispatcherResumeSameLogicalID wires a real internal/engine
// conn against a real dispatcher on both sides of a recursive sub-query, so
// a regression where the host mints a fresh id for the resume frame (which
// the dispatcher's resume map would never match) fails here instead of only
// in each package's isolated, hand-crafted-frame tests.
func TestEngineAndDispatcherResumeSameLogicalID(t *testing.T) {
	e := engine.New()

	outerPipe := newPipe()
	helperPipe := newPipe()

	e.Attach("acme", "outer", pipeHostSide{outerPipe})
	e.Attach("acme", "helper", pipeHostSide{helperPipe})

	go newDispatcher(delegatingPlugin{}, pipePluginSide{outerPipe}).run()
	go newDispatcher(doublingPlugin{}, pipePluginSide{helperPipe}).run()

	res, err := e.Query(context.Background(), "acme", "outer", "relay", `"5"`)
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"2x":"5"}}`, res.Value)
}
