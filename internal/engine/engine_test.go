package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// fakeStream is a loopback wire.QueryClientStream driven by a test-supplied
// responder function, standing in for a real plugin subprocess connection.
type fakeStream struct {
	out chan *wire.Frame
	in  chan *wire.Frame
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		out: make(chan *wire.Frame, 16),
		in:  make(chan *wire.Frame, 16),
	}
}

func (f *fakeStream) Send(fr *wire.Frame) error { f.out <- fr; return nil }
func (f *fakeStream) Recv() (*wire.Frame, error) {
	fr, ok := <-f.in
	if !ok {
		return nil, io.EOF
	}
	return fr, nil
}
func (f *fakeStream) Header() (metadata.MD, error) { return nil, nil }
func (f *fakeStream) Trailer() metadata.MD          { return nil }
func (f *fakeStream) CloseSend() error              { return nil }
func (f *fakeStream) Context() context.Context      { return context.Background() }
func (f *fakeStream) SendMsg(m interface{}) error   { return nil }
func (f *fakeStream) RecvMsg(m interface{}) error   { return nil }

// runResponder drives a simple request/reply plugin simulation: each
// request frame arriving on out is handed to respond, whose returned frames
// are written back to in.
func runResponder(t *testing.T, f *fakeStream, respond func(*wire.Frame) []*wire.Frame) {
	t.Helper()
	go func() {
		for fr := range f.out {
			for _, reply := range respond(fr) {
				f.in <- reply
			}
		}
	}()
}

func directReply(id int64, value string) *wire.Frame {
	return &wire.Frame{ID: id, State: wire.ReplyComplete, Output: []string{value}}
}

func TestEngineQueryDirectValue(t *testing.T) {
	e := New()
	fs := newFakeStream()
	e.Attach("acme", "scanner", fs)
	runResponder(t, fs, func(req *wire.Frame) []*wire.Frame {
		return []*wire.Frame{directReply(req.ID, `42`)}
	})

	res, err := e.Query(context.Background(), "acme", "scanner", "count", `{"path":"a.go"}`)
	require.NoError(t, err)
	assert.Equal(t, "42", res.Value)
}

func TestEngineMemoizesResult(t *testing.T) {
	e := New()
	fs := newFakeStream()
	e.Attach("acme", "scanner", fs)
	calls := 0
	runResponder(t, fs, func(req *wire.Frame) []*wire.Frame {
		calls++
		return []*wire.Frame{directReply(req.ID, `"v"`)}
	})

	ctx := context.Background()
	_, err := e.Query(ctx, "acme", "scanner", "q", `1`)
	require.NoError(t, err)
	_, err = e.Query(ctx, "acme", "scanner", "q", `1`)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestEngineUnknownPlugin(t *testing.T) {
	e := New()
	_, err := e.Query(context.Background(), "nobody", "nothing", "q", `1`)
	var eerr *Error
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, UnknownPlugin, eerr.Kind)
}

func TestEnginePluginReportedError(t *testing.T) {
	e := New()
	fs := newFakeStream()
	e.Attach("acme", "scanner", fs)
	runResponder(t, fs, func(req *wire.Frame) []*wire.Frame {
		return []*wire.Frame{{ID: req.ID, State: wire.StateError, Error: "boom"}}
	})

	_, err := e.Query(context.Background(), "acme", "scanner", "q", `1`)
	var eerr *Error
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, PluginReportedError, eerr.Kind)
	assert.Equal(t, "boom", eerr.Message)
}

func TestEngineRecursiveSubQuery(t *testing.T) {
	e := New()
	fsA := newFakeStream()
	fsB := newFakeStream()
	e.Attach("acme", "a", fsA)
	e.Attach("acme", "b", fsB)

	// A/x(k1) awaits B/y(k2); once resumed, completes with a derived value.
	runResponder(t, fsA, func(req *wire.Frame) []*wire.Frame {
		if req.Query == "x" && len(req.Key) == 1 && req.Key[0] == `"k1"` {
			awaiting, _ := json.Marshal(map[string]interface{}{
				"publisher": "acme", "plugin": "b", "query": "y", "keys": []string{`"k2"`},
			})
			return []*wire.Frame{{ID: req.ID, State: wire.ReplyComplete, Query: wire.AwaitingQueryName, Output: []string{string(awaiting)}}}
		}
		// resumed with the value of B/y(k2)
		var sub string
		_ = json.Unmarshal([]byte(req.Key[0]), &sub)
		derived, _ := json.Marshal("derived:" + sub)
		return []*wire.Frame{directReply(req.ID, string(derived))}
	})
	runResponder(t, fsB, func(req *wire.Frame) []*wire.Frame {
		return []*wire.Frame{directReply(req.ID, `"v2"`)}
	})

	res, err := e.Query(context.Background(), "acme", "a", "x", `"k1"`)
	require.NoError(t, err)
	assert.Contains(t, res.Value, "derived")
}

func TestEngineCycleDetection(t *testing.T) {
	e := New()
	fsA := newFakeStream()
	fsB := newFakeStream()
	e.Attach("acme", "a", fsA)
	e.Attach("acme", "b", fsB)

	runResponder(t, fsA, func(req *wire.Frame) []*wire.Frame {
		awaiting, _ := json.Marshal(map[string]interface{}{
			"publisher": "acme", "plugin": "b", "query": "y", "keys": []string{`"k"`},
		})
		return []*wire.Frame{{ID: req.ID, State: wire.ReplyComplete, Query: wire.AwaitingQueryName, Output: []string{string(awaiting)}}}
	})
	runResponder(t, fsB, func(req *wire.Frame) []*wire.Frame {
		awaiting, _ := json.Marshal(map[string]interface{}{
			"publisher": "acme", "plugin": "a", "query": "x", "keys": []string{`"k"`},
		})
		return []*wire.Frame{{ID: req.ID, State: wire.ReplyComplete, Query: wire.AwaitingQueryName, Output: []string{string(awaiting)}}}
	})

	_, err := e.Query(context.Background(), "acme", "a", "x", `"k"`)
	var eerr *Error
	require.True(t, errors.As(err, &eerr))
	assert.Equal(t, QueryCycle, eerr.Kind)
}
