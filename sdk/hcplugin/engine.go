package hcplugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// Engine is the plugin-side handle a Plugin.Query implementation uses to
// recursively resolve sub-queries against other plugins, via the same
// suspend/resume mechanism the host's query engine expects (spec.md §4.4
// steps 3-4): the SDK sends an AwaitingResult reply on the plugin's shared
// Query stream and blocks until the host resumes this logical query id
// with the collected values.
type Engine struct {
	id      int64
	disp    *dispatcher
}

// QueryPlugin recursively resolves one sub-query and returns its raw JSON
// value. Each call sends its own one-key AwaitingResult reply and waits for
// the resume; concurrent calls from the same logical query are not combined
// and share that query's single resume slot. QueryPluginBatch resolves
// several keys in one round-trip.
func (e *Engine) QueryPlugin(ctx context.Context, publisher, plugin, query, rawKey string) (string, error) {
	vals, err := e.QueryPluginBatch(ctx, publisher, plugin, query, []string{rawKey})
	if err != nil {
		return "", err
	}
	return vals[0], nil
}

// QueryPluginBatch resolves a batch of keys against one callee query in a
// single AwaitingResult round-trip, per spec.md §4.4 step 4 ("a batch of
// sub-queries against a single callee").
func (e *Engine) QueryPluginBatch(ctx context.Context, publisher, plugin, query string, rawKeys []string) ([]string, error) {
	awaiting, err := json.Marshal(struct {
		Publisher string   `json:"publisher"`
		Plugin    string   `json:"plugin"`
		Query     string   `json:"query"`
		Keys      []string `json:"keys"`
	}{publisher, plugin, query, rawKeys})
	if err != nil {
		return nil, err
	}

	reply := &wire.Query{
		ID:        e.id,
		Direction: wire.Response,
		Name:      wire.AwaitingQueryName,
		Output:    []string{string(awaiting)},
	}
	resumeCh := e.disp.awaitResume(e.id)
	if err := e.disp.send(reply); err != nil {
		e.disp.forgetResume(e.id)
		return nil, err
	}

	select {
	case resumed, ok := <-resumeCh:
		if !ok {
			return nil, fmt.Errorf("hcplugin: stream closed awaiting resume for query %d", e.id)
		}
		return resumed.Key, nil
	case <-ctx.Done():
		e.disp.forgetResume(e.id)
		return nil, ctx.Err()
	}
}

func newEngineHandle(id int64, disp *dispatcher) *Engine {
	return &Engine{id: id, disp: disp}
}
