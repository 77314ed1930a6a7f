// Package engine implements the memoizing, demand-driven query engine:
// it turns (publisher, plugin, query, key) lookups into RPCs over a
// plugin's multiplexed gRPC stream, recursively resolves plugin-originated
// sub-queries, memoizes completed results per session, and detects cycles
// in the resolution graph. Grounded on the evaluation loop in spec.md §4.4
// and, for the RPC shape, the teacher's runtime dispatch in
// goatkit-goatflow's internal/plugin/grpc/runtime.go.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// Result is a memoized query outcome.
type Result struct {
	Value    string // JSON
	Concerns []string
}

// Engine evaluates queries against a fixed set of plugin connections,
// established and owned by the caller (typically a Supervisor). One Engine
// is scoped to a single analysis session: its cache and in-flight
// bookkeeping never survive past that session, per spec.md §4.4's
// "cache is per-session".
type Engine struct {
	mu    sync.Mutex
	conns map[string]*conn

	cacheMu sync.Mutex
	cache   map[QueryKey]Result

	group singleflight.Group
}

// New returns an empty Engine. Plugin connections are attached via Attach.
func New() *Engine {
	return &Engine{
		conns: make(map[string]*conn),
		cache: make(map[QueryKey]Result),
	}
}

func connKey(publisher, plugin string) string { return publisher + "/" + plugin }

// Attach registers the multiplexed bidirectional stream for (publisher,
// plugin). Must be called once per plugin before any query against it.
func (e *Engine) Attach(publisher, plugin string, stream wire.QueryClientStream) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns[connKey(publisher, plugin)] = newConn(stream)
}

// Query resolves (publisher, plugin, queryName, rawKey) to its value and
// accumulated concerns, per the evaluation loop in spec.md §4.4.
func (e *Engine) Query(ctx context.Context, publisher, plugin, queryName, rawKey string) (Result, error) {
	key, err := NewQueryKey(publisher, plugin, queryName, rawKey)
	if err != nil {
		return Result{}, err
	}
	return e.resolve(ctx, nil, key)
}

// resolve implements one memoized, cycle-checked resolution. path holds the
// ancestor keys of the current goroutine's call chain (not shared across
// concurrent unrelated callers) so cycle detection matches spec.md §4.4
// ("per-resolution in-flight set").
func (e *Engine) resolve(ctx context.Context, path []QueryKey, key QueryKey) (Result, error) {
	if r, ok := e.cacheGet(key); ok {
		return r, nil
	}
	for _, anc := range path {
		if anc == key {
			p := make([]string, 0, len(path)+1)
			for _, k := range append(path, key) {
				p = append(p, k.String())
			}
			return Result{}, &Error{Kind: QueryCycle, Key: key.String(), Path: p}
		}
	}

	nextPath := append(append([]QueryKey{}, path...), key)

	v, err, _ := e.group.Do(key.String(), func() (interface{}, error) {
		return e.resolveOnce(ctx, nextPath, key)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (e *Engine) resolveOnce(ctx context.Context, path []QueryKey, key QueryKey) (Result, error) {
	e.mu.Lock()
	c, ok := e.conns[connKey(key.Publisher, key.Plugin)]
	e.mu.Unlock()
	if !ok {
		return Result{}, &Error{Kind: UnknownPlugin, Key: key.String()}
	}

	id, ch, ok := c.open()
	if !ok {
		return Result{}, &Error{Kind: PluginChannelClosed, Key: key.String()}
	}

	req := &wire.Query{
		ID:        id,
		Direction: wire.Request,
		Publisher: key.Publisher,
		Plugin:    key.Plugin,
		Name:      key.Query,
		Key:       []string{key.Key},
	}
	if err := c.send(req); err != nil {
		c.forget(id)
		return Result{}, &Error{Kind: PluginChannelClosed, Key: key.String(), Err: err}
	}

	// id stays registered with c for this whole logical exchange: an
	// AwaitingResult reply suspends the query rather than ending it, and
	// the resume frame below continues it under the same id, per spec.md
	// §4.4 step 5 ("resume the suspended query"). The plugin-side SDK
	// (sdk/hcplugin/dispatcher.go) only recognizes a resume if its frame
	// arrives on the id it is already waiting on.
	var concerns []string
	for {
		reply, ok := c.recvOn(ctx, ch)
		if !ok {
			c.forget(id)
			return Result{}, &Error{Kind: PluginChannelClosed, Key: key.String()}
		}
		concerns = append(concerns, reply.Concerns...)

		if reply.Error != "" {
			c.forget(id)
			return Result{}, &Error{Kind: PluginReportedError, Key: key.String(), Message: reply.Error}
		}

		awaiting, err := parseAwaiting(reply)
		if err != nil {
			c.forget(id)
			return Result{}, err
		}
		if awaiting == nil {
			c.forget(id)
			result := Result{Concerns: concerns}
			if len(reply.Output) > 0 {
				result.Value = reply.Output[0]
			}
			e.cacheSet(key, result)
			return result, nil
		}

		values := make([]string, 0, len(awaiting.keys))
		for _, k := range awaiting.keys {
			subKey, err := NewQueryKey(awaiting.publisher, awaiting.plugin, awaiting.query, k)
			if err != nil {
				c.forget(id)
				return Result{}, err
			}
			sub, err := e.resolve(ctx, path, subKey)
			if err != nil {
				c.forget(id)
				return Result{}, err
			}
			values = append(values, sub.Value)
		}

		resume := &wire.Query{
			ID:        id,
			Direction: wire.Request,
			Publisher: key.Publisher,
			Plugin:    key.Plugin,
			Name:      key.Query,
			Key:       values,
		}
		if err := c.send(resume); err != nil {
			c.forget(id)
			return Result{}, &Error{Kind: PluginChannelClosed, Key: key.String(), Err: err}
		}
	}
}

func (c *conn) recvOn(ctx context.Context, ch chan *wire.Query) (*wire.Query, bool) {
	select {
	case q, ok := <-ch:
		return q, ok
	case <-ctx.Done():
		return nil, false
	}
}

// awaitingResult is the decoded form of a plugin's AwaitingResult reply,
// carried over the wire as a reply whose Output holds an encoded sub-query
// request in lieu of a final value. See wire.AwaitingQueryName
// (wire/types.go); the encoding is a JSON object with
// publisher/plugin/query/keys fields, built by sdk/hcplugin's
// QueryPluginBatch.
type awaitingResult struct {
	publisher string
	plugin    string
	query     string
	keys      []string
}

func parseAwaiting(reply *wire.Query) (*awaitingResult, error) {
	if reply.Name != wire.AwaitingQueryName {
		return nil, nil
	}
	if len(reply.Output) != 1 {
		return nil, fmt.Errorf("engine: malformed AwaitingResult reply")
	}
	var decoded struct {
		Publisher string   `json:"publisher"`
		Plugin    string   `json:"plugin"`
		Query     string   `json:"query"`
		Keys      []string `json:"keys"`
	}
	if err := json.Unmarshal([]byte(reply.Output[0]), &decoded); err != nil {
		return nil, fmt.Errorf("engine: malformed AwaitingResult reply: %w", err)
	}
	return &awaitingResult{
		publisher: decoded.Publisher,
		plugin:    decoded.Plugin,
		query:     decoded.Query,
		keys:      decoded.Keys,
	}, nil
}

func (e *Engine) cacheGet(k QueryKey) (Result, bool) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	r, ok := e.cache[k]
	return r, ok
}

func (e *Engine) cacheSet(k QueryKey, r Result) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache[k] = r
}
