// Package supervisor owns a session's plugin set: for each plugin it
// ensures the artifact cache has a verified binary, spawns and connects to
// it via the executor, and performs the SetConfig handshake before ever
// exposing the handle to the query engine. Grounded on spec.md §4.5 and the
// teacher's session-scoped plugin bring-up in
// goatkit-goatflow/internal/plugin/manager.go.
package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc/status"

	"github.com/mitre/hipcheck-sub002/internal/cache"
	"github.com/mitre/hipcheck-sub002/internal/executor"
	"github.com/mitre/hipcheck-sub002/internal/ident"
	"github.com/mitre/hipcheck-sub002/internal/manifest"
	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// Spec describes one plugin a session should bring up.
type Spec struct {
	ID         ident.ID
	Manifest   *manifest.Manifest
	ConfigJSON string
}

// Plugin is a fully handshaken, running plugin: its process handle and
// gRPC client, safe to expose to the engine.
type Plugin struct {
	ID     ident.ID
	Handle *executor.Handle
	Client wire.PluginServiceClient
}

// Supervisor brings up and tears down a session's plugin set.
type Supervisor struct {
	cache    *cache.ArtifactCache
	executor *executor.Executor
	arch     string
	log      hclog.Logger

	mu      sync.Mutex
	running map[ident.Key]*Plugin
}

// New returns a Supervisor that resolves binaries via c, spawns them via
// exe, and selects manifest entries for archTriple.
func New(c *cache.ArtifactCache, exe *executor.Executor, archTriple string, log hclog.Logger) *Supervisor {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Supervisor{
		cache:    c,
		executor: exe,
		arch:     archTriple,
		log:      log,
		running:  make(map[ident.Key]*Plugin),
	}
}

// Start ensures, spawns, connects, and configures one plugin. The plugin is
// recorded as running only after SetConfig succeeds, per spec.md §4.5's
// invariant that a handle is never exposed before the handshake completes.
func (s *Supervisor) Start(ctx context.Context, spec Spec) (*Plugin, error) {
	dir, err := s.cache.Ensure(spec.ID, s.arch, spec.Manifest)
	if err != nil {
		return nil, err
	}

	entrypoint := filepath.Join(dir, spec.ID.Name)
	handle, err := s.executor.Start(ctx, entrypoint)
	if err != nil {
		return nil, err
	}

	client := wire.NewPluginServiceClient(handle.Conn)
	if _, err := client.SetConfig(ctx, &wire.SetConfigRequest{ConfigJSON: spec.ConfigJSON}); err != nil {
		handle.Close()
		if cfgErr, ok := asConfigError(err); ok {
			return nil, &Error{Kind: ConfigRejected, Plugin: spec.ID.String(), Err: cfgErr}
		}
		return nil, &Error{Kind: HandshakeFailed, Plugin: spec.ID.String(), Err: err}
	}

	p := &Plugin{ID: spec.ID, Handle: handle, Client: client}
	s.mu.Lock()
	s.running[spec.ID.Of()] = p
	s.mu.Unlock()

	s.log.Info("plugin started", "plugin", spec.ID.String(), "port", handle.Port)
	return p, nil
}

// OpenQueryStream opens the bidirectional Query stream for an already
// running plugin, for the engine to attach to.
func (s *Supervisor) OpenQueryStream(ctx context.Context, key ident.Key) (wire.QueryClientStream, error) {
	s.mu.Lock()
	p, ok := s.running[key]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("supervisor: no running plugin %s", key)
	}
	return p.Client.Query(ctx)
}

// Get returns the running plugin for key, if any.
func (s *Supervisor) Get(key ident.Key) (*Plugin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.running[key]
	return p, ok
}

// Shutdown closes every running plugin's handle, killing its subprocess and
// releasing its port, per spec.md §4.5 step 5.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, p := range s.running {
		_ = p.Handle.Close()
		delete(s.running, key)
	}
}

// asConfigError recovers a *wire.ConfigError from a gRPC status error whose
// message is the JSON encoding of one: plugin-side SetConfig handlers
// encode a rejected configuration this way (see sdk/hcplugin) since the
// JSON codec carries no typed error detail across the process boundary.
func asConfigError(err error) (*wire.ConfigError, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	var ce wire.ConfigError
	if jsonErr := json.Unmarshal([]byte(st.Message()), &ce); jsonErr != nil {
		return nil, false
	}
	return &ce, true
}
