// Package session ties the artifact cache, executor, supervisor, and query
// engine into one analysis session, mirroring the lifecycle in spec.md §5
// ("Session Lifecycle") and §4.5: one cache root and one executor are
// shared across a session's plugins, but each session gets a fresh engine
// and a fresh set of plugin subprocesses (no cross-session reuse).
package session

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/mitre/hipcheck-sub002/internal/cache"
	"github.com/mitre/hipcheck-sub002/internal/engine"
	"github.com/mitre/hipcheck-sub002/internal/executor"
	"github.com/mitre/hipcheck-sub002/internal/ident"
	"github.com/mitre/hipcheck-sub002/internal/supervisor"
)

// Config configures one session's cache/executor pair.
type Config struct {
	CacheRoot  string
	ArchTriple string
	Executor   executor.Config
	Logger     *slog.Logger
}

// Session owns one analysis run's plugin set and query engine.
type Session struct {
	id         string
	cache      *cache.ArtifactCache
	supervisor *supervisor.Supervisor
	engine     *engine.Engine
	log        *slog.Logger
}

// ID returns the session's unique identifier, attached to every log line
// so concurrent sessions' output can be told apart.
func (s *Session) ID() string { return s.id }

// New constructs a Session's cache, executor, supervisor, and engine. No
// plugins are started yet; call StartPlugin for each one the policy needs.
func New(cfg Config) (*Session, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	log = log.With("session_id", id)
	exe, err := executor.New(cfg.Executor, hclog.NewNullLogger())
	if err != nil {
		return nil, err
	}
	c := cache.New(cfg.CacheRoot)
	if err := c.EnableInvalidationWatch(log); err != nil {
		log.Warn("cache invalidation watch disabled", "err", err)
	}
	sup := supervisor.New(c, exe, cfg.ArchTriple, hclog.NewNullLogger())
	return &Session{
		id:         id,
		cache:      c,
		supervisor: sup,
		engine:     engine.New(),
		log:        log,
	}, nil
}

// StartPlugin ensures, spawns, configures, and attaches one plugin to the
// session's query engine. Per spec.md §4.5's invariant, the plugin is only
// attached (and so only reachable from Query) after SetConfig succeeds.
func (s *Session) StartPlugin(ctx context.Context, spec supervisor.Spec) error {
	p, err := s.supervisor.Start(ctx, spec)
	if err != nil {
		return err
	}
	stream, err := p.Client.Query(ctx)
	if err != nil {
		return err
	}
	s.engine.Attach(spec.ID.Publisher, spec.ID.Name, stream)
	s.log.Info("plugin attached to engine", "plugin", spec.ID.String())
	return nil
}

// Query evaluates (publisher, plugin, query, key), per spec.md §4.4.
func (s *Session) Query(ctx context.Context, publisher, plugin, query, rawKey string) (engine.Result, error) {
	return s.engine.Query(ctx, publisher, plugin, query, rawKey)
}

// Plugin exposes the running plugin's gRPC client for a (publisher, name)
// key, so callers like the Policy Evaluator can issue the unary handshake
// RPCs (default_policy_expr, explain_default_query) from spec.md §4.5 step 3.
func (s *Session) Plugin(key ident.Key) (*supervisor.Plugin, bool) {
	return s.supervisor.Get(key)
}

// Close tears down every running plugin, killing subprocesses and releasing
// ports, per spec.md §4.5 step 5 and §5 ("Session Lifecycle": teardown).
func (s *Session) Close() {
	s.supervisor.Shutdown()
}
