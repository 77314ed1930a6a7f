// Package hcplugin is the plugin-authoring SDK: a plugin binary implements
// Plugin and calls Serve, and the SDK handles the gRPC service contract
// (spec.md §6), frame chunking, and multiplexed recursive sub-queries, so
// plugin authors only write query logic. Mirrors the teacher's
// pkg/plugin/grpcutil.ServePlugin pattern, adapted from go-plugin/net-rpc
// to the host's hand-authored gRPC service.
package hcplugin

import (
	"context"

	"github.com/mitre/hipcheck-sub002/internal/wire"
)

// Plugin is the interface a plugin binary implements.
type Plugin interface {
	// SetConfig validates and applies a JSON configuration document. A
	// rejected configuration should return a *wire.ConfigError.
	SetConfig(ctx context.Context, configJSON string) error

	// DefaultPolicyExpr returns this plugin's suggested default policy
	// expression, or "" if it has none.
	DefaultPolicyExpr(ctx context.Context) (string, error)

	// ExplainDefaultQuery returns a human-readable explanation of the
	// plugin's default query, or "" if it has none.
	ExplainDefaultQuery(ctx context.Context) (string, error)

	// Schemas describes every query this plugin exposes.
	Schemas() []wire.QuerySchemaEntry

	// Query answers one query by name over a JSON-encoded key. eng lets the
	// implementation recursively resolve sub-queries against other plugins
	// via eng.QueryPlugin, exactly mirroring spec.md §4.4 step 4.
	Query(ctx context.Context, eng *Engine, name string, key string) (value string, concerns []string, err error)
}
