// Command hipcheck-plugin-demo is a minimal plugin binary built on
// sdk/hcplugin: it answers a single "sha256" query over a byte-array key,
// grounded in original_source/plugins/dummy_sha256_sdk/src/main.rs.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mitre/hipcheck-sub002/internal/wire"
	"github.com/mitre/hipcheck-sub002/sdk/hcplugin"
)

type sha256Plugin struct{}

func (sha256Plugin) SetConfig(ctx context.Context, configJSON string) error { return nil }

func (sha256Plugin) DefaultPolicyExpr(ctx context.Context) (string, error) { return "", nil }

func (sha256Plugin) ExplainDefaultQuery(ctx context.Context) (string, error) {
	return "calculate sha256 of a provided byte array", nil
}

func (sha256Plugin) Schemas() []wire.QuerySchemaEntry {
	return []wire.QuerySchemaEntry{{
		QueryName:    "sha256",
		KeySchema:    `{"type":"array","items":{"type":"integer","minimum":0,"maximum":255}}`,
		OutputSchema: `{"type":"array","items":{"type":"integer","minimum":0,"maximum":255}}`,
	}}
}

func (sha256Plugin) Query(ctx context.Context, eng *hcplugin.Engine, name string, key string) (string, []string, error) {
	if name != "sha256" && name != "" {
		return "", nil, fmt.Errorf("dummy/sha256: unknown query %q", name)
	}

	var data []byte
	if err := json.Unmarshal([]byte(key), &data); err != nil {
		return "", nil, fmt.Errorf("dummy/sha256: input must be a byte array: %w", err)
	}

	sum := sha256.Sum256(data)
	out, err := json.Marshal(sum)
	if err != nil {
		return "", nil, err
	}
	return string(out), nil, nil
}

func main() {
	if err := hcplugin.Serve(sha256Plugin{}); err != nil {
		fmt.Fprintln(os.Stderr, "dummy/sha256:", err)
		os.Exit(1)
	}
}
