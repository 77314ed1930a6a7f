// Command hipcheck-host drives one analysis session end to end: it loads a
// policy document, starts each named plugin, evaluates the policy
// expression against their query results, and prints a JSON verdict to
// stdout. Exit code 0 means the policy expression passed; 1 means it
// failed; 2 means the session could not start, a plugin query failed, or
// the policy expression could not be evaluated.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mitre/hipcheck-sub002/internal/arch"
	"github.com/mitre/hipcheck-sub002/internal/engine"
	"github.com/mitre/hipcheck-sub002/internal/executor"
	"github.com/mitre/hipcheck-sub002/internal/ident"
	"github.com/mitre/hipcheck-sub002/internal/manifest"
	"github.com/mitre/hipcheck-sub002/internal/policy"
	"github.com/mitre/hipcheck-sub002/internal/session"
	"github.com/mitre/hipcheck-sub002/internal/supervisor"
)

const (
	exitPass    = 0
	exitFail    = 1
	exitStartup = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	policyPath := flag.String("policy", "", "path to the policy document")
	cacheRoot := flag.String("cache-root", ".hipcheck-cache", "artifact cache root directory")
	manifestDir := flag.String("manifest-dir", "", "directory of <publisher>-<name>.yaml manifest files")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *policyPath == "" {
		log.Error("missing -policy")
		return exitStartup
	}

	f, err := os.Open(*policyPath)
	if err != nil {
		log.Error("open policy document", "err", err)
		return exitStartup
	}
	defer f.Close()

	doc, expr, err := policy.Load(f)
	if err != nil {
		log.Error("load policy document", "err", err)
		return exitStartup
	}

	sess, err := session.New(session.Config{
		CacheRoot:  *cacheRoot,
		ArchTriple: arch.Detected().String(),
		Executor: executor.Config{
			MaxSpawnAttempts: 3,
			MaxConnAttempts:  20,
			PortRangeStart:   23000,
			PortRangeEnd:     23100,
			BackoffInterval:  100 * time.Millisecond,
			JitterPercent:    20,
		},
		Logger: log,
	})
	if err != nil {
		log.Error("create session", "err", err)
		return exitStartup
	}
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results := make(map[string]policy.Value)
	for _, ref := range doc.Plugins {
		m, err := loadPluginManifest(*manifestDir, ref.Publisher, ref.Name)
		if err != nil {
			log.Error("load plugin manifest", "plugin", ref.Name, "err", err)
			return exitStartup
		}
		cfgJSON, err := json.Marshal(ref.Config)
		if err != nil {
			log.Error("marshal plugin config", "plugin", ref.Name, "err", err)
			return exitStartup
		}

		id := ident.ID{Publisher: ref.Publisher, Name: ref.Name, Version: ref.Version}
		spec := supervisor.Spec{ID: id, Manifest: m, ConfigJSON: string(cfgJSON)}
		if err := sess.StartPlugin(ctx, spec); err != nil {
			log.Error("start plugin", "plugin", ref.Name, "err", err)
			return exitStartup
		}

		res, err := sess.Query(ctx, ref.Publisher, ref.Name, "", "null")
		if err != nil {
			log.Error("query plugin", "plugin", ref.Name, "err", err)
			return exitStartup
		}
		results[id.Of().String()] = decodeResultValue(res)
	}

	verdict, err := policy.Evaluate(expr, results)
	if err != nil {
		log.Error("evaluate policy", "err", err)
		return exitStartup
	}

	out, _ := json.MarshalIndent(verdict, "", "  ")
	fmt.Println(string(out))

	if verdict.Pass {
		return exitPass
	}
	return exitFail
}

func loadPluginManifest(dir, publisher, name string) (*manifest.Manifest, error) {
	path := fmt.Sprintf("%s/%s-%s.yaml", dir, publisher, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return manifest.Load(f)
}

func decodeResultValue(res engine.Result) policy.Value {
	var v interface{}
	if err := json.Unmarshal([]byte(res.Value), &v); err != nil {
		return res.Value
	}
	return v
}
