package policy

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// PluginRef names a plugin to run within a session and its configuration.
type PluginRef struct {
	Publisher string         `yaml:"publisher"`
	Name      string         `yaml:"name"`
	Version   string         `yaml:"version"`
	Config    map[string]any `yaml:"config"`
}

// Document is the host's deliberately simplified stand-in for the KDL
// policy file described in original_source: which plugins to run, their
// configuration, and the expression to evaluate over their results. Real
// KDL syntax parsing is out of scope per spec.md §1; this is the minimal
// concrete form needed to drive a session end-to-end.
type Document struct {
	Plugins []PluginRef `yaml:"plugins"`
	Expr    string      `yaml:"policy_expr"`
}

// Load parses a policy document and its embedded policy expression,
// failing fast if the expression doesn't parse.
func Load(r io.Reader) (*Document, Expr, error) {
	var d Document
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&d); err != nil {
		return nil, nil, fmt.Errorf("policy: decode document: %w", err)
	}
	if len(d.Plugins) == 0 {
		return nil, nil, fmt.Errorf("policy: document names no plugins")
	}
	expr, err := Parse(d.Expr)
	if err != nil {
		return nil, nil, fmt.Errorf("policy: parse policy_expr: %w", err)
	}
	return &d, expr, nil
}
