// Package ident holds the plugin identity types shared across the cache,
// executor, supervisor, and engine: the (publisher, name, version) triple
// that names an archive on disk, and the (publisher, name) pair that names a
// running plugin within a session.
package ident

import (
	"fmt"
	"strings"
)

// ID uniquely identifies a plugin archive/manifest: publisher namespace,
// slug within it, and a semver string.
type ID struct {
	Publisher string
	Name      string
	Version   string
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%s@%s", id.Publisher, id.Name, id.Version)
}

// Key is the (publisher, name) pair identifying a running plugin within a session.
type Key struct {
	Publisher string
	Name      string
}

func (k Key) String() string { return k.Publisher + "/" + k.Name }

// Of projects an ID down to its running-plugin Key.
func (id ID) Of() Key { return Key{Publisher: id.Publisher, Name: id.Name} }

// Target names a callable query: the plugin Key plus an optional query name.
// An empty Query means "default query" per spec.
type Target struct {
	Publisher string
	Plugin    string
	Query     string
}

func (t Target) Key() Key { return Key{Publisher: t.Publisher, Name: t.Plugin} }

func (t Target) String() string {
	if t.Query == "" {
		return t.Publisher + "/" + t.Plugin
	}
	return t.Publisher + "/" + t.Plugin + "/" + t.Query
}

// ParseTarget parses a policy-file-style query reference of the form
// "publisher/plugin" or "publisher/plugin/query".
func ParseTarget(s string) (Target, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		return Target{Publisher: parts[0], Plugin: parts[1]}, nil
	case 3:
		return Target{Publisher: parts[0], Plugin: parts[1], Query: parts[2]}, nil
	default:
		return Target{}, fmt.Errorf("ident: invalid query target string %q", s)
	}
}
