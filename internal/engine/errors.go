package engine

import (
	"fmt"
	"strings"
)

// Kind classifies a query-engine failure.
type Kind int

const (
	UnknownPlugin Kind = iota
	PluginChannelClosed
	QueryCycle
	PluginReportedError
)

func (k Kind) String() string {
	switch k {
	case UnknownPlugin:
		return "UnknownPlugin"
	case PluginChannelClosed:
		return "PluginChannelClosed"
	case QueryCycle:
		return "QueryCycle"
	case PluginReportedError:
		return "PluginReportedError"
	default:
		return "Unknown"
	}
}

// Error is a per-analysis query-resolution failure. It never leaves the
// engine's cache populated for the key that produced it.
type Error struct {
	Kind    Kind
	Key     string
	Path    []string // populated for QueryCycle
	Message string   // the plugin-supplied message, for PluginReportedError
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case QueryCycle:
		return fmt.Sprintf("engine: QueryCycle(%s)", strings.Join(e.Path, " -> "))
	case PluginReportedError:
		return fmt.Sprintf("engine: plugin reported error for %s: %s", e.Key, e.Message)
	case UnknownPlugin:
		return fmt.Sprintf("engine: unknown plugin for key %s", e.Key)
	case PluginChannelClosed:
		return fmt.Sprintf("engine: plugin channel closed for %s", e.Key)
	default:
		if e.Err != nil {
			return fmt.Sprintf("engine: %s: %s: %v", e.Kind, e.Key, e.Err)
		}
		return fmt.Sprintf("engine: %s: %s", e.Kind, e.Key)
	}
}

func (e *Error) Unwrap() error { return e.Err }
