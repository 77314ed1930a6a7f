package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// QueryKey is the canonical 4-tuple the engine memoizes and cycle-detects on.
type QueryKey struct {
	Publisher string
	Plugin    string
	Query     string
	Key       string // canonicalized JSON
}

func (k QueryKey) String() string {
	return fmt.Sprintf("%s/%s/%s(%s)", k.Publisher, k.Plugin, k.Query, k.Key)
}

// NewQueryKey canonicalizes rawKey (a JSON value as text) by recursively
// sorting object keys lexicographically, per spec.md §4.4's definition of
// "canonical-key". Arrays and scalars pass through structurally unchanged.
func NewQueryKey(publisher, plugin, query, rawKey string) (QueryKey, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(rawKey), &v); err != nil {
		return QueryKey{}, fmt.Errorf("engine: invalid query key JSON: %w", err)
	}
	canon, err := json.Marshal(canonicalize(v))
	if err != nil {
		return QueryKey{}, err
	}
	return QueryKey{Publisher: publisher, Plugin: plugin, Query: query, Key: string(canon)}, nil
}

// canonicalize returns v with every nested map rewritten as an
// orderedMap whose keys marshal in sorted order.
func canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		om := orderedMap{}
		for _, k := range keys {
			om = append(om, kv{k, canonicalize(t[k])})
		}
		return om
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return t
	}
}

type kv struct {
	K string
	V interface{}
}

// orderedMap marshals as a JSON object preserving insertion order, which
// canonicalize has already sorted lexicographically by key.
type orderedMap []kv

func (om orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, p := range om {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(p.K)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.V)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}
