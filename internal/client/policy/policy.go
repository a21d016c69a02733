// Package policy normalizes record payloads before they are sent to the
// remote store.
//
// Every table gets the generic rules: sync metadata keys are dropped and
// empty strings in timestamp or date fields become null, since the remote
// schema rejects "" where it expects a timestamp. A field counts as a
// timestamp when a policy lists it or when its name ends in _at, _date or
// _time. Per-table rules (defaults for required fields, device-only fields,
// Unicode normalization) come from a Policy registered for that table, and
// arbitrary fix-ups can be added as hooks.
package policy

import (
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

var syncMetadataKeys = []string{
	"needs_sync", "synced_at", "deleted", "revision",
	"attempts", "next_attempt_at", "last_error",
}

var timestampSuffixes = []string{"_at", "_date", "_time"}

// Policy holds the per-table normalization rules.
type Policy struct {
	TimestampFields []string       `yaml:"timestamp_fields"`
	Defaults        map[string]any `yaml:"defaults"`
	LocalOnly       []string       `yaml:"local_only"`
	NFC             bool           `yaml:"nfc"`
}

// Hook mutates a payload in place after the policy rules ran.
type Hook func(payload map[string]any)

// Registry maps table names to policies and hooks. It is safe for concurrent
// use.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	hooks    map[string][]Hook
}

func NewRegistry() *Registry {
	return &Registry{
		policies: make(map[string]Policy),
		hooks:    make(map[string][]Hook),
	}
}

// Register sets the policy of table, replacing any previous one.
func (r *Registry) Register(table string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[table] = p
}

func (r *Registry) RegisterHook(table string, h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[table] = append(r.hooks[table], h)
}

// Policy returns the policy of table and whether one was registered.
func (r *Registry) Policy(table string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[table]
	return p, ok
}

// Normalize returns a normalized copy of data. data itself is not modified.
func (r *Registry) Normalize(table string, data map[string]any) map[string]any {
	r.mu.RLock()
	p := r.policies[table]
	hooks := append([]Hook(nil), r.hooks[table]...)
	r.mu.RUnlock()

	out := make(map[string]any, len(data)+len(p.Defaults))
	for k, v := range data {
		out[k] = v
	}

	for _, k := range syncMetadataKeys {
		delete(out, k)
	}
	for _, k := range p.LocalOnly {
		delete(out, k)
	}

	for k, v := range out {
		if p.isTimestamp(k) && isEmpty(v) {
			out[k] = nil
		}
	}

	for k, def := range p.Defaults {
		if v, ok := out[k]; !ok || isEmpty(v) {
			out[k] = def
		}
	}

	if p.NFC {
		for k, v := range out {
			out[k] = nfc(v)
		}
	}

	for _, h := range hooks {
		h(out)
	}
	return out
}

func (p Policy) isTimestamp(field string) bool {
	for _, f := range p.TimestampFields {
		if f == field {
			return true
		}
	}
	for _, s := range timestampSuffixes {
		if strings.HasSuffix(field, s) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}

func nfc(v any) any {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val)
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = nfc(e)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, e := range val {
			s[i] = nfc(e)
		}
		return s
	default:
		return v
	}
}
