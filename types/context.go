package types

import (
	"maps"
	"reflect"
	"time"
)

// RequestPolicy selects how a transport combines its cache with the network.
type RequestPolicy string

const (
	CacheFirst      RequestPolicy = "cache-first"
	CacheOnly       RequestPolicy = "cache-only"
	NetworkOnly     RequestPolicy = "network-only"
	CacheAndNetwork RequestPolicy = "cache-and-network"
)

// DefaultRequestPolicy is used when a context leaves the policy unset.
const DefaultRequestPolicy = CacheFirst

// Valid reports whether p is one of the known policies.
func (p RequestPolicy) Valid() bool {
	switch p {
	case CacheFirst, CacheOnly, NetworkOnly, CacheAndNetwork:
		return true
	default:
		return false
	}
}

func (p RequestPolicy) String() string {
	if p == "" {
		return "unset"
	}
	return string(p)
}

// OrDefault returns p, or DefaultRequestPolicy when p is not a known policy.
func (p RequestPolicy) OrDefault() RequestPolicy {
	if p.Valid() {
		return p
	}
	return DefaultRequestPolicy
}

// ExecutionContext bundles the per-operation options a transport honours.
// Values are treated as immutable: trackers build a new one on every change.
type ExecutionContext struct {
	RequestPolicy RequestPolicy
	// PollInterval > 0 makes the source refetch on that interval.
	PollInterval time.Duration
	// URL overrides the client endpoint when non-empty.
	URL     string
	Headers map[string]string
	// Meta holds arbitrary passthrough fields, opaque to the pipeline.
	Meta map[string]any
}

// Equal compares two contexts by value.
func (c ExecutionContext) Equal(other ExecutionContext) bool {
	if c.RequestPolicy != other.RequestPolicy ||
		c.PollInterval != other.PollInterval ||
		c.URL != other.URL {
		return false
	}
	if !maps.Equal(c.Headers, other.Headers) {
		return false
	}
	if len(c.Meta) != len(other.Meta) {
		return false
	}
	return len(c.Meta) == 0 || reflect.DeepEqual(c.Meta, other.Meta)
}

// Clone returns a copy that shares no maps with c.
func (c ExecutionContext) Clone() ExecutionContext {
	out := c
	out.Headers = maps.Clone(c.Headers)
	out.Meta = maps.Clone(c.Meta)
	return out
}

// Passthrough returns c without the poll interval and request policy facets.
func (c ExecutionContext) Passthrough() ExecutionContext {
	out := c.Clone()
	out.RequestPolicy = ""
	out.PollInterval = 0
	return out
}

// MergePassthrough shallowly merges the passthrough fields of patch over c.
// A non-empty URL replaces; Headers and Meta are merged key by key.
func (c ExecutionContext) MergePassthrough(patch ExecutionContext) ExecutionContext {
	out := c.Clone()
	if patch.URL != "" {
		out.URL = patch.URL
	}
	if len(patch.Headers) > 0 {
		if out.Headers == nil {
			out.Headers = make(map[string]string, len(patch.Headers))
		}
		maps.Copy(out.Headers, patch.Headers)
	}
	if len(patch.Meta) > 0 {
		if out.Meta == nil {
			out.Meta = make(map[string]any, len(patch.Meta))
		}
		maps.Copy(out.Meta, patch.Meta)
	}
	return out
}
