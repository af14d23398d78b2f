// Package approval implements the per-session approval cache: "approved for
// session" decisions keyed by a tool-specific fingerprint, so that a
// superset operation touching only already-approved keys can skip
// re-prompting the user.
//
// Maps to: codex-rs/core/src/tools/sandboxing.rs ApprovalStore +
// with_cached_approval (original_source). The teacher's
// internal/cli/approval.go only parses the user's free-text response; this
// package adds the session-scoped cache itself, which the teacher does not
// have.
package approval

import (
	"context"
	"encoding/json"
	"sync"
)

// Decision mirrors the review decision returned by an approval prompt.
type Decision string

const (
	DecisionApprovedForSession Decision = "approved_for_session"
	DecisionApprovedOnce       Decision = "approved_once"
	DecisionDenied             Decision = "denied"
)

// MetricsSink records approval outcomes for telemetry. Implementations wrap
// an otel/metric counter; a nil sink is a no-op.
type MetricsSink interface {
	RecordApproval(toolName string, outcome Decision)
}

// Cache is a per-session key-value store of approval decisions.
//
// Maps to: codex-rs/core/src/tools/sandboxing.rs ApprovalStore.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Decision
	metrics MetricsSink
}

// NewCache creates an empty approval cache. metrics may be nil.
func NewCache(metrics MetricsSink) *Cache {
	return &Cache{entries: make(map[string]Decision), metrics: metrics}
}

func serializeKey(key any) (string, bool) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Get returns the cached decision for key, if any.
func (c *Cache) Get(key any) (Decision, bool) {
	s, ok := serializeKey(key)
	if !ok {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[s]
	return d, ok
}

// Put records a decision for key.
func (c *Cache) Put(key any, decision Decision) {
	s, ok := serializeKey(key)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s] = decision
}

// Fetch is called at most once per WithCachedApproval invocation to obtain a
// fresh decision (typically by prompting the user or consulting policy).
type Fetch func(ctx context.Context) (Decision, error)

// WithCachedApproval implements the cache protocol from spec §4.B:
//  1. If every key is already ApprovedForSession, return it without calling
//     fetch.
//  2. Otherwise call fetch once; if it returns ApprovedForSession, insert
//     every key from the input list.
//  3. Record a telemetry counter with tool name and outcome.
func (c *Cache) WithCachedApproval(ctx context.Context, toolName string, keys []any, fetch Fetch) (Decision, error) {
	if len(keys) == 0 {
		decision, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		c.record(toolName, decision)
		return decision, nil
	}

	allApproved := true
	for _, k := range keys {
		d, ok := c.Get(k)
		if !ok || d != DecisionApprovedForSession {
			allApproved = false
			break
		}
	}
	if allApproved {
		return DecisionApprovedForSession, nil
	}

	decision, err := fetch(ctx)
	if err != nil {
		return "", err
	}

	if decision == DecisionApprovedForSession {
		for _, k := range keys {
			c.Put(k, decision)
		}
	}

	c.record(toolName, decision)
	return decision, nil
}

func (c *Cache) record(toolName string, decision Decision) {
	if c.metrics != nil {
		c.metrics.RecordApproval(toolName, decision)
	}
}
