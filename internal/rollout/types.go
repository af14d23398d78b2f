// Package rollout persists a durable, append-only record of each thread's
// conversation and provides the index and listing machinery the session
// service needs to resume or enumerate threads across process restarts.
//
// Maps to: codex-rs/core/src/rollout/session_index.rs (original_source) and
// spec §4.H / §6's persisted rollout layout. The teacher has no equivalent
// package — HarnessWorkflow's state lives entirely in Temporal's own
// durable execution history, so this package's persistence concern (plain
// files on the worker's filesystem, read by a process that may not share
// Temporal's history) is new.
package rollout

import (
	"time"

	"github.com/codex-agent/agentcore/internal/models"
)

// SessionMeta is the first line written to a thread's rollout file.
//
// Maps to: spec.md §6 "First line SessionMeta"
type SessionMeta struct {
	ID         models.ThreadId `json:"id"`
	Timestamp  time.Time       `json:"timestamp"`
	Cwd        string          `json:"cwd,omitempty"`
	Originator string          `json:"originator,omitempty"`
	CLIVersion string          `json:"cli_version,omitempty"`
}

// RolloutLine is one recorded conversation item, written after the
// SessionMeta header.
//
// Maps to: spec.md §6 "subsequent lines RolloutLine { timestamp, item }"
type RolloutLine struct {
	Timestamp time.Time           `json:"timestamp"`
	Item      models.ResponseItem `json:"item"`
}
