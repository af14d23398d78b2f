package tools

// Patch-application lifecycle events (spec §4.E), wrapping patch.Apply's
// return value so a turn can surface "a patch is being applied"/"it
// finished" to subscribers, and accumulate the changed files into a single
// end-of-turn diff.
//
// Maps to: codex-rs/core/src/tools/events.rs (original_source)
// PatchApplyBegin/PatchApplyEnd/TurnDiff.

// PatchApplyBeginEvent fires before apply_patch touches the filesystem.
type PatchApplyBeginEvent struct {
	CallID string   `json:"call_id"`
	Paths  []string `json:"paths"`
}

// PatchApplyEndEvent fires after apply_patch finishes, successfully or not.
type PatchApplyEndEvent struct {
	CallID  string   `json:"call_id"`
	Success bool     `json:"success"`
	Stdout  string   `json:"stdout,omitempty"`
	Stderr  string   `json:"stderr,omitempty"`
	Paths   []string `json:"paths"`
}

// TurnDiffEvent is the unified diff of every file changed so far in the
// current turn, across possibly multiple apply_patch calls.
type TurnDiffEvent struct {
	TurnID      string   `json:"turn_id"`
	Paths       []string `json:"paths"`
	UnifiedDiff string   `json:"unified_diff"`
}
