// normalize.go implements the rollout/prompt normalization invariants from
// spec §3 and §4.F: every call has exactly one matching output, orphan
// outputs are dropped with a logged error, calls missing their output are
// auto-completed with a synthetic "aborted" output inserted immediately
// after the call, and image content is substituted for models without
// image support.
//
// Maps to: codex-rs/core/src/context_manager/normalize.rs
package history

import (
	"log/slog"

	"github.com/codex-agent/agentcore/internal/models"
)

// NormalizeResult is the outcome of normalizing a list of response items.
type NormalizeResult struct {
	Items          []models.ResponseItem
	DroppedOrphans int
	AutoCompleted  int
}

// NormalizeResponseItems enforces the call/output pairing invariant over a
// linear sequence of response items, in order:
//  1. Any call (FunctionCall/CustomToolCall/LocalShellCall) lacking a
//     matching output later in the sequence gets a synthetic "aborted"
//     output inserted immediately after it.
//  2. Any output lacking a preceding call with the same call_id is dropped
//     and logged.
//
// Maps to: codex-rs/core/src/context_manager/normalize.rs normalize_items
func NormalizeResponseItems(items []models.ResponseItem) NormalizeResult {
	hasOutput := make(map[string]bool, len(items))
	hasCall := make(map[string]bool, len(items))
	for _, item := range items {
		if item.IsOutput() {
			hasOutput[item.CallID] = true
		}
		if item.IsCall() {
			hasCall[item.CallID] = true
		}
	}

	out := make([]models.ResponseItem, 0, len(items))
	result := NormalizeResult{}

	for _, item := range items {
		switch {
		case item.IsOutput():
			if !hasCall[item.CallID] {
				slog.Error("dropping orphan response item output with no matching call", "call_id", item.CallID, "type", item.Type)
				result.DroppedOrphans++
				continue
			}
			out = append(out, item)
		case item.IsCall():
			out = append(out, item)
			if !hasOutput[item.CallID] {
				out = append(out, models.NewAbortedOutput(item.CallID))
				result.AutoCompleted++
			}
		default:
			out = append(out, item)
		}
	}

	result.Items = out
	return result
}

// ApplyImagePlaceholder replaces image content with a fixed placeholder text
// when modelSupportsImages is false, per spec §3.
func ApplyImagePlaceholder(items []models.ResponseItem, modelSupportsImages bool) []models.ResponseItem {
	if modelSupportsImages {
		return items
	}
	return models.ReplaceImagesWithPlaceholder(items)
}

// ConversationNormalizeResult is the outcome of normalizing a turn loop's
// working history (the ConversationItem counterpart to NormalizeResult).
type ConversationNormalizeResult struct {
	Items          []models.ConversationItem
	DroppedOrphans int
	AutoCompleted  int
}

// NormalizeConversationItems applies the same call/output pairing invariant
// as NormalizeResponseItems, over the turn loop's working ConversationItem
// history rather than the wire/rollout ResponseItem shape. Called at the end
// of a turn so a function_call left open by an interrupted turn never
// survives into the next turn's prompt. The synthetic output body is always
// the literal "aborted", matching models.NewAbortedOutput, regardless of
// whether the call was left open by interruption or by normal auto-complete
// on load — the interrupted flag only affects whether a turn_complete marker
// is also appended by the caller.
//
// Maps to: codex-rs/core/src/context_manager/normalize.rs normalize_items
func NormalizeConversationItems(items []models.ConversationItem, interrupted bool) ConversationNormalizeResult {
	hasOutput := make(map[string]bool, len(items))
	hasCall := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Type == models.ItemTypeFunctionCallOutput {
			hasOutput[item.CallID] = true
		}
		if item.Type == models.ItemTypeFunctionCall {
			hasCall[item.CallID] = true
		}
	}

	const reason = "aborted"
	success := false

	out := make([]models.ConversationItem, 0, len(items))
	result := ConversationNormalizeResult{}

	for _, item := range items {
		switch item.Type {
		case models.ItemTypeFunctionCallOutput:
			if !hasCall[item.CallID] {
				slog.Error("dropping orphan function_call_output with no matching call", "call_id", item.CallID)
				result.DroppedOrphans++
				continue
			}
			out = append(out, item)
		case models.ItemTypeFunctionCall:
			out = append(out, item)
			if !hasOutput[item.CallID] {
				out = append(out, models.ConversationItem{
					Type:   models.ItemTypeFunctionCallOutput,
					TurnID: item.TurnID,
					CallID: item.CallID,
					Output: &models.FunctionCallOutputPayload{Content: reason, Success: &success},
				})
				result.AutoCompleted++
			}
		default:
			out = append(out, item)
		}
	}

	result.Items = out
	return result
}
