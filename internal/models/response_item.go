// Package models contains shared types for the agentcore project.
//
// response_item.go defines ResponseItem, the atomic unit of persisted
// conversation history (spec §3). It is distinct from ConversationItem
// (conversation.go), which remains the in-memory working representation
// used by the turn loop: ResponseItem is the wire/rollout-facing shape,
// and the rollout and history packages convert between the two at their
// boundary so the turn loop itself does not need to change shape.
//
// Maps to: codex-rs/protocol/src/models.rs ResponseItem
package models

import (
	"encoding/json"
	"fmt"
)

// ResponseItemType discriminates ResponseItem variants.
type ResponseItemType string

const (
	ResponseItemMessage           ResponseItemType = "message"
	ResponseItemFunctionCall      ResponseItemType = "function_call"
	ResponseItemFunctionCallOut   ResponseItemType = "function_call_output"
	ResponseItemCustomToolCall    ResponseItemType = "custom_tool_call"
	ResponseItemCustomToolCallOut ResponseItemType = "custom_tool_call_output"
	ResponseItemLocalShellCall    ResponseItemType = "local_shell_call"
	ResponseItemReasoning         ResponseItemType = "reasoning"
	ResponseItemGhostSnapshot     ResponseItemType = "ghost_snapshot"
)

// ContentPartType discriminates parts of a Message's content sequence.
type ContentPartType string

const (
	ContentInputText  ContentPartType = "input_text"
	ContentInputImage ContentPartType = "input_image"
	ContentOutputText ContentPartType = "output_text"
)

// ContentPart is one element of a Message's content sequence.
type ContentPart struct {
	Type ContentPartType `json:"type"`
	Text string          `json:"text,omitempty"`
	// ImageURL holds the image payload (data: URL or remote URL) for
	// InputImage parts.
	ImageURL string `json:"image_url,omitempty"`
}

// MessageRole identifies the speaker of a Message item.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleDeveloper MessageRole = "developer"
)

// ImagePlaceholderText substitutes InputImage content when the active model
// does not support image input (spec §3 invariant).
const ImagePlaceholderText = "[image omitted: model does not support image input]"

// ResponseItem is the atomic, persisted unit of conversation history.
//
// Exactly one of the typed payload fields is populated, selected by Type.
// This mirrors a tagged union using a discriminator field plus per-variant
// fields, which is the idiom the teacher already uses for JSON-tagged
// conversation types (internal/models/conversation.go) rather than an
// interface-based sum type, so JSON round-tripping stays a single
// struct (un)marshal instead of a custom UnmarshalJSON per variant.
//
// Maps to: codex-rs/protocol/src/models.rs ResponseItem
type ResponseItem struct {
	Type ResponseItemType `json:"type"`

	// Message fields.
	Role    MessageRole   `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	// FunctionCall / CustomToolCall / LocalShellCall fields.
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"` // FunctionCall
	Input     string          `json:"input,omitempty"`     // CustomToolCall
	Action    json.RawMessage `json:"action,omitempty"`    // LocalShellCall

	// FunctionCallOutput / CustomToolCallOutput fields.
	Body    string `json:"body,omitempty"`
	Output  string `json:"output,omitempty"` // CustomToolCallOutput
	Success *bool  `json:"success,omitempty"`

	// Reasoning fields.
	Summary string `json:"summary,omitempty"`

	// GhostSnapshot fields.
	GhostCommit string `json:"ghost_commit,omitempty"`
}

// IsCall reports whether this item represents a call awaiting an output
// (FunctionCall, CustomToolCall, or LocalShellCall).
func (r ResponseItem) IsCall() bool {
	switch r.Type {
	case ResponseItemFunctionCall, ResponseItemCustomToolCall, ResponseItemLocalShellCall:
		return true
	default:
		return false
	}
}

// IsOutput reports whether this item is the output counterpart of a call.
func (r ResponseItem) IsOutput() bool {
	switch r.Type {
	case ResponseItemFunctionCallOut, ResponseItemCustomToolCallOut:
		return true
	default:
		return false
	}
}

// NewAbortedOutput builds a synthetic FunctionCallOutput for a call that
// never completed (cancellation, auto-complete on load).
//
// Maps to: codex-rs/core/src/context_manager/normalize.rs synthetic aborted output.
func NewAbortedOutput(callID string) ResponseItem {
	success := false
	return ResponseItem{
		Type:    ResponseItemFunctionCallOut,
		CallID:  callID,
		Body:    "aborted",
		Success: &success,
	}
}

// AsFunctionCallOutput normalizes a LocalShellCall's paired output into a
// FunctionCallOutput shape so it round-trips identically to a regular tool
// call/output pair in the persisted rollout (spec §3: "a synonym that must
// round-trip through FunctionCallOutput").
func AsFunctionCallOutput(item ResponseItem) (ResponseItem, error) {
	if item.Type != ResponseItemCustomToolCallOut && item.Type != ResponseItemFunctionCallOut {
		return ResponseItem{}, fmt.Errorf("cannot normalize %s as function_call_output", item.Type)
	}
	out := item
	out.Type = ResponseItemFunctionCallOut
	if out.Body == "" {
		out.Body = item.Output
	}
	return out, nil
}

// ReplaceImagesWithPlaceholder returns a copy of items with every InputImage
// content part of a Message replaced by ImagePlaceholderText, for use when
// the active model lacks image input support (spec §3). Only Message items
// are inspected; tool output items (Body/Output strings) are returned
// unchanged.
func ReplaceImagesWithPlaceholder(items []ResponseItem) []ResponseItem {
	out := make([]ResponseItem, len(items))
	for i, item := range items {
		if item.Type != ResponseItemMessage || len(item.Content) == 0 {
			out[i] = item
			continue
		}
		replaced := make([]ContentPart, len(item.Content))
		changed := false
		for j, part := range item.Content {
			if part.Type == ContentInputImage {
				replaced[j] = ContentPart{Type: ContentInputText, Text: ImagePlaceholderText}
				changed = true
			} else {
				replaced[j] = part
			}
		}
		if changed {
			cp := item
			cp.Content = replaced
			out[i] = cp
		} else {
			out[i] = item
		}
	}
	return out
}
