// Package models contains shared types for the agentcore project.
//
// Corresponds to: codex-rs/core/src/protocol/models.rs
package models

// ConversationItemType represents the type of a conversation item held in
// the turn loop's working history (history.ContextManager). This is the
// richer, turn-loop-facing counterpart to ResponseItem (response_item.go),
// which is the wire/rollout-facing shape; internal/history converts between
// the two at the persistence boundary.
type ConversationItemType string

const (
	ItemTypeUserMessage        ConversationItemType = "user_message"
	ItemTypeAssistantMessage   ConversationItemType = "assistant_message"
	ItemTypeFunctionCall       ConversationItemType = "function_call"
	ItemTypeFunctionCallOutput ConversationItemType = "function_call_output"
	ItemTypeTurnStarted        ConversationItemType = "turn_started"
	ItemTypeTurnComplete       ConversationItemType = "turn_complete"
	ItemTypeModelSwitch        ConversationItemType = "model_switch"
)

// FunctionCallOutputPayload carries a tool's result content and success
// flag, attached to a ItemTypeFunctionCallOutput item.
//
// Maps to: codex-rs/protocol/src/models.rs FunctionCallOutputPayload
type FunctionCallOutputPayload struct {
	Content string `json:"content"`
	Success *bool  `json:"success,omitempty"`
}

// ConversationItem represents a single item in the turn loop's working
// conversation history.
//
// Exactly one of the typed payload fields is populated, selected by Type —
// the same discriminator-plus-fields idiom ResponseItem uses at the
// persistence boundary.
//
// Maps to: codex-rs/core/src/protocol/models.rs ConversationItem
type ConversationItem struct {
	Type ConversationItemType `json:"type"`

	// TurnID associates this item with the turn that produced it.
	TurnID string `json:"turn_id,omitempty"`

	// Message/marker content (UserMessage, AssistantMessage, ModelSwitch,
	// TurnStarted/TurnComplete end-of-turn annotations).
	Content string `json:"content,omitempty"`

	// FunctionCall fields.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"` // raw JSON string of tool arguments

	// FunctionCallOutput fields.
	Output *FunctionCallOutputPayload `json:"output,omitempty"`
}

// ToolCall represents a request to call a tool, used at the LLM client
// boundary (internal/llm) before being flattened into a ConversationItem.
//
// Maps to: codex-rs/core/src/protocol/models.rs ToolCall
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult represents the result of a tool execution
//
// Maps to: codex-rs/core/src/tools/types.rs ToolResult
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ToolErrorDetails carries structured error context from a failed tool
// activity, set via temporal.ApplicationError's Details so the workflow
// never has to parse the error message string.
//
// Maps to: codex-rs/core/src/tools/router.rs ToolOutput::Function error case
type ToolErrorDetails struct {
	Reason string `json:"reason"`
}

// FinishReason indicates why the LLM stopped generating
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"           // Natural completion
	FinishReasonToolCalls     FinishReason = "tool_calls"     // LLM wants to call tools
	FinishReasonLength        FinishReason = "length"         // Hit token limit
	FinishReasonContentFilter FinishReason = "content_filter" // Content filtered
)

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// CachedTokens is the subset of PromptTokens served from the provider's
	// prompt cache, billed at a discounted rate.
	CachedTokens int `json:"cached_tokens,omitempty"`

	// CacheCreationTokens is the number of tokens written to the provider's
	// prompt cache on this call (Anthropic-style cache writes).
	CacheCreationTokens int `json:"cache_creation_tokens,omitempty"`
}

// PlanStepStatus is the status of a single step in an update_plan call.
type PlanStepStatus string

const (
	PlanStepPending    PlanStepStatus = "pending"
	PlanStepInProgress PlanStepStatus = "in_progress"
	PlanStepCompleted  PlanStepStatus = "completed"
)

// PlanStep is a single entry in a Plan.
type PlanStep struct {
	Step   string         `json:"step"`
	Status PlanStepStatus `json:"status"`
}

// Plan is the current task plan maintained by the model via the update_plan
// tool. Replaced wholesale on every update_plan call.
//
// Maps to: codex-rs/core/src/tools/handlers/update_plan.rs UpdatePlanArgs
type Plan struct {
	Explanation string     `json:"explanation,omitempty"`
	Steps       []PlanStep `json:"steps"`
}
