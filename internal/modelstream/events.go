package modelstream

import "encoding/json"

// ResponseEventKind discriminates ResponseEvent variants (spec §4.D).
type ResponseEventKind int

const (
	EventTextDelta ResponseEventKind = iota
	EventTagStart
	EventTagDelta
	EventTagEnd
	EventItem
	EventCompleted
	EventStreamError
)

// ItemEventKind names the typed item events a model stream may carry.
type ItemEventKind string

const (
	ItemMessage        ItemEventKind = "message"
	ItemFunctionCall   ItemEventKind = "function_call"
	ItemCustomToolCall ItemEventKind = "custom_tool_call"
	ItemLocalShellCall ItemEventKind = "local_shell_call"
	ItemReasoning      ItemEventKind = "reasoning"
)

// ResponseEvent is one element of the lazy, finite sequence the Model
// Stream Parser produces (spec §4.D). Restartable per-turn, never mid-turn.
type ResponseEvent struct {
	Kind ResponseEventKind

	// EventTextDelta / EventTagDelta
	Text string
	// EventTagStart / EventTagDelta / EventTagEnd
	Tag string

	// EventItem
	ItemKind ItemEventKind
	ItemData json.RawMessage

	// EventCompleted: the response id to chain the next turn's
	// PreviousResponseID with, and the turn's token usage, when the server
	// attaches them to its terminal event.
	ResponseID string
	Usage      ResponseUsage

	// EventStreamError
	Err error
}

// ResponseUsage is the token accounting a model stream's terminal event
// carries, shaped after OpenAI's Responses API "response.completed" usage
// object.
type ResponseUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CachedTokens     int
}

// rawServerEvent is the wire shape of one SSE data frame before it is split
// into text deltas / tag segments / typed items.
type rawServerEvent struct {
	Type     string              `json:"type"`
	Delta    string              `json:"delta,omitempty"`
	ItemKind ItemEventKind       `json:"item_kind,omitempty"`
	Item     json.RawMessage     `json:"item,omitempty"`
	Response *rawResponseSummary `json:"response,omitempty"`
}

// rawResponseSummary is the trailing metadata OpenAI's Responses API attaches
// to its terminal response.completed event.
type rawResponseSummary struct {
	ID    string `json:"id"`
	Usage struct {
		InputTokens        int `json:"input_tokens"`
		OutputTokens       int `json:"output_tokens"`
		TotalTokens        int `json:"total_tokens"`
		InputTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"input_tokens_details"`
	} `json:"usage"`
}

const (
	rawEventTextDelta = "response.output_text.delta"
	rawEventItem      = "response.output_item.done"
	rawEventCompleted = "response.completed"
)
