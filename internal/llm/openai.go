package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codex-agent/agentcore/internal/modelstream"
	"github.com/codex-agent/agentcore/internal/models"
	"github.com/codex-agent/agentcore/internal/tools"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// responsesAPIURL is OpenAI's Responses API endpoint. modelstream's
// rawServerEvent type strings (response.output_text.delta,
// response.output_item.done, response.completed) are this API's SSE event
// names verbatim, so StreamCall talks to it directly over net/http rather
// than through the Chat-Completions-shaped openai.Client used by Call.
const responsesAPIURL = "https://api.openai.com/v1/responses"

// streamIdleTimeout bounds how long StreamCall waits between frames before
// modelstream.Parser terminates the stream with ErrStreamIdle (spec §4.D).
const streamIdleTimeout = 45 * time.Second

// OpenAIClient implements LLMClient using OpenAI's Chat Completions API for
// Call/Compact and the Responses API's SSE stream for StreamCall.
//
// Maps to: codex-rs/core/src/client.rs OpenAI implementation
type OpenAIClient struct {
	client     openai.Client
	apiKey     string
	httpClient *http.Client
}

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient() *OpenAIClient {
	apiKey := os.Getenv("OPENAI_API_KEY")
	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &OpenAIClient{
		client:     client,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

// Call sends a request to OpenAI and returns the complete response.
// The response items match our ConversationItem format.
func (c *OpenAIClient) Call(ctx context.Context, request LLMRequest) (LLMResponse, error) {
	messages := c.buildMessages(request)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.ModelConfig.Model),
		Messages: messages,
	}

	if request.ModelConfig.Temperature > 0 {
		params.Temperature = param.NewOpt(request.ModelConfig.Temperature)
	}
	if request.ModelConfig.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(request.ModelConfig.MaxTokens))
	}

	if len(request.ToolSpecs) > 0 {
		params.Tools = c.buildToolDefinitions(request.ToolSpecs)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return LLMResponse{}, fmt.Errorf("no choices in response")
	}

	items, finishReason := c.parseChoice(completion.Choices[0])

	return LLMResponse{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage: models.TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}, nil
}

// StreamCall opens the Responses API's streaming endpoint and feeds the raw
// SSE body through modelstream.SSEReader/Parser, invoking onEvent with every
// non-terminal ResponseEvent as it arrives (spec §4.D). The final
// response.completed event's response id and usage close out the returned
// LLMResponse, mirroring what the non-streaming Call extracts from a
// ChatCompletion in one shot.
func (c *OpenAIClient) StreamCall(ctx context.Context, request LLMRequest, onEvent func(modelstream.ResponseEvent)) (LLMResponse, error) {
	body, err := json.Marshal(c.buildResponsesStreamRequest(request))
	if err != nil {
		return LLMResponse{}, fmt.Errorf("encode responses stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, responsesAPIURL, bytes.NewReader(body))
	if err != nil {
		return LLMResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return LLMResponse{}, models.NewTransientError(fmt.Sprintf("OpenAI stream request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return LLMResponse{}, classifyByStatusCode(resp.StatusCode, fmt.Errorf("%s", string(msg)))
	}

	parser := modelstream.NewParser(modelstream.NewSSEReader(resp.Body), streamIdleTimeout, nil)

	var (
		items        []models.ConversationItem
		finishReason = models.FinishReasonStop
		responseID   string
		usage        models.TokenUsage
		streamErr    error
	)

	for ev := range parser.Events(ctx) {
		switch ev.Kind {
		case modelstream.EventItem:
			if item, ok := decodeResponsesItem(ev.ItemKind, ev.ItemData); ok {
				if item.Type == models.ItemTypeFunctionCall {
					finishReason = models.FinishReasonToolCalls
				}
				items = append(items, item)
			}
			onEvent(ev)

		case modelstream.EventCompleted:
			responseID = ev.ResponseID
			usage = models.TokenUsage{
				PromptTokens:     ev.Usage.PromptTokens,
				CompletionTokens: ev.Usage.CompletionTokens,
				TotalTokens:      ev.Usage.TotalTokens,
				CachedTokens:     ev.Usage.CachedTokens,
			}

		case modelstream.EventStreamError:
			streamErr = ev.Err

		default:
			onEvent(ev)
		}
	}

	if streamErr != nil {
		return LLMResponse{}, fmt.Errorf("modelstream: %w", streamErr)
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{Type: models.ItemTypeAssistantMessage})
	}

	return LLMResponse{
		Items:        items,
		FinishReason: finishReason,
		TokenUsage:   usage,
		ResponseID:   responseID,
	}, nil
}

// responsesStreamRequest is the Responses API request body StreamCall sends
// with stream:true.
type responsesStreamRequest struct {
	Model              string               `json:"model"`
	Input              []responsesInputItem `json:"input"`
	Instructions       string               `json:"instructions,omitempty"`
	PreviousResponseID string               `json:"previous_response_id,omitempty"`
	Tools              []responsesToolParam `json:"tools,omitempty"`
	Temperature        *float64             `json:"temperature,omitempty"`
	MaxOutputTokens    *int64               `json:"max_output_tokens,omitempty"`
	Stream             bool                 `json:"stream"`
}

type responsesInputItem struct {
	Type      string                 `json:"type"`
	Role      string                 `json:"role,omitempty"`
	Content   []responsesContentPart `json:"content,omitempty"`
	CallID    string                 `json:"call_id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Arguments string                 `json:"arguments,omitempty"`
	Output    string                 `json:"output,omitempty"`
}

type responsesContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesToolParam struct {
	Type        string                    `json:"type"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Parameters  shared.FunctionParameters `json:"parameters"`
}

// responsesOutputItem is the wire shape of one entry the Responses API's
// response.output_item.done event attaches as ResponseEvent.ItemData.
type responsesOutputItem struct {
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Content   []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content,omitempty"`
}

// decodeResponsesItem turns one typed output item into a ConversationItem.
// kinds other than message/function_call (custom_tool_call, local_shell_call,
// reasoning) are forwarded to onEvent but have no ConversationItem shape yet
// and are dropped here.
func decodeResponsesItem(kind modelstream.ItemEventKind, data json.RawMessage) (models.ConversationItem, bool) {
	var raw responsesOutputItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return models.ConversationItem{}, false
	}

	switch kind {
	case modelstream.ItemMessage:
		var text strings.Builder
		for _, part := range raw.Content {
			text.WriteString(part.Text)
		}
		if text.Len() == 0 {
			return models.ConversationItem{}, false
		}
		return models.ConversationItem{Type: models.ItemTypeAssistantMessage, Content: text.String()}, true

	case modelstream.ItemFunctionCall:
		return models.ConversationItem{
			Type:      models.ItemTypeFunctionCall,
			CallID:    raw.CallID,
			Name:      raw.Name,
			Arguments: raw.Arguments,
		}, true

	default:
		return models.ConversationItem{}, false
	}
}

// buildResponsesStreamRequest assembles a streaming Responses API request,
// the Responses-API counterpart of buildMessages/buildToolDefinitions below
// (which target Chat Completions instead).
func (c *OpenAIClient) buildResponsesStreamRequest(request LLMRequest) responsesStreamRequest {
	var instructionParts []string
	if request.BaseInstructions != "" {
		instructionParts = append(instructionParts, request.BaseInstructions)
	}
	if request.UserInstructions != "" {
		instructionParts = append(instructionParts, request.UserInstructions)
	}
	if request.DeveloperInstructions != "" {
		instructionParts = append(instructionParts, request.DeveloperInstructions)
	}

	req := responsesStreamRequest{
		Model:              request.ModelConfig.Model,
		Input:              buildResponsesInput(request.History),
		Instructions:       strings.Join(instructionParts, "\n\n"),
		PreviousResponseID: request.PreviousResponseID,
		Stream:             true,
	}
	if request.ModelConfig.Temperature > 0 {
		t := request.ModelConfig.Temperature
		req.Temperature = &t
	}
	if request.ModelConfig.MaxTokens > 0 {
		m := int64(request.ModelConfig.MaxTokens)
		req.MaxOutputTokens = &m
	}
	if len(request.ToolSpecs) > 0 {
		req.Tools = buildResponsesToolDefinitions(request.ToolSpecs)
	}
	return req
}

// buildResponsesInput converts conversation history into the Responses
// API's input-item array, the counterpart of convertHistoryToMessages below.
func buildResponsesInput(history []models.ConversationItem) []responsesInputItem {
	items := make([]responsesInputItem, 0, len(history))
	for _, h := range history {
		switch h.Type {
		case models.ItemTypeUserMessage:
			items = append(items, responsesInputItem{
				Type: "message", Role: "user",
				Content: []responsesContentPart{{Type: "input_text", Text: h.Content}},
			})

		case models.ItemTypeAssistantMessage:
			if h.Content == "" {
				continue
			}
			items = append(items, responsesInputItem{
				Type: "message", Role: "assistant",
				Content: []responsesContentPart{{Type: "output_text", Text: h.Content}},
			})

		case models.ItemTypeFunctionCall:
			items = append(items, responsesInputItem{
				Type: "function_call", CallID: h.CallID, Name: h.Name, Arguments: h.Arguments,
			})

		case models.ItemTypeFunctionCallOutput:
			output := ""
			if h.Output != nil {
				output = h.Output.Content
			}
			items = append(items, responsesInputItem{Type: "function_call_output", CallID: h.CallID, Output: output})
		}
	}
	return items
}

// buildResponsesToolDefinitions converts ToolSpecs to the Responses API's
// flat function-tool shape (no nested "function" wrapper, unlike Chat
// Completions' ChatCompletionToolParam).
func buildResponsesToolDefinitions(specs []tools.ToolSpec) []responsesToolParam {
	defs := make([]responsesToolParam, 0, len(specs))
	for _, spec := range specs {
		properties := make(map[string]interface{})
		required := make([]string, 0)
		for _, p := range spec.Parameters {
			prop := map[string]interface{}{"type": p.Type, "description": p.Description}
			if p.Items != nil {
				prop["items"] = p.Items
			}
			properties[p.Name] = prop
			if p.Required {
				required = append(required, p.Name)
			}
		}
		defs = append(defs, responsesToolParam{
			Type: "function", Name: spec.Name, Description: spec.Description,
			Parameters: shared.FunctionParameters{"type": "object", "properties": properties, "required": required},
		})
	}
	return defs
}

// Compact asks the model to summarize the given history into a single
// condensed assistant message, used by context compaction (spec §4.F
// maybeCompactBeforeLLM / internal/workflow/compaction.go).
func (c *OpenAIClient) Compact(ctx context.Context, request CompactRequest) (CompactResponse, error) {
	instructions := request.Instructions
	if instructions == "" {
		instructions = defaultCompactInstructions
	}

	resp, err := c.Call(ctx, LLMRequest{
		History:          request.Input,
		ModelConfig:      models.ModelConfig{Model: request.Model},
		BaseInstructions: instructions,
	})
	if err != nil {
		return CompactResponse{}, err
	}

	return CompactResponse{
		Items:      []models.ConversationItem{{Type: models.ItemTypeAssistantMessage, Content: extractAssistantText(resp.Items)}},
		TokenUsage: resp.TokenUsage,
	}, nil
}

// buildMessages assembles the full message list: an optional system message
// (base + user instructions merged), an optional developer message, then the
// converted conversation history.
//
// Maps to: codex-rs/core/tests/suite/client.rs instruction-ordering assertions
func (c *OpenAIClient) buildMessages(request LLMRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0)

	var systemParts []string
	if request.BaseInstructions != "" {
		systemParts = append(systemParts, request.BaseInstructions)
	}
	if request.UserInstructions != "" {
		systemParts = append(systemParts, request.UserInstructions)
	}
	if len(systemParts) > 0 {
		messages = append(messages, openai.SystemMessage(strings.Join(systemParts, "\n\n")))
	}

	if request.DeveloperInstructions != "" {
		messages = append(messages, openai.DeveloperMessage(request.DeveloperInstructions))
	}

	messages = append(messages, c.convertHistoryToMessages(request.History)...)

	return messages
}

// convertHistoryToMessages converts conversation history to OpenAI messages format.
//
// OpenAI requires that tool result messages are preceded by an assistant message
// containing the corresponding tool_calls, so consecutive FunctionCall items are
// grouped into the assistant message that precedes them (or, if none precedes
// them, wrapped in a synthetic assistant message of their own).
func (c *OpenAIClient) convertHistoryToMessages(history []models.ConversationItem) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))

	i := 0
	for i < len(history) {
		item := history[i]

		switch item.Type {
		case models.ItemTypeUserMessage:
			messages = append(messages, openai.UserMessage(item.Content))
			i++

		case models.ItemTypeAssistantMessage:
			j := i + 1
			toolCalls := collectFunctionCalls(history, &j)
			messages = append(messages, assistantMessage(item.Content, toolCalls))
			i = j

		case models.ItemTypeFunctionCall:
			// Orphaned function call(s) with no preceding assistant message.
			j := i
			toolCalls := collectFunctionCalls(history, &j)
			messages = append(messages, assistantMessage("", toolCalls))
			i = j

		case models.ItemTypeFunctionCallOutput:
			content := ""
			if item.Output != nil {
				content = item.Output.Content
			}
			messages = append(messages, openai.ToolMessage(content, item.CallID))
			i++

		default:
			i++
		}
	}

	return messages
}

// collectFunctionCalls gathers consecutive FunctionCall items starting at
// *idx, advancing *idx past them, and returns their OpenAI tool-call params.
func collectFunctionCalls(history []models.ConversationItem, idx *int) []openai.ChatCompletionMessageToolCallParam {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for *idx < len(history) && history[*idx].Type == models.ItemTypeFunctionCall {
		tc := history[*idx]
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: tc.CallID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
		*idx++
	}
	return toolCalls
}

// assistantMessage builds an assistant message, attaching tool_calls when present.
func assistantMessage(content string, toolCalls []openai.ChatCompletionMessageToolCallParam) openai.ChatCompletionMessageParamUnion {
	if len(toolCalls) == 0 {
		return openai.AssistantMessage(content)
	}
	msg := &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
	if content != "" {
		msg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(content),
		}
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: msg}
}

// parseChoice converts a single chat completion choice into conversation
// items plus the finish reason.
func (c *OpenAIClient) parseChoice(choice openai.ChatCompletionChoice) ([]models.ConversationItem, models.FinishReason) {
	var items []models.ConversationItem

	if choice.Message.Content != "" {
		items = append(items, models.ConversationItem{
			Type:    models.ItemTypeAssistantMessage,
			Content: choice.Message.Content,
		})
	}

	finishReason := models.FinishReasonStop
	if len(choice.Message.ToolCalls) > 0 {
		for _, tc := range choice.Message.ToolCalls {
			items = append(items, models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		finishReason = models.FinishReasonToolCalls
	}

	switch choice.FinishReason {
	case "length":
		finishReason = models.FinishReasonLength
	case "content_filter":
		finishReason = models.FinishReasonContentFilter
	}

	if len(items) == 0 {
		items = append(items, models.ConversationItem{Type: models.ItemTypeAssistantMessage})
	}

	return items, finishReason
}

// buildToolDefinitions converts ToolSpecs to OpenAI tool definitions.
func (c *OpenAIClient) buildToolDefinitions(specs []tools.ToolSpec) []openai.ChatCompletionToolParam {
	toolDefs := make([]openai.ChatCompletionToolParam, 0, len(specs))

	for _, spec := range specs {
		properties := make(map[string]interface{})
		required := make([]string, 0)

		for _, p := range spec.Parameters {
			prop := map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Items != nil {
				prop["items"] = p.Items
			}
			properties[p.Name] = prop

			if p.Required {
				required = append(required, p.Name)
			}
		}

		funcDef := shared.FunctionDefinitionParam{
			Name:        spec.Name,
			Description: param.NewOpt(spec.Description),
			Parameters: shared.FunctionParameters{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		}

		toolDefs = append(toolDefs, openai.ChatCompletionToolParam{
			Function: funcDef,
		})
	}

	return toolDefs
}

// classifyError categorizes an OpenAI API error using the HTTP status code
// when available, falling back to message-based heuristics.
func classifyError(err error) error {
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "context_length") || strings.Contains(errMsg, "maximum context length") {
		return models.NewContextOverflowError(err.Error())
	}

	if apiErr, ok := err.(*openai.Error); ok {
		return classifyByStatusCode(apiErr.StatusCode, err)
	}

	if strings.Contains(errMsg, "rate_limit") || strings.Contains(errMsg, "rate limit") {
		return models.NewAPILimitError(err.Error())
	}
	return models.NewTransientError(fmt.Sprintf("OpenAI API error: %v", err))
}
