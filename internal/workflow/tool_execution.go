// Package workflow contains Temporal workflow definitions.
//
// tool_execution.go handles parallel tool activity dispatch and error conversion.
//
// Maps to: codex-rs/core/src/tools/parallel.rs drain_in_flight
package workflow

import (
	"encoding/json"
	"errors"
	"time"

	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/codex-agent/agentcore/internal/activities"
	"github.com/codex-agent/agentcore/internal/mcp"
	"github.com/codex-agent/agentcore/internal/models"
	"github.com/codex-agent/agentcore/internal/tools"
)

// ToolExecutor handles parallel tool activity dispatch.
type ToolExecutor struct {
	toolSpecs        []tools.ToolSpec
	cwd              string
	sessionTaskQueue string
	conversationID   string
	mcpToolLookup    map[string]tools.McpToolRef
	mcpServers       map[string]mcp.McpServerConfig
}

// NewToolExecutor creates a ToolExecutor with the given specs, working directory, and task queue.
func NewToolExecutor(specs []tools.ToolSpec, cwd, taskQueue string) *ToolExecutor {
	return &ToolExecutor{toolSpecs: specs, cwd: cwd, sessionTaskQueue: taskQueue}
}

// WithMcp attaches MCP routing info (qualified tool name -> server/tool, and
// the session's server configs for auto-reconnect) so ExecuteParallel can
// dispatch mcp__server__tool calls to the MCP handler.
func (e *ToolExecutor) WithMcp(conversationID string, lookup map[string]tools.McpToolRef, servers map[string]mcp.McpServerConfig) *ToolExecutor {
	e.conversationID = conversationID
	e.mcpToolLookup = lookup
	e.mcpServers = servers
	return e
}

// ExecuteParallel runs all tool activities in parallel and waits for all.
// Delegates to executeToolsInParallel.
func (e *ToolExecutor) ExecuteParallel(ctx workflow.Context, calls []models.ConversationItem) ([]activities.ToolActivityOutput, error) {
	return executeToolsInParallel(ctx, calls, e.toolSpecs, e.cwd, e.sessionTaskQueue, e.conversationID, e.mcpToolLookup, e.mcpServers)
}

// executeToolsInParallel dispatches a turn's tool calls. Calls run
// concurrently via workflow.Future only when every call in the batch names a
// tool whose spec declares SupportsParallelToolCalls; otherwise each call is
// started and awaited in emission order before the next one is started. In
// both cases results land in functionCalls' original order, since a turn's
// tool outputs must read back in the order the model emitted the calls.
//
// Each tool gets a per-activity StartToCloseTimeout derived from:
//  1. timeout_ms argument provided by the LLM (highest priority)
//  2. DefaultTimeoutMs from the tool's ToolSpec
//  3. DefaultToolTimeoutMs constant as a fallback
//
// If sessionTaskQueue is non-empty, tool activities are dispatched to that queue
// (enabling per-session worker routing in multi-host mode). Calls whose name
// appears in mcpToolLookup are routed to the "mcp" handler with their
// server/tool reference attached (spec §4.E Mcp payload).
//
// Maps to: codex-rs/core/src/tools/parallel.rs drain_in_flight
func executeToolsInParallel(ctx workflow.Context, functionCalls []models.ConversationItem, toolSpecs []tools.ToolSpec, cwd, sessionTaskQueue, conversationID string, mcpToolLookup map[string]tools.McpToolRef, mcpServers map[string]mcp.McpServerConfig) ([]activities.ToolActivityOutput, error) {
	logger := workflow.GetLogger(ctx)

	// Build a lookup map from tool name to spec for fast access.
	specByName := make(map[string]tools.ToolSpec, len(toolSpecs))
	for _, spec := range toolSpecs {
		specByName[spec.Name] = spec
	}

	startCall := func(fc models.ConversationItem) workflow.Future {
		logger.Info("Starting tool execution", "tool", fc.Name, "call_id", fc.CallID)

		// Parse arguments from raw JSON string
		var args map[string]interface{}
		if fc.Arguments != "" {
			if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
				args = map[string]interface{}{"_raw": fc.Arguments}
			}
		}

		// Resolve per-tool timeout for StartToCloseTimeout.
		timeout := resolveToolTimeout(specByName, fc.Name, args)

		actOpts := workflow.ActivityOptions{
			StartToCloseTimeout: timeout,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    time.Minute,
				MaximumAttempts:    5,
			},
		}
		if sessionTaskQueue != "" {
			actOpts.TaskQueue = sessionTaskQueue
		}
		toolCtx := workflow.WithActivityOptions(ctx, actOpts)

		input := activities.ToolActivityInput{
			CallID:    fc.CallID,
			ToolName:  fc.Name,
			Arguments: args,
			Cwd:       cwd,
		}
		if mcpToolLookup != nil {
			if ref, ok := mcpToolLookup[fc.Name]; ok {
				input.SessionID = conversationID
				input.McpToolRef = &ref
				input.McpServers = mcpServers
			}
		}
		return workflow.ExecuteActivity(toolCtx, "ExecuteTool", input)
	}

	await := func(i int, future workflow.Future, results []activities.ToolActivityOutput) {
		var result activities.ToolActivityOutput
		if err := future.Get(ctx, &result); err != nil {
			results[i] = toolActivityErrorToOutput(logger, functionCalls[i].CallID, functionCalls[i].Name, err)
		} else {
			results[i] = result
			logger.Info("Tool execution completed", "tool", functionCalls[i].Name)
		}
	}

	results := make([]activities.ToolActivityOutput, len(functionCalls))

	if allSupportParallel(functionCalls, specByName) {
		futures := make([]workflow.Future, len(functionCalls))
		for i, fc := range functionCalls {
			futures[i] = startCall(fc)
		}
		for i, future := range futures {
			await(i, future, results)
		}
		return results, nil
	}

	// Mixed or all-sequential batch: run one call at a time, in emission
	// order, so a mutating call never races a later call that depends on its
	// effect.
	for i, fc := range functionCalls {
		future := startCall(fc)
		await(i, future, results)
	}

	return results, nil
}

// allSupportParallel reports whether every call in the batch names a tool
// whose spec opts into concurrent dispatch. An unknown tool name (not found
// in specByName) is treated conservatively as not supporting it.
func allSupportParallel(functionCalls []models.ConversationItem, specByName map[string]tools.ToolSpec) bool {
	if len(functionCalls) < 2 {
		return false
	}
	for _, fc := range functionCalls {
		spec, ok := specByName[fc.Name]
		if !ok || !spec.SupportsParallelToolCalls {
			return false
		}
	}
	return true
}

// buildToolSpecs builds tool specifications based on configuration and profile.
// After building the base set from ToolsConfig, it filters out any tools
// listed in the profile's ToolOverrides.Disable list.
func buildToolSpecs(config models.ToolsConfig, profile models.ResolvedProfile) []tools.ToolSpec {
	specs := []tools.ToolSpec{}

	if config.EnableShell {
		specs = append(specs, tools.NewShellToolSpec())
	}

	if config.EnableReadFile {
		specs = append(specs, tools.NewReadFileToolSpec())
	}

	if config.EnableWriteFile {
		specs = append(specs, tools.NewWriteFileToolSpec())
	}

	if config.EnableListDir {
		specs = append(specs, tools.NewListDirToolSpec())
	}

	if config.EnableGrepFiles {
		specs = append(specs, tools.NewGrepFilesToolSpec())
	}

	if config.EnableApplyPatch {
		specs = append(specs, tools.NewApplyPatchToolSpec())
	}

	if config.EnableUnifiedExec {
		specs = append(specs, tools.NewExecCommandToolSpec(), tools.NewWriteStdinToolSpec())
	}

	// request_user_input is always available (intercepted by workflow, not dispatched)
	specs = append(specs, tools.NewRequestUserInputToolSpec())

	// update_plan is intercepted by the workflow (not dispatched as an activity)
	if config.EnableUpdatePlan {
		specs = append(specs, tools.NewUpdatePlanToolSpec())
	}

	// Collaboration tools for subagent orchestration (intercepted by workflow)
	if config.EnableCollab {
		specs = append(specs,
			tools.NewSpawnAgentToolSpec(),
			tools.NewSendInputToolSpec(),
			tools.NewWaitToolSpec(),
			tools.NewCloseAgentToolSpec(),
			tools.NewResumeAgentToolSpec(),
		)
	}

	// Filter out tools disabled by the profile
	if profile.Tools != nil && len(profile.Tools.Disable) > 0 {
		disabled := make(map[string]bool, len(profile.Tools.Disable))
		for _, name := range profile.Tools.Disable {
			disabled[name] = true
		}
		filtered := specs[:0]
		for _, spec := range specs {
			if !disabled[spec.Name] {
				filtered = append(filtered, spec)
			}
		}
		specs = filtered
	}

	return specs
}

// toolActivityErrorToOutput converts a tool activity error into a ToolActivityOutput
// so the LLM can see what went wrong and decide how to proceed.
//
// Uses ApplicationError.Type() for classification and .Details() for structured context.
// Never parses error messages.
func toolActivityErrorToOutput(logger log.Logger, callID, toolName string, err error) activities.ToolActivityOutput {
	success := false
	reason := "unknown error"

	var appErr *temporal.ApplicationError
	var timeoutErr *temporal.TimeoutError
	var canceledErr *temporal.CanceledError

	switch {
	case errors.As(err, &appErr):
		logger.Warn("Tool activity failed",
			"tool", toolName,
			"error_type", appErr.Type(),
			"non_retryable", appErr.NonRetryable())

		// Extract structured context from Details — never parse the message.
		var details models.ToolErrorDetails
		if appErr.HasDetails() {
			_ = appErr.Details(&details)
			reason = details.Reason
		}

	case errors.As(err, &timeoutErr):
		logger.Warn("Tool activity timed out",
			"tool", toolName,
			"timeout_type", timeoutErr.TimeoutType())
		reason = "tool execution timed out"

	case errors.As(err, &canceledErr):
		logger.Warn("Tool activity canceled", "tool", toolName)
		reason = "tool execution was canceled"

	default:
		logger.Error("Tool activity failed with unexpected error",
			"tool", toolName, "error", err)
		reason = "activity execution failed"
	}

	return activities.ToolActivityOutput{
		CallID:  callID,
		Content: reason,
		Success: &success,
	}
}

// resolveToolTimeout determines the StartToCloseTimeout for a tool activity.
//
// Priority:
//  1. timeout_ms argument from LLM (per-invocation override)
//  2. DefaultTimeoutMs from the tool's ToolSpec
//  3. DefaultToolTimeoutMs constant as a global fallback
//
// Maps to: codex-rs/core/src/exec.rs timeout resolution for tool commands
func resolveToolTimeout(specByName map[string]tools.ToolSpec, toolName string, args map[string]interface{}) time.Duration {
	// 1. Check for LLM-provided timeout_ms in arguments.
	if args != nil {
		if v, ok := args["timeout_ms"]; ok {
			if ms, ok := toInt64(v); ok && ms > 0 {
				return time.Duration(ms) * time.Millisecond
			}
		}
	}

	// 2. Use the tool spec's default timeout.
	if spec, ok := specByName[toolName]; ok && spec.DefaultTimeoutMs > 0 {
		return time.Duration(spec.DefaultTimeoutMs) * time.Millisecond
	}

	// 3. Global fallback.
	return time.Duration(tools.DefaultToolTimeoutMs) * time.Millisecond
}
