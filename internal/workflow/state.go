// Package workflow contains Temporal workflow definitions.
//
// state.go manages workflow state, separated from workflow logic.
//
// Maps to: codex-rs/core/src/state/session.rs SessionState
package workflow

import (
	"github.com/codex-agent/agentcore/internal/approval"
	"github.com/codex-agent/agentcore/internal/history"
	"github.com/codex-agent/agentcore/internal/models"
	"github.com/codex-agent/agentcore/internal/sandboxpolicy"
	"github.com/codex-agent/agentcore/internal/tools"
)

// Handler name constants for Temporal query and update handlers.
const (
	// QueryGetConversationItems returns conversation history.
	// Maps to: Codex ContextManager::raw_items()
	QueryGetConversationItems = "get_conversation_items"

	// QueryGetTurnStatus returns the current turn phase and stats.
	// Used by the interactive CLI to drive spinner/state transitions.
	QueryGetTurnStatus = "get_turn_status"

	// UpdateUserInput submits a new user message to the workflow.
	// Maps to: Codex Op::UserInput / turn/start
	UpdateUserInput = "user_input"

	// UpdateInterrupt aborts the current turn.
	// Maps to: Codex Op::Interrupt
	UpdateInterrupt = "interrupt"

	// UpdateShutdown ends the session.
	// Maps to: Codex Op::Shutdown
	UpdateShutdown = "shutdown"

	// UpdateApprovalResponse submits the user's tool approval decision.
	// Maps to: Codex approval flow (AskForApproval)
	UpdateApprovalResponse = "approval_response"

	// UpdateEscalationResponse submits the user's escalation decision (on-failure mode).
	UpdateEscalationResponse = "escalation_response"

	// UpdateUserInputQuestionResponse submits the user's answers to request_user_input questions.
	// Maps to: codex-rs/protocol/src/request_user_input.rs
	UpdateUserInputQuestionResponse = "user_input_question_response"

	// UpdateCompact triggers manual context compaction.
	UpdateCompact = "compact"

	// UpdateModel switches the model used for subsequent LLM calls mid-session.
	UpdateModel = "update_model"

	// UpdatePlanRequest spawns a planner child workflow directly.
	UpdatePlanRequest = "plan_request"

	// UpdateGetStateUpdate is the blocking long-poll Update that replaces
	// query-based CLI polling: it returns delta history items plus current
	// status in one round trip.
	UpdateGetStateUpdate = "get_state_update"

	// SignalAgentInput delivers a user message to a child agent workflow.
	// Maps to: codex-rs/core/src/agent/control.rs agent input signal
	SignalAgentInput = "agent_input"

	// SignalAgentShutdown requests a child agent workflow to shut down.
	// Maps to: codex-rs/core/src/agent/control.rs agent shutdown signal
	SignalAgentShutdown = "agent_shutdown"
)

// TurnPhase indicates the current phase of the workflow turn.
type TurnPhase string

const (
	PhaseWaitingForInput    TurnPhase = "waiting_for_input"
	PhaseLLMCalling         TurnPhase = "llm_calling"
	PhaseToolExecuting      TurnPhase = "tool_executing"
	PhaseApprovalPending    TurnPhase = "approval_pending"
	PhaseEscalationPending  TurnPhase = "escalation_pending"
	PhaseUserInputPending   TurnPhase = "user_input_pending"
	PhaseCompacting         TurnPhase = "compacting"
	PhaseWaitingForAgents   TurnPhase = "waiting_for_agents"
)

// TurnStatus is the response from the get_turn_status query.
type TurnStatus struct {
	Phase                   TurnPhase                `json:"phase"`
	CurrentTurnID           string                   `json:"current_turn_id"`
	ToolsInFlight           []string                 `json:"tools_in_flight,omitempty"`
	PendingApprovals        []PendingApproval        `json:"pending_approvals,omitempty"`
	PendingEscalations      []EscalationRequest      `json:"pending_escalations,omitempty"`
	PendingUserInputRequest *PendingUserInputRequest `json:"pending_user_input_request,omitempty"`
	IterationCount          int                      `json:"iteration_count"`
	TotalTokens             int                      `json:"total_tokens"`
	TotalCachedTokens       int                      `json:"total_cached_tokens,omitempty"`
	TurnCount               int                      `json:"turn_count"`
	WorkerVersion           string                   `json:"worker_version,omitempty"`
	Suggestion              string                   `json:"suggestion,omitempty"`
	Plan                    *models.Plan             `json:"plan,omitempty"`
	ChildAgents             []ChildAgentSummary      `json:"child_agents,omitempty"`
}

// ChildAgentSummary is the CLI-facing view of a spawned subagent, reported
// as part of TurnStatus.
type ChildAgentSummary struct {
	AgentID     string      `json:"agent_id"`
	WorkflowID  string      `json:"workflow_id"`
	Role        AgentRole   `json:"role"`
	Status      AgentStatus `json:"status"`
}

// WorkflowInput is the initial input to start a conversation.
//
// Maps to: codex-rs/core/src/codex.rs run_turn input
type WorkflowInput struct {
	ConversationID string                      `json:"conversation_id"`
	UserMessage    string                      `json:"user_message"`
	Config         models.SessionConfiguration `json:"config"`
	// Depth tracks subagent nesting level. 0 = top-level, 1 = child.
	// Maps to: codex-rs SubAgentSource::ThreadSpawn.depth
	Depth int `json:"depth,omitempty"`
}

// UserInput is the payload for the user_input Update.
// Maps to: codex-rs/protocol/src/user_input.rs UserInput
type UserInput struct {
	Content string `json:"content"`
}

// UserInputAccepted is returned by the user_input Update after acceptance.
// Maps to: Codex submit() return value (submission ID)
type UserInputAccepted struct {
	TurnID string `json:"turn_id"`
}

// InterruptRequest is the payload for the interrupt Update.
// Maps to: codex-rs/protocol/src/protocol.rs Op::Interrupt
type InterruptRequest struct{}

// InterruptResponse is returned by the interrupt Update.
// Maps to: Codex EventMsg::TurnAborted
type InterruptResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// ShutdownRequest is the payload for the shutdown Update.
// Maps to: codex-rs/protocol/src/protocol.rs Op::Shutdown
type ShutdownRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ShutdownResponse is returned by the shutdown Update.
// Maps to: Codex EventMsg::ShutdownComplete
type ShutdownResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// PendingApproval describes a tool call awaiting user approval.
// Maps to: Codex approval flow (tool call needing confirmation)
type PendingApproval struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"` // Raw JSON string of arguments
	Reason    string `json:"reason,omitempty"` // Why approval is needed (from policy justification or heuristic)
}

// ApprovalResponse is the user's decision on pending tool approvals.
// Maps to: Codex approval flow response
type ApprovalResponse struct {
	Approved []string `json:"approved"` // CallIDs the user approved
	Denied   []string `json:"denied"`   // CallIDs the user denied

	// ApprovedForSession lists CallIDs the user approved with "don't ask
	// again this session" — a subset of Approved. Their approval keys are
	// inserted into SessionState.ApprovalCache so a later identical call is
	// skipped without re-prompting.
	ApprovedForSession []string `json:"approved_for_session,omitempty"`
}

// ApprovalResponseAck is returned by the approval_response Update after acceptance.
type ApprovalResponseAck struct{}

// EscalationRequest describes a failed sandboxed tool call awaiting user escalation.
// Maps to: Codex on-failure mode escalation
type EscalationRequest struct {
	CallID    string `json:"call_id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments"`
	Output    string `json:"output"`     // Failed output from sandboxed execution
	Reason    string `json:"reason"`     // Why escalation is needed
}

// EscalationResponse is the user's decision on escalation.
type EscalationResponse struct {
	Approved []string `json:"approved"` // CallIDs to re-execute without sandbox
	Denied   []string `json:"denied"`   // CallIDs to reject
}

// EscalationResponseAck is returned by the escalation_response Update.
type EscalationResponseAck struct{}

// RequestUserInputQuestionOption describes a single option for a user input question.
// Maps to: codex-rs/protocol/src/request_user_input.rs QuestionOption
type RequestUserInputQuestionOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// RequestUserInputQuestion describes a single question for the user.
// Maps to: codex-rs/protocol/src/request_user_input.rs Question
type RequestUserInputQuestion struct {
	ID       string                           `json:"id"`
	Header   string                           `json:"header,omitempty"`
	Question string                           `json:"question"`
	IsOther  bool                             `json:"is_other,omitempty"`
	Options  []RequestUserInputQuestionOption `json:"options"`
}

// PendingUserInputRequest describes a request_user_input call awaiting user response.
type PendingUserInputRequest struct {
	CallID    string                     `json:"call_id"`
	Questions []RequestUserInputQuestion `json:"questions"`
}

// UserInputQuestionAnswer holds the selected answers for a single question.
type UserInputQuestionAnswer struct {
	Answers []string `json:"answers"`
}

// UserInputQuestionResponse is the user's response to a request_user_input call.
type UserInputQuestionResponse struct {
	Answers map[string]UserInputQuestionAnswer `json:"answers"`
}

// UserInputQuestionResponseAck is returned by the user_input_question_response Update.
type UserInputQuestionResponseAck struct{}

// UpdateModelRequest is the payload for the update_model Update.
type UpdateModelRequest struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	ContextWindow int    `json:"context_window,omitempty"`
}

// UpdateModelResponse is returned by the update_model Update.
type UpdateModelResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// PlanRequest is the payload for the plan_request Update.
type PlanRequest struct {
	Message string `json:"message"`
}

// PlanRequestAccepted is returned by the plan_request Update.
type PlanRequestAccepted struct {
	AgentID    string `json:"agent_id"`
	WorkflowID string `json:"workflow_id"`
}

// StateUpdateRequest is the payload for the get_state_update Update. The
// caller reports the last Seq and phase it observed so the workflow can
// decide whether new state is already available or it should block.
type StateUpdateRequest struct {
	SinceSeq   int       `json:"since_seq"`
	SincePhase TurnPhase `json:"since_phase"`
}

// StateUpdateResponse is returned by the get_state_update and user_input
// Updates: a snapshot of new history items plus current turn status.
type StateUpdateResponse struct {
	TurnID    string                     `json:"turn_id,omitempty"`
	Items     []models.ConversationItem `json:"items,omitempty"`
	Status    TurnStatus                 `json:"status"`
	Compacted bool                       `json:"compacted,omitempty"`
	Completed bool                       `json:"completed,omitempty"`
}

// CompactRequest is the payload for the compact Update.
type CompactRequest struct{}

// CompactResponse is returned by the compact Update.
type CompactResponse struct {
	Acknowledged bool `json:"acknowledged"`
}

// AgentInputSignal is the payload for the agent_input signal.
// Sent from parent to child workflow via SignalExternalWorkflow.
// Maps to: codex-rs/core/src/agent/control.rs AgentInputSignal
type AgentInputSignal struct {
	Content   string `json:"content"`
	Interrupt bool   `json:"interrupt"`
}

// SessionState is passed through ContinueAsNew.
// Uses ContextManager interface to allow pluggable storage backends.
//
// Corresponds to: codex-rs/core/src/state/session.rs SessionState
type SessionState struct {
	ConversationID string                      `json:"conversation_id"`
	History        history.ContextManager      `json:"-"`             // Not serialized directly; see note below
	HistoryItems   []models.ConversationItem   `json:"history_items"` // Serialized form for ContinueAsNew
	ToolSpecs      []tools.ToolSpec            `json:"tool_specs"`
	Config         models.SessionConfiguration `json:"config"`

	// Iteration tracking
	IterationCount int `json:"iteration_count"`
	MaxIterations  int `json:"max_iterations"`

	// All cross-turn coordination state (pending input/shutdown/interrupt
	// flags, turn phase, in-flight tools, pending approvals/escalations/
	// user-input requests) lives on the per-run LoopControl instead of here.
	// LoopControl is reconstructed fresh after every ContinueAsNew; a
	// continuation only happens once all in-flight Updates have drained, so
	// nothing observable is lost.

	// Exec policy rules (serialized text, persists across ContinueAsNew)
	ExecPolicyRules string `json:"exec_policy_rules,omitempty"`

	// Total iterations across all turns (persists across ContinueAsNew).
	// Used to trigger ContinueAsNew when history grows too large.
	TotalIterationsForCAN int `json:"total_iterations_for_can"`

	// OpenAI Responses API: last response ID for incremental sends
	// Persists across CAN to enable chaining across workflow continuations.
	LastResponseID string `json:"last_response_id,omitempty"`

	// Transient: tracks how many history items were sent in the last LLM call,
	// enabling incremental sends (only new items after this index).
	// Reset on history modification (compaction, DropOldestUserTurns).
	lastSentHistoryLen int `json:"-"`

	// Context compaction tracking
	CompactionCount   int  `json:"compaction_count"`   // How many times compaction has occurred
	compactedThisTurn bool `json:"-"`                  // Prevents double compaction in one turn

	// Mid-session model switch tracking (update_model Update). PreviousModel
	// and PreviousContextWindow record what the session just switched away
	// from; modelSwitched is consumed once by maybeCompactBeforeLLM to inject
	// a model-switch notice and re-check the compaction limit.
	PreviousModel         string `json:"previous_model,omitempty"`
	PreviousContextWindow int    `json:"previous_context_window,omitempty"`
	modelSwitched         bool   `json:"-"`

	// Repeated tool call detection (transient — not serialized)
	lastToolKey string `json:"-"`
	repeatCount int    `json:"-"`

	// Cumulative stats (persist across ContinueAsNew)
	TotalTokens       int      `json:"total_tokens"`
	TotalCachedTokens int      `json:"total_cached_tokens,omitempty"`
	ToolCallsExecuted []string `json:"tool_calls_executed"`

	// Plan is the current task plan maintained via the update_plan tool.
	// Replaced wholesale on every update_plan call; persists across ContinueAsNew.
	Plan *models.Plan `json:"plan,omitempty"`

	// Subagent control — manages child workflow lifecycles.
	// Maps to: codex-rs/core/src/agent/control.rs AgentControl
	AgentCtl *AgentControl `json:"agent_ctl,omitempty"`

	// ResolvedProfile is the model profile resolved from Config.Model at
	// session start (temperature/max_tokens/context_window overrides,
	// AGENTS.md filenames, prompt suffix). Recomputed after every
	// ContinueAsNew rather than serialized, since it is pure derived state.
	ResolvedProfile models.ResolvedProfile `json:"-"`

	// TurnState tracks the turn scheduler's current phase as an explicit
	// state machine, independent of the CLI-facing TurnPhase above.
	TurnState TurnState `json:"turn_state,omitempty"`

	// ApprovalCache holds "approved for session" decisions so repeated
	// invocations of the same shell command / patch target don't re-prompt.
	// Transient: a fresh cache is created after every ContinueAsNew, which
	// only affects already-approved commands re-prompting once per
	// continuation — an acceptable cost for keeping the workflow's
	// deterministic-replay surface free of a growing serialized map.
	ApprovalCache *approval.Cache `json:"-"`

	// McpToolLookup maps qualified tool names (mcp__server__tool) to their
	// server/tool reference, populated by initMcpServers and consulted by
	// executeToolsInParallel to route calls to the MCP handler. Rebuilt by
	// initMcpServers after every ContinueAsNew rather than serialized.
	McpToolLookup map[string]tools.McpToolRef `json:"-"`

	// SandboxAttempts tracks the retry-after-escalation protocol
	// (sandboxpolicy.Attempt) per call_id across a turn. Transient: a
	// fresh map is created after every ContinueAsNew, which only affects
	// a call_id that straddles a continuation boundary — vanishingly
	// rare, and the worst case is one extra approval prompt.
	SandboxAttempts map[string]*sandboxpolicy.Attempt `json:"-"`
}

// TurnState is the turn scheduler's explicit lifecycle state (spec §4.F),
// tracked alongside the coarser CLI-facing TurnPhase.
//
// Maps to: codex-rs/core/src/codex.rs run_turn's implicit state machine,
// made explicit per spec §4.F.
type TurnState string

const (
	TurnStateIdle             TurnState = "idle"
	TurnStateStreamingModel   TurnState = "streaming_model"
	TurnStateDispatchingTools TurnState = "dispatching_tools"
	TurnStateCompleted        TurnState = "completed"
	TurnStateCancelled        TurnState = "cancelled"
	TurnStateFailed           TurnState = "failed"
)

// WorkflowResult is the final result of the workflow.
type WorkflowResult struct {
	ConversationID    string   `json:"conversation_id"`
	TotalIterations   int      `json:"total_iterations"`
	TotalTokens       int      `json:"total_tokens"`
	ToolCallsExecuted []string `json:"tool_calls_executed"`
	EndReason         string   `json:"end_reason,omitempty"` // "shutdown", "error"
	// FinalMessage is the last assistant message from the workflow.
	// Used by parent workflows to get the child's result.
	// Maps to: codex-rs AgentStatus::Completed(Option<String>)
	FinalMessage string `json:"final_message,omitempty"`
}

// initHistory initializes the History field from HistoryItems.
// Called after deserialization (ContinueAsNew) to restore the interface.
func (s *SessionState) initHistory() {
	h := history.NewInMemoryHistory()
	for _, item := range s.HistoryItems {
		h.AddItem(item)
	}
	s.History = h
}

// syncHistoryItems copies history to HistoryItems for serialization.
// Called before ContinueAsNew to persist state.
func (s *SessionState) syncHistoryItems() {
	items, _ := s.History.GetRawItems()
	s.HistoryItems = items
}
