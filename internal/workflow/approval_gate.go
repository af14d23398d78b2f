package workflow

import "github.com/codex-agent/agentcore/internal/models"

// ApprovalGate encapsulates tool approval classification and decision logic
// for a single turn, binding the session's approval mode and serialized exec
// policy rules so call sites don't thread them through every call.
//
// Maps to: Codex AskForApproval policy check before tool dispatch, same as
// classifyToolsForApproval/applyApprovalDecision in agentic.go — this type
// is the stable entrypoint turn.go dispatches through.
type ApprovalGate struct {
	mode        models.ApprovalMode
	policyRules string
}

// NewApprovalGate creates an ApprovalGate with the given approval mode and policy rules.
func NewApprovalGate(mode models.ApprovalMode, policyRules string) *ApprovalGate {
	return &ApprovalGate{mode: mode, policyRules: policyRules}
}

// Classify determines which tools need approval vs are forbidden.
func (g *ApprovalGate) Classify(calls []models.ConversationItem) ([]PendingApproval, []models.ConversationItem) {
	return classifyToolsForApproval(calls, g.mode, g.policyRules)
}

// ApplyDecision filters calls based on the user's approval response.
func (g *ApprovalGate) ApplyDecision(calls []models.ConversationItem, resp *ApprovalResponse) (approved, denied []models.ConversationItem) {
	return applyApprovalDecision(calls, resp)
}
