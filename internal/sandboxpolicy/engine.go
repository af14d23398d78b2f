package sandboxpolicy

import (
	"github.com/codex-agent/agentcore/internal/execpolicy"
	"github.com/codex-agent/agentcore/internal/models"
	"github.com/codex-agent/agentcore/internal/sandbox"
)

// DefaultRequirement implements spec §4.C's approval-policy × sandbox-policy
// table:
//
//	Approval policy      | Sandbox = full-access | Otherwise
//	Never, OnFailure      | Skip                  | Skip
//	OnRequest             | Skip                  | NeedsApproval
//	UnlessTrusted         | NeedsApproval          | NeedsApproval
func DefaultRequirement(approval models.ApprovalMode, sandboxMode sandbox.SandboxMode) ExecApprovalRequirement {
	dangerFullAccess := sandboxMode == sandbox.ModeFullAccess

	switch approval {
	case models.ApprovalNever, models.ApprovalOnFailure:
		return Skip(dangerFullAccess, nil)
	case models.ApprovalOnRequest:
		if dangerFullAccess {
			return Skip(true, nil)
		}
		return NeedsApproval("", nil)
	case models.ApprovalUnlessTrusted:
		return NeedsApproval("", nil)
	default:
		return NeedsApproval("unrecognized approval policy", nil)
	}
}

// Evaluate classifies a tool invocation. handler, when non-nil, is
// type-asserted against RequirementOverrider, SandboxModePicker, and
// NoSandboxApprovalWanter to apply tool-specific overrides before falling
// back to the default table.
//
// Maps to: spec.md §4.C per-invocation evaluation
func (e *Engine) Evaluate(req ToolRequest, handler interface{}) ExecApprovalRequirement {
	if overrider, ok := handler.(RequirementOverrider); ok {
		if req, ok2 := overrider.ExecApprovalRequirement(req); ok2 {
			return req
		}
	}

	if len(req.Command) > 0 {
		return e.evaluateCommand(req, handler)
	}

	base := DefaultRequirement(req.Policy.Approval, req.Policy.Sandbox.Mode)
	return applySandboxModeOverride(base, req, handler)
}

// evaluateCommand blends the execpolicy rule engine (which knows about
// per-prefix Allow/Prompt/Forbidden rules and the dangerous-command
// heuristic) with the approval-policy × sandbox-policy default table: a
// Forbidden rule always wins, a Prompt rule upgrades Skip to NeedsApproval,
// and an Allow rule cannot downgrade NeedsApproval below what the default
// table already requires for UnlessTrusted.
func (e *Engine) evaluateCommand(req ToolRequest, handler interface{}) ExecApprovalRequirement {
	base := DefaultRequirement(req.Policy.Approval, req.Policy.Sandbox.Mode)
	base = applySandboxModeOverride(base, req, handler)

	if e.execPolicy == nil {
		return base
	}

	eval := e.execPolicy.GetEvaluation(req.Command, string(req.Policy.Approval))

	switch eval.Decision {
	case execpolicy.DecisionForbidden:
		return Forbidden(eval.Justification)
	case execpolicy.DecisionPrompt:
		if base.Kind == RequirementForbidden {
			return base
		}
		return NeedsApproval(eval.Justification, base.ProposedPolicyAmendment)
	default: // DecisionAllow
		return base
	}
}

// applySandboxModeOverride lets a tool's SandboxModePicker force its first
// attempt to bypass the sandbox when the verdict is Skip; NeedsApproval and
// Forbidden verdicts are returned unchanged.
func applySandboxModeOverride(req2 ExecApprovalRequirement, req ToolRequest, handler interface{}) ExecApprovalRequirement {
	if req2.Kind == RequirementForbidden {
		return req2
	}
	picker, ok := handler.(SandboxModePicker)
	if !ok || picker.SandboxModeForFirstAttempt(req) != BypassFirstAttempt {
		return req2
	}
	if req2.Kind == RequirementSkip {
		req2.BypassSandbox = true
		return req2
	}
	return req2
}

// ApprovalKeys returns the cache keys a tool invocation should be grouped
// under for internal/approval.WithCachedApproval. Tools implementing
// ApprovalKeyer override the default single-key-per-tool-name behavior.
func ApprovalKeys(req ToolRequest, handler interface{}) []string {
	if keyer, ok := handler.(ApprovalKeyer); ok {
		return keyer.ApprovalKeys(req)
	}
	return []string{req.ToolName}
}

// WantsNoSandboxApproval reports whether a tool insists on an approval
// prompt before a no-sandbox retry even when the approval policy would
// otherwise skip it.
func WantsNoSandboxApproval(policy Policy, handler interface{}) bool {
	wanter, ok := handler.(NoSandboxApprovalWanter)
	return ok && wanter.WantsNoSandboxApproval(policy)
}
