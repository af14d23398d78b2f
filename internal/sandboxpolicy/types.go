// Package sandboxpolicy decides, per tool invocation, whether approval is
// required, whether sandboxing applies, and what escalation is permitted.
// It generalizes the teacher's internal/execpolicy (command-rule
// evaluation) and internal/execenv (environment filtering) into the full
// engine described by spec §4.C.
//
// Maps to: codex-rs/core/src/tools/sandboxing.rs
package sandboxpolicy

import (
	"github.com/codex-agent/agentcore/internal/execpolicy"
	"github.com/codex-agent/agentcore/internal/models"
	"github.com/codex-agent/agentcore/internal/sandbox"
)

// RequirementKind discriminates the three shapes an ExecApprovalRequirement
// can take.
type RequirementKind int

const (
	// RequirementSkip means the operation may proceed without approval.
	RequirementSkip RequirementKind = iota
	// RequirementNeedsApproval means the operation must pause for a
	// reviewer decision before proceeding.
	RequirementNeedsApproval
	// RequirementForbidden means the operation must not run at all.
	RequirementForbidden
)

// ExecApprovalRequirement is the tagged-union result of evaluating a tool
// invocation against the approval and sandbox policies.
//
// Maps to: spec.md §4.C Skip{bypass_sandbox,proposed_policy_amendment} |
// NeedsApproval{reason,proposed_policy_amendment} | Forbidden{reason}
type ExecApprovalRequirement struct {
	Kind RequirementKind

	// BypassSandbox is set on Skip: when true, the first attempt should run
	// outside the sandbox entirely rather than inside a permissive one.
	BypassSandbox bool

	// Reason explains a NeedsApproval or Forbidden decision to the reviewer
	// or user. Empty when the default policy table produced the decision
	// without a tool-specific override supplying one.
	Reason string

	// ProposedPolicyAmendment, when non-nil, is a `.rules`-file line the
	// approval UI may offer to persist (e.g. "allow prefix: git status")
	// so the same command skips approval on a future turn. Set only by
	// Skip and NeedsApproval.
	ProposedPolicyAmendment *string
}

// Skip builds a Skip requirement.
func Skip(bypassSandbox bool, proposedPolicyAmendment *string) ExecApprovalRequirement {
	return ExecApprovalRequirement{
		Kind:                    RequirementSkip,
		BypassSandbox:           bypassSandbox,
		ProposedPolicyAmendment: proposedPolicyAmendment,
	}
}

// NeedsApproval builds a NeedsApproval requirement.
func NeedsApproval(reason string, proposedPolicyAmendment *string) ExecApprovalRequirement {
	return ExecApprovalRequirement{
		Kind:                    RequirementNeedsApproval,
		Reason:                  reason,
		ProposedPolicyAmendment: proposedPolicyAmendment,
	}
}

// Forbidden builds a Forbidden requirement.
func Forbidden(reason string) ExecApprovalRequirement {
	return ExecApprovalRequirement{Kind: RequirementForbidden, Reason: reason}
}

// SandboxModeOverride is a tool's opinion on which sandbox mode its first
// attempt should run under, independent of the session's configured mode.
type SandboxModeOverride int

const (
	// NoOverride defers to the session's configured sandbox mode.
	NoOverride SandboxModeOverride = iota
	// BypassFirstAttempt runs the first attempt with no sandbox at all
	// (e.g. a read-only listing tool that never needs write containment).
	BypassFirstAttempt
)

// ToolRequest carries everything the engine needs to evaluate one tool
// invocation: its name, the command it will run (for execpolicy rule
// matching; empty for non-shell tools), and the session's current policy.
type ToolRequest struct {
	ToolName string
	Command  []string
	Policy   Policy
}

// Policy is the pair of policies spec §4.C's decision table reads from.
type Policy struct {
	Approval models.ApprovalMode
	Sandbox  sandbox.SandboxPolicy
}

// ApprovalKeyer lets a tool override which cache keys
// (internal/approval.WithCachedApproval) its invocations are grouped under.
// Tools that don't implement it get one key per invocation (the tool name).
//
// Maps to: spec.md §4.C approval_keys(req) → [K]
type ApprovalKeyer interface {
	ApprovalKeys(req ToolRequest) []string
}

// SandboxModePicker lets a tool opt its first attempt out of the session's
// configured sandbox mode.
//
// Maps to: spec.md §4.C sandbox_mode_for_first_attempt(req) → NoOverride | BypassFirstAttempt
type SandboxModePicker interface {
	SandboxModeForFirstAttempt(req ToolRequest) SandboxModeOverride
}

// NoSandboxApprovalWanter lets a tool insist on an approval prompt before a
// no-sandbox retry even under an approval policy that would otherwise skip
// it (e.g. a tool whose no-sandbox form is unusually dangerous).
//
// Maps to: spec.md §4.C wants_no_sandbox_approval(policy) → bool
type NoSandboxApprovalWanter interface {
	WantsNoSandboxApproval(policy Policy) bool
}

// RequirementOverrider lets a tool bypass the default decision table
// entirely and compute its own ExecApprovalRequirement.
//
// Maps to: spec.md §4.C exec_approval_requirement(req) → Option<ExecApprovalRequirement>
type RequirementOverrider interface {
	ExecApprovalRequirement(req ToolRequest) (ExecApprovalRequirement, bool)
}

// Engine evaluates ToolRequests into ExecApprovalRequirements, consulting
// an optional execpolicy.ExecPolicyManager for command-specific rules.
type Engine struct {
	execPolicy *execpolicy.ExecPolicyManager
}

// NewEngine creates an Engine. execPolicyMgr may be nil, in which case
// every command evaluation falls through to the default approval-policy ×
// sandbox-policy table with no command-specific rule matching.
func NewEngine(execPolicyMgr *execpolicy.ExecPolicyManager) *Engine {
	return &Engine{execPolicy: execPolicyMgr}
}
