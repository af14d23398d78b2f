package sandboxpolicy

import "github.com/codex-agent/agentcore/internal/models"

// FailureKind classifies why a sandboxed tool attempt failed, mirroring
// spec §7's Sandbox(Denied|Timeout) error kinds.
type FailureKind int

const (
	// FailureDenied means the OS sandbox refused the operation (permission
	// denied, read-only filesystem, seccomp/landlock violation).
	FailureDenied FailureKind = iota
	// FailureTimeout means the sandboxed execution exceeded its time
	// budget without the process itself reporting one.
	FailureTimeout
	// FailureOther covers any failure that is not sandbox-attributable;
	// the retry-after-escalation protocol does not apply to it.
	FailureOther
)

// RetryAction is what the orchestrator should do next after a sandboxed
// attempt fails.
type RetryAction int

const (
	// ActionSurfaceError means no retry is permitted: report the failure
	// as a user-visible tool error (spec §4.C "surfaced as a user-visible
	// tool error, not a fatal crash").
	ActionSurfaceError RetryAction = iota
	// ActionRequestNoSandboxApproval means ask the user to approve a
	// no-sandbox retry, then run it once more outside the sandbox.
	ActionRequestNoSandboxApproval
	// ActionRetryNoApproval means the retry may run immediately with no
	// sandbox and no prompt. Next never returns this today — every
	// non-Never approval policy asks before a no-sandbox retry — but the
	// action exists for a future RequirementOverrider that opts a specific
	// tool out of the prompt.
	ActionRetryNoApproval
)

// Attempt tracks one tool call's progress through the retry-after-escalation
// protocol (spec §4.C). The orchestrator owns one Attempt per call_id and
// feeds it through Next on every sandboxed failure.
type Attempt struct {
	// Retries counts completed no-sandbox retries. The protocol permits
	// exactly one.
	Retries int
}

// Next decides what to do after a sandboxed execution returns failureKind.
// Call it only when failureKind is FailureDenied or FailureTimeout — other
// failures are not this protocol's concern and should be surfaced directly.
//
// Maps to: spec.md §4.C "The orchestrator attempts the operation in-sandbox.
// If it returns Sandbox(Denied|Timeout) and the approval policy permits,
// the orchestrator asks for a no-sandbox approval and retries once. A
// second failure is surfaced as a user-visible tool error, not a fatal
// crash."
func (a *Attempt) Next(failureKind FailureKind, approval models.ApprovalMode, noSandboxApprovalWanted bool) RetryAction {
	if failureKind == FailureOther {
		return ActionSurfaceError
	}
	if a.Retries >= 1 {
		return ActionSurfaceError
	}
	if approval == models.ApprovalNever {
		// Policy never prompts; retrying unattended without sandbox would
		// silently widen what ran, so do not retry at all.
		return ActionSurfaceError
	}

	a.Retries++
	_ = noSandboxApprovalWanted // reserved for a tool that wants a prompt even where a future policy would skip one
	return ActionRequestNoSandboxApproval
}

// ClassifyFailure maps an ActivityError's ErrorType to a FailureKind, so
// callers working from the typed activity-boundary error
// (models.WrapActivityError's output, unwrapped) don't need to inspect
// message text.
func ClassifyFailure(errType models.ErrorType) FailureKind {
	switch errType {
	case models.ErrorTypeSandboxDenied:
		return FailureDenied
	case models.ErrorTypeSandboxTimeout:
		return FailureTimeout
	default:
		return FailureOther
	}
}
