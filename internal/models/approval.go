package models

// ApprovalMode selects how aggressively the Sandbox Policy Engine (spec
// §4.C) prompts for approval before running a tool.
//
// Maps to: codex-rs/core/src/config/types.rs AskForApproval (original_source).
type ApprovalMode string

const (
	// ApprovalNever never prompts; tools run unattended.
	ApprovalNever ApprovalMode = "never"
	// ApprovalOnFailure prompts only after an in-sandbox attempt fails.
	ApprovalOnFailure ApprovalMode = "on-failure"
	// ApprovalOnRequest prompts whenever a tool asks for escalation.
	ApprovalOnRequest ApprovalMode = "on-request"
	// ApprovalUnlessTrusted prompts for every command except ones on an
	// explicit trusted allowlist.
	ApprovalUnlessTrusted ApprovalMode = "unless-trusted"
)
