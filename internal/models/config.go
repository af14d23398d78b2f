package models

import "github.com/codex-agent/agentcore/internal/mcp"

// ModelConfig configures the LLM model parameters
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (model config part)
type ModelConfig struct {
	Model           string  `json:"model" toml:"model"`                               // e.g., "gpt-3.5-turbo", "gpt-4"
	Provider        string  `json:"provider,omitempty" toml:"provider"`               // "openai", "anthropic"
	Temperature     float64 `json:"temperature" toml:"temperature"`                   // 0.0 to 2.0
	MaxTokens       int     `json:"max_tokens" toml:"max_tokens"`                     // Max tokens to generate
	ContextWindow   int     `json:"context_window" toml:"context_window"`             // Max context window size
	ReasoningEffort string  `json:"reasoning_effort,omitempty" toml:"reasoning_effort"` // "low", "medium", "high"
}

// DefaultModelConfig returns a sensible default configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Model:         "gpt-4o-mini",
		Temperature:   0.7,
		MaxTokens:     4096,
		ContextWindow: 128000,
	}
}

// ToolsConfig configures which tools are enabled
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration (tools config part)
type ToolsConfig struct {
	EnableShell      bool `json:"enable_shell" toml:"enable_shell"`
	EnableReadFile   bool `json:"enable_read_file" toml:"enable_read_file"`
	EnableWriteFile  bool `json:"enable_write_file,omitempty" toml:"enable_write_file"`   // Built-in write_file tool
	EnableListDir    bool `json:"enable_list_dir,omitempty" toml:"enable_list_dir"`       // Built-in list_dir tool
	EnableGrepFiles  bool `json:"enable_grep_files,omitempty" toml:"enable_grep_files"`   // Built-in grep_files tool
	EnableApplyPatch bool `json:"enable_apply_patch,omitempty" toml:"enable_apply_patch"` // Built-in apply_patch tool

	// EnableUnifiedExec exposes exec_command/write_stdin, the long-lived
	// subprocess session pair backed by internal/execsession.
	EnableUnifiedExec bool `json:"enable_unified_exec,omitempty" toml:"enable_unified_exec"`

	// EnableUpdatePlan exposes the update_plan tool, intercepted by the
	// workflow rather than dispatched as an activity.
	EnableUpdatePlan bool `json:"enable_update_plan,omitempty" toml:"enable_update_plan"`

	// EnableCollab exposes the subagent orchestration tools (spawn_agent,
	// send_input, wait, close_agent, resume_agent). Forced off past
	// MaxThreadSpawnDepth regardless of this setting.
	EnableCollab bool `json:"enable_collab,omitempty" toml:"enable_collab"`
}

// DefaultToolsConfig returns default tools configuration
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		EnableShell:      true,
		EnableReadFile:   true,
		EnableWriteFile:  true,
		EnableListDir:    true,
		EnableGrepFiles:  true,
		EnableApplyPatch:  true,
		EnableUnifiedExec: true,
		EnableUpdatePlan:  true,
	}
}

// SessionConfiguration configures a complete agentic session: the layered
// config stack's effective values, resolved once per session start (spec
// §4.A's Stack.EffectiveConfig output, decoded into this struct).
//
// Maps to: codex-rs/core/src/codex.rs SessionConfiguration, extended per
// spec §4.A/§4.C with the approval/sandbox/MCP fields codex-rs's full
// Config carries that the original teacher snapshot's flattened struct
// omitted (internal/workflow already reads these fields; this struct had
// fallen out of sync with its own callers).
type SessionConfiguration struct {
	// Instructions hierarchy (maps to Codex 3-tier system)
	BaseInstructions         string `json:"base_instructions,omitempty" toml:"base_instructions"`
	DeveloperInstructions    string `json:"developer_instructions,omitempty" toml:"developer_instructions"`
	UserInstructions         string `json:"user_instructions,omitempty" toml:"user_instructions"`
	CLIProjectDocs           string `json:"cli_project_docs,omitempty" toml:"cli_project_docs"`
	UserPersonalInstructions string `json:"user_personal_instructions,omitempty" toml:"user_personal_instructions"`

	// Model configuration
	Model ModelConfig `json:"model" toml:"model"`

	// Tool configuration
	Tools ToolsConfig `json:"tools" toml:"tools"`

	// Execution context
	Cwd       string `json:"cwd,omitempty" toml:"cwd"`
	CodexHome string `json:"codex_home,omitempty" toml:"codex_home"`

	// Approval and sandbox policy (spec §4.C)
	ApprovalMode         ApprovalMode `json:"approval_mode,omitempty" toml:"approval_mode"`
	SandboxMode          string       `json:"sandbox_mode,omitempty" toml:"sandbox_mode"`
	SandboxWritableRoots []string     `json:"sandbox_writable_roots,omitempty" toml:"sandbox_writable_roots"`
	SandboxNetworkAccess bool         `json:"sandbox_network_access,omitempty" toml:"sandbox_network_access"`

	// AutoCompactTokenLimit triggers context compaction once the
	// conversation's estimated token count exceeds this value; 0 disables
	// auto-compaction. Clamped to 90% of Model.ContextWindow at use time.
	AutoCompactTokenLimit int `json:"auto_compact_token_limit,omitempty" toml:"auto_compact_token_limit"`

	// SessionTaskQueue overrides the Temporal task queue used for this
	// session's activities.
	SessionTaskQueue string `json:"session_task_queue,omitempty" toml:"session_task_queue"`

	// DisableSuggestions turns off proactive next-step suggestions.
	DisableSuggestions bool `json:"disable_suggestions,omitempty" toml:"disable_suggestions"`

	// ExecPolicyRules carries pre-loaded exec policy rule source text, set by
	// HarnessWorkflow when it has already loaded rules for the harness's
	// CodexHome. When empty, the session loads rules itself on startup.
	ExecPolicyRules string `json:"exec_policy_rules,omitempty" toml:"-"`

	// MCP servers to connect at session start, keyed by server name.
	McpServers map[string]mcp.McpServerConfig `json:"mcp_servers,omitempty" toml:"mcp_servers"`

	// Session metadata
	SessionSource string `json:"session_source,omitempty" toml:"session_source"` // "cli", "api", "exec" for logging/tracking
}

// DefaultSessionConfiguration returns sensible defaults.
func DefaultSessionConfiguration() SessionConfiguration {
	return SessionConfiguration{
		Model:        DefaultModelConfig(),
		Tools:        DefaultToolsConfig(),
		ApprovalMode: ApprovalOnRequest,
	}
}
