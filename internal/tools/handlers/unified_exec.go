// unified_exec.go provides the exec_command/write_stdin tool pair for
// long-lived subprocess sessions identified by an integer process id.
//
// Maps to: codex-rs/core/src/unified_exec/ exec_command / write_stdin
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/codex-agent/agentcore/internal/execsession"
	"github.com/codex-agent/agentcore/internal/tools"
)

const defaultYieldTimeMs = 10_000

// UnifiedExecTool backs both exec_command and write_stdin: exec_command
// allocates a process id and spawns under the configured shell; write_stdin
// writes to an existing process id. Both return after yield_time_ms or the
// process exiting, whichever comes first.
//
// Maps to: codex-rs/core/src/unified_exec/process.rs
type UnifiedExecTool struct {
	store *execsession.Store
	name  string // "exec_command" or "write_stdin"
}

// NewExecCommandTool creates the exec_command handler backed by store.
func NewExecCommandTool(store *execsession.Store) *UnifiedExecTool {
	return &UnifiedExecTool{store: store, name: "exec_command"}
}

// NewWriteStdinTool creates the write_stdin handler backed by store.
func NewWriteStdinTool(store *execsession.Store) *UnifiedExecTool {
	return &UnifiedExecTool{store: store, name: "write_stdin"}
}

func (t *UnifiedExecTool) Name() string {
	return t.name
}

func (t *UnifiedExecTool) Kind() tools.ToolKind {
	return tools.ToolKindFunction
}

// IsMutating is conservative: any unified-exec session can run arbitrary
// commands, so both allocating one and writing to one are treated as
// mutating.
func (t *UnifiedExecTool) IsMutating(*tools.ToolInvocation) bool {
	return true
}

func (t *UnifiedExecTool) Handle(ctx context.Context, invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	if t.name == "write_stdin" {
		return t.handleWriteStdin(invocation)
	}
	return t.handleExecCommand(invocation)
}

func (t *UnifiedExecTool) handleExecCommand(invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	cmdArg, ok := invocation.Arguments["command"]
	if !ok {
		return nil, tools.NewValidationError("missing required argument: command")
	}
	cmdSlice, err := stringSlice(cmdArg)
	if err != nil || len(cmdSlice) == 0 {
		return nil, tools.NewValidationError("command must be a non-empty array of strings")
	}

	cwd := invocation.Cwd
	if v, ok := invocation.Arguments["cwd"].(string); ok && v != "" {
		cwd = v
	}

	tty := false
	if v, ok := invocation.Arguments["tty"].(bool); ok {
		tty = v
	}

	yieldMs := yieldTimeMs(invocation.Arguments)

	id, sess, err := t.store.Start(execsession.SessionOpts{
		Command: cmdSlice,
		Cwd:     cwd,
		TTY:     tty,
	})
	if err != nil {
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("Failed to start process: %v", err),
			Success: &success,
		}, nil
	}

	output := sess.CollectOutput(time.Now().Add(time.Duration(yieldMs)*time.Millisecond), invocation.Heartbeat)

	success := true
	return &tools.ToolOutput{
		Content: formatExecOutput(id, sess, output),
		Success: &success,
	}, nil
}

func (t *UnifiedExecTool) handleWriteStdin(invocation *tools.ToolInvocation) (*tools.ToolOutput, error) {
	idArg, ok := invocation.Arguments["process_id"]
	if !ok {
		return nil, tools.NewValidationError("missing required argument: process_id")
	}
	id, err := toInt(idArg)
	if err != nil {
		return nil, tools.NewValidationError("process_id must be an integer")
	}

	textArg, _ := invocation.Arguments["text"].(string)

	sess := t.store.Get(id)
	if sess == nil {
		success := false
		return &tools.ToolOutput{
			Content: fmt.Sprintf("No such process id: %d", id),
			Success: &success,
		}, nil
	}

	if textArg != "" {
		if err := sess.WriteStdin([]byte(textArg)); err != nil {
			success := false
			return &tools.ToolOutput{
				Content: fmt.Sprintf("Failed to write stdin: %v", err),
				Success: &success,
			}, nil
		}
	}

	yieldMs := yieldTimeMs(invocation.Arguments)
	output := sess.CollectOutput(time.Now().Add(time.Duration(yieldMs)*time.Millisecond), invocation.Heartbeat)

	success := true
	return &tools.ToolOutput{
		Content: formatExecOutput(id, sess, output),
		Success: &success,
	}, nil
}

func formatExecOutput(id int, sess *execsession.ExecSession, output []byte) string {
	status := "running"
	if sess.HasExited() {
		if code := sess.ExitCode(); code != nil {
			status = fmt.Sprintf("exited with code %d", *code)
		}
	}
	return fmt.Sprintf("process_id=%d status=%s\n%s", id, status, string(output))
}

func yieldTimeMs(args map[string]interface{}) int64 {
	if v, ok := args["yield_time_ms"]; ok {
		if n, err := toInt(v); err == nil && n > 0 {
			return int64(n)
		}
	}
	return defaultYieldTimeMs
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func stringSlice(v interface{}) ([]string, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("not an array")
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("element %d is not a string", i)
		}
		out[i] = s
	}
	return out, nil
}
