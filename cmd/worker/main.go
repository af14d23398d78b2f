// Worker executable for codex-temporal-go
//
// This starts a Temporal worker that executes workflows and activities.
package main

import (
	"log"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/codex-agent/agentcore/internal/activities"
	"github.com/codex-agent/agentcore/internal/execsession"
	"github.com/codex-agent/agentcore/internal/llm"
	"github.com/codex-agent/agentcore/internal/mcp"
	"github.com/codex-agent/agentcore/internal/tools"
	"github.com/codex-agent/agentcore/internal/tools/handlers"
	"github.com/codex-agent/agentcore/internal/workflow"
)

const (
	TaskQueue = "codex-temporal"
)

func main() {
	// Check for OpenAI API key
	if os.Getenv("OPENAI_API_KEY") == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: client.DefaultHostPort, // localhost:7233
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Create worker
	w := worker.New(c, TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflow.AgenticWorkflow)
	w.RegisterWorkflow(workflow.AgenticWorkflowContinued)

	// McpStore holds per-session MCP connection managers, shared between the
	// MCP initialization activity and the MCP tool handler.
	mcpStore := mcp.NewMcpStore()

	// execStore holds long-lived unified-exec subprocess sessions, shared
	// between the exec_command and write_stdin tool handlers.
	execStore := execsession.NewStore()

	// Create tool registry with handlers
	// Maps to: codex-rs/core/src/tools/registry.rs ToolRegistry setup
	toolRegistry := tools.NewToolRegistry()
	toolRegistry.Register(handlers.NewShellTool())
	toolRegistry.Register(handlers.NewReadFileTool())
	toolRegistry.Register(handlers.NewListDirTool())
	toolRegistry.Register(handlers.NewGrepFilesTool())
	toolRegistry.Register(handlers.NewApplyPatchTool())
	toolRegistry.Register(handlers.NewMCPHandler(mcpStore))
	toolRegistry.Register(handlers.NewExecCommandTool(execStore))
	toolRegistry.Register(handlers.NewWriteStdinTool(execStore))

	log.Printf("Registered %d tools", toolRegistry.ToolCount())

	// Create LLM client
	llmClient := llm.NewOpenAIClient()

	// Register activities
	llmActivities := activities.NewLLMActivities(llmClient)
	w.RegisterActivity(llmActivities.ExecuteLLMCall)
	w.RegisterActivity(llmActivities.ExecuteCompact)
	w.RegisterActivity(llmActivities.GenerateSuggestions)

	toolActivities := activities.NewToolActivities(toolRegistry)
	w.RegisterActivity(toolActivities.ExecuteTool)

	mcpActivities := activities.NewMcpActivities(mcpStore)
	w.RegisterActivity(mcpActivities.InitializeMcpServers)
	w.RegisterActivity(mcpActivities.CleanupMcpServers)

	instructionActivities := activities.NewInstructionActivities()
	w.RegisterActivity(instructionActivities.LoadWorkerInstructions)
	w.RegisterActivity(instructionActivities.LoadExecPolicy)
	w.RegisterActivity(instructionActivities.LoadPersonalInstructions)

	// Start worker
	log.Printf("Starting worker on task queue: %s", TaskQueue)
	log.Printf("Temporal server: %s", client.DefaultHostPort)

	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker stopped")
}
