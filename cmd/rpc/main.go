// Stdio JSON-RPC front end for codex-temporal-go: dials the Temporal
// cluster, wraps it in internal/session.Service, and serves the
// thread.*/config.*/apps.* method families over stdin/stdout (spec §6).
//
// Unlike cmd/client, which issues one-shot Updates/Queries and exits, this
// process stays resident for the lifetime of a caller (an IDE extension, a
// TUI) speaking line-delimited JSON-RPC to it.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/codex-agent/agentcore/internal/rpc"
	"github.com/codex-agent/agentcore/internal/session"
)

func main() {
	codexHome := os.Getenv("CODEX_HOME")
	if codexHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("rpc: resolving home directory: %v", err)
		}
		codexHome = home + "/.codex"
	}

	c, err := client.Dial(client.Options{HostPort: client.DefaultHostPort})
	if err != nil {
		log.Fatalf("rpc: failed to create Temporal client: %v", err)
	}
	defer c.Close()

	svc := session.NewService(c, codexHome)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	processor := rpc.NewProcessor(os.Stdout, logger)

	rpc.RegisterSessionMethods(processor, svc)
	rpc.RegisterConfigMethods(processor, &rpc.ConfigService{CodexHome: codexHome})
	rpc.RegisterAppsMethods(processor, rpc.NewAppRegistry(nil, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := processor.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		log.Fatalf("rpc: processor exited: %v", err)
	}
}
