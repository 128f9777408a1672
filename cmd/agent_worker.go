package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/codi/internal/agent"
	"github.com/nextlevelbuilder/codi/internal/approval"
	"github.com/nextlevelbuilder/codi/internal/codierr"
	"github.com/nextlevelbuilder/codi/internal/orchestrator"
	"github.com/nextlevelbuilder/codi/internal/providers"
	"github.com/nextlevelbuilder/codi/internal/session"
	"github.com/nextlevelbuilder/codi/internal/tools"
)

var (
	workerSocket   string
	workerWorktree string
	workerToken    string
	workerTask     string
	workerID       string
	workerProvider string
	workerModel    string
)

// agentCmd holds the `agent worker` subcommand, reachable only through
// orchestrator.SpawnWorker's self-exec — it has no standalone user-facing
// purpose and is hidden from top-level --help.
func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "agent",
		Short:  "internal: worker-side subcommands used by the orchestrator",
		Hidden: true,
	}
	cmd.AddCommand(agentWorkerCmd())
	return cmd
}

func agentWorkerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:    "worker",
		Short:  "internal: run as an orchestrator-spawned worker",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentWorker(cmd.Context())
		},
	}
	c.Flags().StringVar(&workerSocket, "socket", "", "commander IPC socket path")
	c.Flags().StringVar(&workerWorktree, "worktree", "", "isolated git worktree this worker operates in")
	c.Flags().StringVar(&workerToken, "token", "", "handshake token issued by the commander")
	c.Flags().StringVar(&workerTask, "task", "", "task prompt to run")
	c.Flags().StringVar(&workerID, "id", "", "worker id; default: derived from the socket filename")
	c.Flags().StringVar(&workerProvider, "provider", "", "provider to use; default: auto-detect")
	c.Flags().StringVar(&workerModel, "model", "", "model name; default: provider's default")
	return c
}

func runAgentWorker(ctx context.Context) error {
	if workerSocket == "" || workerWorktree == "" || workerToken == "" {
		return codierr.New(codierr.Configuration, "agent worker requires --socket, --worktree, and --token")
	}
	id := workerID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(workerSocket), ".sock")
	}

	tr, err := orchestrator.DialAndHandshake(ctx, workerSocket, id, workerToken, workerWorktree)
	if err != nil {
		return codierr.Wrap(codierr.IPC, "worker handshake", err)
	}
	defer tr.Close()

	provider, err := providers.Detect(ctx, workerProvider)
	if err != nil {
		return codierr.Wrap(codierr.Configuration, "detect provider", err)
	}

	gate := approval.NewGate(orchestrator.NewRemoteApprover(tr), nil)
	danger := tools.NewDangerPatternFilter()
	registry := tools.NewRegistry(gate, danger)
	for _, t := range []tools.Tool{
		tools.NewReadFileTool(workerWorktree),
		tools.NewWriteFileTool(workerWorktree),
		tools.NewEditFileTool(workerWorktree),
		tools.NewListDirectoryTool(workerWorktree),
		tools.NewGlobTool(workerWorktree),
		tools.NewGrepTool(workerWorktree),
		tools.NewBashTool(workerWorktree),
	} {
		if err := registry.Register(t); err != nil {
			return codierr.Wrap(codierr.Configuration, "register tools", err)
		}
	}
	registry.Seal()

	loop := agent.New(agent.Config{
		Provider: provider,
		Model:    workerModel,
		Tools:    registry,
	})

	sess := session.New(workerModel, provider.Name(), "", workerWorktree)

	return orchestrator.RunWorker(ctx, tr, workerWorktree, workerTask, loop, sess)
}
