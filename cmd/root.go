package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/codi/internal/agent"
	"github.com/nextlevelbuilder/codi/internal/approval"
	"github.com/nextlevelbuilder/codi/internal/audit"
	"github.com/nextlevelbuilder/codi/internal/codierr"
	"github.com/nextlevelbuilder/codi/internal/config"
	"github.com/nextlevelbuilder/codi/internal/providers"
	"github.com/nextlevelbuilder/codi/internal/session"
	"github.com/nextlevelbuilder/codi/internal/session/sqlitestore"
	"github.com/nextlevelbuilder/codi/internal/tools"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/codi/cmd.Version=v1.0.0"
var Version = "dev"

var (
	flagProvider string
	flagModel    string
	flagSession  string
	flagAudit    bool
	flagConfig   string
	flagNoColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "codi [PROMPT]",
	Short: "codi — a terminal coding agent",
	Long:  "codi drives a tool-using coding agent against a local project: one provider-agnostic turn loop, a filesystem/shell tool set behind an approval gate, and an optional multi-worker orchestrator for delegated subtasks.",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOneShot(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "provider to use (anthropic, openai, or a base URL); default: auto-detect")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model name; default: provider's default")
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "resume an existing session by id; default: start a new session")
	rootCmd.PersistentFlags().BoolVar(&flagAudit, "audit", false, "write a JSONL audit trail to ~/.codi/audit/<session_id>.jsonl")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file path; default: .codi.yaml or .codi.json in the working directory")
	// Output is plain text regardless — no ANSI color is emitted anywhere
	// in this CLI — so --no-color is accepted for script compatibility
	// with callers that pass it unconditionally, and otherwise does nothing.
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable ANSI color in output")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(sessionsCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codi %s\n", Version)
		},
	}
}

// sessionDir returns $CODI_SESSION_DIR, defaulting to ~/.codi/sessions.
func sessionDir() (string, error) {
	if v := os.Getenv("CODI_SESSION_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".codi", "sessions"), nil
}

func openStore() (*sqlitestore.Store, error) {
	dir, err := sessionDir()
	if err != nil {
		return nil, codierr.Wrap(codierr.Configuration, "resolve session dir", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, codierr.Wrap(codierr.Configuration, "create session dir", err)
	}
	store, err := sqlitestore.Open(filepath.Join(dir, "sessions.db"))
	if err != nil {
		return nil, codierr.Wrap(codierr.Configuration, "open session store", err)
	}
	return store, nil
}

// runOneShot drives a single turn of the default local (non-orchestrated)
// agent loop against prompt, printing streamed text to stdout.
func runOneShot(ctx context.Context, prompt string) error {
	logger := newLogger()

	cfgPath := config.Resolve(flagConfig)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagAudit {
		cfg.Audit = true
	}

	if prompt == "" {
		return codierr.New(codierr.Configuration, "no prompt given")
	}

	provider, err := providers.Detect(ctx, cfg.Provider)
	if err != nil {
		return codierr.Wrap(codierr.Configuration, "detect provider", err)
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	root, err := os.Getwd()
	if err != nil {
		return err
	}

	sess, err := resolveSession(ctx, store, cfg, provider.Name(), root)
	if err != nil {
		return err
	}

	auditSink := audit.NewSink(cfg.Audit, sess.ID.String())
	defer auditSink.Close()

	gate := approval.NewGate(approval.NewCLIPrompter(os.Stdin, os.Stdout), sess.AutoApprove)
	danger := tools.NewDangerPatternFilter()
	for _, p := range cfg.DangerousPatterns {
		if err := danger.AddConfigurable(p, "matches a configured dangerous_patterns entry"); err != nil {
			return codierr.Wrap(codierr.Configuration, "load dangerous_patterns", err)
		}
	}
	registry := tools.NewRegistry(gate, danger)
	for _, t := range []tools.Tool{
		tools.NewReadFileTool(root),
		tools.NewWriteFileTool(root),
		tools.NewEditFileTool(root),
		tools.NewListDirectoryTool(root),
		tools.NewGlobTool(root),
		tools.NewGrepTool(root),
		tools.NewBashTool(root),
	} {
		if err := registry.Register(t); err != nil {
			return codierr.Wrap(codierr.Configuration, "register tools", err)
		}
	}
	registry.Seal()

	loop := agent.New(agent.Config{
		Provider:      provider,
		Model:         cfg.Model,
		Tools:         registry,
		MaxIterations: cfg.MaxIterations,
		OnEvent: func(ev agent.AgentEvent) {
			switch ev.Type {
			case agent.ToolExecuting:
				logger.Info("executing tool", "tool", ev.ToolName)
				auditSink.Record(audit.ToolCall, map[string]string{"tool_id": ev.ToolID, "tool": ev.ToolName})
			case agent.ToolCompleted:
				auditSink.Record(audit.ToolResult, map[string]any{"tool_id": ev.ToolID, "is_error": ev.IsError})
			case agent.TurnEnded:
				if ev.EndReason == "error" {
					auditSink.Record(audit.Error, map[string]string{"reason": ev.EndReason, "error": fmt.Sprint(ev.Err)})
				}
			}
		},
	})

	sink := agent.FuncSink{OnText: func(delta string) { fmt.Print(delta) }}

	_, runErr := loop.Run(ctx, sess, prompt, sink)
	fmt.Println()

	for name, ok := range gate.Snapshot() {
		if ok {
			sess.AutoApprove[name] = true
		}
	}

	if saveErr := store.Save(ctx, sess); saveErr != nil {
		logger.Warn("failed to persist session", "error", saveErr)
	}

	if runErr != nil {
		return runErr
	}
	return nil
}

func resolveSession(ctx context.Context, store *sqlitestore.Store, cfg *config.Config, providerName, root string) (*session.Session, error) {
	if flagSession == "" {
		sess := session.New(cfg.Model, providerName, cfg.SystemPromptAdditions, root)
		for _, name := range cfg.AutoApprove {
			sess.AutoApprove[name] = true
		}
		if err := store.Create(ctx, sess); err != nil {
			return nil, codierr.Wrap(codierr.Configuration, "create session", err)
		}
		return sess, nil
	}

	id, err := uuid.Parse(flagSession)
	if err != nil {
		return nil, codierr.Wrap(codierr.Configuration, fmt.Sprintf("invalid --session id %q", flagSession), err)
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		return nil, codierr.Wrap(codierr.Configuration, fmt.Sprintf("load session %s", flagSession), err)
	}
	return sess, nil
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Execute runs the root cobra command, mapping a returned error to the
// §7 exit code convention: configuration errors exit 2, everything else
// exits 1.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var ce *codierr.Error
		if errors.As(err, &ce) && ce.Kind == codierr.Configuration {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
