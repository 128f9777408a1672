package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/codi/internal/codierr"
	"github.com/nextlevelbuilder/codi/internal/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "inspect the session store",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsRmCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	var limit int
	c := &cobra.Command{
		Use:   "list",
		Short: "list sessions, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := store.List(cmd.Context(), session.ListOpts{Limit: limit})
			if err != nil {
				return codierr.Wrap(codierr.Configuration, "list sessions", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tPROVIDER\tMODEL\tMESSAGES\tUPDATED")
			for _, info := range result.Sessions {
				label := info.Label
				if label == "" {
					label = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					info.ID, label, info.Provider, info.Model, info.MessageCount,
					info.Updated.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}
	c.Flags().IntVar(&limit, "limit", 50, "maximum sessions to list")
	return c
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "print a session's full message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return codierr.Wrap(codierr.Configuration, "invalid session id", err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context(), id)
			if err != nil {
				return codierr.Wrap(codierr.Configuration, "load session", err)
			}

			fmt.Printf("session %s (%s/%s), %d messages, %d input/%d output tokens\n",
				sess.ID, sess.Provider, sess.Model, len(sess.Messages), sess.TotalInputToks, sess.TotalOutputToks)
			for _, m := range sess.Messages {
				fmt.Printf("--- %s ---\n", m.Role)
				for _, b := range m.Blocks {
					switch b.Kind {
					case session.BlockText:
						fmt.Println(b.Text)
					case session.BlockToolUse:
						fmt.Printf("[tool_use %s: %s %s]\n", b.ToolUse.ID, b.ToolUse.Name, string(b.ToolUse.Arguments))
					case session.BlockToolResult:
						fmt.Printf("[tool_result %s: %s]\n", b.ToolResult.ID, b.ToolResult.Output)
					}
				}
			}
			return nil
		},
	}
}

func sessionsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>",
		Short: "delete a session and its message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return codierr.Wrap(codierr.Configuration, "invalid session id", err)
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return codierr.Wrap(codierr.Configuration, "delete session", err)
			}
			fmt.Printf("deleted session %s\n", id)
			return nil
		},
	}
}
