package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/BryanTheLai/stackrag/pkg/chat"
	"github.com/BryanTheLai/stackrag/pkg/session"
	"github.com/BryanTheLai/stackrag/pkg/stream"
)

const timeLayout = "2006-01-02 15:04"

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		return listSessions(cmd.Context(), cmd.OutOrStdout(), a)
	}),
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a session with its replies rendered",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		return showSession(cmd.Context(), cmd.OutOrStdout(), a, args[0])
	}),
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Change a session title",
	Args:  cobra.MinimumNArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		title := strings.Join(args[1:], " ")
		if err := a.store.UpdateTitle(cmd.Context(), args[0], title); err != nil {
			return sessionErr(args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], title)
		return nil
	}),
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its indexed replies",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		return deleteSession(cmd.Context(), cmd.OutOrStdout(), a, args[0])
	}),
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id> <file>",
	Short: "Write a session's history to a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		return exportSession(cmd.Context(), cmd.OutOrStdout(), a, args[0], args[1])
	}),
}

// withApp loads the app for the duration of a command.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func sessionErr(id string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("session %s not found", id)
	}
	return err
}

func listSessions(ctx context.Context, out io.Writer, a *app) error {
	sessions, err := a.store.List(ctx, a.cfg.Session.UserID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.MessageCount, s.UpdatedAt.Local().Format(timeLayout))
	}
	return w.Flush()
}

func showSession(ctx context.Context, out io.Writer, a *app, id string) error {
	sess, err := a.store.Get(ctx, id)
	if err != nil {
		return sessionErr(id, err)
	}

	fmt.Fprintf(out, "%s\n\n", sess.Title)
	for _, msg := range sess.History {
		switch {
		case msg.IsUserPrompt():
			fmt.Fprintf(out, "You: %s\n\n", msg.Text())
		case msg.IsResponse():
			view := chat.TurnView{
				Model:    msg.ModelName,
				Segments: stream.Collect(a.reg, msg.Text()),
				Status:   chat.StatusComplete,
			}
			fmt.Fprintf(out, "%s\n\n", a.renderer.Render(view))
		default:
			fmt.Fprintf(out, "%s: %s\n\n", msg.Label(), msg.Text())
		}
	}
	return nil
}

func deleteSession(ctx context.Context, out io.Writer, a *app, id string) error {
	if err := a.store.Delete(ctx, id); err != nil {
		return sessionErr(id, err)
	}
	if a.index != nil {
		if err := a.index.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("session deleted but its replies are still indexed: %w", err)
		}
	}
	fmt.Fprintf(out, "Deleted %s\n", id)
	return nil
}

func exportSession(ctx context.Context, out io.Writer, a *app, id, path string) error {
	sess, err := a.store.Get(ctx, id)
	if err != nil {
		return sessionErr(id, err)
	}

	h, err := chat.NewHistory(path)
	if err != nil {
		return err
	}
	if err := h.Replace(sess.History); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %d messages to %s\n", len(sess.History), path)
	return nil
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsRenameCmd, sessionsDeleteCmd, sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}
