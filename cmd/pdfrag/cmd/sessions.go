package cmd

import (
	stderrors "errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/output"
	"github.com/Aman-CERP/pdfrag/internal/session"
	"github.com/Aman-CERP/pdfrag/internal/ui"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved chat sessions",
		Long: `List, show, delete, or prune the chat transcripts saved by 'pdfrag chat'.

Sessions are stored under ~/.pdfrag/sessions/<id>/session.json.`,
		Example: `  pdfrag sessions
  pdfrag sessions show quarterly
  pdfrag sessions delete quarterly
  pdfrag sessions prune --older-than=30d`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently used first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show ID|NAME",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsShow(cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID|NAME",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsDelete(cmd, args[0])
		},
	})
	cmd.AddCommand(newSessionsPruneCmd())

	return cmd
}

func newSessionsPruneCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove sessions not used recently",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsPrune(cmd, olderThan)
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "30d", "Remove sessions older than this duration (e.g., 7d, 30d, 12h)")

	return cmd
}

func getSessionManager() (*session.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newSessionManager(cfg)
}

func runSessionsList(cmd *cobra.Command) error {
	mgr, err := getSessionManager()
	if err != nil {
		return err
	}
	sessions, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "")
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Start one with: pdfrag chat --pdf FILE --session NAME")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSOURCE\tTURNS\tLAST USED\tSIZE")
	for _, s := range sessions {
		source := s.Source
		if len(source) > 40 {
			source = "..." + source[len(source)-37:]
		}
		name := s.Name
		if name == "" {
			name = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(s.ID), name, source, s.Turns, formatTimeAgo(s.LastUsed), ui.FormatBytes(s.Size))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, ref string) error {
	mgr, err := getSessionManager()
	if err != nil {
		return err
	}
	sess, err := mgr.Get(ref)
	if err != nil {
		return sessionLookupError(ref, err)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("💬", "Session %s", sess.Label())
	out.Statusf("", "ID: %s", sess.ID)
	if sess.Source != "" {
		out.Statusf("", "Source: %s", sess.Source)
	}
	if sess.PersistDir != "" {
		out.Statusf("", "Index: %s", sess.PersistDir)
	}
	out.Statusf("", "Created: %s", sess.CreatedAt.Local().Format(time.DateTime))

	for i, turn := range sess.Turns {
		out.Newline()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s\n", i+1, turn.Question)
		if turn.Error != "" {
			out.Error(turn.Error)
			continue
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", strings.TrimSpace(turn.Answer))
		if len(turn.Sources) > 0 {
			refs := make([]string, 0, len(turn.Sources))
			for _, s := range turn.Sources {
				refs = append(refs, fmt.Sprintf("#%d (%.2f)", s.ChunkIndex, s.Score))
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "    sources: %s\n", strings.Join(refs, ", "))
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, ref string) error {
	mgr, err := getSessionManager()
	if err != nil {
		return err
	}
	if err := mgr.Delete(ref); err != nil {
		return sessionLookupError(ref, err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Session '%s' deleted.\n", ref)
	return nil
}

func runSessionsPrune(cmd *cobra.Command, olderThan string) error {
	d, err := parseDuration(olderThan)
	if err != nil {
		return fmt.Errorf("invalid duration '%s': %w", olderThan, err)
	}
	mgr, err := getSessionManager()
	if err != nil {
		return err
	}
	count, err := mgr.Prune(d)
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}
	if count == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sessions to prune.")
	} else {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d session(s).\n", count)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sessionLookupError(ref string, err error) error {
	if stderrors.Is(err, session.ErrNotFound) {
		return fmt.Errorf("session '%s' not found", ref)
	}
	return err
}

// parseDuration parses a duration string like "30d", "7d", or "24h".
func parseDuration(s string) (time.Duration, error) {
	if n := len(s); n > 1 && s[n-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err != nil {
			return 0, err
		}
		if days < 0 {
			return 0, fmt.Errorf("negative duration")
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// formatTimeAgo renders t relative to now.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
