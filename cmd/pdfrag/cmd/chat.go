package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/pdfrag/internal/config"
	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/output"
	"github.com/Aman-CERP/pdfrag/internal/session"
)

type chatOptions struct {
	source  indexSource
	session string
	noSave  bool
}

func newChatCmd() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Long: `Read questions from standard input and answer each one.

Type 'exit' or 'quit' (or send EOF) to stop. Blank lines are ignored.
The transcript is saved as a session; --session NAME resumes a named
session, reusing its index directory when no --pdf or --persist-dir is
given.`,
		Example: `  pdfrag chat --pdf report.pdf --persist-dir ./report-index
  pdfrag chat --session quarterly`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.source.PDF, "pdf", "", "Path to the PDF file")
	cmd.Flags().StringVar(&opts.source.Password, "password", "", "Password for an encrypted PDF")
	cmd.Flags().StringVar(&opts.source.PersistDir, "persist-dir", "", "Index directory to load, or to save to after processing --pdf")
	cmd.Flags().StringVar(&opts.session, "session", "", "Named session to resume or create")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "Do not save the transcript")

	return cmd
}

func runChat(cmd *cobra.Command, opts chatOptions) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		mgr  *session.Manager
		sess *session.Session
	)
	if !opts.noSave {
		mgr, err = newSessionManager(cfg)
		if err != nil {
			return err
		}
		sess, err = mgr.Open(opts.session, opts.source.PDF)
		if err != nil {
			return errors.ValidationError("failed to open session", err)
		}
		if opts.source.PDF == "" && opts.source.PersistDir == "" && sess.PersistDir != "" {
			opts.source.PersistDir = sess.PersistDir
		}
	}

	ctrl, err := newController(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = ctrl.Close() }()

	report, err := openIndex(ctx, ctrl, opts.source, nil)
	if err != nil {
		return err
	}
	if report != nil {
		out.Report(report)
	} else {
		out.Successf("Loaded index from %s", opts.source.PersistDir)
	}
	if sess != nil {
		sess.Attach(ctrl.Status(), opts.source.PersistDir)
		if err := mgr.Save(sess); err != nil {
			return errors.PersistenceError("failed to save session", err)
		}
		out.Statusf("", "Session: %s", sess.Label())
	}
	out.Status("", "Ask a question, or type 'exit' to quit.")

	return chatLoop(cmd, func(q string) error {
		res, err := ctrl.Answer(ctx, q)
		if sess != nil {
			sess.Record(q, res, err, time.Now())
			if serr := mgr.Save(sess); serr != nil {
				slog.Warn("failed to save session", slog.String("session", sess.ID), slog.String("error", serr.Error()))
			}
		}
		if err != nil {
			if errors.IsCancelled(err) {
				return err
			}
			out.Error(strings.TrimSpace(errors.FormatForCLI(err)))
			return nil
		}
		out.Newline()
		out.Answer(res, true)
		out.Newline()
		return nil
	})
}

// chatLoop prompts for questions on the command input and passes each
// non-blank line to answer until exit, quit, EOF, or an error from answer.
// Input is read on its own goroutine so a cancelled context ends the loop
// while the prompt waits for a line.
func chatLoop(cmd *cobra.Command, answer func(string) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		_, _ = fmt.Fprint(w, "> ")
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(w)
			return errors.CancelledError("chat interrupted", ctx.Err())
		case text, ok := <-lines:
			if !ok {
				_, _ = fmt.Fprintln(w)
				if err := <-readErr; err != nil {
					return errors.InternalError("failed to read input", err)
				}
				return nil
			}
			line := strings.TrimSpace(text)
			if line == "" {
				continue
			}
			if isExitCommand(line) {
				return nil
			}
			if err := answer(line); err != nil {
				return err
			}
		}
	}
}

func isExitCommand(line string) bool {
	return strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit")
}

// newSessionManager opens the session store configured in cfg.
func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	mgr, err := session.NewManager(session.ManagerConfig{
		StoragePath: cfg.Sessions.StoragePath,
		MaxSessions: cfg.Sessions.MaxSessions,
	})
	if err != nil {
		return nil, errors.PersistenceError("failed to open session storage", err)
	}
	return mgr, nil
}
