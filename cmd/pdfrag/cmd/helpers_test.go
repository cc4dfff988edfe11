package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Aman-CERP/pdfrag/internal/extract/pdftest"
)

const invoiceText = "Invoice #123 dated 2024-01-15 issued by Acme Bank."

// setupEnv isolates config, data and session directories and selects the
// offline providers.
func setupEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("PDFRAG_HOME", filepath.Join(home, ".pdfrag"))
	t.Setenv("PDFRAG_SESSIONS_PATH", filepath.Join(home, "sessions"))
	t.Setenv("PDFRAG_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("PDFRAG_LLM_PROVIDER", "static")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NO_COLOR", "1")
	return home
}

func writeInvoice(t *testing.T) string {
	t.Helper()
	return pdftest.WriteFile(t, "invoice.pdf", pdftest.Build(invoiceText))
}

// execute runs the root command with args and stdin, returning everything
// written to stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
