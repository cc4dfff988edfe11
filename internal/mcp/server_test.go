package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfrag/internal/chunk"
	"github.com/Aman-CERP/pdfrag/internal/embed"
	"github.com/Aman-CERP/pdfrag/internal/extract/pdftest"
	"github.com/Aman-CERP/pdfrag/internal/llm"
	"github.com/Aman-CERP/pdfrag/internal/pipeline"
)

const invoiceText = "Invoice #123 dated 2024-01-15 issued by Acme Bank."

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.Chunking = chunk.Options{Size: 1000, Overlap: 0}
	ctrl, err := pipeline.New(cfg, pipeline.Dependencies{
		Embedder:  embed.NewStaticEmbedder(),
		Generator: llm.NewStaticGenerator(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctrl.Close() })

	srv, err := NewServer(ctrl)
	require.NoError(t, err)
	return srv
}

func processInvoice(t *testing.T, srv *Server) ProcessOutput {
	t.Helper()
	path := pdftest.WriteFile(t, "invoice.pdf", pdftest.Build(invoiceText))
	res, err := srv.CallTool(context.Background(), "process_pdf", map[string]any{"path": path})
	require.NoError(t, err)
	out, ok := res.(ProcessOutput)
	require.True(t, ok, "got %T", res)
	return out
}

func TestNewServer_RequiresPipeline(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t)

	var names []string
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.Equal(t, []string{"process_pdf", "ask", "status"}, names)
}

func TestProcessThenAsk(t *testing.T) {
	// Given: a processed invoice
	srv := newTestServer(t)
	report := processInvoice(t, srv)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 1, report.Pages)

	// When
	res, err := srv.CallTool(context.Background(), "ask", map[string]any{"question": "Who issued this document?"})

	// Then
	require.NoError(t, err)
	out, ok := res.(AskOutput)
	require.True(t, ok, "got %T", res)
	assert.Contains(t, out.Answer, "Acme Bank")
	require.Len(t, out.Sources, 1)
	assert.Equal(t, 1, out.Sources[0].Rank)
	assert.Contains(t, out.Sources[0].Content, "Acme Bank")
	assert.Equal(t, llm.StaticModelName, out.Model)
}

func TestProcess_PersistDir(t *testing.T) {
	srv := newTestServer(t)
	path := pdftest.WriteFile(t, "invoice.pdf", pdftest.Build(invoiceText))
	dir := filepath.Join(t.TempDir(), "index")

	res, err := srv.CallTool(context.Background(), "process_pdf", map[string]any{"path": path, "persist_dir": dir})

	require.NoError(t, err)
	out := res.(ProcessOutput)
	assert.True(t, out.Persisted)
	assert.Equal(t, dir, out.PersistDir)
}

func TestStatus(t *testing.T) {
	srv := newTestServer(t)

	res, err := srv.CallTool(context.Background(), "status", nil)
	require.NoError(t, err)
	assert.Equal(t, "unprocessed", res.(StatusOutput).State)

	report := processInvoice(t, srv)

	res, err = srv.CallTool(context.Background(), "status", nil)
	require.NoError(t, err)
	st := res.(StatusOutput)
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, report.DocumentID, st.DocumentID)
	assert.Equal(t, 1, st.Chunks)
	assert.Equal(t, embed.StaticModelName, st.EmbedderModel)
}

func TestCallTool_Errors(t *testing.T) {
	encrypted := func(t *testing.T) string {
		return pdftest.WriteFile(t, "locked.pdf", pdftest.BuildEncrypted("s3cret", invoiceText))
	}

	tests := []struct {
		name string
		tool string
		args func(t *testing.T) map[string]any
		code int
	}{
		{"ask before process", "ask", func(*testing.T) map[string]any { return map[string]any{"question": "Who?"} }, ErrCodeNotReady},
		{"ask without question", "ask", func(*testing.T) map[string]any { return map[string]any{} }, ErrCodeInvalidParams},
		{"ask with non-string question", "ask", func(*testing.T) map[string]any { return map[string]any{"question": 42} }, ErrCodeInvalidParams},
		{"process without path", "process_pdf", func(*testing.T) map[string]any { return map[string]any{} }, ErrCodeInvalidParams},
		{"process missing file", "process_pdf", func(t *testing.T) map[string]any {
			return map[string]any{"path": filepath.Join(t.TempDir(), "missing.pdf")}
		}, ErrCodeExtraction},
		{"process wrong password", "process_pdf", func(t *testing.T) map[string]any {
			return map[string]any{"path": encrypted(t), "password": "guess"}
		}, ErrCodeExtraction},
		{"unknown tool", "search", func(*testing.T) map[string]any { return nil }, ErrCodeMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			_, err := srv.CallTool(context.Background(), tt.tool, tt.args(t))

			require.Error(t, err)
			me, ok := err.(*MCPError)
			require.True(t, ok, "got %T: %v", err, err)
			assert.Equal(t, tt.code, me.Code)
		})
	}
}

func TestAsk_Cancelled(t *testing.T) {
	srv := newTestServer(t)
	processInvoice(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := srv.CallTool(ctx, "ask", map[string]any{"question": "Who issued this document?"})

	require.Error(t, err)
	assert.Equal(t, ErrCodeTimeout, err.(*MCPError).Code)
}

func TestServer_OverInMemoryTransport(t *testing.T) {
	// Given: a client connected to the server through the SDK
	srv := newTestServer(t)
	processInvoice(t, srv)
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	// When: listing and calling tools
	listed, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "ask",
		Arguments: map[string]any{"question": "Who issued this document?"},
	})

	// Then
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"process_pdf", "ask", "status"}, names)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "got %T", res.Content[0])
	assert.Contains(t, text.Text, "Acme Bank")
}
