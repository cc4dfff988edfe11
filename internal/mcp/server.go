package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/pdfrag/internal/errors"
	"github.com/Aman-CERP/pdfrag/internal/extract"
	"github.com/Aman-CERP/pdfrag/internal/pipeline"
	"github.com/Aman-CERP/pdfrag/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "pdfrag"

// Pipeline is the part of pipeline.Controller the server uses.
type Pipeline interface {
	Process(ctx context.Context, doc *extract.Document, opts pipeline.ProcessOptions) (*pipeline.ProcessReport, error)
	Answer(ctx context.Context, question string) (*pipeline.QueryResult, error)
	Status() pipeline.Status
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "process_pdf",
		Description: "Extract, chunk and index a PDF so questions can be asked about it. Replaces the current document only if processing succeeds.",
	},
	{
		Name:        "ask",
		Description: "Answer a question using the most relevant passages of the processed PDF. Returns the answer and the passages it was drawn from.",
	},
	{
		Name:        "status",
		Description: "Report whether a document is ready, which document it is, and the last error.",
	},
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each tool call. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// Server bridges MCP clients to a Pipeline.
type Server struct {
	mcp      *mcp.Server
	pipeline Pipeline
	logger   *slog.Logger
	timeout  time.Duration
}

// NewServer creates a server and registers its tools.
func NewServer(p Pipeline, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, stderrors.New("pipeline is required")
	}
	s := &Server{pipeline: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpProcessHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpAskHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpStatusHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with loosely typed arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	str := func(key string) (string, error) {
		v, ok := args[key]
		if !ok || v == nil {
			return "", nil
		}
		sv, ok := v.(string)
		if !ok {
			return "", NewInvalidParamsError(fmt.Sprintf("%s must be a string", key))
		}
		return sv, nil
	}

	switch name {
	case "process_pdf":
		var in ProcessInput
		var err error
		if in.Path, err = str("path"); err != nil {
			return nil, err
		}
		if in.Password, err = str("password"); err != nil {
			return nil, err
		}
		if in.PersistDir, err = str("persist_dir"); err != nil {
			return nil, err
		}
		return s.process(ctx, in)
	case "ask":
		q, err := str("question")
		if err != nil {
			return nil, err
		}
		return s.ask(ctx, AskInput{Question: q})
	case "status":
		return s.status(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Server) process(ctx context.Context, in ProcessInput) (ProcessOutput, error) {
	if strings.TrimSpace(in.Path) == "" {
		return ProcessOutput{}, NewInvalidParamsError("path parameter is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	report, err := s.pipeline.Process(ctx, extract.NewDocument(in.Path, in.Password),
		pipeline.ProcessOptions{PersistDir: in.PersistDir})
	if err != nil {
		s.logToolError("process_pdf", err)
		return ProcessOutput{}, MapError(err)
	}
	s.logger.Info("tool call",
		slog.String("tool", "process_pdf"),
		slog.String("path", in.Path),
		slog.Int("chunks", report.Chunks),
		slog.Duration("duration", time.Since(start)))
	return toProcessOutput(report), nil
}

func (s *Server) ask(ctx context.Context, in AskInput) (AskOutput, error) {
	if strings.TrimSpace(in.Question) == "" {
		return AskOutput{}, NewInvalidParamsError("question parameter is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.Answer(ctx, in.Question)
	if err != nil {
		s.logToolError("ask", err)
		return AskOutput{}, MapError(errors.FromContext(ctx, err))
	}
	s.logger.Info("tool call",
		slog.String("tool", "ask"),
		slog.Int("sources", len(res.Sources)),
		slog.Duration("duration", time.Since(start)))
	return toAskOutput(res), nil
}

func (s *Server) status() StatusOutput {
	return toStatusOutput(s.pipeline.Status())
}

func (s *Server) logToolError(tool string, err error) {
	attrs := append([]any{slog.String("tool", tool)}, errors.FormatForLog(err)...)
	s.logger.Warn("tool call failed", attrs...)
}

func (s *Server) mcpProcessHandler(ctx context.Context, _ *mcp.CallToolRequest, in ProcessInput) (
	*mcp.CallToolResult, ProcessOutput, error,
) {
	out, err := s.process(ctx, in)
	if err != nil {
		return nil, ProcessOutput{}, err
	}
	return textResult(FormatReport(out)), out, nil
}

func (s *Server) mcpAskHandler(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (
	*mcp.CallToolResult, AskOutput, error,
) {
	out, err := s.ask(ctx, in)
	if err != nil {
		return nil, AskOutput{}, err
	}
	return textResult(FormatAnswer(in.Question, out)), out, nil
}

func (s *Server) mcpStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	return nil, s.status(), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// Serve runs the server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}
