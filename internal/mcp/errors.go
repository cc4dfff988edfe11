// Package mcp exposes the document pipeline as a Model Context Protocol
// server with process_pdf, ask and status tools.
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

// JSON-RPC error codes. The -3200x range is server defined.
const (
	ErrCodeNotReady        = -32001
	ErrCodeEmbeddingFailed = -32002
	ErrCodeTimeout         = -32003
	ErrCodeExtraction      = -32004

	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a pipeline error to an MCPError.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if stderrors.As(err, &me) {
		return me
	}

	var pe *errors.PipelineError
	if !stderrors.As(err, &pe) {
		switch {
		case stderrors.Is(err, context.DeadlineExceeded):
			return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
		case stderrors.Is(err, context.Canceled):
			return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
		}
	}

	msg := pe.Message
	if pe.Suggestion != "" {
		msg = fmt.Sprintf("%s. %s", pe.Message, pe.Suggestion)
	}

	code := ErrCodeInternalError
	switch pe.Kind {
	case errors.KindNotReady, errors.KindNotBuilt:
		code = ErrCodeNotReady
	case errors.KindEmbedding:
		code = ErrCodeEmbeddingFailed
	case errors.KindCancelled:
		code = ErrCodeTimeout
	case errors.KindExtraction, errors.KindDecryption:
		code = ErrCodeExtraction
	case errors.KindValidation:
		code = ErrCodeInvalidParams
	}
	return &MCPError{Code: code, Message: msg}
}

// NewInvalidParamsError reports a missing or malformed tool argument.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError reports an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}
