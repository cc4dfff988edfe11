package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// asPipelineError returns err as a PipelineError, wrapping foreign errors as internal.
func asPipelineError(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForUser returns a user-friendly error message.
// With debug set the underlying cause chain is appended.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	var pe *PipelineError
	if !errors.As(err, &pe) {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(pe.Message)
	sb.WriteString("\n")

	if pe.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(pe.Suggestion)
		sb.WriteString("\n")
	}

	if debug && pe.Cause != nil {
		sb.WriteString("\nCause: ")
		sb.WriteString(pe.Cause.Error())
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\n[%s %s]", pe.Kind, pe.Code)
	return sb.String()
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	pe := asPipelineError(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", pe.Message)
	if pe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", pe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Kind: %s\n", pe.Kind)
	fmt.Fprintf(&sb, "  Code: %s\n", pe.Code)
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	pe := asPipelineError(err)
	je := jsonError{
		Code:       pe.Code,
		Kind:       string(pe.Kind),
		Message:    pe.Message,
		Category:   string(pe.Category),
		Severity:   string(pe.Severity),
		Details:    pe.Details,
		Suggestion: pe.Suggestion,
		Retryable:  pe.Retryable,
	}
	if pe.Cause != nil {
		je.Cause = pe.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog returns slog attributes describing err, in a stable order.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}

	var pe *PipelineError
	if !errors.As(err, &pe) {
		return []any{slog.String("error", err.Error())}
	}

	attrs := []any{
		slog.String("error_code", pe.Code),
		slog.String("error_kind", string(pe.Kind)),
		slog.String("error", pe.Message),
		slog.String("severity", string(pe.Severity)),
	}
	if pe.Cause != nil {
		attrs = append(attrs, slog.String("cause", pe.Cause.Error()))
	}

	keys := make([]string, 0, len(pe.Details))
	for k := range pe.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String("detail_"+k, pe.Details[k]))
	}
	return attrs
}
