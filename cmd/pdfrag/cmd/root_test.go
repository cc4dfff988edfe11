package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

func TestRootCmd_HasCommands(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"process", "ask", "chat", "serve", "status", "sessions", "config", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", errors.ConfigError("bad", nil), 2},
		{"validation", errors.ValidationError("bad", nil), 2},
		{"wrapped validation", fmt.Errorf("ask: %w", errors.ValidationError("bad", nil)), 2},
		{"cancelled", errors.CancelledError("stop", context.Canceled), 130},
		{"embedding", errors.EmbeddingError("down", nil), 1},
		{"plain", fmt.Errorf("unknown flag"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	plain := formatError(fmt.Errorf("unknown flag: --nope"))
	assert.Equal(t, "Error: unknown flag: --nope\n", plain)

	coded := formatError(errors.NotReadyError("cannot answer questions in state unprocessed"))
	assert.Contains(t, coded, "Error: cannot answer questions in state unprocessed")
	assert.Contains(t, coded, "Hint: Process a PDF")
	assert.Contains(t, coded, "ERR_403")
}

func TestLoadConfig_ConfigFlag(t *testing.T) {
	// Given: an explicit config file overriding the chunk size
	home := setupEnv(t)
	path := filepath.Join(home, "custom.yaml")
	require.NoError(t, writeFile(path, "chunking:\n  size: 500\n  overlap: 50\n"))

	// When
	out, err := execute(t, "", "--config", path, "config", "show", "--json")

	// Then
	require.NoError(t, err)
	assert.Contains(t, out, `"size": 500`)
	assert.Contains(t, out, `"overlap": 50`)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	home := setupEnv(t)
	path := filepath.Join(home, "bad.yaml")
	require.NoError(t, writeFile(path, "chunking:\n  size: 100\n  overlap: 100\n"))

	_, err := execute(t, "", "--config", path, "config", "show")

	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConfig), "got %v", err)
}

func TestRootCmd_WritesProfiles(t *testing.T) {
	setupEnv(t)
	heap := filepath.Join(t.TempDir(), "heap.prof")

	_, err := execute(t, "", "--profile-mem", heap, "version", "--short")

	require.NoError(t, err)
	assert.FileExists(t, heap)
}
