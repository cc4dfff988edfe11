package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	sessionsCmd, _, err := cmd.Find([]string{"sessions"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sc := range sessionsCmd.Commands() {
		names[sc.Name()] = true
	}
	for _, want := range []string{"list", "show", "delete", "prune"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestSessionsCmd_Empty(t *testing.T) {
	setupEnv(t)

	out, err := execute(t, "", "sessions")

	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestSessionsCmd_DeleteAndPrune(t *testing.T) {
	// Given: a saved session
	setupEnv(t)
	_, err := execute(t, "exit\n", "chat", "--pdf", writeInvoice(t), "--session", "old")
	require.NoError(t, err)

	// When: pruning with a long horizon keeps it
	out, err := execute(t, "", "sessions", "prune", "--older-than", "30d")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions to prune")

	// Then: delete removes it
	out, err = execute(t, "", "sessions", "delete", "old")
	require.NoError(t, err)
	assert.Contains(t, out, "Session 'old' deleted.")

	_, err = execute(t, "", "sessions", "delete", "old")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = execute(t, "", "sessions", "show", "old")
	require.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"12h", 12 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatTimeAgo(t *testing.T) {
	assert.Equal(t, "just now", formatTimeAgo(time.Now()))
	assert.Equal(t, "5m ago", formatTimeAgo(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3h ago", formatTimeAgo(time.Now().Add(-3*time.Hour-time.Second)))
	assert.Equal(t, "2d ago", formatTimeAgo(time.Now().Add(-49*time.Hour)))
}
