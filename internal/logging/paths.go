package logging

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the pdfrag data directory when set.
const HomeEnv = "PDFRAG_HOME"

// DefaultDataDir returns the pdfrag data directory (~/.pdfrag/ unless
// PDFRAG_HOME is set). Falls back to the temp directory if the home
// directory is unavailable.
func DefaultDataDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pdfrag")
	}
	return filepath.Join(home, ".pdfrag")
}

// DefaultLogDir returns the default log directory.
func DefaultLogDir() string {
	return filepath.Join(DefaultDataDir(), "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "pdfrag.log")
}
