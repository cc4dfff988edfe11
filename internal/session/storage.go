package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

const (
	// FileName is the transcript file within each session directory.
	FileName = "session.json"

	maxNameLength = 64
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName checks a user-supplied session name. Names contain only
// letters, digits, hyphens and underscores.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("session name too long (max %d chars)", maxNameLength)
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("session name can only contain letters, numbers, hyphens, and underscores")
	}
	return nil
}

// Save writes sess to its directory through a temp file and rename.
func Save(sess *Session) error {
	if err := os.MkdirAll(sess.Dir, 0o755); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := filepath.Join(sess.Dir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save session file: %w", err)
	}
	return nil
}

// Load reads the session stored in dir.
func Load(dir string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s not found in %s", FileName, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	sess.Dir = dir
	return &sess, nil
}

// dirSize totals the file sizes under dir. Missing directories are empty.
func dirSize(dir string) int64 {
	var size int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
