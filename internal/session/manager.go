package session

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSessions is the default maximum number of stored sessions.
const DefaultMaxSessions = 50

// ErrNotFound is returned when no session matches an ID or name.
var ErrNotFound = stderrors.New("session not found")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// StoragePath is the directory holding one subdirectory per session.
	StoragePath string

	// MaxSessions caps the number of stored sessions. Zero means
	// DefaultMaxSessions.
	MaxSessions int
}

// Manager creates, finds and deletes sessions.
type Manager struct {
	storagePath string
	maxSessions int
	now         func() time.Time
}

// NewManager creates the storage directory if needed.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.StoragePath == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		return nil, fmt.Errorf("create session storage: %w", err)
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{storagePath: cfg.StoragePath, maxSessions: maxSessions, now: time.Now}, nil
}

// Create starts a new session. name may be empty.
func (m *Manager) Create(name, source string) (*Session, error) {
	if name != "" {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("invalid session name: %w", err)
		}
		if _, err := m.findByName(name); err == nil {
			return nil, fmt.Errorf("session %q already exists", name)
		}
	}

	ids, err := m.ids()
	if err != nil {
		return nil, err
	}
	if len(ids) >= m.maxSessions {
		return nil, fmt.Errorf("maximum %d sessions reached; delete old sessions first", m.maxSessions)
	}

	sess := New(name, source, "", m.now())
	sess.Dir = filepath.Join(m.storagePath, sess.ID)
	if err := Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Open resumes the session called name, or creates it. An empty name always
// creates an unnamed session.
func (m *Manager) Open(name, source string) (*Session, error) {
	if name == "" {
		return m.Create("", source)
	}
	sess, err := m.findByName(name)
	if stderrors.Is(err, ErrNotFound) {
		return m.Create(name, source)
	}
	return sess, err
}

// Save stores sess, updating LastUsed.
func (m *Manager) Save(sess *Session) error {
	sess.LastUsed = m.now()
	return Save(sess)
}

// Get finds a session by ID or name.
func (m *Manager) Get(ref string) (*Session, error) {
	if _, err := uuid.Parse(ref); err == nil {
		dir := filepath.Join(m.storagePath, ref)
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
	}
	return m.findByName(ref)
}

// List returns every readable session, most recently used first.
func (m *Manager) List() ([]*Info, error) {
	sessions, err := m.all()
	if err != nil {
		return nil, err
	}
	infos := make([]*Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info(dirSize(s.Dir)))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].LastUsed.After(infos[j].LastUsed)
	})
	return infos, nil
}

// Delete removes a session found by ID or name.
func (m *Manager) Delete(ref string) error {
	sess, err := m.Get(ref)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(sess.Dir); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune deletes sessions unused for longer than olderThan and returns how
// many were removed.
func (m *Manager) Prune(olderThan time.Duration) (int, error) {
	sessions, err := m.all()
	if err != nil {
		return 0, err
	}
	now := m.now()
	deleted := 0
	for _, s := range sessions {
		if s.IsStale(olderThan, now) && os.RemoveAll(s.Dir) == nil {
			deleted++
		}
	}
	return deleted, nil
}

func (m *Manager) findByName(name string) (*Session, error) {
	sessions, err := m.all()
	if err != nil {
		return nil, err
	}
	for _, s := range sessions {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ids returns the directories that hold a session file.
func (m *Manager) ids() ([]string, error) {
	entries, err := os.ReadDir(m.storagePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.storagePath, e.Name(), FileName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// all loads every session, skipping unreadable ones.
func (m *Manager) all() ([]*Session, error) {
	ids, err := m.ids()
	if err != nil {
		return nil, err
	}
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, err := Load(filepath.Join(m.storagePath, id))
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}
