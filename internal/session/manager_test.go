package session

import (
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxSessions int) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{StoragePath: filepath.Join(t.TempDir(), "sessions"), MaxSessions: maxSessions})
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresPath(t *testing.T) {
	_, err := NewManager(ManagerConfig{})
	assert.Error(t, err)
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t, 0)

	sess, err := m.Create("taxes", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.storagePath, sess.ID), sess.Dir)

	byID, err := m.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "taxes", byID.Name)

	byName, err := m.Get("taxes")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byName.ID)

	_, err = m.Get("nope")
	assert.True(t, stderrors.Is(err, ErrNotFound))
}

func TestManager_CreateRejectsDuplicateAndInvalidNames(t *testing.T) {
	m := newTestManager(t, 0)
	_, err := m.Create("taxes", "a.pdf")
	require.NoError(t, err)

	_, err = m.Create("taxes", "b.pdf")
	assert.ErrorContains(t, err, "already exists")

	_, err = m.Create("bad name", "b.pdf")
	assert.ErrorContains(t, err, "invalid session name")
}

func TestManager_OpenResumesByName(t *testing.T) {
	m := newTestManager(t, 0)

	first, err := m.Open("taxes", "report.pdf")
	require.NoError(t, err)
	first.Record("q1", nil, nil, time.Now())
	require.NoError(t, m.Save(first))

	again, err := m.Open("taxes", "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, again.Turns, 1)

	a, err := m.Open("", "report.pdf")
	require.NoError(t, err)
	b, err := m.Open("", "report.pdf")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID, "unnamed sessions are always new")
}

func TestManager_MaxSessions(t *testing.T) {
	m := newTestManager(t, 2)
	_, err := m.Create("", "a.pdf")
	require.NoError(t, err)
	_, err = m.Create("", "b.pdf")
	require.NoError(t, err)

	_, err = m.Create("", "c.pdf")

	assert.ErrorContains(t, err, "maximum 2 sessions")
}

func TestManager_ListNewestFirst(t *testing.T) {
	m := newTestManager(t, 0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	old, err := m.Create("old", "a.pdf")
	require.NoError(t, err)
	clock = clock.Add(time.Hour)
	recent, err := m.Create("recent", "b.pdf")
	require.NoError(t, err)

	infos, err := m.List()

	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, recent.ID, infos[0].ID)
	assert.Equal(t, old.ID, infos[1].ID)
	assert.Positive(t, infos[0].Size)
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t, 0)
	sess, err := m.Create("taxes", "a.pdf")
	require.NoError(t, err)

	require.NoError(t, m.Delete("taxes"))

	_, err = m.Get(sess.ID)
	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.Error(t, m.Delete("taxes"))
}

func TestManager_Prune(t *testing.T) {
	m := newTestManager(t, 0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, err := m.Create("stale", "a.pdf")
	require.NoError(t, err)
	clock = clock.Add(48 * time.Hour)
	fresh, err := m.Create("fresh", "b.pdf")
	require.NoError(t, err)

	n, err := m.Prune(24 * time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	infos, err := m.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, fresh.ID, infos[0].ID)
}
