package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pdfrag/internal/errors"
)

func TestDirLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "index")
	first := NewDirLock(dir)
	second := NewDirLock(dir)
	assert.Equal(t, filepath.Join(dir, LockFile), first.Path())

	require.NoError(t, first.TryLock())
	assert.FileExists(t, first.Path())

	err := second.TryLock()
	assert.Equal(t, errors.ErrCodeIndexLocked, errors.GetCode(err))

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock())

	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}
