package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateBackups(t *testing.T) {
	dir := t.TempDir()

	newZip := func(n int) string {
		path := filepath.Join(dir, fmt.Sprintf("harvest-%d.zip", n))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("zip %d", n)), 0644))
		return path
	}

	readBackup := func(suffix string) string {
		data, err := os.ReadFile(filepath.Join(dir, "repo"+suffix))
		require.NoError(t, err)
		return string(data)
	}

	// First rotation: only BackupOne exists.
	installed, err := rotateBackups(dir, "repo", newZip(1))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "repo_BackupOne.zip"), installed)
	assert.Equal(t, "zip 1", readBackup("_BackupOne.zip"))
	assert.NoFileExists(t, filepath.Join(dir, "repo_BackupTwo.zip"))

	// Second and third rotations shift the older zips down.
	_, err = rotateBackups(dir, "repo", newZip(2))
	require.NoError(t, err)
	_, err = rotateBackups(dir, "repo", newZip(3))
	require.NoError(t, err)

	assert.Equal(t, "zip 3", readBackup("_BackupOne.zip"))
	assert.Equal(t, "zip 2", readBackup("_BackupTwo.zip"))
	assert.Equal(t, "zip 1", readBackup("_BackupThree.zip"))

	// A fourth rotation drops the oldest: only three are kept.
	_, err = rotateBackups(dir, "repo", newZip(4))
	require.NoError(t, err)

	assert.Equal(t, "zip 4", readBackup("_BackupOne.zip"))
	assert.Equal(t, "zip 3", readBackup("_BackupTwo.zip"))
	assert.Equal(t, "zip 2", readBackup("_BackupThree.zip"))

	matches, err := filepath.Glob(filepath.Join(dir, "repo_Backup*.zip"))
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
