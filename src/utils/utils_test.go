package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrExitCallsExitHook(t *testing.T) {
	var code = -1
	SetExitHook(func(c int) { code = c })
	defer SetExitHook(nil)

	ErrExit("something went wrong: %s", "boom")
	assert.Equal(t, 1, code)
}

func TestFileOrFolderExists(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, FileOrFolderExists(dir))
	assert.False(t, FileOrFolderExists(filepath.Join(dir, "missing")))

	file := filepath.Join(dir, "present")
	assert.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.True(t, FileOrFolderExists(file))
}
