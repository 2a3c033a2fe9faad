package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPersistentServerID(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, "node-a", GetPersistentServerID("node-a", dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".server_id"), []byte("azengage-saved\n"), 0644))
	assert.Equal(t, "azengage-saved", GetPersistentServerID("", dir))

	id := GetPersistentServerID("", t.TempDir())
	assert.NotEmpty(t, id)
	assert.Contains(t, id, "azengage-")
}
