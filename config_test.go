package excelgrid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"file: books.xlsx\nsheet: sales\nstore: grids.db\n"), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "books.xlsx", cfg.File)
	assert.Equal(t, "sales", cfg.Sheet)
	assert.Equal(t, "grids.db", cfg.Store)

	// unset keys keep their defaults
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestLoadServerConfigErrors(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0o644))
	_, err = LoadServerConfig(path)
	assert.Error(t, err)
}
