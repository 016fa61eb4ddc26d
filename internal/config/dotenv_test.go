package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvUpFindsParentFile(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "cmd", "api")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("MEMP_DOTENV_PROBE=found\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Cleanup(func() { _ = os.Unsetenv("MEMP_DOTENV_PROBE") })

	got := LoadDotEnvUp(4)
	assert.Equal(t, "found", os.Getenv("MEMP_DOTENV_PROBE"))
	assert.Equal(t, ".env", filepath.Base(got))
}
