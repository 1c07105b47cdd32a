package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with an empty home.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	cwd, err := os.Getwd()
	require.NoError(t, err)
	return cwd
}

func TestLoad_Defaults(t *testing.T) {
	cwd := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, cwd, cfg.Workspace.Root)
	assert.Empty(t, cfg.Workspace.Vars)
	assert.True(t, cfg.Aux.TX)
	assert.True(t, cfg.Aux.TEX)
	assert.Equal(t, filepath.Join(".texmap", "journal.db"), cfg.Journal.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	content := `
workspace:
  root: /proj
  vars:
    tex: /proj/textures
scene:
  file: shot.hcl
aux:
  tx: false
log:
  level: DEBUG
`
	require.NoError(t, os.WriteFile("texmap.yaml", []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/proj", cfg.Workspace.Root)
	assert.Equal(t, "/proj/textures", cfg.Workspace.Vars["tex"])
	assert.Equal(t, "shot.hcl", cfg.Scene.File)
	assert.False(t, cfg.Aux.TX)
	assert.True(t, cfg.Aux.TEX)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExplicitPath(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("journal:\n  path: /tmp/j.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/j.db", cfg.Journal.Path)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	isolate(t)
	t.Setenv("TEXMAP_LOG_LEVEL", "warn")
	t.Setenv("TEXMAP_SCENE_DB", "/tmp/scene.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/scene.db", cfg.Scene.DB)
}

func TestLoad_Invalid(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("texmap.yaml", []byte("log:\n  level: loud\n"), 0o644))

	_, err := Load("")
	assert.ErrorContains(t, err, "log.level")
}
