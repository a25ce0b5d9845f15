package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".gomini"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gomini", "config.yaml"), []byte(content), 0644))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.SafeMode())
	assert.Equal(t, 60*time.Second, cfg.CommandTimeout())
	assert.Contains(t, cfg.FilesystemAccess.Hidden, ".gomini/**")
}

func TestProjectConfigOverridesUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfig(t, home, "llm: openai\nmodel: gpt-4o\n")

	project := t.TempDir()
	t.Chdir(project)
	writeConfig(t, project, "model: gpt-4o-mini\n")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	// Backend comes from the user config, model from the project config.
	assert.Equal(t, "openai", cfg.LLMClient)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestSafeModeExplicitOff(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	t.Chdir(project)
	writeConfig(t, project, "safe_mode: false\n")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.SafeMode())
}

func TestMCPServersParsed(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	project := t.TempDir()
	t.Chdir(project)
	writeConfig(t, project, `
mcp_servers:
  - name: weather
    command: weather-server
    args: ["--port", "0"]
command_timeout_seconds: 5
`)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "weather", cfg.MCPServers[0].Name)
	assert.Equal(t, "weather-server", cfg.MCPServers[0].Command)
	assert.Equal(t, []string{"--port", "0"}, cfg.MCPServers[0].Args)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout())
}
