package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BlacK-CHi/tincanOpener/internal/config/schema"
	coreerrors "github.com/BlacK-CHi/tincanOpener/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 8765, cfg.Server.Port)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 8765")
	assert.Contains(t, string(data), "file: proxy.log")
}

func TestLoad_PriorityOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n  host: 0.0.0.0\nlog:\n  level: warn\n"), 0644))
	t.Setenv("TINCAN_SERVER_PORT", "9001")

	cfg, err := Load(path, func(c *schema.Root) { c.Log.Level = "debug" })
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host) // yaml
	assert.Equal(t, 9001, cfg.Server.Port)      // env over yaml
	assert.Equal(t, "debug", cfg.Log.Level)     // cli over yaml
	assert.Equal(t, "/ws", cfg.Server.Path)     // defaults
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 0\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeConfigError))
	assert.Contains(t, err.Error(), "server.port")
}

func TestEnsureConfigFile_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 1234\n"), 0644))

	created, err := EnsureConfigFile(path)
	require.NoError(t, err)
	assert.False(t, created)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "server:\n  port: 1234\n", string(data))
}

func TestLoader_NoSources(t *testing.T) {
	_, err := NewLoader().Load()
	assert.Error(t, err)
}
