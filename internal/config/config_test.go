package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "default", cfg.Partition)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Codec.Name)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/agentvec
partition: tenant-7
log_level: debug
codec:
  name: zstd
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/agentvec", cfg.DataDir)
	assert.Equal(t, "tenant-7", cfg.Partition)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "zstd", cfg.Codec.Name)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "partition: from-file\n")
	t.Setenv("AGENTVEC_PARTITION", "from-env")
	t.Setenv("AGENTVEC_CODEC_NAME", "lz4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Partition)
	assert.Equal(t, "lz4", cfg.Codec.Name)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeConfig(t, "log_level: loud\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "log_level")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "::: not yaml")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestBuildCodec(t *testing.T) {
	cfg := Default()
	c, err := cfg.BuildCodec()
	require.NoError(t, err)
	assert.Equal(t, "none", c.Name())

	cfg.Codec.Name = "zstd"
	c, err = cfg.BuildCodec()
	require.NoError(t, err)
	assert.Equal(t, "zstd", c.Name())

	key := make([]byte, 32)
	cfg.Codec.Name = "aead"
	cfg.Codec.Key = hex.EncodeToString(key)
	c, err = cfg.BuildCodec()
	require.NoError(t, err)
	assert.Equal(t, "aead", c.Name())

	cfg.Codec.Key = "zz"
	_, err = cfg.BuildCodec()
	assert.ErrorContains(t, err, "hex")
}
